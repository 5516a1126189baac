package server

import (
	"fmt"
	"net"

	kcp "github.com/xtaci/kcp-go/v5"

	"github.com/ImranAdan/computational-benchmarks/internal/config"
)

// tunedListener 每个新连接在交给 Connection 之前先按配置调整
type tunedListener struct {
	net.Listener
	tune func(net.Conn)
}

func (l *tunedListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	l.tune(conn)
	return conn, nil
}

// newStreamListener 按 StreamProto 打开原生客户端监听器
func newStreamListener(opts *config.Options) (net.Listener, error) {
	switch opts.StreamProto {
	case "tcp":
		listener, err := net.Listen("tcp", opts.StreamAddr)
		if err != nil {
			return nil, err
		}
		noDelay := opts.StreamNoDelay
		return &tunedListener{Listener: listener, tune: func(conn net.Conn) {
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				_ = tcpConn.SetNoDelay(noDelay)
			}
		}}, nil

	case "kcp":
		listener, err := kcp.ListenWithOptions(opts.StreamAddr, nil, 0, 0)
		if err != nil {
			return nil, err
		}
		tuning := opts.KCPTuning()
		return &tunedListener{Listener: listener, tune: func(conn net.Conn) {
			if session, ok := conn.(*kcp.UDPSession); ok {
				tuning.Apply(session)
			}
		}}, nil

	default:
		return nil, fmt.Errorf("不支持的协议: %s", opts.StreamProto)
	}
}
