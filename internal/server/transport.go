package server

import (
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ImranAdan/computational-benchmarks/pkg/protocol"
)

const (
	writeTimeout = 2 * time.Second  // 单帧写超时
	pongWait     = 60 * time.Second // WebSocket 等待 pong 的时间
	pingPeriod   = pongWait * 9 / 10
)

// Transport 一条双工连接：上行控制消息，下行二进制帧
// ReadMessage 和 WriteFrame/Ping 各自只会被一个 goroutine 调用
type Transport interface {
	Kind() string
	RemoteAddr() string
	ReadMessage() ([]byte, error)
	WriteFrame(payload []byte) error
	Ping() error
	Close() error
}

// wsTransport WebSocket 连接：文本消息为 JSON 命令，二进制消息为 protowire 命令
type wsTransport struct {
	conn *websocket.Conn
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	conn.SetReadLimit(protocol.MaxControlPacketSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Kind() string       { return "ws" }
func (t *wsTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteFrame(payload []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (t *wsTransport) Ping() error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// streamTransport tcp/kcp 连接：双向都是 4 字节长度前缀的包
type streamTransport struct {
	conn  net.Conn
	proto string
}

func newStreamTransport(conn net.Conn, proto string) *streamTransport {
	return &streamTransport{conn: conn, proto: proto}
}

func (t *streamTransport) Kind() string       { return t.proto }
func (t *streamTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

func (t *streamTransport) ReadMessage() ([]byte, error) {
	return protocol.ReadPacket(t.conn, protocol.MaxControlPacketSize)
}

func (t *streamTransport) WriteFrame(payload []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return protocol.WritePacket(t.conn, payload)
}

// Ping 流式连接没有协议层心跳
func (t *streamTransport) Ping() error { return nil }

func (t *streamTransport) Close() error {
	return t.conn.Close()
}
