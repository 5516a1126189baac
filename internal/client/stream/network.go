// Package stream 查看器的网络客户端：接收点云帧，发送控制命令
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
	kcp "github.com/xtaci/kcp-go/v5"

	"github.com/ImranAdan/computational-benchmarks/internal/logging"
	"github.com/ImranAdan/computational-benchmarks/pkg/protocol"
)

const (
	dialTimeout   = 5 * time.Second
	sendQueueSize = 16
)

var (
	ErrSendQueueFull = errors.New("发送队列满")
	ErrNotConnected  = errors.New("未连接")
)

// conn 一条到服务器的连接
type conn interface {
	ReadFrame() ([]byte, error)
	WriteCommand(cmd protocol.Command) error
	Close() error
}

// NetworkClient 网络客户端
// 只保留最新的一帧：渲染跟不上时旧帧被覆盖
type NetworkClient struct {
	serverAddr string
	proto      string
	maxFrame   int
	log        logr.Logger

	conn conn

	mu        sync.Mutex
	connected bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	frameChan chan protocol.DecodedFrame
	sendChan  chan protocol.Command
	errChan   chan error
}

// NewNetworkClient 创建网络客户端
// proto 为 ws、tcp 或 kcp；capacity 为服务器最大点数，用于限制帧大小
func NewNetworkClient(serverAddr, proto string, capacity int, log logr.Logger) *NetworkClient {
	ctx, cancel := context.WithCancel(context.Background())

	return &NetworkClient{
		serverAddr: serverAddr,
		proto:      proto,
		maxFrame:   protocol.FrameSize(capacity),
		log:        log.WithName("network").WithValues("server", serverAddr, "proto", proto),
		ctx:        ctx,
		cancel:     cancel,
		frameChan:  make(chan protocol.DecodedFrame, 1),
		sendChan:   make(chan protocol.Command, sendQueueSize),
		errChan:    make(chan error, 1),
	}
}

// Connect 连接到服务器并启动收发循环
func (nc *NetworkClient) Connect() error {
	nc.log.Info("连接到服务器")

	c, err := nc.dial()
	if err != nil {
		return fmt.Errorf("连接服务器失败: %w", err)
	}

	nc.mu.Lock()
	nc.conn = c
	nc.connected = true
	nc.mu.Unlock()

	nc.log.Info("已连接到服务器")

	nc.wg.Add(2)
	go nc.receiveLoop()
	go nc.sendLoop()

	return nil
}

func (nc *NetworkClient) dial() (conn, error) {
	switch nc.proto {
	case "", "ws":
		u, err := wsURL(nc.serverAddr)
		if err != nil {
			return nil, err
		}
		dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
		ws, _, err := dialer.DialContext(nc.ctx, u, nil)
		if err != nil {
			return nil, err
		}
		ws.SetReadLimit(int64(nc.maxFrame))
		return &wsConn{ws: ws}, nil

	case "tcp":
		c, err := net.DialTimeout("tcp", nc.serverAddr, dialTimeout)
		if err != nil {
			return nil, err
		}
		return &streamConn{conn: c, maxFrame: nc.maxFrame}, nil

	case "kcp":
		session, err := kcp.DialWithOptions(nc.serverAddr, nil, 0, 0)
		if err != nil {
			return nil, err
		}
		protocol.DefaultKCPTuning().Apply(session)
		return &streamConn{conn: session, maxFrame: nc.maxFrame}, nil

	default:
		return nil, fmt.Errorf("不支持的协议: %s", nc.proto)
	}
}

// wsURL 补全 WebSocket 地址：host:port -> ws://host:port/ws
func wsURL(addr string) (string, error) {
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("服务器地址无效: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// Close 关闭连接（可重复调用）
func (nc *NetworkClient) Close() {
	nc.mu.Lock()
	if !nc.connected {
		nc.mu.Unlock()
		nc.cancel()
		return
	}
	nc.connected = false
	nc.mu.Unlock()

	nc.cancel()
	if err := nc.conn.Close(); err != nil {
		nc.log.V(logging.DEBUG).Info("关闭连接失败", "err", err.Error())
	}

	// 等待所有 goroutine 结束
	nc.wg.Wait()

	nc.log.Info("网络客户端已关闭")
}

// IsConnected 检查是否已连接
func (nc *NetworkClient) IsConnected() bool {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.connected
}

// Err 连接出错时产出一次错误
func (nc *NetworkClient) Err() <-chan error {
	return nc.errChan
}

// receiveLoop 接收循环
func (nc *NetworkClient) receiveLoop() {
	defer nc.wg.Done()

	for {
		data, err := nc.conn.ReadFrame()
		if err != nil {
			if nc.ctx.Err() == nil {
				nc.fail(fmt.Errorf("读取帧失败: %w", err))
			}
			return
		}

		frame, err := protocol.DecodeFrame(data, nil)
		if err != nil {
			nc.log.V(logging.DEBUG).Info("丢弃无效帧", "size", len(data), "err", err.Error())
			continue
		}
		nc.offer(frame)
	}
}

// offer 放入最新帧，挤掉还没被取走的旧帧
func (nc *NetworkClient) offer(frame protocol.DecodedFrame) {
	for {
		select {
		case nc.frameChan <- frame:
			return
		default:
		}
		select {
		case <-nc.frameChan:
		default:
		}
	}
}

func (nc *NetworkClient) fail(err error) {
	nc.log.Info("连接中断", "err", err.Error())
	select {
	case nc.errChan <- err:
	default:
	}
}

// sendLoop 发送循环
func (nc *NetworkClient) sendLoop() {
	defer nc.wg.Done()

	for {
		select {
		case <-nc.ctx.Done():
			return

		case cmd := <-nc.sendChan:
			if err := nc.conn.WriteCommand(cmd); err != nil {
				if nc.ctx.Err() == nil {
					nc.fail(fmt.Errorf("发送命令失败: %w", err))
				}
				return
			}
		}
	}
}

// LatestFrame 取出最新帧（非阻塞）
func (nc *NetworkClient) LatestFrame() (protocol.DecodedFrame, bool) {
	select {
	case frame := <-nc.frameChan:
		return frame, true
	default:
		return protocol.DecodedFrame{}, false
	}
}

// SendCommand 发送控制命令（非阻塞）
func (nc *NetworkClient) SendCommand(cmd protocol.Command) error {
	if !nc.IsConnected() {
		return ErrNotConnected
	}
	select {
	case nc.sendChan <- cmd:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// wsConn 下行二进制帧，上行 JSON 文本命令
type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteCommand(cmd protocol.Command) error {
	data, err := protocol.EncodeJSONCommand(cmd)
	if err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}

// streamConn tcp/kcp：双向长度前缀包，上行为二进制命令
type streamConn struct {
	conn     net.Conn
	maxFrame int
}

func (c *streamConn) ReadFrame() ([]byte, error) {
	data, err := protocol.ReadPacket(c.conn, c.maxFrame)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, io.EOF
	}
	return data, err
}

func (c *streamConn) WriteCommand(cmd protocol.Command) error {
	return protocol.WritePacket(c.conn, protocol.EncodeWireCommand(cmd))
}

func (c *streamConn) Close() error {
	return c.conn.Close()
}
