package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/ImranAdan/computational-benchmarks/internal/logging"
	"github.com/ImranAdan/computational-benchmarks/internal/metrics"
)

// Connection 一个客户端连接：订阅帧并转发，同时接收控制命令
type Connection struct {
	id        string
	transport Transport
	hub       *Hub
	ingress   *Ingress
	log       logr.Logger

	pingPeriod time.Duration

	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewConnection 创建连接
func NewConnection(t Transport, hub *Hub, ingress func(logr.Logger) *Ingress, log logr.Logger) *Connection {
	id := xid.New().String()
	l := log.WithName("conn").WithValues("connID", id, "transport", t.Kind(), "remote", t.RemoteAddr())
	return &Connection{
		id:         id,
		transport:  t,
		hub:        hub,
		ingress:    ingress(l),
		log:        l,
		pingPeriod: pingPeriod,
		closeCh:    make(chan struct{}),
	}
}

// ID 连接标识
func (c *Connection) ID() string {
	return c.id
}

// Handle 处理连接直到任一方向出错或 ctx 取消
func (c *Connection) Handle(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	sub := c.hub.Subscribe()
	defer sub.Close()

	kind := c.transport.Kind()
	metrics.ConnectionOpened(kind)
	defer metrics.ConnectionClosed(kind)

	c.log.Info("连接建立", "subscriber", sub.ID())

	// 接收循环
	wg.Add(1)
	go c.receiveLoop(wg)

	// 发送循环在当前 goroutine
	c.sendLoop(ctx, sub)

	c.Close()

	st := sub.Stats()
	c.log.Info("连接关闭", "sent", st.Sent, "dropped", st.Dropped)
}

// Close 关闭连接（可重复调用）
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		if err := c.transport.Close(); err != nil {
			c.log.V(logging.DEBUG).Info("关闭传输层失败", "err", err.Error())
		}
	})
}

// sendLoop 把订阅到的帧写到传输层
func (c *Connection) sendLoop(ctx context.Context, sub *Subscription) {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-c.closeCh:
			return

		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			if err := c.transport.WriteFrame(frame.Payload); err != nil {
				c.logTransportError("发送帧失败", err)
				return
			}

		case <-ticker.C:
			if err := c.transport.Ping(); err != nil {
				c.logTransportError("发送心跳失败", err)
				return
			}
		}
	}
}

// receiveLoop 读取控制消息交给 Ingress
func (c *Connection) receiveLoop(wg *sync.WaitGroup) {
	defer wg.Done()
	defer c.Close()

	for {
		data, err := c.transport.ReadMessage()
		if err != nil {
			c.logTransportError("读取失败", err)
			return
		}
		// 错误的命令只丢弃，不影响连接
		_ = c.ingress.Handle(data)
	}
}

func (c *Connection) logTransportError(msg string, err error) {
	select {
	case <-c.closeCh:
		// 已经在关闭，读写错误是预期的
		return
	default:
	}

	if isClosedError(err) {
		c.log.V(logging.VERBOSE).Info(msg, "err", err.Error())
		return
	}
	c.log.Info(msg, "err", err.Error())
}

func isClosedError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
