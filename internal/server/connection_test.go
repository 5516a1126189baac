package server

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ImranAdan/computational-benchmarks/internal/logging"
)

// fakeTransport 内存传输层：in 是客户端发来的消息，out 收集写出的帧
type fakeTransport struct {
	in  chan []byte
	out chan []byte

	writeErr error

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:   make(chan []byte, 16),
		out:  make(chan []byte, 16),
		done: make(chan struct{}),
	}
}

func (f *fakeTransport) Kind() string       { return "fake" }
func (f *fakeTransport) RemoteAddr() string { return "pipe" }

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case data, ok := <-f.in:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-f.done:
		return nil, io.EOF
	}
}

func (f *fakeTransport) WriteFrame(payload []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	select {
	case f.out <- payload:
	case <-f.done:
		return io.ErrClosedPipe
	}
	return nil
}

func (f *fakeTransport) Ping() error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type connFixture struct {
	hub       *Hub
	transport *fakeTransport
	conn      *Connection
	ctrl      *Controller
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

func startConnection(t *testing.T, transport *fakeTransport) *connFixture {
	t.Helper()

	ctrl, _, _ := newTestController(t, 1000, 10)
	f := &connFixture{hub: NewHub(4), transport: transport, ctrl: ctrl}
	newIngress := func(l logr.Logger) *Ingress {
		return ctrl.NewIngress(rate.Inf, 1, l)
	}
	f.conn = NewConnection(transport, f.hub, newIngress, logging.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.wg.Add(1)
	go f.conn.Handle(ctx, &f.wg)

	require.Eventually(t, func() bool { return f.hub.SubscriberCount() == 1 }, time.Second, time.Millisecond)
	return f
}

func (f *connFixture) waitDone(t *testing.T) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("连接没有退出")
	}
	assert.Equal(t, 0, f.hub.SubscriberCount())
	assert.True(t, f.transport.isClosed())
}

func TestConnectionRelaysFrames(t *testing.T) {
	f := startConnection(t, newFakeTransport())
	defer f.cancel()

	for i := uint64(1); i <= 3; i++ {
		f.hub.Publish(Frame{Seq: i, Payload: []byte{byte(i)}})
	}
	for i := byte(1); i <= 3; i++ {
		select {
		case got := <-f.transport.out:
			assert.Equal(t, []byte{i}, got)
		case <-time.After(time.Second):
			t.Fatal("没有收到帧")
		}
	}

	f.conn.Close()
	f.waitDone(t)
}

func TestConnectionAppliesControl(t *testing.T) {
	f := startConnection(t, newFakeTransport())
	defer f.cancel()

	f.transport.in <- []byte(`{"type":"fps","value":15}`)
	require.Eventually(t, func() bool {
		return f.ctrl.cfg.TargetFPS() == 15
	}, time.Second, time.Millisecond)

	f.conn.Close()
	f.waitDone(t)
}

func TestConnectionSurvivesMalformedControl(t *testing.T) {
	f := startConnection(t, newFakeTransport())
	defer f.cancel()

	f.transport.in <- []byte(`{"type":"warp","value":1}`)
	f.transport.in <- []byte{0xff, 0xff}
	f.transport.in <- []byte(`{"type":"engine","value":3}`)

	require.Eventually(t, func() bool {
		return f.ctrl.cfg.Engine() == 3
	}, time.Second, time.Millisecond)
	assert.False(t, f.transport.isClosed())
	assert.Equal(t, 1, f.hub.SubscriberCount())

	f.conn.Close()
	f.waitDone(t)
}

func TestConnectionClosesOnReadError(t *testing.T) {
	transport := newFakeTransport()
	f := startConnection(t, transport)
	defer f.cancel()

	close(transport.in)
	f.waitDone(t)
}

func TestConnectionClosesOnWriteError(t *testing.T) {
	transport := newFakeTransport()
	transport.writeErr = errors.New("broken pipe")
	f := startConnection(t, transport)
	defer f.cancel()

	f.hub.Publish(Frame{Seq: 1, Payload: []byte{1}})
	f.waitDone(t)
}

func TestConnectionClosesOnCancel(t *testing.T) {
	f := startConnection(t, newFakeTransport())

	f.cancel()
	f.waitDone(t)
}

func TestConnectionIDsUnique(t *testing.T) {
	hub := NewHub(1)
	ctrl, _, _ := newTestController(t, 10, 1)
	newIngress := func(l logr.Logger) *Ingress { return ctrl.NewIngress(rate.Inf, 1, l) }

	a := NewConnection(newFakeTransport(), hub, newIngress, logging.NewTestLogger())
	b := NewConnection(newFakeTransport(), hub, newIngress, logging.NewTestLogger())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestIsClosedError(t *testing.T) {
	assert.True(t, isClosedError(io.EOF))
	assert.True(t, isClosedError(errors.Join(errors.New("read"), io.EOF)))
	assert.False(t, isClosedError(errors.New("boom")))
}
