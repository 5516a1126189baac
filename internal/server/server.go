package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/ImranAdan/computational-benchmarks/internal/config"
	"github.com/ImranAdan/computational-benchmarks/internal/metrics"
	"github.com/ImranAdan/computational-benchmarks/pkg/core"
	"github.com/ImranAdan/computational-benchmarks/pkg/engine"
)

const shutdownTimeout = 5 * time.Second

// StreamServer 点云流服务器
type StreamServer struct {
	opts *config.Options
	log  logr.Logger

	// 仿真状态
	cfg       *core.SimConfig
	store     *core.PointCloud
	engines   *engine.Dispatcher
	hub       *Hub
	ctrl      *Controller
	scheduler *Scheduler

	// 网络
	httpServer     *http.Server
	httpListener   net.Listener
	streamListener net.Listener

	// 控制
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	ready        chan struct{}
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewStreamServer 创建服务器并生成初始点云
func NewStreamServer(opts *config.Options, log logr.Logger) (*StreamServer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	store, err := core.NewPointCloud(opts.Capacity, opts.InitialPoints)
	if err != nil {
		return nil, fmt.Errorf("初始化点云失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cfg := core.NewSimConfig(opts.InitialEngine, opts.InitialFPS, uint32(opts.InitialPoints))
	engines := engine.NewDispatcher()
	hub := NewHub(opts.QueueDepth)

	metrics.Register()

	return &StreamServer{
		opts:      opts,
		log:       log,
		cfg:       cfg,
		store:     store,
		engines:   engines,
		hub:       hub,
		ctrl:      NewController(cfg, store, engines, log),
		scheduler: NewScheduler(cfg, store, engines, hub, log),
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
		shutdown:  make(chan struct{}),
	}, nil
}

// Start 启动服务器，阻塞直到 Shutdown
func (s *StreamServer) Start() error {
	s.log.Info("启动点云服务器", "addr", s.opts.Addr, "native", engine.NativeAvailable)

	httpListener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("监听失败: %w", err)
	}
	s.httpListener = httpListener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.opts.StreamAddr != "" {
		streamListener, err := newStreamListener(s.opts)
		if err != nil {
			httpListener.Close()
			return fmt.Errorf("监听 %s 失败: %w", s.opts.StreamProto, err)
		}
		s.streamListener = streamListener
		s.log.Info("原生客户端监听中", "proto", s.opts.StreamProto, "addr", streamListener.Addr().String())

		s.wg.Add(1)
		go s.acceptLoop()
	}

	// 启动调度循环
	s.wg.Add(1)
	go s.scheduler.Run(s.ctx, &s.wg)

	// 启动 HTTP 服务
	s.wg.Add(1)
	go s.serveHTTP()

	s.log.Info("服务器监听中", "addr", httpListener.Addr().String())
	close(s.ready)

	// 等待关闭信号
	<-s.shutdown
	return nil
}

// Ready 在所有监听器就绪后关闭
func (s *StreamServer) Ready() <-chan struct{} {
	return s.ready
}

// HTTPAddr 实际的 HTTP 监听地址（Ready 之后有效）
func (s *StreamServer) HTTPAddr() net.Addr {
	return s.httpListener.Addr()
}

// StreamAddr 实际的原生客户端监听地址，未开启时为 nil
func (s *StreamServer) StreamAddr() net.Addr {
	if s.streamListener == nil {
		return nil
	}
	return s.streamListener.Addr()
}

// Shutdown 优雅关闭服务器（可重复调用）
func (s *StreamServer) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.log.Info("正在关闭服务器...")

		// 取消上下文：调度循环和所有连接退出
		s.cancel()

		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.log.Info("HTTP 服务关闭超时", "err", err.Error())
			}
			cancel()
		}

		if s.streamListener != nil {
			s.streamListener.Close()
		}

		close(s.shutdown)

		// 等待所有 goroutine 结束
		s.wg.Wait()

		s.log.Info("服务器已关闭")
	})
}

func (s *StreamServer) serveHTTP() {
	defer s.wg.Done()

	if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error(err, "HTTP 服务异常退出")
	}
}

// acceptLoop 接受原生客户端连接
func (s *StreamServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.streamListener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				s.log.Info("停止接受新连接")
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Info("接受连接失败", "err", err.Error())
			continue
		}

		connection := NewConnection(newStreamTransport(conn, s.opts.StreamProto), s.hub, s.newIngress, s.log)

		s.wg.Add(1)
		go connection.Handle(s.ctx, &s.wg)
	}
}

func (s *StreamServer) newIngress(log logr.Logger) *Ingress {
	return s.ctrl.NewIngress(s.opts.CommandLimit(), s.opts.CommandBurst, log)
}
