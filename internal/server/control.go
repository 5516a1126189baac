package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"github.com/ImranAdan/computational-benchmarks/internal/logging"
	"github.com/ImranAdan/computational-benchmarks/internal/metrics"
	"github.com/ImranAdan/computational-benchmarks/pkg/core"
	"github.com/ImranAdan/computational-benchmarks/pkg/engine"
	"github.com/ImranAdan/computational-benchmarks/pkg/protocol"
)

var ErrCommandRateLimited = errors.New("控制命令过于频繁")

// Controller 把控制命令应用到共享配置和点云上，所有连接共用一个
type Controller struct {
	cfg     *core.SimConfig
	store   *core.PointCloud
	engines *engine.Dispatcher
	log     logr.Logger

	// 串行化改点数：保证点数永远不超过已生成的数据
	resizeMu sync.Mutex
}

// NewController 创建控制器
func NewController(cfg *core.SimConfig, store *core.PointCloud, engines *engine.Dispatcher, log logr.Logger) *Controller {
	return &Controller{
		cfg:     cfg,
		store:   store,
		engines: engines,
		log:     log.WithName("control"),
	}
}

// Apply 同步应用一条命令
// 点数超出容量时返回 core.ErrOverCapacity，配置和点云都不变
func (c *Controller) Apply(cmd protocol.Command) error {
	switch cmd.Kind {
	case protocol.CommandSelectEngine:
		c.cfg.SetEngine(cmd.Value)
		if !c.engines.Known(engine.ID(cmd.Value)) {
			c.log.V(logging.VERBOSE).Info("选择了未知引擎，计算将被跳过", "engine", cmd.Value)
		}

	case protocol.CommandSetTargetFPS:
		c.cfg.SetTargetFPS(cmd.Value)

	case protocol.CommandSetPointCount:
		if int64(cmd.Value) > int64(c.store.Capacity()) {
			return fmt.Errorf("请求 %d 个点: %w", cmd.Value, core.ErrOverCapacity)
		}

		c.resizeMu.Lock()
		defer c.resizeMu.Unlock()

		// 先替换数据再更新点数，下一次读取前点云已就绪
		if err := c.store.Regenerate(int(cmd.Value)); err != nil {
			return err
		}
		c.cfg.SetPointCount(cmd.Value)

	default:
		return protocol.ErrUnknownCommand
	}

	c.log.V(logging.VERBOSE).Info("应用控制命令", "kind", cmd.Kind.String(), "value", cmd.Value)
	return nil
}

// Ingress 单个连接的控制入口：解码、限速、应用
type Ingress struct {
	ctrl    *Controller
	limiter *rate.Limiter
	log     logr.Logger
}

// NewIngress 为一个连接创建控制入口
func (c *Controller) NewIngress(limit rate.Limit, burst int, log logr.Logger) *Ingress {
	return &Ingress{
		ctrl:    c,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}
}

// Handle 处理一条原始控制消息
// 返回的错误只用于日志，连接不应因此断开
func (in *Ingress) Handle(data []byte) error {
	cmd, err := protocol.DecodeCommand(data)
	if err != nil {
		metrics.RecordCommand("unknown", metrics.ResultMalformed)
		in.log.V(logging.DEBUG).Info("丢弃控制消息", "reason", err.Error(), "size", len(data))
		return err
	}

	kind := cmd.Kind.String()
	if !in.limiter.Allow() {
		metrics.RecordCommand(kind, metrics.ResultLimited)
		in.log.V(logging.DEBUG).Info("丢弃控制消息", "reason", ErrCommandRateLimited.Error(), "kind", kind)
		return ErrCommandRateLimited
	}

	if err := in.ctrl.Apply(cmd); err != nil {
		metrics.RecordCommand(kind, metrics.ResultRejected)
		in.log.V(logging.DEBUG).Info("忽略控制命令", "kind", kind, "value", cmd.Value, "reason", err.Error())
		return err
	}

	metrics.RecordCommand(kind, metrics.ResultApplied)
	return nil
}
