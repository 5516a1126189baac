package server

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/ImranAdan/computational-benchmarks/internal/logging"
	"github.com/ImranAdan/computational-benchmarks/internal/metrics"
	"github.com/ImranAdan/computational-benchmarks/pkg/core"
	"github.com/ImranAdan/computational-benchmarks/pkg/engine"
	"github.com/ImranAdan/computational-benchmarks/pkg/protocol"
)

// Scheduler 帧调度循环：计算 -> 打包发布 -> 按帧预算休眠
type Scheduler struct {
	cfg     *core.SimConfig
	store   *core.PointCloud
	engines *engine.Dispatcher
	hub     *Hub
	log     logr.Logger

	// 输出缓冲区只属于调度循环，按容量预分配，跨帧复用
	output []float32
	angle  float32
	seq    uint64

	lastEngine engine.ID

	ticks       atomic.Uint64
	packaged    atomic.Uint64
	lastLatency atomic.Uint32 // float32 bits，微秒
}

// SchedulerStats 调度统计
type SchedulerStats struct {
	Ticks         uint64
	Packaged      uint64
	LastLatencyUS float32
}

// NewScheduler 创建调度器
func NewScheduler(cfg *core.SimConfig, store *core.PointCloud, engines *engine.Dispatcher, hub *Hub, log logr.Logger) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		store:      store,
		engines:    engines,
		hub:        hub,
		log:        log.WithName("scheduler"),
		output:     make([]float32, store.Capacity()*core.FloatsPerPoint),
		lastEngine: engine.ID(cfg.Engine()),
	}
}

// Run 调度主循环，直到 ctx 取消
func (s *Scheduler) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	s.log.Info("调度循环启动", "engine", engine.ID(s.cfg.Engine()).String(), "fps", s.cfg.TargetFPS(), "points", s.cfg.PointCount())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("调度循环停止", "ticks", s.ticks.Load(), "frames", s.packaged.Load())
			return
		default:
		}

		start := time.Now()
		fps := s.tick()
		if !s.pace(ctx, start, fps) {
			s.log.Info("调度循环停止", "ticks", s.ticks.Load(), "frames", s.packaged.Load())
			return
		}
	}
}

// tick 执行一次计算阶段，返回本次快照里的目标帧率
func (s *Scheduler) tick() uint32 {
	snap := s.cfg.Snapshot()
	s.ticks.Add(1)
	metrics.RecordTick()

	id := engine.ID(snap.Engine)
	if id != s.lastEngine {
		s.log.V(logging.VERBOSE).Info("切换引擎", "from", s.lastEngine.String(), "to", id.String())
		s.lastEngine = id
	}

	// 租约只覆盖计算调用，打包和发布不持有读锁
	lease := s.store.Read()
	count := min(snap.Points, lease.Count())
	computeStart := time.Now()
	ran := s.engines.Transform(id, lease.Points(), s.output, count, s.angle)
	elapsed := time.Since(computeStart)
	lease.Release()

	latencyUS := float32(elapsed.Nanoseconds()) / 1000
	s.lastLatency.Store(math.Float32bits(latencyUS))
	s.angle += core.AngleStep

	if ran {
		metrics.RecordComputeLatency(id.String(), float64(latencyUS))
	} else {
		metrics.RecordComputeSkipped()
		s.log.V(logging.TRACE).Info("未知引擎，本帧沿用上次输出", "engine", uint32(id))
	}

	if s.hub.SubscriberCount() == 0 {
		return snap.TargetFPS
	}

	s.packaged.Add(1)
	s.seq++
	s.hub.Publish(Frame{
		Seq:     s.seq,
		Payload: protocol.EncodeFrame(latencyUS, s.output[:count*core.FloatsPerPoint]),
	})
	metrics.RecordFramePublished()

	return snap.TargetFPS
}

// pace 休眠剩余的帧预算；ctx 取消时返回 false
func (s *Scheduler) pace(ctx context.Context, start time.Time, fps uint32) bool {
	wait := frameWait(fps, time.Since(start))
	if wait <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// frameWait fps>0 时为 1e6/fps 微秒减去已用时间（不为负）；fps=0 时为固定间隔
func frameWait(fps uint32, elapsed time.Duration) time.Duration {
	if fps == 0 {
		return core.UncappedInterval
	}
	budget := time.Duration(1_000_000/fps) * time.Microsecond
	if elapsed >= budget {
		return 0
	}
	return budget - elapsed
}

// Stats 返回调度统计
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Ticks:         s.ticks.Load(),
		Packaged:      s.packaged.Load(),
		LastLatencyUS: math.Float32frombits(s.lastLatency.Load()),
	}
}
