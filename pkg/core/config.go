package core

import "sync/atomic"

// SimConfig 运行时可调参数
// 三个字段相互独立，各自原子读写，不需要跨字段一致性
type SimConfig struct {
	engine     atomic.Uint32
	targetFPS  atomic.Uint32
	pointCount atomic.Uint32
}

// NewSimConfig 创建运行时配置
func NewSimConfig(engine, fps, points uint32) *SimConfig {
	c := &SimConfig{}
	c.engine.Store(engine)
	c.targetFPS.Store(fps)
	c.pointCount.Store(points)
	return c
}

func (c *SimConfig) Engine() uint32     { return c.engine.Load() }
func (c *SimConfig) TargetFPS() uint32  { return c.targetFPS.Load() }
func (c *SimConfig) PointCount() uint32 { return c.pointCount.Load() }

func (c *SimConfig) SetEngine(id uint32)     { c.engine.Store(id) }
func (c *SimConfig) SetTargetFPS(fps uint32) { c.targetFPS.Store(fps) }

// SetPointCount 只应在点云已按 n 重新生成之后调用
func (c *SimConfig) SetPointCount(n uint32) { c.pointCount.Store(n) }

// Snapshot 一次 tick 开始时读取的配置快照
type Snapshot struct {
	Engine    uint32
	TargetFPS uint32
	Points    int
}

// Snapshot 逐字段读取；字段之间允许相差一个 tick
func (c *SimConfig) Snapshot() Snapshot {
	return Snapshot{
		Engine:    c.engine.Load(),
		TargetFPS: c.targetFPS.Load(),
		Points:    int(c.pointCount.Load()),
	}
}
