package core

import "time"

// 点云容量配置
const (
	DefaultCapacity      = 1_000_000 // 最大点数（进程启动时固定）
	DefaultInitialPoints = 50_000    // 初始点数
	FloatsPerPoint       = 3         // 每个点 x,y,z
)

// 帧率配置
const (
	DefaultTargetFPS = 60                   // 默认目标帧率
	UncappedInterval = 5 * time.Millisecond // fps=0 时的固定间隔（约 200 FPS 上限）
	AngleStep        = float32(0.02)        // 每帧旋转角增量（弧度）
)

// 圆环参数
const (
	TorusMajorRadius = float32(2.0)
	TorusMinorRadius = float32(0.5)
	TorusWindStep    = float32(0.1) // 小圆方向每个点的步进圈数
)
