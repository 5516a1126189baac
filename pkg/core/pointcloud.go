package core

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrOverCapacity = errors.New("点数超出容量")
	ErrRaggedBuffer = errors.New("点云长度不是 3 的倍数")
)

// PointCloud 点云存储
// 读者（调度循环）通过 Lease 共享读取；Replace 独占，等待所有租约释放后整体替换
type PointCloud struct {
	mu       sync.RWMutex
	points   []float32
	capacity int
}

// Lease 点云读租约，在 Release 之前持有读锁
type Lease struct {
	pc       *PointCloud
	points   []float32
	released bool
}

// NewPointCloud 创建点云存储，初始数据为 initial 个点的圆环
func NewPointCloud(capacity, initial int) (*PointCloud, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("容量必须为正数: %d", capacity)
	}
	if initial < 0 || initial > capacity {
		return nil, fmt.Errorf("初始点数 %d: %w (容量 %d)", initial, ErrOverCapacity, capacity)
	}

	return &PointCloud{
		points:   GenerateTorus(initial),
		capacity: capacity,
	}, nil
}

// Capacity 返回最大点数
func (p *PointCloud) Capacity() int {
	return p.capacity
}

// Len 返回当前点数
func (p *PointCloud) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.points) / FloatsPerPoint
}

// Read 获取读租约；调用方必须尽快 Release
func (p *PointCloud) Read() *Lease {
	p.mu.RLock()
	return &Lease{pc: p, points: p.points}
}

// Points 返回租约期间有效的扁平缓冲区，不得在 Release 之后使用
func (l *Lease) Points() []float32 {
	return l.points
}

// Count 返回租约内的点数
func (l *Lease) Count() int {
	return len(l.points) / FloatsPerPoint
}

// Release 释放租约（重复调用无副作用）
func (l *Lease) Release() {
	if l.released {
		return
	}
	l.released = true
	l.points = nil
	l.pc.mu.RUnlock()
}

// Replace 整体替换点云
func (p *PointCloud) Replace(points []float32) error {
	if len(points)%FloatsPerPoint != 0 {
		return ErrRaggedBuffer
	}
	if n := len(points) / FloatsPerPoint; n > p.capacity {
		return fmt.Errorf("请求 %d 个点: %w (容量 %d)", n, ErrOverCapacity, p.capacity)
	}

	p.mu.Lock()
	p.points = points
	p.mu.Unlock()
	return nil
}

// Regenerate 按新的点数重新生成圆环并替换
// 生成在锁外进行，只有交换需要独占
func (p *PointCloud) Regenerate(n int) error {
	if n < 0 || n > p.capacity {
		return fmt.Errorf("请求 %d 个点: %w (容量 %d)", n, ErrOverCapacity, p.capacity)
	}
	return p.Replace(GenerateTorus(n))
}
