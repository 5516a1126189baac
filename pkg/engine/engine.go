// Package engine 提供点云变换的多个可互换后端
//
// 所有后端共享同一签名：输入扁平缓冲区、输出扁平缓冲区、点数、角度。
// 后端是纯函数，不报告错误；调用方负责保证缓冲区足够大。
package engine

import (
	"fmt"
	"sort"
	"sync"
)

// ID 引擎选择器
type ID uint32

const (
	Reference ID = iota // 纯 Go 参考实现
	NativeA             // C 内核 A
	NativeB             // C 内核 B（4 点展开）
	Parallel            // 参考内核按 goroutine 分块
)

// String 返回引擎名称
func (id ID) String() string {
	switch id {
	case Reference:
		return "reference"
	case NativeA:
		return "native-a"
	case NativeB:
		return "native-b"
	case Parallel:
		return "parallel"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(id))
	}
}

// TransformFunc 后端签名
// out[0:3*count] 由后端填充；in 在调用期间必须有效
type TransformFunc func(in, out []float32, count int, angle float32)

// Dispatcher 按选择器分发到具体后端
type Dispatcher struct {
	mu      sync.RWMutex
	engines map[ID]TransformFunc
}

// NewDispatcher 创建包含全部内置后端的分发器
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{engines: make(map[ID]TransformFunc)}
	d.Register(Reference, TransformReference)
	d.Register(NativeA, TransformNativeA)
	d.Register(NativeB, TransformNativeB)
	d.Register(Parallel, TransformParallel)
	return d
}

// Register 注册或替换一个后端
func (d *Dispatcher) Register(id ID, fn TransformFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.engines[id] = fn
}

// Known 判断选择器是否有对应后端
func (d *Dispatcher) Known(id ID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.engines[id]
	return ok
}

// IDs 返回已注册的选择器（升序）
func (d *Dispatcher) IDs() []ID {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]ID, 0, len(d.engines))
	for id := range d.engines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Transform 执行一次变换，返回是否真正执行
// 未知选择器不做任何事，out 保持原内容
func (d *Dispatcher) Transform(id ID, in, out []float32, count int, angle float32) bool {
	d.mu.RLock()
	fn, ok := d.engines[id]
	d.mu.RUnlock()
	if !ok {
		return false
	}

	count = clampCount(count, in, out)
	if count == 0 {
		return true
	}
	fn(in, out, count, angle)
	return true
}

func clampCount(count int, in, out []float32) int {
	if count < 0 {
		return 0
	}
	if n := len(in) / 3; count > n {
		count = n
	}
	if n := len(out) / 3; count > n {
		count = n
	}
	return count
}
