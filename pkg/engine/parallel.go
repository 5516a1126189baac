package engine

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minChunkPoints 每个 goroutine 至少处理的点数，小于它时退化为单线程
const minChunkPoints = 8192

// ErrChunkOutOfRange 分块超出输入或输出缓冲区
var ErrChunkOutOfRange = errors.New("分块越界")

// TransformParallel 参考内核的分块并行版本
// 调度器保证 count 不超过缓冲区，越界只会是调用方的编程错误
func TransformParallel(in, out []float32, count int, angle float32) {
	if err := transformParallel(in, out, count, angle); err != nil {
		panic(err)
	}
}

func transformParallel(in, out []float32, count int, angle float32) error {
	ca := float32(math.Cos(float64(angle)))
	sa := float32(math.Sin(float64(angle)))

	workers := runtime.GOMAXPROCS(0)
	if limit := count / minChunkPoints; workers > limit {
		workers = limit
	}
	if workers <= 1 {
		return transformChunk(in, out, 0, count, ca, sa)
	}

	chunk := (count + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for from := 0; from < count; from += chunk {
		from := from
		to := min(from+chunk, count)
		g.Go(func() error {
			return transformChunk(in, out, from, to, ca, sa)
		})
	}
	return g.Wait()
}

// transformChunk 先检查边界再计算，越界的块不写任何数据
func transformChunk(in, out []float32, from, to int, ca, sa float32) error {
	if to*3 > len(in) || to*3 > len(out) {
		return fmt.Errorf("%w: [%d, %d) in=%d out=%d", ErrChunkOutOfRange, from, to, len(in)/3, len(out)/3)
	}
	transformRange(in, out, from, to, ca, sa)
	return nil
}
