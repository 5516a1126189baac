package server

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImranAdan/computational-benchmarks/internal/logging"
	"github.com/ImranAdan/computational-benchmarks/pkg/core"
	"github.com/ImranAdan/computational-benchmarks/pkg/engine"
	"github.com/ImranAdan/computational-benchmarks/pkg/protocol"
)

const markerEngine = engine.ID(10)

type schedulerFixture struct {
	cfg   *core.SimConfig
	store *core.PointCloud
	d     *engine.Dispatcher
	hub   *Hub
	s     *Scheduler
}

func newSchedulerFixture(t *testing.T, capacity, points int) *schedulerFixture {
	t.Helper()

	store, err := core.NewPointCloud(capacity, points)
	require.NoError(t, err)

	cfg := core.NewSimConfig(uint32(engine.Reference), 0, uint32(points))
	d := engine.NewDispatcher()
	d.Register(markerEngine, func(in, out []float32, count int, angle float32) {
		for i := range out[:count*3] {
			out[i] = 7
		}
	})
	hub := NewHub(8)

	return &schedulerFixture{
		cfg:   cfg,
		store: store,
		d:     d,
		hub:   hub,
		s:     NewScheduler(cfg, store, d, hub, logging.NewTestLogger()),
	}
}

func (f *schedulerFixture) resize(t *testing.T, n int) {
	t.Helper()
	require.NoError(t, f.store.Regenerate(n))
	f.cfg.SetPointCount(uint32(n))
}

func decode(t *testing.T, fr Frame) protocol.DecodedFrame {
	t.Helper()
	df, err := protocol.DecodeFrame(fr.Payload, nil)
	require.NoError(t, err)
	return df
}

func TestSchedulerSkipsPackagingWithoutSubscribers(t *testing.T) {
	f := newSchedulerFixture(t, 100, 10)

	var computed atomic.Int32
	f.d.Register(engine.Reference, func(in, out []float32, count int, angle float32) {
		computed.Add(1)
	})

	for i := 0; i < 10; i++ {
		f.s.tick()
	}

	stats := f.s.Stats()
	assert.Equal(t, uint64(10), stats.Ticks)
	assert.Equal(t, uint64(0), stats.Packaged)
	assert.Equal(t, uint64(0), f.hub.Stats().Published)
	assert.Equal(t, int32(10), computed.Load(), "没有订阅者时仍然每个 tick 读取配置并计算")
}

func TestSchedulerPayloadLength(t *testing.T) {
	f := newSchedulerFixture(t, 2000, 10)
	sub := f.hub.Subscribe()
	defer sub.Close()

	for _, n := range []int{0, 1, 10, 1000, 2000} {
		f.resize(t, n)
		f.s.tick()

		fr := <-sub.Frames()
		assert.Len(t, fr.Payload, 4+n*3*4, "N=%d", n)
	}
	assert.Equal(t, uint64(5), f.s.Stats().Packaged)
}

func TestSchedulerExampleScenario(t *testing.T) {
	f := newSchedulerFixture(t, core.DefaultCapacity, core.DefaultInitialPoints)
	f.cfg.SetTargetFPS(60)
	sub := f.hub.Subscribe()
	defer sub.Close()

	f.s.tick()
	assert.Len(t, (<-sub.Frames()).Payload, 600_004)

	f.resize(t, 1000)
	f.s.tick()
	assert.Len(t, (<-sub.Frames()).Payload, 12_004)
}

func TestSchedulerEngineSwitchAffectsNextFrame(t *testing.T) {
	f := newSchedulerFixture(t, 100, 10)
	sub := f.hub.Subscribe()
	defer sub.Close()

	f.s.tick()
	first := decode(t, <-sub.Frames())
	// 第一帧角度为 0，参考实现输出原始圆环
	assert.InDeltaSlice(t, core.GenerateTorus(10), first.Points, 1e-6)

	f.cfg.SetEngine(uint32(markerEngine))
	f.s.tick()
	second := decode(t, <-sub.Frames())
	for _, v := range second.Points {
		assert.Equal(t, float32(7), v)
	}
}

func TestSchedulerUnknownEngineKeepsOutput(t *testing.T) {
	f := newSchedulerFixture(t, 100, 10)
	sub := f.hub.Subscribe()
	defer sub.Close()

	f.s.tick()
	f.s.tick()
	<-sub.Frames()
	before := decode(t, <-sub.Frames())
	snapshot := append([]float32(nil), f.s.output[:30]...)

	f.cfg.SetEngine(99)
	f.s.tick()
	after := decode(t, <-sub.Frames())

	assert.Equal(t, snapshot, f.s.output[:30])
	assert.Equal(t, before.Points, after.Points)
	assert.Equal(t, uint64(3), f.s.Stats().Ticks)
}

func TestSchedulerClampsCountToStore(t *testing.T) {
	f := newSchedulerFixture(t, 100, 10)
	sub := f.hub.Subscribe()
	defer sub.Close()

	// 配置里的点数比数据多（例如缩小后配置尚未更新）
	f.cfg.SetPointCount(50)
	f.s.tick()

	assert.Len(t, (<-sub.Frames()).Payload, protocol.FrameSize(10))
}

func TestSchedulerFrameSequence(t *testing.T) {
	f := newSchedulerFixture(t, 100, 1)
	sub := f.hub.Subscribe()
	defer sub.Close()

	for i := 0; i < 5; i++ {
		f.s.tick()
	}
	for i := uint64(1); i <= 5; i++ {
		assert.Equal(t, i, (<-sub.Frames()).Seq)
	}
}

func TestFrameWait(t *testing.T) {
	assert.Equal(t, core.UncappedInterval, frameWait(0, 0))
	assert.Equal(t, core.UncappedInterval, frameWait(0, time.Second))
	assert.Equal(t, 16_666*time.Microsecond, frameWait(60, 0))
	assert.Equal(t, 6*time.Millisecond, frameWait(100, 4*time.Millisecond))
	assert.Equal(t, time.Duration(0), frameWait(100, 15*time.Millisecond))
}

// computeTimes 运行调度循环，记录前 n 次计算的时间
func computeTimes(t *testing.T, f *schedulerFixture, n int) []time.Time {
	t.Helper()

	var mu sync.Mutex
	times := make([]time.Time, 0, n)
	done := make(chan struct{})
	f.d.Register(engine.Reference, func(in, out []float32, count int, angle float32) {
		mu.Lock()
		defer mu.Unlock()
		if len(times) < n {
			times = append(times, time.Now())
			if len(times) == n {
				close(done)
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go f.s.Run(ctx, &wg)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("调度循环没有按时产出")
	}
	cancel()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return append([]time.Time(nil), times...)
}

func TestSchedulerUncappedSpacing(t *testing.T) {
	f := newSchedulerFixture(t, 100, 10)
	f.cfg.SetTargetFPS(0)

	times := computeTimes(t, f, 10)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), core.UncappedInterval)
	}
}

func TestSchedulerTargetFPSSpacing(t *testing.T) {
	f := newSchedulerFixture(t, 100, 10)
	f.cfg.SetTargetFPS(100)

	times := computeTimes(t, f, 21)
	avg := times[len(times)-1].Sub(times[0]) / time.Duration(len(times)-1)

	assert.GreaterOrEqual(t, avg, 9500*time.Microsecond)
	assert.Less(t, avg, 20*time.Millisecond)
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	f := newSchedulerFixture(t, 100, 10)
	f.cfg.SetTargetFPS(1)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go f.s.Run(ctx, &wg)

	require.Eventually(t, func() bool { return f.s.Stats().Ticks >= 1 }, time.Second, time.Millisecond)
	cancel()

	stopped := make(chan struct{})
	go func() {
		wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("取消后调度循环没有退出")
	}
}
