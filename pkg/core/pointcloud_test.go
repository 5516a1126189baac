package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTorusDeterministic(t *testing.T) {
	a := GenerateTorus(1000)
	b := GenerateTorus(1000)

	require.Len(t, a, 3000)
	assert.Equal(t, a, b)
	assert.Empty(t, GenerateTorus(0))
}

func TestGenerateTorusFirstPoint(t *testing.T) {
	pts := GenerateTorus(10)

	// i=0: u=0, v=0 -> ((R+r), 0, 0)
	assert.InDelta(t, 2.5, pts[0], 1e-6)
	assert.InDelta(t, 0, pts[1], 1e-6)
	assert.InDelta(t, 0, pts[2], 1e-6)
}

func TestRegenerateIsNotTruncation(t *testing.T) {
	pc, err := NewPointCloud(100, 50)
	require.NoError(t, err)

	require.NoError(t, pc.Regenerate(10))

	lease := pc.Read()
	got := append([]float32(nil), lease.Points()...)
	lease.Release()

	assert.Equal(t, GenerateTorus(10), got)
	assert.NotEqual(t, GenerateTorus(50)[:30], got)
}

func TestRegenerateIdempotent(t *testing.T) {
	pc, err := NewPointCloud(100, 50)
	require.NoError(t, err)

	require.NoError(t, pc.Regenerate(20))
	lease := pc.Read()
	first := append([]float32(nil), lease.Points()...)
	lease.Release()

	require.NoError(t, pc.Regenerate(20))
	lease = pc.Read()
	second := append([]float32(nil), lease.Points()...)
	lease.Release()

	assert.Equal(t, first, second)
	assert.Equal(t, 20, pc.Len())
}

func TestRegenerateOverCapacity(t *testing.T) {
	pc, err := NewPointCloud(100, 50)
	require.NoError(t, err)

	err = pc.Regenerate(101)
	require.ErrorIs(t, err, ErrOverCapacity)
	assert.Equal(t, 50, pc.Len())
}

func TestReplaceRejectsRaggedBuffer(t *testing.T) {
	pc, err := NewPointCloud(10, 1)
	require.NoError(t, err)

	require.ErrorIs(t, pc.Replace([]float32{1, 2}), ErrRaggedBuffer)
	assert.Equal(t, 1, pc.Len())
}

func TestNewPointCloudValidation(t *testing.T) {
	_, err := NewPointCloud(0, 0)
	require.Error(t, err)

	_, err = NewPointCloud(10, 11)
	require.ErrorIs(t, err, ErrOverCapacity)
}

func TestReplaceWaitsForLease(t *testing.T) {
	pc, err := NewPointCloud(100, 5)
	require.NoError(t, err)

	lease := pc.Read()

	done := make(chan struct{})
	go func() {
		_ = pc.Regenerate(7)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Replace 在租约持有期间完成")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, 5, lease.Count())
	lease.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Replace 在租约释放后未完成")
	}
	assert.Equal(t, 7, pc.Len())
}

func TestConcurrentReadersDoNotBlock(t *testing.T) {
	pc, err := NewPointCloud(100, 5)
	require.NoError(t, err)

	first := pc.Read()
	defer first.Release()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		second := pc.Read()
		defer second.Release()
		assert.Equal(t, 5, second.Count())
	}()

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-time.After(time.Second):
		t.Fatal("第二个读者被阻塞")
	}
}

func TestLeaseReleaseTwice(t *testing.T) {
	pc, err := NewPointCloud(10, 1)
	require.NoError(t, err)

	lease := pc.Read()
	lease.Release()
	lease.Release()

	require.NoError(t, pc.Regenerate(2))
}

func TestSimConfigSnapshot(t *testing.T) {
	cfg := NewSimConfig(1, 30, 500)
	cfg.SetEngine(2)
	cfg.SetTargetFPS(0)
	cfg.SetPointCount(42)

	assert.Equal(t, Snapshot{Engine: 2, TargetFPS: 0, Points: 42}, cfg.Snapshot())
}
