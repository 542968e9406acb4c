package processing

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsAllJobs(t *testing.T) {
	pool := NewWorkerPool(3, 10)
	pool.Start(context.Background())

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(func(context.Context) { ran.Add(1) }))
	}
	pool.Stop()
	assert.Equal(t, int32(10), ran.Load())
}

func TestWorkerPool_SurvivesPanics(t *testing.T) {
	pool := NewWorkerPool(1, 2)
	pool.Start(context.Background())

	var ran atomic.Bool
	require.NoError(t, pool.Submit(func(context.Context) { panic("boom") }))
	require.NoError(t, pool.Submit(func(context.Context) { ran.Store(true) }))
	pool.Stop()
	assert.True(t, ran.Load())
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	pool.Start(context.Background())
	pool.Stop()
	pool.Stop()

	assert.ErrorIs(t, pool.Submit(func(context.Context) {}), ErrQueueFull)
}

func TestResolveWorkers(t *testing.T) {
	assert.Equal(t, 5, ResolveWorkers(5))
	n := ResolveWorkers(0)
	assert.GreaterOrEqual(t, n, MinWorkers)
	assert.LessOrEqual(t, n, MaxWorkers)
}
