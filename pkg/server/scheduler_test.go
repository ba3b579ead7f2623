package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(nil)
	err := s.Add(Job{Name: "rebuild", Spec: "every now and then", Run: func(context.Context) error { return nil }})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rebuild")
	assert.Equal(t, 0, s.Len())
}

func TestSchedulerEmptySpecDisables(t *testing.T) {
	s := NewScheduler(nil)
	require.NoError(t, s.Add(Job{Name: "archive", Run: func(context.Context) error { return nil }}))
	require.NoError(t, s.Add(Job{Name: "rebuild", Spec: "55 23 * * *", Run: func(context.Context) error { return nil }}))
	assert.Equal(t, 1, s.Len())
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler(nil)
	var runs atomic.Int32
	require.NoError(t, s.Add(Job{Name: "tick", Spec: "@every 1s", Run: func(context.Context) error {
		runs.Add(1)
		return errors.New("logged, not fatal")
	}}))
	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestSchedulerStopCancelsRunningJob(t *testing.T) {
	s := NewScheduler(nil)
	started := make(chan struct{})
	var cancelled atomic.Bool
	require.NoError(t, s.Add(Job{Name: "slow", Spec: "@every 1s", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}}))
	s.Start()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.True(t, cancelled.Load())
}
