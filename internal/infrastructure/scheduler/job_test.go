package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunner_Success(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner("weekly_report", TaskFunc(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}), RunnerConfig{MaxRetries: 2}, zap.NewNop())

	assert.Nil(t, r.Last())

	job, err := r.Run(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, JobStatusSuccess, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, "weekly_report", job.Name)
	assert.Equal(t, "manual", job.Trigger)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, int32(1), calls.Load())

	last := r.Last()
	require.NotNil(t, last)
	assert.Equal(t, job.ID, last.ID)
}

func TestRunner_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner("weekly_report", TaskFunc(func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("telegram 502")
		}
		return nil
	}), RunnerConfig{MaxRetries: 3, RetryDelay: time.Millisecond}, nil)

	job, err := r.Run(context.Background(), "schedule")
	require.NoError(t, err)
	assert.Equal(t, 3, job.Attempts)
	assert.Equal(t, JobStatusSuccess, job.Status)
}

func TestRunner_ExhaustsRetries(t *testing.T) {
	r := NewRunner("weekly_report", TaskFunc(func(ctx context.Context) error {
		return errors.New("store unavailable")
	}), RunnerConfig{MaxRetries: 1, RetryDelay: time.Millisecond}, nil)

	job, err := r.Run(context.Background(), "schedule")
	require.Error(t, err)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 2, job.Attempts)
	assert.Equal(t, "store unavailable", job.Error)
}

func TestRunner_RecoversPanic(t *testing.T) {
	r := NewRunner("weekly_report", TaskFunc(func(ctx context.Context) error {
		panic("nil notifier")
	}), RunnerConfig{}, nil)

	job, err := r.Run(context.Background(), "manual")
	require.Error(t, err)
	assert.Contains(t, job.Error, "nil notifier")
}

func TestRunner_RejectsOverlap(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	r := NewRunner("weekly_report", TaskFunc(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}), RunnerConfig{}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), "schedule")
		done <- err
	}()
	<-started

	_, err := r.Run(context.Background(), "manual")
	assert.ErrorIs(t, err, ErrJobAlreadyRunning)

	close(release)
	assert.NoError(t, <-done)
}

func TestRunner_JobTimeout(t *testing.T) {
	r := NewRunner("weekly_report", TaskFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), RunnerConfig{JobTimeout: 10 * time.Millisecond}, nil)

	_, err := r.Run(context.Background(), "manual")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
