package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRunnerRunsJobImmediatelyAndPeriodically(t *testing.T) {
	var runs atomic.Int64
	r := NewRunner(zap.NewNop(), Job{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	r.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	r.Stop()

	got := runs.Load()
	assert.GreaterOrEqual(t, got, int64(2))

	// No more runs after Stop.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, got, runs.Load())
}

func TestRunnerSurvivesErrorsAndPanics(t *testing.T) {
	var runs atomic.Int64
	r := NewRunner(zap.NewNop(),
		Job{
			Name:     "flaky",
			Interval: 10 * time.Millisecond,
			Run: func(ctx context.Context) error {
				if runs.Add(1)%2 == 0 {
					panic("boom")
				}
				return errors.New("transient")
			},
		},
	)

	r.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	r.Stop()

	assert.GreaterOrEqual(t, runs.Load(), int64(3))
}

func TestStartStopIdempotent(t *testing.T) {
	r := NewRunner(zap.NewNop(), Job{
		Name:     "noop",
		Interval: time.Hour,
		Run:      func(ctx context.Context) error { return nil },
	})

	r.Start(context.Background())
	r.Start(context.Background())
	r.Stop()
	r.Stop()
}
