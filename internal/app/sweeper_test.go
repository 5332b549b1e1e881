package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_SweepOnce(t *testing.T) {
	var gotTTL time.Duration
	s := newSweeper(time.Minute, 30*time.Minute, log.WithField("test", "sweeper"),
		sweepTarget{kind: "checkout", sweep: func(olderThan time.Duration) int {
			gotTTL = olderThan
			return 2
		}},
		sweepTarget{kind: "reservation", sweep: func(time.Duration) int { return 1 }},
	)

	assert.Equal(t, 3, s.SweepOnce())
	assert.Equal(t, 30*time.Minute, gotTTL)
}

func TestSweeper_Defaults(t *testing.T) {
	s := newSweeper(0, -1, nil)
	assert.Equal(t, defaultSweepInterval, s.interval)
	assert.Equal(t, defaultWorkflowTTL, s.ttl)
	assert.Zero(t, s.SweepOnce())
}

func TestSweeper_RunUntilCanceled(t *testing.T) {
	var calls atomic.Int32
	s := newSweeper(5*time.Millisecond, time.Minute, nil,
		sweepTarget{kind: "checkout", sweep: func(time.Duration) int {
			calls.Add(1)
			return 0
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
