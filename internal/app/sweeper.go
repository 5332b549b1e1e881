package app

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultSweepInterval = 5 * time.Minute
	defaultWorkflowTTL   = 2 * time.Hour
)

// sweepTarget реестр workflow, из которого выселяются простаивающие экземпляры.
type sweepTarget struct {
	kind  string
	sweep func(olderThan time.Duration) int
}

// sweeper периодически удаляет брошенные оформления и брони из памяти.
type sweeper struct {
	interval time.Duration
	ttl      time.Duration
	targets  []sweepTarget
	logger   *log.Entry
}

func newSweeper(interval, ttl time.Duration, logger *log.Entry, targets ...sweepTarget) *sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if ttl <= 0 {
		ttl = defaultWorkflowTTL
	}
	if logger == nil {
		logger = log.WithField("component", "workflow-sweeper")
	}
	return &sweeper{interval: interval, ttl: ttl, targets: targets, logger: logger}
}

// Run выполняет SweepOnce по таймеру до отмены ctx.
func (s *sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce возвращает общее число выселенных экземпляров.
func (s *sweeper) SweepOnce() int {
	total := 0
	for _, target := range s.targets {
		removed := target.sweep(s.ttl)
		if removed > 0 {
			s.logger.WithFields(log.Fields{
				"kind":    target.kind,
				"removed": removed,
			}).Info("idle workflows evicted")
		}
		total += removed
	}
	return total
}
