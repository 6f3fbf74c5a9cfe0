// Package monitor runs the background run reaper used by the dashboard.
package monitor

import (
	"context"
	"time"

	"github.com/firefly-engineering/skillctl/internal/logging"
	"github.com/firefly-engineering/skillctl/internal/runner"
)

// Reaper is the subset of *runner.Runner the monitor needs.
type Reaper interface {
	Reap(timeout time.Duration) ([]*runner.Job, error)
}

// Monitor periodically fails runs that have been queued or running longer
// than the run timeout.
type Monitor struct {
	interval time.Duration
	timeout  time.Duration
	reaper   Reaper
	onReap   func(*runner.Job)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithTimeout sets how long a run may stay unfinished. Zero disables reaping.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Monitor) {
		m.timeout = timeout
	}
}

// WithReapHook is called for every job the monitor fails.
func WithReapHook(fn func(*runner.Job)) Option {
	return func(m *Monitor) {
		m.onReap = fn
	}
}

// New creates a new Monitor.
func New(interval time.Duration, reaper Reaper, opts ...Option) *Monitor {
	m := &Monitor{
		interval: interval,
		timeout:  30 * time.Minute,
		reaper:   reaper,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the reaper loop. It blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	logging.Debug("starting run reaper", "interval", m.interval, "timeout", m.timeout)

	m.sweep()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("run reaper stopping")
			return ctx.Err()
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep performs one reap pass and returns the jobs it failed.
func (m *Monitor) sweep() []*runner.Job {
	if m.timeout <= 0 {
		return nil
	}
	reaped, err := m.reaper.Reap(m.timeout)
	if err != nil {
		logging.Warn("run reaper failed", "error", err)
		return nil
	}
	for _, job := range reaped {
		logging.Info("reaped stale run", "run_id", job.RunID, "skill", job.Skill)
		if m.onReap != nil {
			m.onReap(job)
		}
	}
	return reaped
}
