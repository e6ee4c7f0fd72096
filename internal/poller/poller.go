// Package poller runs background tasks on fixed intervals until cancelled.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bitlum/cli/internal/logging"
	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"
)

// Task is one recurring job.
type Task struct {
	Name     string
	Interval time.Duration
	// Enabled is checked on every tick; nil means always.
	Enabled func() bool
	Run     func(ctx context.Context) error
}

// Poller runs a set of tasks. A task never overlaps itself: ticks that fire
// while its previous run is still in flight are skipped.
type Poller struct {
	tasks     []Task
	logger    *pterm.Logger
	metrics   *Metrics
	immediate bool
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the logger.
func WithLogger(l *pterm.Logger) Option {
	return func(p *Poller) {
		p.logger = l
	}
}

// WithMetrics records tick results in m.
func WithMetrics(m *Metrics) Option {
	return func(p *Poller) {
		p.metrics = m
	}
}

// WithImmediateStart runs every task once as soon as Run starts instead of
// waiting for the first tick.
func WithImmediateStart() Option {
	return func(p *Poller) {
		p.immediate = true
	}
}

// New returns a Poller for tasks.
func New(tasks []Task, opts ...Option) (*Poller, error) {
	for _, t := range tasks {
		if t.Name == "" || t.Run == nil {
			return nil, errors.New("poller: task needs a name and a run function")
		}
		if t.Interval <= 0 {
			return nil, fmt.Errorf("poller: task %s: interval must be positive", t.Name)
		}
	}
	p := &Poller{tasks: tasks, logger: logging.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run blocks until ctx is cancelled, then waits for in-flight runs, which see
// the cancelled context, to return.
func (p *Poller) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range p.tasks {
		g.Go(func() error {
			p.loop(ctx, task)
			return nil
		})
	}
	return g.Wait()
}

func (p *Poller) loop(ctx context.Context, task Task) {
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	var (
		busy atomic.Bool
		wg   sync.WaitGroup
	)
	defer wg.Wait()

	if p.immediate {
		p.fire(ctx, task, &busy, &wg)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fire(ctx, task, &busy, &wg)
		}
	}
}

func (p *Poller) fire(ctx context.Context, task Task, busy *atomic.Bool, wg *sync.WaitGroup) {
	if task.Enabled != nil && !task.Enabled() {
		p.metrics.record(task.Name, ResultDisabled, 0)
		return
	}
	if !busy.CompareAndSwap(false, true) {
		p.metrics.record(task.Name, ResultSkipped, 0)
		p.logger.Debug("Previous run still in flight, skipping tick", p.logger.Args("task", task.Name))
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer busy.Store(false)

		start := time.Now()
		err := task.Run(ctx)
		took := time.Since(start)
		switch {
		case err == nil:
			p.metrics.record(task.Name, ResultOK, took)
		case ctx.Err() != nil:
			p.metrics.record(task.Name, ResultError, took)
			p.logger.Debug("Task cancelled", p.logger.Args("task", task.Name))
		default:
			p.metrics.record(task.Name, ResultError, took)
			p.logger.Warn("Task failed", p.logger.Args("task", task.Name, "error", err))
		}
	}()
}
