package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// PassRunner is satisfied by *Pipeline.
type PassRunner interface {
	RunAll(ctx context.Context, passes []string) ([]*RunReport, error)
}

// Locker serializes runs across worker replicas.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
	// Hold keeps the lock alive until ctx is done.
	Hold(ctx context.Context)
}

// Scheduler runs the configured passes on a fixed interval.
type Scheduler struct {
	runner     PassRunner
	lock       Locker
	runOnStart bool
	logger     logging.Logger

	mu       sync.RWMutex
	interval time.Duration
	passes   []string
	reset    chan time.Duration
}

// NewScheduler builds a scheduler from the worker settings. lock may be nil
// for a single replica. An empty pass list runs both passes.
func NewScheduler(runner PassRunner, cfg config.WorkerConfig, lock Locker, log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Scheduler{
		runner:     runner,
		lock:       lock,
		interval:   cfg.Interval,
		runOnStart: cfg.RunOnStart,
		passes:     passesOrDefault(cfg.Passes),
		logger:     log.Named("scheduler"),
		reset:      make(chan time.Duration, 1),
	}
}

func passesOrDefault(passes []string) []string {
	if len(passes) == 0 {
		return []string{config.PassRhea, config.PassExpasy}
	}
	return passes
}

// Passes returns the passes each tick runs, in order.
func (s *Scheduler) Passes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.passes
}

// Interval returns the current tick interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

// Reconfigure swaps the pass list and interval of a running scheduler. The
// new passes apply from the next tick; a changed interval restarts the ticker.
func (s *Scheduler) Reconfigure(cfg config.WorkerConfig) {
	s.mu.Lock()
	s.passes = passesOrDefault(cfg.Passes)
	changed := cfg.Interval > 0 && cfg.Interval != s.interval
	if changed {
		s.interval = cfg.Interval
	}
	s.mu.Unlock()

	if changed {
		select {
		case <-s.reset:
		default:
		}
		s.reset <- cfg.Interval
	}
	s.logger.Info("scheduler reconfigured",
		logging.Any("passes", s.Passes()),
		logging.Duration("interval", s.Interval()))
}

// Run ticks until ctx is done. Failed ticks are logged and the loop goes on.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.Interval()
	if interval <= 0 {
		return errors.Newf(errors.ErrCodeConfig, "worker interval must be positive, got %s", interval)
	}
	s.logger.Info("scheduler started",
		logging.Duration("interval", interval),
		logging.Bool("run_on_start", s.runOnStart))

	if s.runOnStart {
		s.tickAndLog(ctx)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case d := <-s.reset:
			ticker.Reset(d)
		case <-ticker.C:
			s.tickAndLog(ctx)
		}
	}
}

func (s *Scheduler) tickAndLog(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduled run failed", logging.Err(err))
	}
}

// Tick runs every pass once. It returns nil reports without error when
// another replica holds the lock.
func (s *Scheduler) Tick(ctx context.Context) ([]*RunReport, error) {
	if s.lock != nil {
		ok, err := s.lock.TryLock(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Info("run skipped: lock held elsewhere")
			return nil, nil
		}
		holdCtx, stop := context.WithCancel(ctx)
		go s.lock.Hold(holdCtx)
		defer func() {
			stop()
			if err := s.lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("run lock release failed", logging.Err(err))
			}
		}()
	}

	reports, err := s.runner.RunAll(ctx, s.Passes())
	if err != nil {
		return reports, err
	}
	for _, r := range reports {
		if rerr := r.Err(); rerr != nil {
			return reports, rerr
		}
	}
	return reports, nil
}
