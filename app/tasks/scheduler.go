package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

var (
	ErrRunInProgress    = errors.New("a run is already in progress")
	ErrSchedulerStopped = errors.New("scheduler is stopped")
)

// Scheduler starts runs on an interval and on demand. At most one run is active at a
// time; a tick that lands during a run is skipped.
type Scheduler struct {
	runner     RunnerInterface
	interval   time.Duration
	runTimeout time.Duration
	runOnStart bool
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    atomic.Bool
	last       atomic.Pointer[RunReport]
}

func NewScheduler(runner RunnerInterface, interval, runTimeout time.Duration, runOnStart bool) *Scheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if runTimeout <= 0 {
		runTimeout = 15 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runTimeout: runTimeout,
		runOnStart: runOnStart,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		if s.runOnStart {
			s.schedule("startup")
		}

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.schedule("scheduled")
			}
		}
	}()
}

// Stop cancels the active run, if any, and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
}

// Trigger starts a run in the background and returns its id.
func (s *Scheduler) Trigger(reason string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return "", ErrSchedulerStopped
	}
	if !s.running.CompareAndSwap(false, true) {
		return "", ErrRunInProgress
	}

	id := uuid.NewString()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.execute(RunRequest{ID: id, Reason: reason})
	}()

	return id, nil
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// LastReport returns the report of the most recently finished run, or nil.
func (s *Scheduler) LastReport() *RunReport {
	return s.last.Load()
}

func (s *Scheduler) schedule(reason string) {
	id, err := s.Trigger(reason)
	if errors.Is(err, ErrRunInProgress) {
		slog.Warn("Previous run still in progress, skipping", "reason", reason)
		return
	}
	if err != nil {
		slog.Debug("Run not scheduled", "reason", reason, "error", err)
		return
	}
	slog.Debug("Run scheduled", "id", id, "reason", reason)
}

func (s *Scheduler) execute(req RunRequest) {
	ctx, cancel := context.WithTimeout(s.ctx, s.runTimeout)
	defer cancel()

	report, err := s.runner.Run(ctx, req)
	if err != nil {
		slog.Error("Run failed", "id", req.ID, "reason", req.Reason, "error", err)
	}
	if report != nil {
		s.last.Store(report)
	}
}
