package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goliatone/go-catalog-sync/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-logger/glog"
)

// JobIDSyncRun identifies the recurring reconciliation job on the queue.
const JobIDSyncRun = "catalogsync.run"

const syncRunScriptPath = "catalogsync.sync.run"

// Scheduler enqueues a reconciliation job at a configurable interval. The
// interval is read from the settings store on start and can be changed at
// runtime through Reschedule.
type Scheduler struct {
	enqueuer queue.Enqueuer
	settings core.SettingStore
	logger   glog.Logger
	now      func() time.Time

	defaultInterval time.Duration

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	rescheduleCh chan time.Duration
}

type SchedulerOption func(*Scheduler)

func WithSchedulerLogger(logger glog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func NewScheduler(enqueuer queue.Enqueuer, settings core.SettingStore, defaultIntervalMinutes int, opts ...SchedulerOption) (*Scheduler, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("scheduler: enqueuer is required")
	}
	if defaultIntervalMinutes <= 0 {
		defaultIntervalMinutes = core.DefaultIntervalMinutes
	}

	s := &Scheduler{
		enqueuer:        enqueuer,
		settings:        settings,
		logger:          glog.Nop(),
		now:             func() time.Time { return time.Now().UTC() },
		defaultInterval: time.Duration(defaultIntervalMinutes) * time.Minute,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
		rescheduleCh:    make(chan time.Duration, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start begins the interval loop. The stored sync_interval setting wins over
// the configured default when present and parseable.
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("scheduler: scheduler is not configured")
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: already started")
	}
	s.started = true
	s.mu.Unlock()

	interval := s.loadInterval(ctx)
	go s.run(ctx, interval)
	return nil
}

// Stop halts the interval loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
}

// Reschedule changes the tick interval without restarting the loop.
func (s *Scheduler) Reschedule(ctx context.Context, intervalMinutes int) error {
	if s == nil {
		return fmt.Errorf("scheduler: scheduler is not configured")
	}
	if intervalMinutes <= 0 {
		return fmt.Errorf("scheduler: interval minutes must be positive, got %d", intervalMinutes)
	}

	interval := time.Duration(intervalMinutes) * time.Minute
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopCh:
		return fmt.Errorf("scheduler: scheduler is stopped")
	case s.rescheduleCh <- interval:
	default:
		// Collapse a pending reschedule into the newest interval.
		select {
		case <-s.rescheduleCh:
		default:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return fmt.Errorf("scheduler: scheduler is stopped")
		case s.rescheduleCh <- interval:
		}
	}
	s.logger.Info("sync interval rescheduled", "interval_minutes", intervalMinutes)
	return nil
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", interval.String())
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case next := <-s.rescheduleCh:
			ticker.Reset(next)
		case <-ticker.C:
			if err := s.enqueueRun(ctx); err != nil {
				s.logger.Error("failed to enqueue sync run", "error", err)
			}
		}
	}
}

func (s *Scheduler) enqueueRun(ctx context.Context) error {
	now := s.now()
	msg := &job.ExecutionMessage{
		JobID:      JobIDSyncRun,
		ScriptPath: syncRunScriptPath,
		Parameters: map[string]any{
			"trigger": "interval",
		},
		IdempotencyKey: fmt.Sprintf("%s:%d", JobIDSyncRun, now.Unix()),
	}
	receipt, err := s.enqueuer.Enqueue(ctx, msg)
	if err != nil {
		return fmt.Errorf("scheduler: enqueue %s: %w", JobIDSyncRun, err)
	}
	s.logger.Info("sync run enqueued",
		"job_id", JobIDSyncRun,
		"dispatch_id", receipt.DispatchID,
		"idempotency_key", msg.IdempotencyKey,
	)
	return nil
}

func (s *Scheduler) loadInterval(ctx context.Context) time.Duration {
	if s.settings == nil {
		return s.defaultInterval
	}
	setting, err := s.settings.Get(ctx, core.SettingSyncInterval)
	if err != nil {
		if !errors.Is(err, core.ErrSettingNotFound) {
			s.logger.Warn("failed to load sync interval setting", "error", err)
		}
		return s.defaultInterval
	}
	minutes, err := strconv.Atoi(setting.Value)
	if err != nil || minutes <= 0 {
		s.logger.Warn("ignoring invalid sync interval setting", "value", setting.Value)
		return s.defaultInterval
	}
	return time.Duration(minutes) * time.Minute
}
