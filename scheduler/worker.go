package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-catalog-sync/core"

	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	"github.com/goliatone/go-logger/glog"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	BaseDelay       time.Duration
	DeadLetterOnMax bool
}

// DefaultRetryPolicy bounds a failed run to three attempts with linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        5 * time.Minute,
		BaseDelay:       30 * time.Second,
		DeadLetterOnMax: true,
	}
}

// Normalize enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) Normalize(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts && out.Disposition == queue.NackDispositionRetry {
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		} else {
			out.Disposition = queue.NackDispositionFailed
		}
		out.Delay = 0
	}
	return out
}

// Delay computes the backoff before the given retry attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay * time.Duration(attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// Worker consumes queued reconciliation jobs and executes the sync runner,
// acking successful runs and nacking failed ones under the retry policy.
type Worker struct {
	dequeuer queue.Dequeuer
	runner   core.SyncRunner
	policy   RetryPolicy
	hook     worker.Hook
	logger   glog.Logger
	now      func() time.Time

	mu       sync.Mutex
	started  bool
	attempts map[string]int

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type WorkerOption func(*Worker)

func WithWorkerLogger(logger glog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithWorkerHook(hook worker.Hook) WorkerOption {
	return func(w *Worker) {
		if hook != nil {
			w.hook = hook
		}
	}
}

func WithWorkerRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *Worker) {
		w.policy = policy
	}
}

func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

func NewWorker(dequeuer queue.Dequeuer, runner core.SyncRunner, opts ...WorkerOption) (*Worker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("scheduler: dequeuer is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("scheduler: sync runner is required")
	}

	w := &Worker{
		dequeuer: dequeuer,
		runner:   runner,
		policy:   DefaultRetryPolicy(),
		logger:   glog.Nop(),
		now:      func() time.Time { return time.Now().UTC() },
		attempts: map[string]int{},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Worker) Start(ctx context.Context) error {
	if w == nil {
		return fmt.Errorf("scheduler: worker is not configured")
	}
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return fmt.Errorf("scheduler: worker already started")
	}
	w.started = true
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

func (w *Worker) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if !started {
		return
	}
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
	})
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		delivery, err := w.dequeuer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to dequeue sync job", "error", err)
			select {
			case <-w.stopCh:
				return
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if delivery == nil {
			continue
		}
		w.handle(ctx, delivery)
	}
}

func (w *Worker) handle(ctx context.Context, delivery queue.Delivery) {
	msg := delivery.Message()
	if msg == nil || msg.JobID != JobIDSyncRun {
		jobID := ""
		if msg != nil {
			jobID = msg.JobID
		}
		w.logger.Warn("dropping unrecognized job", "job_id", jobID)
		_ = delivery.Ack(ctx)
		return
	}

	attempt := w.nextAttempt(msg.IdempotencyKey)
	startedAt := w.now()
	event := worker.Event{
		Message:   msg,
		Delivery:  delivery,
		Attempt:   attempt,
		StartedAt: startedAt,
	}
	w.emit(ctx, event, hookOnStart)

	result, err := w.runner.RunSynchronization(ctx)
	event.Duration = w.now().Sub(startedAt)
	if err == nil {
		w.clearAttempts(msg.IdempotencyKey)
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			w.logger.Error("failed to ack sync job", "job_id", msg.JobID, "error", ackErr)
		}
		w.logger.Info("sync job completed",
			"job_id", msg.JobID,
			"status", string(result.Status),
			"attempt", attempt,
			"duration", event.Duration.String(),
		)
		w.emit(ctx, event, hookOnSuccess)
		return
	}

	event.Err = err
	opts := w.policy.Normalize(queue.NackOptions{
		Disposition: queue.NackDispositionRetry,
		Delay:       w.policy.Delay(attempt),
		Reason:      err.Error(),
	}, attempt)
	event.Delay = opts.Delay

	if nackErr := delivery.Nack(ctx, opts); nackErr != nil {
		w.logger.Error("failed to nack sync job", "job_id", msg.JobID, "error", nackErr)
	}
	if opts.Disposition == queue.NackDispositionRetry {
		w.logger.Warn("sync job failed, retrying",
			"job_id", msg.JobID,
			"attempt", attempt,
			"delay", opts.Delay.String(),
			"error", err,
		)
		w.emit(ctx, event, hookOnRetry)
		return
	}

	w.clearAttempts(msg.IdempotencyKey)
	w.logger.Error("sync job failed",
		"job_id", msg.JobID,
		"attempt", attempt,
		"disposition", string(opts.Disposition),
		"error", err,
	)
	w.emit(ctx, event, hookOnFailure)
}

func (w *Worker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *Worker) clearAttempts(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

type hookPhase int

const (
	hookOnStart hookPhase = iota
	hookOnSuccess
	hookOnFailure
	hookOnRetry
)

func (w *Worker) emit(ctx context.Context, event worker.Event, phase hookPhase) {
	if w.hook == nil {
		return
	}
	switch phase {
	case hookOnStart:
		w.hook.OnStart(ctx, event)
	case hookOnSuccess:
		w.hook.OnSuccess(ctx, event)
	case hookOnFailure:
		w.hook.OnFailure(ctx, event)
	case hookOnRetry:
		w.hook.OnRetry(ctx, event)
	}
}

// LogHook logs worker lifecycle events through the service logger.
type LogHook struct {
	logger glog.Logger
}

func NewLogHook(logger glog.Logger) *LogHook {
	return &LogHook{logger: glog.Ensure(logger)}
}

func (h *LogHook) OnStart(_ context.Context, event worker.Event) {
	h.logger.Info("job started", hookFields(event)...)
}

func (h *LogHook) OnSuccess(_ context.Context, event worker.Event) {
	h.logger.Info("job succeeded", hookFields(event)...)
}

func (h *LogHook) OnFailure(_ context.Context, event worker.Event) {
	h.logger.Error("job failed", hookFields(event)...)
}

func (h *LogHook) OnRetry(_ context.Context, event worker.Event) {
	h.logger.Warn("job retry scheduled", hookFields(event)...)
}

func hookFields(event worker.Event) []any {
	jobID := ""
	if event.Message != nil {
		jobID = event.Message.JobID
	} else if event.Delivery != nil {
		if msg := event.Delivery.Message(); msg != nil {
			jobID = msg.JobID
		}
	}
	fields := []any{
		"job_id", jobID,
		"attempt", event.Attempt,
	}
	if event.Duration > 0 {
		fields = append(fields, "duration", event.Duration.String())
	}
	if event.Delay > 0 {
		fields = append(fields, "delay", event.Delay.String())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err)
	}
	return fields
}

var _ worker.Hook = (*LogHook)(nil)
