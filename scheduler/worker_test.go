package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-catalog-sync/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

type stubSyncRunner struct {
	mu     sync.Mutex
	result core.RunResult
	err    error
	calls  int
}

func (s *stubSyncRunner) RunSynchronization(_ context.Context) (core.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result, s.err
}

func (s *stubSyncRunner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubDelivery struct {
	mu       sync.Mutex
	msg      *job.ExecutionMessage
	acked    bool
	nacked   bool
	nackOpts queue.NackOptions
}

func (s *stubDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubDelivery) Ack(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acked = true
	return nil
}

func (s *stubDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nacked = true
	s.nackOpts = opts
	return nil
}

func (s *stubDelivery) wasAcked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acked
}

type singleShotDequeuer struct {
	mu       sync.Mutex
	delivery queue.Delivery
	served   bool
}

func (d *singleShotDequeuer) Dequeue(ctx context.Context) (queue.Delivery, error) {
	d.mu.Lock()
	served := d.served
	d.served = true
	d.mu.Unlock()
	if !served {
		return d.delivery, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingHook struct {
	mu     sync.Mutex
	phases []string
	last   worker.Event
}

func (h *recordingHook) record(phase string, event worker.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.phases = append(h.phases, phase)
	h.last = event
}

func (h *recordingHook) OnStart(_ context.Context, event worker.Event) {
	h.record("start", event)
}

func (h *recordingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.record("success", event)
}

func (h *recordingHook) OnFailure(_ context.Context, event worker.Event) {
	h.record("failure", event)
}

func (h *recordingHook) OnRetry(_ context.Context, event worker.Event) {
	h.record("retry", event)
}

func (h *recordingHook) recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.phases))
	copy(out, h.phases)
	return out
}

func syncRunDelivery(key string) *stubDelivery {
	return &stubDelivery{msg: &job.ExecutionMessage{
		JobID:          JobIDSyncRun,
		ScriptPath:     syncRunScriptPath,
		IdempotencyKey: key,
	}}
}

func TestWorker_HandleAcksSuccessfulRun(t *testing.T) {
	runner := &stubSyncRunner{result: core.RunResult{Status: core.RunStatusSuccess}}
	hook := &recordingHook{}
	w, err := NewWorker(&singleShotDequeuer{}, runner, WithWorkerHook(hook))
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	delivery := syncRunDelivery("idem-1")
	w.handle(context.Background(), delivery)

	if runner.callCount() != 1 {
		t.Fatalf("expected one run, got %d", runner.callCount())
	}
	if !delivery.wasAcked() {
		t.Fatalf("expected successful run to be acked")
	}
	phases := hook.recorded()
	if len(phases) != 2 || phases[0] != "start" || phases[1] != "success" {
		t.Fatalf("unexpected hook phases: %v", phases)
	}
}

func TestWorker_HandleRetriesThenDeadLetters(t *testing.T) {
	runner := &stubSyncRunner{err: errors.New("fetch failed")}
	hook := &recordingHook{}
	policy := RetryPolicy{
		MaxAttempts:     2,
		BaseDelay:       10 * time.Second,
		MaxDelay:        time.Minute,
		DeadLetterOnMax: true,
	}
	w, err := NewWorker(&singleShotDequeuer{}, runner,
		WithWorkerHook(hook),
		WithWorkerRetryPolicy(policy),
	)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	ctx := context.Background()
	first := syncRunDelivery("idem-2")
	w.handle(ctx, first)
	if !first.nacked {
		t.Fatalf("expected first failure to nack")
	}
	if first.nackOpts.Disposition != queue.NackDispositionRetry {
		t.Fatalf("expected retry before max attempts, got %q", first.nackOpts.Disposition)
	}
	if first.nackOpts.Delay != 10*time.Second {
		t.Fatalf("expected first retry delay 10s, got %s", first.nackOpts.Delay)
	}

	second := syncRunDelivery("idem-2")
	w.handle(ctx, second)
	if second.nackOpts.Disposition != queue.NackDispositionDeadLetter {
		t.Fatalf("expected dead letter at max attempts, got %q", second.nackOpts.Disposition)
	}

	phases := hook.recorded()
	want := []string{"start", "retry", "start", "failure"}
	if len(phases) != len(want) {
		t.Fatalf("unexpected hook phases: %v", phases)
	}
	for i, phase := range want {
		if phases[i] != phase {
			t.Fatalf("expected phase %q at %d, got %v", phase, i, phases)
		}
	}
	if hook.last.Err == nil {
		t.Fatalf("expected failure event to carry the error")
	}
}

func TestWorker_HandleDropsUnknownJob(t *testing.T) {
	runner := &stubSyncRunner{}
	w, err := NewWorker(&singleShotDequeuer{}, runner)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	delivery := &stubDelivery{msg: &job.ExecutionMessage{JobID: "someone.else"}}
	w.handle(context.Background(), delivery)

	if runner.callCount() != 0 {
		t.Fatalf("expected runner untouched for unknown job")
	}
	if !delivery.wasAcked() {
		t.Fatalf("expected unknown job to be acked away")
	}
}

func TestWorker_RunLoopProcessesDelivery(t *testing.T) {
	runner := &stubSyncRunner{result: core.RunResult{Status: core.RunStatusSuccess}}
	delivery := syncRunDelivery("idem-3")
	dequeuer := &singleShotDequeuer{delivery: delivery}
	w, err := NewWorker(dequeuer, runner)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !delivery.wasAcked() {
		if time.Now().After(deadline) {
			t.Fatalf("expected delivery to be processed")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	w.Stop()
}

func TestRetryPolicy_Normalize(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        time.Minute,
		BaseDelay:       10 * time.Second,
		DeadLetterOnMax: true,
	}

	bounded := policy.Normalize(queue.NackOptions{Disposition: queue.NackDispositionRetry, Delay: time.Hour, Reason: " transient "}, 1)
	if bounded.Delay != time.Minute {
		t.Fatalf("expected delay clamped to 1m, got %s", bounded.Delay)
	}
	if bounded.Disposition != queue.NackDispositionRetry {
		t.Fatalf("expected retry before max attempts, got %q", bounded.Disposition)
	}
	if bounded.Reason != "transient" {
		t.Fatalf("expected trimmed reason, got %q", bounded.Reason)
	}

	defaulted := policy.Normalize(queue.NackOptions{}, 1)
	if defaulted.Disposition != queue.NackDispositionRetry {
		t.Fatalf("expected empty disposition to default to retry, got %q", defaulted.Disposition)
	}

	dead := policy.Normalize(queue.NackOptions{Disposition: queue.NackDispositionDeadLetter}, 1)
	if dead.Disposition != queue.NackDispositionDeadLetter {
		t.Fatalf("expected explicit dead letter to stand, got %q", dead.Disposition)
	}

	capped := policy.Normalize(queue.NackOptions{Disposition: queue.NackDispositionRetry, Delay: 10 * time.Second}, 3)
	if capped.Disposition != queue.NackDispositionDeadLetter {
		t.Fatalf("expected dead letter at max attempts, got %q", capped.Disposition)
	}
	if capped.Delay != 0 {
		t.Fatalf("expected terminal nack to drop the delay, got %s", capped.Delay)
	}

	failed := RetryPolicy{MaxAttempts: 2}.Normalize(queue.NackOptions{Disposition: queue.NackDispositionRetry}, 2)
	if failed.Disposition != queue.NackDispositionFailed {
		t.Fatalf("expected failed disposition without dead letter on max, got %q", failed.Disposition)
	}
}

func TestRetryPolicy_DelayGrowsLinearlyWithCap(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 10 * time.Second, MaxDelay: 25 * time.Second}
	if got := policy.Delay(1); got != 10*time.Second {
		t.Fatalf("attempt 1: expected 10s, got %s", got)
	}
	if got := policy.Delay(2); got != 20*time.Second {
		t.Fatalf("attempt 2: expected 20s, got %s", got)
	}
	if got := policy.Delay(5); got != 25*time.Second {
		t.Fatalf("attempt 5: expected cap 25s, got %s", got)
	}
}

func TestLogHook_FieldsCarryJobIdentity(t *testing.T) {
	event := worker.Event{
		Message: &job.ExecutionMessage{JobID: JobIDSyncRun},
		Attempt: 2,
		Delay:   5 * time.Second,
		Err:     errors.New("retry"),
	}

	fields := hookFields(event)
	byKey := map[string]any{}
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			t.Fatalf("expected string field key, got %T", fields[i])
		}
		byKey[key] = fields[i+1]
	}
	if byKey["job_id"] != JobIDSyncRun {
		t.Fatalf("expected job id field, got %v", byKey)
	}
	if byKey["attempt"] != 2 {
		t.Fatalf("expected attempt field, got %v", byKey)
	}
	if byKey["delay"] != "5s" {
		t.Fatalf("expected delay field, got %v", byKey)
	}
	if byKey["error"] == nil {
		t.Fatalf("expected error field, got %v", byKey)
	}
}

var (
	_ queue.Enqueuer = (*fakeEnqueuer)(nil)
	_ queue.Dequeuer = (*singleShotDequeuer)(nil)
	_ queue.Delivery = (*stubDelivery)(nil)
	_ worker.Hook    = (*recordingHook)(nil)
)
