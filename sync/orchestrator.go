package sync

import (
	"context"
	"fmt"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/goliatone/go-catalog-sync/core"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// Orchestrator is one reconciliation engine instance. RunSynchronization
// is a single synchronous unit of work from the caller's perspective;
// internally the four snapshot fetches and the update phases fan out.
// Re-entrant calls are not serialized: overlapping runs duplicate work
// but cannot corrupt state because diff computation is side-effect free.
type Orchestrator struct {
	Mappings core.MappingStore
	Logs     core.SyncLogStore
	Settings core.SettingStore
	Source   core.CatalogClient
	Target   core.CatalogClient
	Config   core.Config
	Logger   core.Logger
	Metrics  core.MetricsRecorder
	Now      func() time.Time
}

func NewOrchestrator(
	mappings core.MappingStore,
	logs core.SyncLogStore,
	source core.CatalogClient,
	target core.CatalogClient,
	cfg core.Config,
	options ...OrchestratorOption,
) *Orchestrator {
	orchestrator := &Orchestrator{
		Mappings: mappings,
		Logs:     logs,
		Source:   source,
		Target:   target,
		Config:   cfg,
		Logger:   glog.Nop(),
		Metrics:  core.NopMetricsRecorder{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(orchestrator)
	}
	return orchestrator
}

type OrchestratorOption func(*Orchestrator)

func WithLogger(logger core.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.Logger = glog.Ensure(logger)
		}
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		if recorder != nil {
			o.Metrics = recorder
		}
	}
}

func WithSettingStore(store core.SettingStore) OrchestratorOption {
	return func(o *Orchestrator) {
		o.Settings = store
	}
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.Now = now
		}
	}
}

type fetchedSnapshots struct {
	sourceItems []map[string]any
	targetItems []map[string]any
	sourceSizes []map[string]any
	targetSizes []map[string]any
}

// RunSynchronization executes one fetch → diff → dispatch → audit cycle.
// Configuration and fetch faults abort the run before any write; update
// faults are collected per instruction and never halt siblings. The
// returned error mirrors RunResult.Err.
func (o *Orchestrator) RunSynchronization(ctx context.Context) (core.RunResult, error) {
	if o == nil {
		err := fmt.Errorf("sync: orchestrator is nil")
		return core.RunResult{Status: core.RunStatusFailed, Err: err}, err
	}
	result := core.RunResult{
		RunID:     uuid.NewString(),
		StartedAt: o.now(),
		Status:    core.RunStatusSuccess,
	}
	if err := o.validate(); err != nil {
		return o.fail(ctx, result, err)
	}
	if err := o.Config.ValidateCredentials(); err != nil {
		return o.fail(ctx, result, goerrors.Wrap(err, goerrors.CategoryAuth, "sync: missing catalog credentials").
			WithCode(http.StatusUnauthorized).
			WithTextCode(core.SyncErrorConfigMissing))
	}

	mappings, err := o.Mappings.List(ctx)
	if err != nil {
		return o.fail(ctx, result, goerrors.Wrap(err, goerrors.CategoryInternal, "sync: list mappings").
			WithTextCode(core.SyncErrorInternal))
	}
	if len(mappings) == 0 {
		o.Logger.Info("no mappings configured, nothing to reconcile", "run_id", result.RunID)
		return o.finish(ctx, result)
	}

	fetched, err := o.fetchSnapshots(ctx)
	if err != nil {
		return o.fail(ctx, result, err)
	}

	source := NewSnapshot(fetched.sourceItems, fetched.sourceSizes)
	target := NewSnapshot(fetched.targetItems, fetched.targetSizes)
	result.DroppedItems = source.DroppedItems + target.DroppedItems
	result.DroppedSizes = source.DroppedSizes + target.DroppedSizes
	if result.DroppedItems > 0 || result.DroppedSizes > 0 {
		o.Logger.Warn("indexer dropped records with unusable identifiers",
			"run_id", result.RunID,
			"dropped_items", result.DroppedItems,
			"dropped_sizes", result.DroppedSizes,
		)
	}

	diff := Compute(mappings, source, target)
	result.MappingsChanged = len(diff.Changed)
	if diff.Empty() {
		o.Logger.Info("sync complete, no changes detected", "run_id", result.RunID)
		return o.finish(ctx, result)
	}

	o.Logger.Info("dispatching updates",
		"run_id", result.RunID,
		"item_updates", len(diff.ItemUpdates),
		"size_updates", len(diff.SizeUpdates),
	)
	dispatcher := NewDispatcher(o.Target, o.Config.Sync.Concurrency, o.Logger)
	dispatched := dispatcher.Dispatch(ctx, diff)
	result.ItemUpdatesAttempted = dispatched.ItemUpdatesAttempted
	result.ItemUpdatesFailed = dispatched.ItemUpdatesFailed
	result.SizeUpdatesAttempted = dispatched.SizeUpdatesAttempted
	result.SizeUpdatesFailed = dispatched.SizeUpdatesFailed
	if dispatched.Failed() {
		// Partial application is expected here: instructions that
		// succeeded before a sibling failed stay applied on the
		// target even though the run reports failure.
		result.Status = core.RunStatusFailed
		result.Err = goerrors.Wrap(dispatched.Err, goerrors.CategoryOperation, "sync: updates failed").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.SyncErrorUpdateFailed)
	}

	result.CompletedAt = o.now()
	o.recordAudit(ctx, &result, diff.Changed)
	return o.finish(ctx, result)
}

func (o *Orchestrator) fetchSnapshots(ctx context.Context) (fetchedSnapshots, error) {
	var fetched fetchedSnapshots
	errs := make([]error, 4)
	var wg stdsync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		fetched.sourceItems, errs[0] = o.Source.FetchAllItems(ctx)
	}()
	go func() {
		defer wg.Done()
		fetched.targetItems, errs[1] = o.Target.FetchAllItems(ctx)
	}()
	go func() {
		defer wg.Done()
		fetched.sourceSizes, errs[2] = o.Source.FetchAllSizes(ctx)
	}()
	go func() {
		defer wg.Done()
		fetched.targetSizes, errs[3] = o.Target.FetchAllSizes(ctx)
	}()
	wg.Wait()

	var fetchErr error
	for _, err := range errs {
		fetchErr = joinErrors(fetchErr, err)
	}
	if fetchErr != nil {
		return fetchedSnapshots{}, goerrors.Wrap(fetchErr, goerrors.CategoryExternal, "sync: snapshot fetch failed").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.SyncErrorFetchFailed)
	}
	return fetched, nil
}

// recordAudit persists one row per changed mapping as a single batch.
// The batch is best-effort: external updates are already applied, so a
// persistence fault downgrades the run to audit_incomplete instead of
// failing it, and the undercount is logged rather than hidden.
func (o *Orchestrator) recordAudit(ctx context.Context, result *core.RunResult, changed []core.ChangedMapping) {
	if o.Logs == nil || len(changed) == 0 {
		return
	}
	logs := make([]core.SyncLog, 0, len(changed))
	for _, change := range changed {
		logs = append(logs, core.SyncLog{
			ID:          uuid.NewString(),
			StartedAt:   result.StartedAt,
			CompletedAt: result.CompletedAt,
			Status:      result.Status,
			ProductName: change.Mapping.ProductName,
			SourceID:    change.Mapping.SourceID,
			TargetID:    change.Mapping.TargetID,
			Details:     change.Details,
		})
	}
	if err := o.Logs.RecordBatch(ctx, logs); err != nil {
		o.Logger.Error("audit batch discarded, trail undercounts applied changes",
			"run_id", result.RunID,
			"rows", len(logs),
			"error", err,
		)
		o.Metrics.IncCounter(ctx, "catalogsync.audit.dropped_rows", int64(len(logs)), map[string]string{})
		if result.Status == core.RunStatusSuccess {
			result.Status = core.RunStatusAuditIncomplete
		}
	}
}

func (o *Orchestrator) finish(ctx context.Context, result core.RunResult) (core.RunResult, error) {
	if result.CompletedAt.IsZero() {
		result.CompletedAt = o.now()
	}
	o.touchLastRun(ctx, result.CompletedAt)
	o.observe(ctx, result)
	o.Logger.Info("synchronization finished",
		"run_id", result.RunID,
		"status", string(result.Status),
		"duration", result.CompletedAt.Sub(result.StartedAt).String(),
		"mappings_changed", result.MappingsChanged,
		"item_updates", result.ItemUpdatesAttempted,
		"size_updates", result.SizeUpdatesAttempted,
	)
	return result, result.Err
}

func (o *Orchestrator) fail(ctx context.Context, result core.RunResult, err error) (core.RunResult, error) {
	result.Status = core.RunStatusFailed
	result.Err = err
	result.CompletedAt = o.now()
	o.observe(ctx, result)
	o.Logger.Error("synchronization failed", "run_id", result.RunID, "error", err)
	return result, err
}

func (o *Orchestrator) observe(ctx context.Context, result core.RunResult) {
	tags := map[string]string{"status": string(result.Status)}
	o.Metrics.IncCounter(ctx, "catalogsync.runs", 1, tags)
	o.Metrics.IncCounter(ctx, "catalogsync.updates.items", int64(result.ItemUpdatesAttempted), tags)
	o.Metrics.IncCounter(ctx, "catalogsync.updates.sizes", int64(result.SizeUpdatesAttempted), tags)
	o.Metrics.ObserveHistogram(
		ctx,
		"catalogsync.run_duration_ms",
		float64(result.CompletedAt.Sub(result.StartedAt).Milliseconds()),
		tags,
	)
}

func (o *Orchestrator) touchLastRun(ctx context.Context, completedAt time.Time) {
	if o.Settings == nil {
		return
	}
	if _, err := o.Settings.Set(ctx, core.SettingLastSyncRun, completedAt.Format(time.RFC3339)); err != nil {
		o.Logger.Warn("failed to record last sync run timestamp", "error", err)
	}
}

func (o *Orchestrator) now() time.Time {
	if o == nil || o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now()
}

func (o *Orchestrator) validate() error {
	if o.Logger == nil {
		o.Logger = glog.Nop()
	}
	if o.Metrics == nil {
		o.Metrics = core.NopMetricsRecorder{}
	}
	if o.Mappings == nil {
		return fmt.Errorf("sync: orchestrator requires a mapping store")
	}
	if o.Source == nil || o.Target == nil {
		return fmt.Errorf("sync: orchestrator requires source and target catalog clients")
	}
	return nil
}

var _ core.SyncRunner = (*Orchestrator)(nil)
