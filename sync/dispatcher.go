package sync

import (
	"context"
	"fmt"
	stdsync "sync"

	"github.com/goliatone/go-catalog-sync/core"
	glog "github.com/goliatone/go-logger/glog"
)

// Dispatcher executes change instructions against the target catalog in
// two ordered phases: every item update completes before the first size
// update is sent, because size stock only means anything once the parent
// item's state is current. Within a phase at most Concurrency calls are
// in flight; one call failing never cancels its siblings.
type Dispatcher struct {
	Target      core.CatalogClient
	Concurrency int
	Logger      core.Logger
}

// DispatchResult collects per-instruction outcomes. The phase outcome is
// derived from the full result list, never from the first error.
type DispatchResult struct {
	ItemUpdatesAttempted int
	ItemUpdatesFailed    int
	SizeUpdatesAttempted int
	SizeUpdatesFailed    int
	Err                  error
}

func (r DispatchResult) Failed() bool {
	return r.ItemUpdatesFailed > 0 || r.SizeUpdatesFailed > 0
}

func NewDispatcher(target core.CatalogClient, concurrency int, logger core.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = core.DefaultConcurrency
	}
	return &Dispatcher{
		Target:      target,
		Concurrency: concurrency,
		Logger:      glog.Ensure(logger),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, diff Diff) DispatchResult {
	result := DispatchResult{
		ItemUpdatesAttempted: len(diff.ItemUpdates),
		SizeUpdatesAttempted: len(diff.SizeUpdates),
	}
	if d == nil || d.Target == nil {
		result.Err = fmt.Errorf("sync: dispatcher requires a target catalog client")
		result.ItemUpdatesFailed = len(diff.ItemUpdates)
		result.SizeUpdatesFailed = len(diff.SizeUpdates)
		return result
	}

	itemErrs := runPhase(ctx, d.Concurrency, len(diff.ItemUpdates), func(ctx context.Context, i int) error {
		update := diff.ItemUpdates[i]
		return d.Target.UpdateItem(ctx, update.TargetItemID, update.NewPrice, update.NewNal)
	})
	for i, err := range itemErrs {
		if err == nil {
			continue
		}
		result.ItemUpdatesFailed++
		result.Err = joinErrors(result.Err, err)
		d.Logger.Error("item update failed",
			"target_item_id", diff.ItemUpdates[i].TargetItemID,
			"error", err,
		)
	}

	sizeErrs := runPhase(ctx, d.Concurrency, len(diff.SizeUpdates), func(ctx context.Context, i int) error {
		update := diff.SizeUpdates[i]
		return d.Target.UpdateSize(ctx, update.TargetSizeID, update.Val, update.NewQty)
	})
	for i, err := range sizeErrs {
		if err == nil {
			continue
		}
		result.SizeUpdatesFailed++
		result.Err = joinErrors(result.Err, err)
		d.Logger.Error("size update failed",
			"target_size_id", diff.SizeUpdates[i].TargetSizeID,
			"val", diff.SizeUpdates[i].Val,
			"error", err,
		)
	}

	return result
}

// runPhase fans out n calls under a semaphore and waits for all of them,
// returning one error slot per instruction.
func runPhase(ctx context.Context, concurrency int, n int, call func(ctx context.Context, i int) error) []error {
	if n == 0 {
		return nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	errs := make([]error, n)
	semaphore := make(chan struct{}, concurrency)
	var wg stdsync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			errs[i] = call(ctx, i)
		}(i)
	}
	wg.Wait()
	return errs
}

func joinErrors(existing error, next error) error {
	if existing == nil {
		return next
	}
	if next == nil {
		return existing
	}
	return fmt.Errorf("%w; %v", existing, next)
}
