package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-catalog-sync/core"
)

type fakeTargetClient struct {
	inFlight    atomic.Int64
	maxInFlight atomic.Int64

	itemCalls atomic.Int64
	sizeCalls atomic.Int64

	failItems map[int64]error
	failSizes map[int64]error

	sizeBeforeItemsDone atomic.Bool
	itemPhaseDone       atomic.Bool
	expectedItemCalls   int64
}

func (c *fakeTargetClient) FetchAllItems(context.Context) ([]map[string]any, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeTargetClient) FetchAllSizes(context.Context) ([]map[string]any, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeTargetClient) UpdateItem(_ context.Context, itemID int64, _ int64, _ int64) error {
	c.track()
	defer c.untrack()
	if done := c.itemCalls.Add(1); done == c.expectedItemCalls {
		c.itemPhaseDone.Store(true)
	}
	if c.failItems != nil {
		if err, ok := c.failItems[itemID]; ok {
			return err
		}
	}
	return nil
}

func (c *fakeTargetClient) UpdateSize(_ context.Context, sizeID int64, _ string, _ int64) error {
	c.track()
	defer c.untrack()
	c.sizeCalls.Add(1)
	if !c.itemPhaseDone.Load() && c.expectedItemCalls > 0 {
		c.sizeBeforeItemsDone.Store(true)
	}
	if c.failSizes != nil {
		if err, ok := c.failSizes[sizeID]; ok {
			return err
		}
	}
	return nil
}

func (c *fakeTargetClient) track() {
	current := c.inFlight.Add(1)
	for {
		max := c.maxInFlight.Load()
		if current <= max || c.maxInFlight.CompareAndSwap(max, current) {
			return
		}
	}
}

func (c *fakeTargetClient) untrack() {
	c.inFlight.Add(-1)
}

func buildDiff(items int, sizes int) Diff {
	diff := Diff{}
	for i := 0; i < items; i++ {
		diff.ItemUpdates = append(diff.ItemUpdates, core.ItemUpdate{
			TargetItemID: int64(i + 1),
			NewPrice:     100,
			NewNal:       1,
		})
	}
	for i := 0; i < sizes; i++ {
		diff.SizeUpdates = append(diff.SizeUpdates, core.SizeUpdate{
			TargetSizeID: int64(i + 1),
			Val:          fmt.Sprintf("v%d", i),
			NewQty:       int64(i),
		})
	}
	return diff
}

func TestDispatch_RunsItemPhaseBeforeSizePhase(t *testing.T) {
	client := &fakeTargetClient{expectedItemCalls: 40}
	dispatcher := NewDispatcher(client, 8, nil)

	result := dispatcher.Dispatch(context.Background(), buildDiff(40, 40))
	if result.Failed() {
		t.Fatalf("expected clean dispatch, got %+v", result)
	}
	if client.sizeBeforeItemsDone.Load() {
		t.Fatalf("size update started before all item updates completed")
	}
	if got := client.itemCalls.Load(); got != 40 {
		t.Fatalf("expected 40 item calls, got %d", got)
	}
	if got := client.sizeCalls.Load(); got != 40 {
		t.Fatalf("expected 40 size calls, got %d", got)
	}
}

func TestDispatch_BoundsConcurrency(t *testing.T) {
	client := &fakeTargetClient{expectedItemCalls: 100}
	dispatcher := NewDispatcher(client, 5, nil)

	dispatcher.Dispatch(context.Background(), buildDiff(100, 100))
	if max := client.maxInFlight.Load(); max > 5 {
		t.Fatalf("expected at most 5 in-flight calls, observed %d", max)
	}
}

func TestDispatch_SiblingsSurviveFailures(t *testing.T) {
	client := &fakeTargetClient{
		expectedItemCalls: 10,
		failItems: map[int64]error{
			3: errors.New("item 3 rejected"),
			7: errors.New("item 7 rejected"),
		},
		failSizes: map[int64]error{
			5: errors.New("size 5 rejected"),
		},
	}
	dispatcher := NewDispatcher(client, 4, nil)

	result := dispatcher.Dispatch(context.Background(), buildDiff(10, 10))
	if !result.Failed() {
		t.Fatalf("expected failed result")
	}
	if result.ItemUpdatesAttempted != 10 || result.SizeUpdatesAttempted != 10 {
		t.Fatalf("expected all instructions attempted, got %+v", result)
	}
	if result.ItemUpdatesFailed != 2 {
		t.Fatalf("expected 2 item failures, got %d", result.ItemUpdatesFailed)
	}
	if result.SizeUpdatesFailed != 1 {
		t.Fatalf("expected 1 size failure, got %d", result.SizeUpdatesFailed)
	}
	// Every sibling still ran; the size phase was not skipped because the
	// item phase had failures.
	if got := client.itemCalls.Load(); got != 10 {
		t.Fatalf("expected 10 item calls, got %d", got)
	}
	if got := client.sizeCalls.Load(); got != 10 {
		t.Fatalf("expected 10 size calls, got %d", got)
	}
	if result.Err == nil {
		t.Fatalf("expected aggregated error")
	}
}

func TestDispatch_DefaultsConcurrency(t *testing.T) {
	dispatcher := NewDispatcher(&fakeTargetClient{}, 0, nil)
	if dispatcher.Concurrency != core.DefaultConcurrency {
		t.Fatalf("expected default concurrency %d, got %d", core.DefaultConcurrency, dispatcher.Concurrency)
	}
}

func TestDispatch_NilTarget(t *testing.T) {
	dispatcher := &Dispatcher{}
	result := dispatcher.Dispatch(context.Background(), buildDiff(2, 3))
	if !result.Failed() {
		t.Fatalf("expected failure without target client")
	}
	if result.ItemUpdatesFailed != 2 || result.SizeUpdatesFailed != 3 {
		t.Fatalf("expected all instructions marked failed, got %+v", result)
	}
}

var _ core.CatalogClient = (*fakeTargetClient)(nil)
