package sync

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-catalog-sync/core"
)

// Diff is the full set of change instructions for one run, partitioned
// by phase, plus the mappings that produced at least one instruction.
type Diff struct {
	ItemUpdates []core.ItemUpdate
	SizeUpdates []core.SizeUpdate
	Changed     []core.ChangedMapping
}

// Compute compares source and target snapshots mapping by mapping. The
// source is authoritative: instructions only ever write source values to
// the target. A mapping whose item is absent on either side is skipped
// outright; a missing product is an expected steady state, not a fault.
func Compute(mappings []core.Mapping, source Snapshot, target Snapshot) Diff {
	diff := Diff{}

	for _, mapping := range mappings {
		sourceItem, ok := source.Items[mapping.SourceID]
		if !ok {
			continue
		}
		targetItem, ok := target.Items[mapping.TargetID]
		if !ok {
			continue
		}

		var details []string

		if sourceItem.DropPrice != targetItem.DropPrice || sourceItem.Nal != targetItem.Nal {
			// Both fields travel together; the target endpoint
			// replaces price and availability atomically.
			diff.ItemUpdates = append(diff.ItemUpdates, core.ItemUpdate{
				TargetItemID: mapping.TargetID,
				NewPrice:     sourceItem.DropPrice,
				NewNal:       sourceItem.Nal,
			})
			if sourceItem.DropPrice != targetItem.DropPrice {
				details = append(details, fmt.Sprintf("price: %d -> %d", targetItem.DropPrice, sourceItem.DropPrice))
			}
			if sourceItem.Nal != targetItem.Nal {
				details = append(details, fmt.Sprintf("availability: %d -> %d", targetItem.Nal, sourceItem.Nal))
			}
		}

		sourceSizes := source.Sizes[mapping.SourceID]
		targetSizes := target.Sizes[mapping.TargetID]

		// The target drives size enumeration: sizes present only in
		// the source are never created, and target sizes without a
		// source counterpart are left untouched rather than zeroed.
		for _, val := range sortedVals(targetSizes) {
			targetSize := targetSizes[val]
			sourceSize, ok := sourceSizes[val]
			if !ok {
				continue
			}
			if targetSize.Qty == sourceSize.Qty {
				continue
			}
			diff.SizeUpdates = append(diff.SizeUpdates, core.SizeUpdate{
				TargetSizeID: targetSize.ID,
				Val:          val,
				NewQty:       sourceSize.Qty,
			})
			details = append(details, fmt.Sprintf("size %s: %d -> %d", val, targetSize.Qty, sourceSize.Qty))
		}

		if len(details) > 0 {
			diff.Changed = append(diff.Changed, core.ChangedMapping{
				Mapping: mapping,
				Details: strings.Join(details, "; "),
			})
		}
	}

	return diff
}

func (d Diff) Empty() bool {
	return len(d.ItemUpdates) == 0 && len(d.SizeUpdates) == 0
}

func sortedVals(sizes map[string]core.CatalogSize) []string {
	if len(sizes) == 0 {
		return nil
	}
	vals := make([]string, 0, len(sizes))
	for val := range sizes {
		vals = append(vals, val)
	}
	sort.Strings(vals)
	return vals
}
