// Package sync implements the reconciliation engine: snapshot indexing,
// field-level diffing, bounded two-phase dispatch against the target
// catalog, and the run orchestration tying them together.
package sync

import (
	"github.com/goliatone/go-catalog-sync/core"
)

// Snapshot holds the O(1)-lookup indices for one catalog system, built
// from page-merged listings and discarded at the end of the run. Indices
// are read-only once built.
type Snapshot struct {
	Items map[int64]core.CatalogItem
	Sizes map[int64]map[string]core.CatalogSize

	// Records skipped for a missing or non-coercible identifier.
	// Ingestion is best-effort, so drops never fail the run, but the
	// totals are surfaced on the run result.
	DroppedItems int
	DroppedSizes int
}

func NewSnapshot(items []map[string]any, sizes []map[string]any) Snapshot {
	snapshot := Snapshot{}
	snapshot.Items, snapshot.DroppedItems = IndexItems(items)
	snapshot.Sizes, snapshot.DroppedSizes = IndexSizes(sizes)
	return snapshot
}

// IndexItems keys item records by their coerced integer id. If two
// records collapse onto the same id, the later one wins.
func IndexItems(records []map[string]any) (map[int64]core.CatalogItem, int) {
	items := make(map[int64]core.CatalogItem, len(records))
	dropped := 0
	for _, record := range records {
		id, ok := core.CoerceID(record["id"])
		if !ok {
			dropped++
			continue
		}
		items[id] = core.CatalogItem{
			ID:        id,
			DropPrice: core.CoerceInt(record["drop_price"]),
			Nal:       core.CoerceInt(record["nal"]),
			Raw:       record,
		}
	}
	return items, dropped
}

// IndexSizes keys size records by (item_id, val). The val join key keeps
// its textual form; size ids stay catalog-local and are never compared
// across systems. Later records win on key collision.
func IndexSizes(records []map[string]any) (map[int64]map[string]core.CatalogSize, int) {
	sizes := make(map[int64]map[string]core.CatalogSize)
	dropped := 0
	for _, record := range records {
		itemID, ok := core.CoerceID(record["item_id"])
		if !ok {
			dropped++
			continue
		}
		val := core.CoerceString(record["val"])
		byVal, ok := sizes[itemID]
		if !ok {
			byVal = map[string]core.CatalogSize{}
			sizes[itemID] = byVal
		}
		byVal[val] = core.CatalogSize{
			ID:     core.CoerceInt(record["id"]),
			ItemID: itemID,
			Val:    val,
			Qty:    core.CoerceInt(record["qty"]),
			Raw:    record,
		}
	}
	return sizes, dropped
}
