package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-catalog-sync/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SyncLogStore struct {
	db   *bun.DB
	repo repository.Repository[*syncLogRecord]
}

func NewSyncLogStore(db *bun.DB) (*SyncLogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*syncLogRecord](db, syncLogHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sync log repository wiring: %w", err)
		}
	}
	return &SyncLogStore{
		db:   db,
		repo: repo,
	}, nil
}

// RecordBatch writes one run's audit rows in a single transaction.
// Either every row lands or none do; a failed batch leaves no partial
// trail.
func (s *SyncLogStore) RecordBatch(ctx context.Context, logs []core.SyncLog) error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: sync log store is not configured")
	}
	if len(logs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	records := make([]*syncLogRecord, 0, len(logs))
	for _, log := range logs {
		if err := log.Status.Validate(); err != nil {
			return err
		}
		record := newSyncLogRecord(log, now)
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		records = append(records, record)
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := s.repo.CreateManyTx(ctx, tx, records)
		return err
	})
}

// List returns audit rows newest first.
func (s *SyncLogStore) List(ctx context.Context, limit int, offset int) ([]core.SyncLog, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: sync log store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	records, _, err := s.repo.List(ctx,
		repository.OrderBy("completed_at DESC"),
		repository.SelectPaginate(limit, offset),
	)
	if err != nil {
		return nil, err
	}
	logs := make([]core.SyncLog, 0, len(records))
	for _, record := range records {
		logs = append(logs, record.toDomain())
	}
	return logs, nil
}

var _ core.SyncLogStore = (*SyncLogStore)(nil)
