package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-catalog-sync/core"
	"github.com/uptrace/bun"
)

type SettingStore struct {
	db *bun.DB
}

func NewSettingStore(db *bun.DB) (*SettingStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &SettingStore{db: db}, nil
}

func (s *SettingStore) Get(ctx context.Context, key string) (core.Setting, error) {
	if s == nil || s.db == nil {
		return core.Setting{}, fmt.Errorf("sqlstore: setting store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.Setting{}, fmt.Errorf("sqlstore: setting key is required")
	}
	record := &settingRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Setting{}, core.ErrSettingNotFound
		}
		return core.Setting{}, err
	}
	return record.toDomain(), nil
}

func (s *SettingStore) Set(ctx context.Context, key string, value string) (core.Setting, error) {
	if s == nil || s.db == nil {
		return core.Setting{}, fmt.Errorf("sqlstore: setting store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.Setting{}, fmt.Errorf("sqlstore: setting key is required")
	}
	now := time.Now().UTC()
	record := &settingRecord{
		Key:       key,
		Value:     value,
		UpdatedAt: now,
	}
	var out core.Setting
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
			if !isUniqueViolation(insertErr) {
				return insertErr
			}
			if _, updateErr := tx.NewUpdate().
				Model(record).
				Column("value", "updated_at").
				Where("?TableAlias.key = ?", key).
				Exec(ctx); updateErr != nil {
				return updateErr
			}
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Setting{}, err
	}
	return out, nil
}

var _ core.SettingStore = (*SettingStore)(nil)
