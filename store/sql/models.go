package sqlstore

import (
	"time"

	"github.com/goliatone/go-catalog-sync/core"
	"github.com/uptrace/bun"
)

type mappingRecord struct {
	bun.BaseModel `bun:"table:product_mappings,alias:pm"`

	ID          string    `bun:"id,pk"`
	SourceID    int64     `bun:"source_id,notnull"`
	TargetID    int64     `bun:"target_id,notnull"`
	ProductName string    `bun:"product_name"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *mappingRecord) toDomain() core.Mapping {
	if r == nil {
		return core.Mapping{}
	}
	return core.Mapping{
		ID:          r.ID,
		SourceID:    r.SourceID,
		TargetID:    r.TargetID,
		ProductName: r.ProductName,
		CreatedAt:   r.CreatedAt,
	}
}

type syncLogRecord struct {
	bun.BaseModel `bun:"table:sync_logs,alias:sl"`

	ID          string    `bun:"id,pk"`
	StartedAt   time.Time `bun:"started_at,nullzero,notnull"`
	CompletedAt time.Time `bun:"completed_at,nullzero,notnull"`
	Status      string    `bun:"status,notnull"`
	ProductName string    `bun:"product_name"`
	SourceID    int64     `bun:"source_id,notnull"`
	TargetID    int64     `bun:"target_id,notnull"`
	Details     string    `bun:"details"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newSyncLogRecord(log core.SyncLog, now time.Time) *syncLogRecord {
	createdAt := log.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return &syncLogRecord{
		ID:          log.ID,
		StartedAt:   log.StartedAt,
		CompletedAt: log.CompletedAt,
		Status:      string(log.Status),
		ProductName: log.ProductName,
		SourceID:    log.SourceID,
		TargetID:    log.TargetID,
		Details:     log.Details,
		CreatedAt:   createdAt,
	}
}

func (r *syncLogRecord) toDomain() core.SyncLog {
	if r == nil {
		return core.SyncLog{}
	}
	return core.SyncLog{
		ID:          r.ID,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Status:      core.RunStatus(r.Status),
		ProductName: r.ProductName,
		SourceID:    r.SourceID,
		TargetID:    r.TargetID,
		Details:     r.Details,
		CreatedAt:   r.CreatedAt,
	}
}

type userRecord struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string    `bun:"id,pk"`
	Username     string    `bun:"username,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *userRecord) toDomain() core.User {
	if r == nil {
		return core.User{}
	}
	return core.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
	}
}

type settingRecord struct {
	bun.BaseModel `bun:"table:system_settings,alias:ss"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *settingRecord) toDomain() core.Setting {
	if r == nil {
		return core.Setting{}
	}
	return core.Setting{
		Key:   r.Key,
		Value: r.Value,
	}
}
