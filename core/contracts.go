package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// CatalogClient is one authenticated connection to a catalog system. Two
// instances exist per run: one bound to source credentials and one to
// target credentials. Fetches return raw page-merged records; the
// snapshot indexer types them.
type CatalogClient interface {
	FetchAllItems(ctx context.Context) ([]map[string]any, error)
	FetchAllSizes(ctx context.Context) ([]map[string]any, error)
	UpdateItem(ctx context.Context, itemID int64, price int64, nal int64) error
	UpdateSize(ctx context.Context, sizeID int64, val string, qty int64) error
}

// MappingStore owns the operator-defined product mappings. The run reads
// the full list; uniqueness of (source_id, target_id) is not enforced
// here.
type MappingStore interface {
	List(ctx context.Context) ([]Mapping, error)
	Get(ctx context.Context, id string) (Mapping, error)
	Create(ctx context.Context, in CreateMappingInput) (Mapping, error)
	Delete(ctx context.Context, id string) error
}

// SyncLogStore persists the audit trail. RecordBatch is all-or-nothing:
// either every row for a run lands or none do.
type SyncLogStore interface {
	RecordBatch(ctx context.Context, logs []SyncLog) error
	List(ctx context.Context, limit int, offset int) ([]SyncLog, error)
}

type SettingStore interface {
	Get(ctx context.Context, key string) (Setting, error)
	Set(ctx context.Context, key string, value string) (Setting, error)
}

// UserStore persists operator accounts for the admin surface. Usernames
// are unique; lookups are by username because that is the login key.
type UserStore interface {
	Create(ctx context.Context, in CreateUserInput) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	List(ctx context.Context) ([]User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) (User, error)
	Delete(ctx context.Context, id string) error
}

// SyncRunner is the trigger surface the engine exposes to its callers
// (scheduler, command bus). Re-entrant calls are not serialized.
type SyncRunner interface {
	RunSynchronization(ctx context.Context) (RunResult, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

// StoreProvider is what a repository factory yields once stores are
// built against a live database.
type StoreProvider interface {
	MappingStore() MappingStore
	SyncLogStore() SyncLogStore
	SettingStore() SettingStore
	UserStore() UserStore
}

// RepositoryStoreFactory lets the service builder accept an opaque
// factory plus persistence client without importing the sql store
// package.
type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// Clock narrows time acquisition for tests.
type Clock func() time.Time
