package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-catalog-sync/core"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the SQL-backed stores against one bun
// database. It accepts either a raw *bun.DB or a go-persistence-bun
// client.
type RepositoryFactory struct {
	db *bun.DB

	mappingStore *MappingStore
	syncLogStore *SyncLogStore
	settingStore *SettingStore
	userStore    *UserStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.mappingStore != nil && f.syncLogStore != nil && f.settingStore != nil && f.userStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) initStores() error {
	mappingStore, err := NewMappingStore(f.db)
	if err != nil {
		return err
	}
	syncLogStore, err := NewSyncLogStore(f.db)
	if err != nil {
		return err
	}
	settingStore, err := NewSettingStore(f.db)
	if err != nil {
		return err
	}
	userStore, err := NewUserStore(f.db)
	if err != nil {
		return err
	}
	f.mappingStore = mappingStore
	f.syncLogStore = syncLogStore
	f.settingStore = settingStore
	f.userStore = userStore
	return nil
}

func (f *RepositoryFactory) MappingStore() core.MappingStore {
	if f == nil {
		return nil
	}
	return f.mappingStore
}

func (f *RepositoryFactory) SyncLogStore() core.SyncLogStore {
	if f == nil {
		return nil
	}
	return f.syncLogStore
}

func (f *RepositoryFactory) SettingStore() core.SettingStore {
	if f == nil {
		return nil
	}
	return f.settingStore
}

func (f *RepositoryFactory) UserStore() core.UserStore {
	if f == nil {
		return nil
	}
	return f.userStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var (
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
