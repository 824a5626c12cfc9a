package catalogsync

import "github.com/goliatone/go-catalog-sync/core"

type Config = core.Config

type CatalogEndpointConfig = core.CatalogEndpointConfig

type SyncConfig = core.SyncConfig

type Mapping = core.Mapping
type CreateMappingInput = core.CreateMappingInput
type CatalogItem = core.CatalogItem
type CatalogSize = core.CatalogSize
type ItemUpdate = core.ItemUpdate
type SizeUpdate = core.SizeUpdate
type ChangedMapping = core.ChangedMapping
type RunStatus = core.RunStatus
type RunResult = core.RunResult
type SyncLog = core.SyncLog
type Setting = core.Setting
type User = core.User
type CreateUserInput = core.CreateUserInput

type CatalogClient = core.CatalogClient
type MappingStore = core.MappingStore
type SyncLogStore = core.SyncLogStore
type SettingStore = core.SettingStore
type UserStore = core.UserStore
type SyncRunner = core.SyncRunner
type MetricsRecorder = core.MetricsRecorder
type Logger = core.Logger
type LoggerProvider = core.LoggerProvider
type StoreProvider = core.StoreProvider
type RepositoryStoreFactory = core.RepositoryStoreFactory

const (
	RunStatusSuccess         = core.RunStatusSuccess
	RunStatusFailed          = core.RunStatusFailed
	RunStatusAuditIncomplete = core.RunStatusAuditIncomplete
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}
