package catalogsync

import (
	"context"

	"github.com/goliatone/go-catalog-sync/catalog"
	"github.com/goliatone/go-catalog-sync/command"
	"github.com/goliatone/go-catalog-sync/core"
	"github.com/goliatone/go-catalog-sync/ratelimit"
	catsync "github.com/goliatone/go-catalog-sync/sync"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const loggerName = "catalog-sync"

// Service is the composed reconciliation engine: resolved configuration,
// catalog clients for both systems, persistence-backed stores, and the sync
// runner that drives a reconciliation pass.
type Service struct {
	config          core.Config
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
	errorFactory    core.ErrorFactory
	errorMapper     core.ErrorMapper
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver

	mappingStore core.MappingStore
	syncLogStore core.SyncLogStore
	settingStore core.SettingStore
	userStore    core.UserStore

	source core.CatalogClient
	target core.CatalogClient
	runner core.SyncRunner
}

type serviceBuilder struct {
	runtimeConfig     core.Config
	logger            core.Logger
	loggerProvider    core.LoggerProvider
	metricsRecorder   core.MetricsRecorder
	errorFactory      core.ErrorFactory
	errorMapper       core.ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    core.ConfigProvider
	optionsResolver   core.OptionsResolver
	mappingStore      core.MappingStore
	syncLogStore      core.SyncLogStore
	settingStore      core.SettingStore
	userStore         core.UserStore
	source            core.CatalogClient
	target            core.CatalogClient
	runner            core.SyncRunner
	clock             core.Clock
}

type Option func(*serviceBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory core.ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper core.ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithMappingStore(store core.MappingStore) Option {
	return func(b *serviceBuilder) {
		b.mappingStore = store
	}
}

func WithSyncLogStore(store core.SyncLogStore) Option {
	return func(b *serviceBuilder) {
		b.syncLogStore = store
	}
}

func WithSettingStore(store core.SettingStore) Option {
	return func(b *serviceBuilder) {
		b.settingStore = store
	}
}

func WithUserStore(store core.UserStore) Option {
	return func(b *serviceBuilder) {
		b.userStore = store
	}
}

func WithSourceClient(client core.CatalogClient) Option {
	return func(b *serviceBuilder) {
		b.source = client
	}
}

func WithTargetClient(client core.CatalogClient) Option {
	return func(b *serviceBuilder) {
		b.target = client
	}
}

func WithSyncRunner(runner core.SyncRunner) Option {
	return func(b *serviceBuilder) {
		b.runner = runner
	}
}

func WithClock(clock core.Clock) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func defaultServiceBuilder(runtime core.Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve(loggerName, nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: core.NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     core.DefaultErrorMapper,
		configProvider:  core.NewCfgxConfigProvider(nil),
		optionsResolver: core.GoOptionsResolver{},
	}
}

// New builds a Service from runtime configuration and options. Configuration
// is resolved in layers: compiled defaults, then the config provider, then the
// runtime config passed here. Missing credentials do not fail the build; they
// fail the first run before any network call.
func New(cfg core.Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve(loggerName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(loggerName); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.errorMapper == nil {
		builder.errorMapper = core.DefaultErrorMapper
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = core.NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = core.NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = core.GoOptionsResolver{}
	}

	defaults := core.DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	if err := finalConfig.Validate(); err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if err := resolveStores(&builder); err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.source == nil {
		builder.source = newCatalogClient(finalConfig.Source, finalConfig)
	}
	if builder.target == nil {
		builder.target = newCatalogClient(finalConfig.Target, finalConfig)
	}

	if builder.runner == nil {
		orchestratorOpts := []catsync.OrchestratorOption{
			catsync.WithLogger(logger),
			catsync.WithMetricsRecorder(builder.metricsRecorder),
		}
		if builder.settingStore != nil {
			orchestratorOpts = append(orchestratorOpts, catsync.WithSettingStore(builder.settingStore))
		}
		if builder.clock != nil {
			orchestratorOpts = append(orchestratorOpts, catsync.WithClock(builder.clock))
		}
		builder.runner = catsync.NewOrchestrator(
			builder.mappingStore,
			builder.syncLogStore,
			builder.source,
			builder.target,
			finalConfig,
			orchestratorOpts...,
		)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		mappingStore:    builder.mappingStore,
		syncLogStore:    builder.syncLogStore,
		settingStore:    builder.settingStore,
		userStore:       builder.userStore,
		source:          builder.source,
		target:          builder.target,
		runner:          builder.runner,
	}, nil
}

// Setup is an alias for New kept for bootstrap call sites.
func Setup(cfg core.Config, opts ...Option) (*Service, error) {
	return New(cfg, opts...)
}

func resolveStores(builder *serviceBuilder) error {
	needStores := builder.mappingStore == nil || builder.syncLogStore == nil ||
		builder.settingStore == nil || builder.userStore == nil
	if !needStores || builder.repositoryFactory == nil {
		return nil
	}

	var provider core.StoreProvider
	if factory, ok := builder.repositoryFactory.(core.RepositoryStoreFactory); ok {
		built, err := factory.BuildStores(builder.persistenceClient)
		if err != nil {
			return err
		}
		provider = built
	} else if p, ok := builder.repositoryFactory.(core.StoreProvider); ok {
		provider = p
	}
	if provider == nil {
		return nil
	}

	if builder.mappingStore == nil {
		builder.mappingStore = provider.MappingStore()
	}
	if builder.syncLogStore == nil {
		builder.syncLogStore = provider.SyncLogStore()
	}
	if builder.settingStore == nil {
		builder.settingStore = provider.SettingStore()
	}
	if builder.userStore == nil {
		builder.userStore = provider.UserStore()
	}
	return nil
}

func newCatalogClient(endpoint core.CatalogEndpointConfig, cfg core.Config) *catalog.Client {
	return catalog.New(endpoint,
		catalog.WithPageLimit(cfg.Sync.PageLimit),
		catalog.WithRequestTimeout(cfg.Sync.RequestTimeout),
		catalog.WithRateLimitPolicy(ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())),
	)
}

func mapBuildError(mapper core.ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

// RunSynchronization executes one reconciliation pass.
func (s *Service) RunSynchronization(ctx context.Context) (core.RunResult, error) {
	if s == nil || s.runner == nil {
		err := goerrors.New("catalog sync service is not configured", goerrors.CategoryInternal).
			WithTextCode(core.SyncErrorInternal)
		return core.RunResult{Status: core.RunStatusFailed, Err: err}, err
	}
	return s.runner.RunSynchronization(ctx)
}

func (s *Service) Config() core.Config {
	if s == nil {
		return core.Config{}
	}
	return s.config
}

func (s *Service) Logger() core.Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) Mappings() core.MappingStore {
	if s == nil {
		return nil
	}
	return s.mappingStore
}

func (s *Service) SyncLogs() core.SyncLogStore {
	if s == nil {
		return nil
	}
	return s.syncLogStore
}

func (s *Service) Settings() core.SettingStore {
	if s == nil {
		return nil
	}
	return s.settingStore
}

func (s *Service) Users() core.UserStore {
	if s == nil {
		return nil
	}
	return s.userStore
}

func (s *Service) SourceClient() core.CatalogClient {
	if s == nil {
		return nil
	}
	return s.source
}

func (s *Service) TargetClient() core.CatalogClient {
	if s == nil {
		return nil
	}
	return s.target
}

func (s *Service) Runner() core.SyncRunner {
	if s == nil {
		return nil
	}
	return s.runner
}

// Commands bundles the administrative command handlers wired to this service.
type Commands struct {
	TriggerSync     *command.TriggerSyncCommand
	CreateMapping   *command.CreateMappingCommand
	DeleteMapping   *command.DeleteMappingCommand
	SetSyncInterval *command.SetSyncIntervalCommand
	CreateUser      *command.CreateUserCommand
	ChangePassword  *command.ChangePasswordCommand
	DeleteUser      *command.DeleteUserCommand
}

// Commands builds the administrative command surface. The rescheduler may be
// nil when no scheduler is running.
func (s *Service) Commands(rescheduler command.Rescheduler) Commands {
	if s == nil {
		return Commands{}
	}
	return Commands{
		TriggerSync:     command.NewTriggerSyncCommand(s.runner),
		CreateMapping:   command.NewCreateMappingCommand(s.mappingStore),
		DeleteMapping:   command.NewDeleteMappingCommand(s.mappingStore),
		SetSyncInterval: command.NewSetSyncIntervalCommand(s.settingStore, rescheduler),
		CreateUser:      command.NewCreateUserCommand(s.userStore),
		ChangePassword:  command.NewChangePasswordCommand(s.userStore),
		DeleteUser:      command.NewDeleteUserCommand(s.userStore),
	}
}

var _ core.SyncRunner = (*Service)(nil)
