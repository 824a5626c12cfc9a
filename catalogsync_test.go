package catalogsync_test

import (
	"context"
	"errors"
	"testing"

	catalogsync "github.com/goliatone/go-catalog-sync"
	"github.com/goliatone/go-catalog-sync/command"
	"github.com/goliatone/go-catalog-sync/core"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

type stubCatalogClient struct {
	items []map[string]any
	sizes []map[string]any
}

func (s *stubCatalogClient) FetchAllItems(_ context.Context) ([]map[string]any, error) {
	return s.items, nil
}

func (s *stubCatalogClient) FetchAllSizes(_ context.Context) ([]map[string]any, error) {
	return s.sizes, nil
}

func (s *stubCatalogClient) UpdateItem(_ context.Context, _ int64, _ int64, _ int64) error {
	return nil
}

func (s *stubCatalogClient) UpdateSize(_ context.Context, _ int64, _ string, _ int64) error {
	return nil
}

type stubMappingStore struct {
	mappings []core.Mapping
}

func (s *stubMappingStore) List(_ context.Context) ([]core.Mapping, error) {
	return s.mappings, nil
}

func (s *stubMappingStore) Get(_ context.Context, _ string) (core.Mapping, error) {
	return core.Mapping{}, core.ErrMappingNotFound
}

func (s *stubMappingStore) Create(_ context.Context, in core.CreateMappingInput) (core.Mapping, error) {
	if err := in.Validate(); err != nil {
		return core.Mapping{}, err
	}
	mapping := core.Mapping{ID: "map-1", SourceID: in.SourceID, TargetID: in.TargetID, ProductName: in.ProductName}
	s.mappings = append(s.mappings, mapping)
	return mapping, nil
}

func (s *stubMappingStore) Delete(_ context.Context, _ string) error {
	return nil
}

type stubSyncLogStore struct {
	batches [][]core.SyncLog
}

func (s *stubSyncLogStore) RecordBatch(_ context.Context, logs []core.SyncLog) error {
	s.batches = append(s.batches, logs)
	return nil
}

func (s *stubSyncLogStore) List(_ context.Context, _ int, _ int) ([]core.SyncLog, error) {
	return nil, nil
}

type stubSettingStore struct {
	values map[string]string
}

func (s *stubSettingStore) Get(_ context.Context, key string) (core.Setting, error) {
	value, ok := s.values[key]
	if !ok {
		return core.Setting{}, core.ErrSettingNotFound
	}
	return core.Setting{Key: key, Value: value}, nil
}

func (s *stubSettingStore) Set(_ context.Context, key string, value string) (core.Setting, error) {
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[key] = value
	return core.Setting{Key: key, Value: value}, nil
}

type stubRunner struct {
	result core.RunResult
	err    error
	calls  int
}

func (s *stubRunner) RunSynchronization(_ context.Context) (core.RunResult, error) {
	s.calls++
	return s.result, s.err
}

type failingConfigProvider struct {
	err error
}

func (p failingConfigProvider) Load(_ context.Context, _ core.Config) (core.Config, error) {
	return core.Config{}, p.err
}

func credentialedConfig() catalogsync.Config {
	cfg := core.Config{}
	cfg.Source.APIKey = "source-key"
	cfg.Target.APIKey = "target-key"
	return cfg
}

func TestNew_UsesInjectedDependencies(t *testing.T) {
	mappings := &stubMappingStore{}
	logs := &stubSyncLogStore{}
	settings := &stubSettingStore{}
	source := &stubCatalogClient{}
	target := &stubCatalogClient{}
	runner := &stubRunner{}

	cfg := credentialedConfig()
	cfg.Sync.Concurrency = 5

	svc, err := catalogsync.New(cfg,
		catalogsync.WithMappingStore(mappings),
		catalogsync.WithSyncLogStore(logs),
		catalogsync.WithSettingStore(settings),
		catalogsync.WithSourceClient(source),
		catalogsync.WithTargetClient(target),
		catalogsync.WithSyncRunner(runner),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if svc.Mappings() != core.MappingStore(mappings) {
		t.Fatalf("expected injected mapping store")
	}
	if svc.SyncLogs() != core.SyncLogStore(logs) {
		t.Fatalf("expected injected sync log store")
	}
	if svc.Settings() != core.SettingStore(settings) {
		t.Fatalf("expected injected setting store")
	}
	if svc.SourceClient() != core.CatalogClient(source) {
		t.Fatalf("expected injected source client")
	}
	if svc.TargetClient() != core.CatalogClient(target) {
		t.Fatalf("expected injected target client")
	}
	if svc.Runner() != core.SyncRunner(runner) {
		t.Fatalf("expected injected runner")
	}

	resolved := svc.Config()
	if resolved.Sync.Concurrency != 5 {
		t.Fatalf("expected runtime concurrency 5, got %d", resolved.Sync.Concurrency)
	}
	if resolved.Sync.PageLimit != core.DefaultPageLimit {
		t.Fatalf("expected default page limit preserved, got %d", resolved.Sync.PageLimit)
	}
	if resolved.ServiceName != "catalog-sync" {
		t.Fatalf("expected default service name, got %q", resolved.ServiceName)
	}
}

func TestNew_ConfigProviderLayering(t *testing.T) {
	provider := core.NewCfgxConfigProvider(core.NewStaticRawConfigLoader(map[string]any{
		"sync": map[string]any{
			"page_limit": 100,
		},
	}))

	svc, err := catalogsync.New(credentialedConfig(),
		catalogsync.WithConfigProvider(provider),
		catalogsync.WithSyncRunner(&stubRunner{}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Config().Sync.PageLimit != 100 {
		t.Fatalf("expected loaded page limit 100, got %d", svc.Config().Sync.PageLimit)
	}

	runtime := credentialedConfig()
	runtime.Sync.PageLimit = 250
	svc, err = catalogsync.New(runtime,
		catalogsync.WithConfigProvider(provider),
		catalogsync.WithSyncRunner(&stubRunner{}),
	)
	if err != nil {
		t.Fatalf("new service with runtime override: %v", err)
	}
	if svc.Config().Sync.PageLimit != 250 {
		t.Fatalf("expected runtime page limit to win, got %d", svc.Config().Sync.PageLimit)
	}
}

func TestNew_ConfigProviderFailureIsMapped(t *testing.T) {
	_, err := catalogsync.New(core.Config{},
		catalogsync.WithConfigProvider(failingConfigProvider{err: errors.New("config backend unreachable")}),
	)
	if err == nil {
		t.Fatalf("expected config load failure")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected mapped rich error, got %T", err)
	}
}

func TestNew_BuildsDefaultClientsAndRunner(t *testing.T) {
	svc, err := catalogsync.New(credentialedConfig(),
		catalogsync.WithMappingStore(&stubMappingStore{}),
		catalogsync.WithSyncLogStore(&stubSyncLogStore{}),
		catalogsync.WithSettingStore(&stubSettingStore{}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.SourceClient() == nil || svc.TargetClient() == nil {
		t.Fatalf("expected default catalog clients")
	}
	if svc.Runner() == nil {
		t.Fatalf("expected default sync runner")
	}
}

func TestNew_MissingCredentialsFailTheRunNotTheBuild(t *testing.T) {
	svc, err := catalogsync.New(core.Config{},
		catalogsync.WithMappingStore(&stubMappingStore{mappings: []core.Mapping{{ID: "map-1", SourceID: 1, TargetID: 2}}}),
		catalogsync.WithSyncLogStore(&stubSyncLogStore{}),
	)
	if err != nil {
		t.Fatalf("expected build to succeed without credentials, got %v", err)
	}

	result, runErr := svc.RunSynchronization(context.Background())
	if runErr == nil {
		t.Fatalf("expected run to fail without credentials")
	}
	var rich *goerrors.Error
	if !goerrors.As(runErr, &rich) {
		t.Fatalf("expected rich error, got %T", runErr)
	}
	if rich.TextCode != core.SyncErrorConfigMissing {
		t.Fatalf("expected config missing code, got %q", rich.TextCode)
	}
	if result.Status != core.RunStatusFailed {
		t.Fatalf("expected failed run status, got %q", result.Status)
	}
}

func TestService_RunSynchronizationDelegates(t *testing.T) {
	runner := &stubRunner{result: core.RunResult{RunID: "run-1", Status: core.RunStatusSuccess}}
	svc, err := catalogsync.New(credentialedConfig(), catalogsync.WithSyncRunner(runner))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.RunSynchronization(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("expected one delegated run, got %d", runner.calls)
	}
	if result.RunID != "run-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestService_CommandsAreWiredToServiceDependencies(t *testing.T) {
	mappings := &stubMappingStore{}
	svc, err := catalogsync.New(credentialedConfig(),
		catalogsync.WithMappingStore(mappings),
		catalogsync.WithSettingStore(&stubSettingStore{}),
		catalogsync.WithSyncRunner(&stubRunner{}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	commands := svc.Commands(nil)
	if commands.TriggerSync == nil || commands.CreateMapping == nil ||
		commands.DeleteMapping == nil || commands.SetSyncInterval == nil ||
		commands.CreateUser == nil || commands.ChangePassword == nil ||
		commands.DeleteUser == nil {
		t.Fatalf("expected all command handlers wired")
	}

	collector := gocmd.NewResult[core.Mapping]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := commands.CreateMapping.Execute(ctx, command.CreateMappingMessage{Input: core.CreateMappingInput{
		SourceID: 101,
		TargetID: 202,
	}}); err != nil {
		t.Fatalf("execute create mapping: %v", err)
	}
	created, ok := collector.Load()
	if !ok || created.ID == "" {
		t.Fatalf("expected created mapping result")
	}
	if len(mappings.mappings) != 1 {
		t.Fatalf("expected mapping persisted through command, got %d", len(mappings.mappings))
	}
}

func TestSetup_IsAnAliasForNew(t *testing.T) {
	svc, err := catalogsync.Setup(credentialedConfig(), catalogsync.WithSyncRunner(&stubRunner{}))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if svc == nil {
		t.Fatalf("expected service from setup")
	}
}

var (
	_ core.CatalogClient  = (*stubCatalogClient)(nil)
	_ core.MappingStore   = (*stubMappingStore)(nil)
	_ core.SyncLogStore   = (*stubSyncLogStore)(nil)
	_ core.SettingStore   = (*stubSettingStore)(nil)
	_ core.SyncRunner     = (*stubRunner)(nil)
	_ core.ConfigProvider = (failingConfigProvider{})
)
