package core

import (
	"context"
	"fmt"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

func DefaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return syncErrorMapper(err)
}

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticRawConfigLoader feeds literal values through the cfgx pipeline,
// mostly for tests and embedded deployments.
func NewStaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver layers defaults < loaded < runtime with go-options
// scopes, then rebuilds and validates the merged Config.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || cfg.ServiceName != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || cfg.Source.BaseURL != "" || cfg.Source.APIKey != "" {
		layer["source"] = endpointToLayerMap(cfg.Source)
	}
	if includeZero || cfg.Target.BaseURL != "" || cfg.Target.APIKey != "" {
		layer["target"] = endpointToLayerMap(cfg.Target)
	}
	syncLayer := map[string]any{}
	if includeZero || cfg.Sync.Concurrency > 0 {
		syncLayer["concurrency"] = cfg.Sync.Concurrency
	}
	if includeZero || cfg.Sync.PageLimit > 0 {
		syncLayer["page_limit"] = cfg.Sync.PageLimit
	}
	if includeZero || cfg.Sync.RequestTimeout > 0 {
		syncLayer["request_timeout"] = cfg.Sync.RequestTimeout
	}
	if includeZero || cfg.Sync.IntervalMinutes > 0 {
		syncLayer["interval_minutes"] = cfg.Sync.IntervalMinutes
	}
	if len(syncLayer) > 0 {
		layer["sync"] = syncLayer
	}
	return layer
}

func endpointToLayerMap(endpoint CatalogEndpointConfig) map[string]any {
	out := map[string]any{}
	if endpoint.BaseURL != "" {
		out["base_url"] = endpoint.BaseURL
	}
	if endpoint.APIKey != "" {
		out["api_key"] = endpoint.APIKey
	}
	return out
}
