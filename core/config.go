package core

import (
	"fmt"
	"strings"
	"time"
)

type CatalogEndpointConfig struct {
	BaseURL string `koanf:"base_url" mapstructure:"base_url"`
	APIKey  string `koanf:"api_key" mapstructure:"api_key"`
}

type SyncConfig struct {
	Concurrency     int           `koanf:"concurrency" mapstructure:"concurrency"`
	PageLimit       int           `koanf:"page_limit" mapstructure:"page_limit"`
	RequestTimeout  time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
	IntervalMinutes int           `koanf:"interval_minutes" mapstructure:"interval_minutes"`
}

type Config struct {
	ServiceName string                `koanf:"service_name" mapstructure:"service_name"`
	Source      CatalogEndpointConfig `koanf:"source" mapstructure:"source"`
	Target      CatalogEndpointConfig `koanf:"target" mapstructure:"target"`
	Sync        SyncConfig            `koanf:"sync" mapstructure:"sync"`
}

const (
	DefaultConcurrency     = 20
	DefaultPageLimit       = 5000
	DefaultRequestTimeout  = 30 * time.Second
	DefaultIntervalMinutes = 10
	DefaultCatalogBaseURL  = "https://easydrop.one/api/v1"
)

func DefaultConfig() Config {
	return Config{
		ServiceName: "catalog-sync",
		Source: CatalogEndpointConfig{
			BaseURL: DefaultCatalogBaseURL,
		},
		Target: CatalogEndpointConfig{
			BaseURL: DefaultCatalogBaseURL,
		},
		Sync: SyncConfig{
			Concurrency:     DefaultConcurrency,
			PageLimit:       DefaultPageLimit,
			RequestTimeout:  DefaultRequestTimeout,
			IntervalMinutes: DefaultIntervalMinutes,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Sync.Concurrency < 0 {
		return fmt.Errorf("core: sync.concurrency must not be negative")
	}
	if c.Sync.PageLimit < 0 {
		return fmt.Errorf("core: sync.page_limit must not be negative")
	}
	if c.Sync.IntervalMinutes < 0 {
		return fmt.Errorf("core: sync.interval_minutes must not be negative")
	}
	return nil
}

// ValidateCredentials gates a run: both API keys must be present before
// any network call is made.
func (c Config) ValidateCredentials() error {
	if strings.TrimSpace(c.Source.APIKey) == "" {
		return fmt.Errorf("core: source api key is required")
	}
	if strings.TrimSpace(c.Target.APIKey) == "" {
		return fmt.Errorf("core: target api key is required")
	}
	return nil
}
