package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-catalog-sync/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const mappingCacheKeyPrefix = "go-catalog-sync::mappings::v1"

// CachedMappingStore caches mapping reads in front of a base store. Every
// reconciliation run lists the full mapping set while mappings change only
// through explicit admin commands, so writes invalidate and reads are served
// from cache between them.
type CachedMappingStore struct {
	base  core.MappingStore
	cache repositorycache.CacheService
}

func NewCachedMappingStore(base core.MappingStore, cacheService repositorycache.CacheService) (*CachedMappingStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base mapping store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: mapping cache service is required")
	}
	return &CachedMappingStore{base: base, cache: cacheService}, nil
}

// MappingListCacheKey is the deterministic cache key for the full mapping
// list read.
func MappingListCacheKey() string {
	return mappingCacheKeyPrefix + "::list"
}

// MappingCacheKey returns the cache key for a single mapping read, with the
// id URL-path escaped.
func MappingCacheKey(id string) string {
	return mappingCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(id))
}

func (s *CachedMappingStore) List(ctx context.Context) ([]core.Mapping, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached mapping store is not configured")
	}
	mappings, err := repositorycache.GetOrFetch(ctx, s.cache, MappingListCacheKey(), func(ctx context.Context) ([]core.Mapping, error) {
		return s.base.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	return cloneMappings(mappings), nil
}

func (s *CachedMappingStore) Get(ctx context.Context, id string) (core.Mapping, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Mapping{}, fmt.Errorf("sqlstore: cached mapping store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, MappingCacheKey(id), func(ctx context.Context) (core.Mapping, error) {
		return s.base.Get(ctx, id)
	})
}

func (s *CachedMappingStore) Create(ctx context.Context, input core.CreateMappingInput) (core.Mapping, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Mapping{}, fmt.Errorf("sqlstore: cached mapping store is not configured")
	}
	created, err := s.base.Create(ctx, input)
	if err != nil {
		return core.Mapping{}, err
	}
	if err := s.cache.Delete(ctx, MappingListCacheKey()); err != nil {
		return core.Mapping{}, err
	}
	return created, nil
}

func (s *CachedMappingStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached mapping store is not configured")
	}
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, MappingCacheKey(id)); err != nil {
		return err
	}
	return s.cache.Delete(ctx, MappingListCacheKey())
}

func cloneMappings(mappings []core.Mapping) []core.Mapping {
	if mappings == nil {
		return nil
	}
	out := make([]core.Mapping, len(mappings))
	copy(out, mappings)
	return out
}

var _ core.MappingStore = (*CachedMappingStore)(nil)
