package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-inbox/core"
)

const channelMappingCacheKeyPrefix = "go-inbox::channel_mapping::v1"

// CachedChannelMappingStore fronts channel attribution with a read-through
// cache. Mappings change rarely and every webhook needs one, so the cache
// absorbs the hottest read in the pipeline. Misses and lookup failures are
// never cached.
type CachedChannelMappingStore struct {
	base  core.ChannelMappingStore
	cache repositorycache.CacheService
}

func NewCachedChannelMappingStore(
	base core.ChannelMappingStore,
	cacheService repositorycache.CacheService,
) (*CachedChannelMappingStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base channel mapping store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: channel mapping cache service is required")
	}
	return &CachedChannelMappingStore{base: base, cache: cacheService}, nil
}

// ChannelMappingCacheKey returns the deterministic cache key for a channel
// lookup: go-inbox::channel_mapping::v1::<channel_id> with the channel id
// URL-path escaped.
func ChannelMappingCacheKey(channelID string) (string, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return "", core.NewBadInputError("sqlstore: channel id is required", nil)
	}
	return channelMappingCacheKeyPrefix + "::" + url.PathEscape(channelID), nil
}

func (s *CachedChannelMappingStore) FindByChannelID(ctx context.Context, channelID string) (core.ChannelMapping, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.ChannelMapping{}, fmt.Errorf("sqlstore: cached channel mapping store is not configured")
	}
	channelID = strings.TrimSpace(channelID)
	cacheKey, err := ChannelMappingCacheKey(channelID)
	if err != nil {
		return core.ChannelMapping{}, err
	}

	mapping, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.ChannelMapping, error) {
		return s.base.FindByChannelID(ctx, channelID)
	})
	if err != nil {
		return core.ChannelMapping{}, err
	}
	return mapping, nil
}

// Upsert writes through to the base store and drops the cached entry, so a
// remapped channel is attributed to its new tenant on the next lookup
// instead of after cache expiry.
func (s *CachedChannelMappingStore) Upsert(ctx context.Context, mapping core.ChannelMapping) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached channel mapping store is not configured")
	}
	mutator, ok := s.base.(interface {
		Upsert(ctx context.Context, mapping core.ChannelMapping) error
	})
	if !ok {
		return fmt.Errorf("sqlstore: base channel mapping store does not support writes")
	}
	if err := mutator.Upsert(ctx, mapping); err != nil {
		return err
	}
	cacheKey, err := ChannelMappingCacheKey(mapping.ChannelID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
