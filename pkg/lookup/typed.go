package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/snagmail/snagmail/pkg/config"
	"github.com/snagmail/snagmail/pkg/readmodel"
)

// SubdomainCache fronts the subdomain_lookup collection, keyed by domain
// name.
type SubdomainCache struct {
	*Cache[readmodel.SubdomainLookup]
}

// AddressCache fronts the chaos_lookup collection, keyed by "local@domain".
type AddressCache struct {
	*Cache[readmodel.ChaosAddressLookup]
}

// NewSubdomainCache builds the subdomain cache over the read-model store.
func NewSubdomainCache(rdb *redis.Client, cfg config.Cache, store readmodel.Store) *SubdomainCache {
	return &SubdomainCache{
		Cache: NewCache(rdb, cfg.Prefix+":sd", cfg.TTL, cfg.ScanCount,
			collectionSource[readmodel.SubdomainLookup](store, readmodel.SubdomainCollection)),
	}
}

// NewAddressCache builds the chaos address cache over the read-model store.
func NewAddressCache(rdb *redis.Client, cfg config.Cache, store readmodel.Store) *AddressCache {
	return &AddressCache{
		Cache: NewCache(rdb, cfg.Prefix+":ca", cfg.TTL, cfg.ScanCount,
			collectionSource[readmodel.ChaosAddressLookup](store, readmodel.ChaosCollection)),
	}
}

// InvalidateSubdomain removes every cached address under one domain name,
// used when a single subdomain write affects all of its local parts.
func (c *AddressCache) InvalidateSubdomain(ctx context.Context, domainName string) {
	c.InvalidatePattern(ctx, "*@"+domainName)
}

// collectionSource adapts one read-model collection into a cache Source.
// Absent documents are reported as a nil value, not an error.
func collectionSource[V any](store readmodel.Store, collection string) Source[V] {
	return func(ctx context.Context, key string) (*V, error) {
		doc, err := store.Get(ctx, collection, key)
		if err != nil {
			if errors.Is(err, readmodel.ErrNoDocument) {
				return nil, nil
			}
			return nil, err
		}
		v := new(V)
		if err := json.Unmarshal(doc, v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// invalidateTimeout bounds invalidation calls made from bus listeners,
// which carry no request context.
const invalidateTimeout = 5 * time.Second
