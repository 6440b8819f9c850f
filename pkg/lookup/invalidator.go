package lookup

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snagmail/snagmail/pkg/bus"
)

// Invalidator subscribes to the integration event bus and maps each coarse
// write-side notification to cache invalidations.  Handlers are idempotent
// under at-least-once delivery: invalidating something already absent is a
// no-op success, and unexpected failures are logged and swallowed so a
// transient problem only means a temporarily stale entry, self-healing on
// the next write or forced refresh.
type Invalidator struct {
	subdomains *SubdomainCache
	addresses  *AddressCache
	logger     zerolog.Logger
}

var _ bus.Listener = &Invalidator{}

// NewInvalidator wires the invalidation subscriber over both caches.
func NewInvalidator(subdomains *SubdomainCache, addresses *AddressCache) *Invalidator {
	return &Invalidator{
		subdomains: subdomains,
		addresses:  addresses,
		logger:     log.With().Str("module", "lookup").Logger(),
	}
}

// Receive implements bus.Listener.  It always returns nil; an invalidation
// failure must not unsubscribe or crash the listener.
func (i *Invalidator) Receive(ev bus.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()
	switch e := ev.(type) {
	case bus.SubdomainStatusChanged:
		i.logger.Debug().Str("domain", e.DomainName).Msg("Invalidating subdomain cache entries")
		i.subdomains.Invalidate(ctx, e.DomainName)
		// A status change affects every address under the subdomain.
		i.addresses.InvalidateSubdomain(ctx, e.DomainName)
	case bus.ChaosAddressUpdated:
		i.logger.Debug().Str("address", e.AddressKey).Msg("Invalidating chaos address cache entry")
		i.addresses.Invalidate(ctx, e.AddressKey)
	default:
		// Not a cache-relevant event.
	}
	return nil
}
