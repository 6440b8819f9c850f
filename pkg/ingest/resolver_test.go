package ingest_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/snagmail/snagmail/pkg/bus"
	"github.com/snagmail/snagmail/pkg/config"
	"github.com/snagmail/snagmail/pkg/domain/chaosaddr"
	"github.com/snagmail/snagmail/pkg/domain/subdomain"
	elmem "github.com/snagmail/snagmail/pkg/eventlog/mem"
	"github.com/snagmail/snagmail/pkg/ingest"
	"github.com/snagmail/snagmail/pkg/lookup"
	"github.com/snagmail/snagmail/pkg/projection"
	"github.com/snagmail/snagmail/pkg/projection/lookups"
	rmmem "github.com/snagmail/snagmail/pkg/readmodel/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture wires the full write-to-read path: domain services appending to
// the event log, inline projections into the read model, caches over Redis,
// and the bus-driven cache invalidator.
type fixture struct {
	hub        *bus.Hub
	subdomains *subdomain.Service
	addresses  *chaosaddr.Service
	resolver   *ingest.Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	elog, err := elmem.New(config.EventLog{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = elog.Close() })
	store, err := rmmem.New(config.ReadModel{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	engine := projection.NewEngine(elog, store, lookups.All()...)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := config.Cache{Prefix: "snagmail", ScanCount: 10}
	subdomainCache := lookup.NewSubdomainCache(rdb, cfg, store)
	addressCache := lookup.NewAddressCache(rdb, cfg, store)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := bus.New(10)
	go hub.Start(ctx)
	hub.AddListener(lookup.NewInvalidator(subdomainCache, addressCache))

	return &fixture{
		hub:        hub,
		subdomains: subdomain.NewService(elog, engine, hub),
		addresses:  chaosaddr.NewService(elog, engine, hub),
		resolver:   ingest.NewResolver(subdomainCache, addressCache),
	}
}

// resolve waits for pending invalidations, then resolves one recipient.
func (f *fixture) resolve(t *testing.T, address string) ingest.Decision {
	t.Helper()
	f.hub.Sync()
	d, err := f.resolver.Resolve(context.Background(), address)
	require.NoError(t, err)
	return d
}

func TestResolveUnknownDomain(t *testing.T) {
	f := newFixture(t)
	d := f.resolve(t, "user@nowhere.example.com")
	assert.False(t, d.Accept)
	assert.Equal(t, ingest.ReasonUnknownDomain, d.Reason)
}

func TestResolveInvalidAddress(t *testing.T) {
	f := newFixture(t)
	d := f.resolve(t, "not an address")
	assert.False(t, d.Accept)
	assert.Equal(t, ingest.ReasonInvalidAddress, d.Reason)
}

func TestResolveCatchAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id, err := f.subdomains.Provision(ctx, "t1", "mail.example.com")
	require.NoError(t, err)

	// Any local part is accepted while catch-all is on.
	d := f.resolve(t, "Anyone+Label@MAIL.example.com")
	assert.True(t, d.Accept)
	assert.Equal(t, ingest.ReasonOK, d.Reason)
	assert.Equal(t, id, d.SubdomainID)
	assert.Equal(t, "t1", d.TenantID)
	assert.Empty(t, d.ChaosMode)

	// With catch-all off, unmatched local parts are rejected.
	require.NoError(t, f.subdomains.SetCatchAll(ctx, id, false))
	d = f.resolve(t, "anyone@mail.example.com")
	assert.False(t, d.Accept)
	assert.Equal(t, ingest.ReasonUnknownRecipient, d.Reason)
}

func TestResolveChaosAddress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id, err := f.subdomains.Provision(ctx, "t1", "mail.example.com")
	require.NoError(t, err)
	caID, err := f.addresses.Define(ctx, id, "mail.example.com", "Bounce", chaosaddr.ModeReject)
	require.NoError(t, err)

	// The chaos address matches through the same canonicalization as the
	// write side (case, plus-suffix).
	d := f.resolve(t, "BOUNCE+anything@mail.example.com")
	assert.True(t, d.Accept)
	assert.Equal(t, chaosaddr.ModeReject, d.ChaosMode)

	// A mode change invalidates the cached entry.
	require.NoError(t, f.addresses.ChangeMode(ctx, caID, chaosaddr.ModeBlackhole))
	d = f.resolve(t, "bounce@mail.example.com")
	assert.Equal(t, chaosaddr.ModeBlackhole, d.ChaosMode)

	// Removing it falls back to catch-all acceptance.
	require.NoError(t, f.addresses.Remove(ctx, caID))
	d = f.resolve(t, "bounce@mail.example.com")
	assert.True(t, d.Accept)
	assert.Empty(t, d.ChaosMode)
}

func TestResolveSuspendInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id, err := f.subdomains.Provision(ctx, "t1", "mail.example.com")
	require.NoError(t, err)

	// Populate the cache with the live subdomain.
	d := f.resolve(t, "user@mail.example.com")
	require.True(t, d.Accept)

	// Suspension must be visible on the very next resolution, via the
	// integration event evicting the cached entry.
	require.NoError(t, f.subdomains.Suspend(ctx, id, "payment overdue"))
	d = f.resolve(t, "user@mail.example.com")
	assert.False(t, d.Accept)
	assert.Equal(t, ingest.ReasonSubdomainSuspended, d.Reason)

	// Reinstating restores delivery.
	require.NoError(t, f.subdomains.Reinstate(ctx, id))
	d = f.resolve(t, "user@mail.example.com")
	assert.True(t, d.Accept)
}

func TestResolveDeletedSubdomain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id, err := f.subdomains.Provision(ctx, "t1", "mail.example.com")
	require.NoError(t, err)

	d := f.resolve(t, "user@mail.example.com")
	require.True(t, d.Accept)

	require.NoError(t, f.subdomains.Delete(ctx, id))
	d = f.resolve(t, "user@mail.example.com")
	assert.False(t, d.Accept)
	assert.Equal(t, ingest.ReasonUnknownDomain, d.Reason)
}
