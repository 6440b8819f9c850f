// Package lookups contains the ingestion-path lookup projections: pure
// folds from domain events into the natural-key documents the caches and
// the resolver query.
package lookups

import (
	"context"
	"encoding/json"

	"github.com/snagmail/snagmail/pkg/domain/subdomain"
	"github.com/snagmail/snagmail/pkg/eventlog"
	"github.com/snagmail/snagmail/pkg/readmodel"
)

// Subdomain projects subdomain events into the subdomain_lookup collection,
// keyed by domain name.  A side index maps aggregate ids to domain names so
// later events, which carry only the stream id, can locate their document.
type Subdomain struct{}

// Name implements projection.Projection.
func (Subdomain) Name() string { return "subdomain-lookup" }

// Collections implements projection.Projection.
func (Subdomain) Collections() []string {
	return []string{readmodel.SubdomainCollection, readmodel.SubdomainIndexCollection}
}

// Apply folds one committed event into the lookup collection.  Events
// outside the subdomain vocabulary are skipped.
func (Subdomain) Apply(ctx context.Context, store readmodel.Store, ev eventlog.Event) error {
	if ev.StreamType != subdomain.StreamType {
		return nil
	}
	switch ev.Name {
	case subdomain.CreatedName:
		var e subdomain.Created
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return err
		}
		rec := readmodel.SubdomainLookup{
			SubdomainID: e.ID,
			TenantID:    e.TenantID,
			DomainName:  e.DomainName,
			CatchAll:    true,
		}
		if err := store.Put(ctx, readmodel.SubdomainIndexCollection, e.ID, []byte(e.DomainName)); err != nil {
			return err
		}
		return putJSON(ctx, store, readmodel.SubdomainCollection, e.DomainName, rec)

	case subdomain.SuspendedName:
		var e subdomain.Suspended
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return err
		}
		return patchSubdomain(ctx, store, ev.StreamID, func(rec *readmodel.SubdomainLookup) {
			rec.IsSuspended = true
			rec.SuspendReason = e.Reason
		})

	case subdomain.ReinstatedName:
		return patchSubdomain(ctx, store, ev.StreamID, func(rec *readmodel.SubdomainLookup) {
			rec.IsSuspended = false
			rec.SuspendReason = ""
		})

	case subdomain.CatchAllChangedName:
		var e subdomain.CatchAllChanged
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return err
		}
		return patchSubdomain(ctx, store, ev.StreamID, func(rec *readmodel.SubdomainLookup) {
			rec.CatchAll = e.Enabled
		})

	case subdomain.DeletedName:
		name, err := store.Get(ctx, readmodel.SubdomainIndexCollection, ev.StreamID)
		if err != nil {
			if err == readmodel.ErrNoDocument {
				return nil
			}
			return err
		}
		if err := store.Delete(ctx, readmodel.SubdomainCollection, string(name)); err != nil {
			return err
		}
		return store.Delete(ctx, readmodel.SubdomainIndexCollection, ev.StreamID)
	}
	// No handler for this event; skipped by design.
	return nil
}

// patchSubdomain loads the lookup record addressed by aggregate id, applies
// mutate, and stores it back.  A missing record is skipped; a rebuild
// repairs any gap.
func patchSubdomain(
	ctx context.Context,
	store readmodel.Store,
	subdomainID string,
	mutate func(*readmodel.SubdomainLookup),
) error {
	name, err := store.Get(ctx, readmodel.SubdomainIndexCollection, subdomainID)
	if err != nil {
		if err == readmodel.ErrNoDocument {
			return nil
		}
		return err
	}
	doc, err := store.Get(ctx, readmodel.SubdomainCollection, string(name))
	if err != nil {
		if err == readmodel.ErrNoDocument {
			return nil
		}
		return err
	}
	var rec readmodel.SubdomainLookup
	if err := json.Unmarshal(doc, &rec); err != nil {
		return err
	}
	mutate(&rec)
	return putJSON(ctx, store, readmodel.SubdomainCollection, string(name), rec)
}

func putJSON(ctx context.Context, store readmodel.Store, collection, key string, rec interface{}) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return store.Put(ctx, collection, key, doc)
}
