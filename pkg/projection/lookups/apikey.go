package lookups

import (
	"context"
	"encoding/json"

	"github.com/snagmail/snagmail/pkg/domain/apikey"
	"github.com/snagmail/snagmail/pkg/eventlog"
	"github.com/snagmail/snagmail/pkg/readmodel"
)

// APIKey projects API key events into the apikey_lookup collection, keyed
// by key id.
type APIKey struct{}

// Name implements projection.Projection.
func (APIKey) Name() string { return "apikey-lookup" }

// Collections implements projection.Projection.
func (APIKey) Collections() []string {
	return []string{readmodel.APIKeyCollection}
}

// Apply folds one committed event into the lookup collection.  Events
// outside the API key vocabulary are skipped.
func (APIKey) Apply(ctx context.Context, store readmodel.Store, ev eventlog.Event) error {
	if ev.StreamType != apikey.StreamType {
		return nil
	}
	switch ev.Name {
	case apikey.IssuedName:
		var e apikey.Issued
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return err
		}
		rec := readmodel.APIKeyLookup{
			APIKeyID: e.ID,
			TenantID: e.TenantID,
			Label:    e.Label,
			Digest:   e.Digest,
		}
		return putJSON(ctx, store, readmodel.APIKeyCollection, e.ID, rec)

	case apikey.RevokedName:
		doc, err := store.Get(ctx, readmodel.APIKeyCollection, ev.StreamID)
		if err != nil {
			if err == readmodel.ErrNoDocument {
				return nil
			}
			return err
		}
		var rec readmodel.APIKeyLookup
		if err := json.Unmarshal(doc, &rec); err != nil {
			return err
		}
		rec.Revoked = true
		return putJSON(ctx, store, readmodel.APIKeyCollection, ev.StreamID, rec)
	}
	// No handler for this event; skipped by design.
	return nil
}
