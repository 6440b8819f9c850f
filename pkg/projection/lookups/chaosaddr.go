package lookups

import (
	"context"
	"encoding/json"

	"github.com/snagmail/snagmail/pkg/domain/chaosaddr"
	"github.com/snagmail/snagmail/pkg/eventlog"
	"github.com/snagmail/snagmail/pkg/policy"
	"github.com/snagmail/snagmail/pkg/readmodel"
)

// ChaosAddress projects chaos address events into the chaos_lookup
// collection, keyed by "local@domain".
type ChaosAddress struct{}

// Name implements projection.Projection.
func (ChaosAddress) Name() string { return "chaos-lookup" }

// Collections implements projection.Projection.
func (ChaosAddress) Collections() []string {
	return []string{readmodel.ChaosCollection, readmodel.ChaosIndexCollection}
}

// Apply folds one committed event into the lookup collection.  Events
// outside the chaos address vocabulary are skipped.
func (ChaosAddress) Apply(ctx context.Context, store readmodel.Store, ev eventlog.Event) error {
	if ev.StreamType != chaosaddr.StreamType {
		return nil
	}
	switch ev.Name {
	case chaosaddr.CreatedName:
		var e chaosaddr.Created
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return err
		}
		key := policy.AddressKey{LocalPart: e.LocalPart, Domain: e.DomainName}.String()
		rec := readmodel.ChaosAddressLookup{
			ChaosAddressID: e.ID,
			SubdomainID:    e.SubdomainID,
			DomainName:     e.DomainName,
			LocalPart:      e.LocalPart,
			Mode:           e.Mode,
		}
		if err := store.Put(ctx, readmodel.ChaosIndexCollection, e.ID, []byte(key)); err != nil {
			return err
		}
		return putJSON(ctx, store, readmodel.ChaosCollection, key, rec)

	case chaosaddr.ModeChangedName:
		var e chaosaddr.ModeChanged
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return err
		}
		return patchChaos(ctx, store, ev.StreamID, func(rec *readmodel.ChaosAddressLookup) {
			rec.Mode = e.Mode
		})

	case chaosaddr.DeletedName:
		key, err := store.Get(ctx, readmodel.ChaosIndexCollection, ev.StreamID)
		if err != nil {
			if err == readmodel.ErrNoDocument {
				return nil
			}
			return err
		}
		if err := store.Delete(ctx, readmodel.ChaosCollection, string(key)); err != nil {
			return err
		}
		return store.Delete(ctx, readmodel.ChaosIndexCollection, ev.StreamID)
	}
	// No handler for this event; skipped by design.
	return nil
}

func patchChaos(
	ctx context.Context,
	store readmodel.Store,
	chaosAddressID string,
	mutate func(*readmodel.ChaosAddressLookup),
) error {
	key, err := store.Get(ctx, readmodel.ChaosIndexCollection, chaosAddressID)
	if err != nil {
		if err == readmodel.ErrNoDocument {
			return nil
		}
		return err
	}
	doc, err := store.Get(ctx, readmodel.ChaosCollection, string(key))
	if err != nil {
		if err == readmodel.ErrNoDocument {
			return nil
		}
		return err
	}
	var rec readmodel.ChaosAddressLookup
	if err := json.Unmarshal(doc, &rec); err != nil {
		return err
	}
	mutate(&rec)
	return putJSON(ctx, store, readmodel.ChaosCollection, string(key), rec)
}
