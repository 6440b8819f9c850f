package lookups

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/snagmail/snagmail/pkg/config"
	"github.com/snagmail/snagmail/pkg/domain/apikey"
	"github.com/snagmail/snagmail/pkg/domain/chaosaddr"
	"github.com/snagmail/snagmail/pkg/domain/subdomain"
	"github.com/snagmail/snagmail/pkg/eventlog"
	"github.com/snagmail/snagmail/pkg/readmodel"
	rmmem "github.com/snagmail/snagmail/pkg/readmodel/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) readmodel.Store {
	t.Helper()
	store, err := rmmem.New(config.ReadModel{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// storedEvent wraps a domain event in its committed log form.
func storedEvent(t *testing.T, streamType, streamID, name string, payload interface{}) eventlog.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return eventlog.Event{StreamType: streamType, StreamID: streamID, Name: name, Data: data}
}

func getSubdomain(t *testing.T, store readmodel.Store, domain string) readmodel.SubdomainLookup {
	t.Helper()
	doc, err := store.Get(context.Background(), readmodel.SubdomainCollection, domain)
	require.NoError(t, err)
	var rec readmodel.SubdomainLookup
	require.NoError(t, json.Unmarshal(doc, &rec))
	return rec
}

func TestSubdomainProjectionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	proj := Subdomain{}

	created := storedEvent(t, subdomain.StreamType, "sd1", subdomain.CreatedName,
		subdomain.Created{ID: "sd1", TenantID: "t1", DomainName: "mail.example.com"})
	require.NoError(t, proj.Apply(ctx, store, created))

	rec := getSubdomain(t, store, "mail.example.com")
	assert.Equal(t, "sd1", rec.SubdomainID)
	assert.Equal(t, "t1", rec.TenantID)
	assert.False(t, rec.IsSuspended)
	assert.True(t, rec.CatchAll, "new subdomains default to catch-all")

	// Later events carry only the stream id; the index finds the document.
	suspended := storedEvent(t, subdomain.StreamType, "sd1", subdomain.SuspendedName,
		subdomain.Suspended{Reason: "abuse"})
	require.NoError(t, proj.Apply(ctx, store, suspended))
	rec = getSubdomain(t, store, "mail.example.com")
	assert.True(t, rec.IsSuspended)
	assert.Equal(t, "abuse", rec.SuspendReason)

	reinstated := storedEvent(t, subdomain.StreamType, "sd1", subdomain.ReinstatedName,
		subdomain.Reinstated{})
	require.NoError(t, proj.Apply(ctx, store, reinstated))
	rec = getSubdomain(t, store, "mail.example.com")
	assert.False(t, rec.IsSuspended)
	assert.Empty(t, rec.SuspendReason)

	catchAll := storedEvent(t, subdomain.StreamType, "sd1", subdomain.CatchAllChangedName,
		subdomain.CatchAllChanged{Enabled: false})
	require.NoError(t, proj.Apply(ctx, store, catchAll))
	assert.False(t, getSubdomain(t, store, "mail.example.com").CatchAll)

	deleted := storedEvent(t, subdomain.StreamType, "sd1", subdomain.DeletedName,
		subdomain.Deleted{})
	require.NoError(t, proj.Apply(ctx, store, deleted))
	_, err := store.Get(ctx, readmodel.SubdomainCollection, "mail.example.com")
	assert.ErrorIs(t, err, readmodel.ErrNoDocument)
	_, err = store.Get(ctx, readmodel.SubdomainIndexCollection, "sd1")
	assert.ErrorIs(t, err, readmodel.ErrNoDocument)
}

func TestSubdomainProjectionSkipsForeignEvents(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	proj := Subdomain{}

	foreign := storedEvent(t, apikey.StreamType, "k1", apikey.IssuedName,
		apikey.Issued{ID: "k1"})
	require.NoError(t, proj.Apply(ctx, store, foreign))

	err := store.Visit(ctx, readmodel.SubdomainCollection, func(string, []byte) bool {
		t.Fatal("no documents expected")
		return false
	})
	require.NoError(t, err)
}

func TestSubdomainProjectionMissingDocumentSkipped(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	proj := Subdomain{}

	// A patch event arriving without its created document (a gap the next
	// rebuild repairs) must not fail the save path.
	suspended := storedEvent(t, subdomain.StreamType, "sd9", subdomain.SuspendedName,
		subdomain.Suspended{Reason: "abuse"})
	assert.NoError(t, proj.Apply(ctx, store, suspended))
}

func TestChaosAddressProjectionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	proj := ChaosAddress{}

	created := storedEvent(t, chaosaddr.StreamType, "ca1", chaosaddr.CreatedName,
		chaosaddr.Created{
			ID:          "ca1",
			SubdomainID: "sd1",
			DomainName:  "mail.example.com",
			LocalPart:   "bounce",
			Mode:        chaosaddr.ModeReject,
		})
	require.NoError(t, proj.Apply(ctx, store, created))

	doc, err := store.Get(ctx, readmodel.ChaosCollection, "bounce@mail.example.com")
	require.NoError(t, err)
	var rec readmodel.ChaosAddressLookup
	require.NoError(t, json.Unmarshal(doc, &rec))
	assert.Equal(t, "ca1", rec.ChaosAddressID)
	assert.Equal(t, chaosaddr.ModeReject, rec.Mode)

	modeChanged := storedEvent(t, chaosaddr.StreamType, "ca1", chaosaddr.ModeChangedName,
		chaosaddr.ModeChanged{Mode: chaosaddr.ModeJumble})
	require.NoError(t, proj.Apply(ctx, store, modeChanged))
	doc, err = store.Get(ctx, readmodel.ChaosCollection, "bounce@mail.example.com")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(doc, &rec))
	assert.Equal(t, chaosaddr.ModeJumble, rec.Mode)

	deleted := storedEvent(t, chaosaddr.StreamType, "ca1", chaosaddr.DeletedName,
		chaosaddr.Deleted{})
	require.NoError(t, proj.Apply(ctx, store, deleted))
	_, err = store.Get(ctx, readmodel.ChaosCollection, "bounce@mail.example.com")
	assert.ErrorIs(t, err, readmodel.ErrNoDocument)
}

func TestAPIKeyProjectionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	proj := APIKey{}

	issued := storedEvent(t, apikey.StreamType, "k1", apikey.IssuedName,
		apikey.Issued{ID: "k1", TenantID: "t1", Label: "ci", Digest: "d1"})
	require.NoError(t, proj.Apply(ctx, store, issued))

	doc, err := store.Get(ctx, readmodel.APIKeyCollection, "k1")
	require.NoError(t, err)
	var rec readmodel.APIKeyLookup
	require.NoError(t, json.Unmarshal(doc, &rec))
	assert.Equal(t, "t1", rec.TenantID)
	assert.False(t, rec.Revoked)

	revoked := storedEvent(t, apikey.StreamType, "k1", apikey.RevokedName,
		apikey.Revoked{Reason: "leaked"})
	require.NoError(t, proj.Apply(ctx, store, revoked))
	doc, err = store.Get(ctx, readmodel.APIKeyCollection, "k1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(doc, &rec))
	assert.True(t, rec.Revoked)
}
