// Package apikey holds the tenant API key aggregate.
package apikey

import (
	"errors"

	"github.com/snagmail/snagmail/pkg/aggregate"
)

// Behavior rejection reasons.  Rejected transitions raise no events.
var (
	ErrAlreadyCreated = errors.New("api key already issued")
	ErrNotCreated     = errors.New("api key not issued")
	ErrEmptyDigest    = errors.New("api key digest required")
	ErrAlreadyRevoked = errors.New("api key already revoked")
)

// APIKey is the event-sourced API key aggregate.
type APIKey struct {
	aggregate.Base

	tenantID     string
	label        string
	digest       string
	revoked      bool
	revokeReason string
}

var _ aggregate.Root = &APIKey{}

// New returns an empty API key, ready for LoadFromHistory or Issue.
func New() *APIKey {
	return &APIKey{}
}

// TenantID returns the owning tenant.
func (k *APIKey) TenantID() string { return k.tenantID }

// Label returns the operator-facing key label.
func (k *APIKey) Label() string { return k.label }

// Digest returns the digest of the key secret.
func (k *APIKey) Digest() string { return k.digest }

// Revoked reports whether the key has been invalidated.
func (k *APIKey) Revoked() bool { return k.revoked }

// RevokeReason returns the reason recorded with the revocation.
func (k *APIKey) RevokeReason() string { return k.revokeReason }

// Issue creates the key.
func (k *APIKey) Issue(id, tenantID, label, digest string) error {
	if k.ID() != "" {
		return ErrAlreadyCreated
	}
	if digest == "" {
		return ErrEmptyDigest
	}
	aggregate.Raise(k, &Issued{ID: id, TenantID: tenantID, Label: label, Digest: digest})
	return nil
}

// Revoke permanently invalidates the key.
func (k *APIKey) Revoke(reason string) error {
	if k.ID() == "" {
		return ErrNotCreated
	}
	if k.revoked {
		return ErrAlreadyRevoked
	}
	aggregate.Raise(k, &Revoked{Reason: reason})
	return nil
}

// ApplyEvent mutates aggregate state from one event.
func (k *APIKey) ApplyEvent(ev aggregate.Event) {
	switch e := ev.(type) {
	case *Issued:
		k.SetID(e.ID)
		k.tenantID = e.TenantID
		k.label = e.Label
		k.digest = e.Digest
	case *Revoked:
		k.revoked = true
		k.revokeReason = e.Reason
	}
}
