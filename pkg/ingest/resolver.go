// Package ingest resolves incoming SMTP recipients against the tenant
// lookup read models.  This is the hot path: one resolution per RCPT TO,
// served from the lookup caches with fall-through to the read-model store.
package ingest

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snagmail/snagmail/pkg/lookup"
	"github.com/snagmail/snagmail/pkg/policy"
)

// Decision reasons.
const (
	ReasonOK                 = "ok"
	ReasonInvalidAddress     = "invalid-address"
	ReasonUnknownDomain      = "unknown-domain"
	ReasonSubdomainSuspended = "subdomain-suspended"
	ReasonUnknownRecipient   = "unknown-recipient"
)

// Decision is the routing outcome for one recipient.
type Decision struct {
	Accept      bool
	Reason      string
	SubdomainID string
	TenantID    string
	// ChaosMode is non-empty when the recipient matches a chaos address;
	// the SMTP layer maps it to the corresponding wire behavior.
	ChaosMode string
}

// Resolver answers recipient routing queries from the lookup caches.
type Resolver struct {
	subdomains *lookup.SubdomainCache
	addresses  *lookup.AddressCache
	logger     zerolog.Logger
}

// NewResolver wires a resolver over both ingestion caches.
func NewResolver(subdomains *lookup.SubdomainCache, addresses *lookup.AddressCache) *Resolver {
	return &Resolver{
		subdomains: subdomains,
		addresses:  addresses,
		logger:     log.With().Str("module", "ingest").Logger(),
	}
}

// Resolve decides whether to accept a recipient address and how to route
// it.  An unparseable address or an unknown, suspended or deleted
// subdomain rejects; a chaos address match carries its mode; otherwise the
// subdomain's catch-all policy decides.  Only read-model storage failures
// return an error.
func (r *Resolver) Resolve(ctx context.Context, address string) (Decision, error) {
	key, err := policy.ParseAddressKey(address)
	if err != nil {
		r.logger.Debug().Err(err).Str("address", address).Msg("Rejecting unparseable recipient")
		return Decision{Reason: ReasonInvalidAddress}, nil
	}

	sd, err := r.subdomains.Get(ctx, key.Domain, false)
	if err != nil {
		return Decision{}, err
	}
	if sd == nil {
		return Decision{Reason: ReasonUnknownDomain}, nil
	}
	if sd.IsSuspended {
		return Decision{
			Reason:      ReasonSubdomainSuspended,
			SubdomainID: sd.SubdomainID,
			TenantID:    sd.TenantID,
		}, nil
	}

	ca, err := r.addresses.Get(ctx, key.String(), false)
	if err != nil {
		return Decision{}, err
	}
	if ca != nil {
		return Decision{
			Accept:      true,
			Reason:      ReasonOK,
			SubdomainID: sd.SubdomainID,
			TenantID:    sd.TenantID,
			ChaosMode:   ca.Mode,
		}, nil
	}

	if !sd.CatchAll {
		return Decision{
			Reason:      ReasonUnknownRecipient,
			SubdomainID: sd.SubdomainID,
			TenantID:    sd.TenantID,
		}, nil
	}
	return Decision{
		Accept:      true,
		Reason:      ReasonOK,
		SubdomainID: sd.SubdomainID,
		TenantID:    sd.TenantID,
	}, nil
}
