// Package chaosaddr holds the chaos address aggregate: an address under a
// tenant subdomain that deliberately misbehaves during delivery, used for
// resilience testing of senders.
package chaosaddr

import (
	"errors"

	"github.com/snagmail/snagmail/pkg/aggregate"
	"github.com/snagmail/snagmail/pkg/policy"
)

// Failure modes a chaos address can present to a sender.
const (
	ModeReject    = "reject"    // permanent SMTP rejection
	ModeDefer     = "defer"     // temporary SMTP failure
	ModeBlackhole = "blackhole" // accept, then drop silently
	ModeJumble    = "jumble"    // accept, deliver corrupted
)

// Behavior rejection reasons.  Rejected transitions raise no events.
var (
	ErrAlreadyCreated = errors.New("chaos address already created")
	ErrNotCreated     = errors.New("chaos address not created")
	ErrInvalidLocal   = errors.New("invalid local part")
	ErrInvalidMode    = errors.New("invalid chaos mode")
	ErrUnchangedMode  = errors.New("chaos mode unchanged")
	ErrDeleted        = errors.New("chaos address deleted")
)

// ValidMode reports whether mode is a known failure mode.
func ValidMode(mode string) bool {
	switch mode {
	case ModeReject, ModeDefer, ModeBlackhole, ModeJumble:
		return true
	}
	return false
}

// ChaosAddress is the event-sourced chaos address aggregate.
type ChaosAddress struct {
	aggregate.Base

	subdomainID string
	domainName  string
	localPart   string
	mode        string
	deleted     bool
}

var _ aggregate.Root = &ChaosAddress{}

// New returns an empty chaos address, ready for LoadFromHistory or Create.
func New() *ChaosAddress {
	return &ChaosAddress{}
}

// SubdomainID returns the owning subdomain.
func (c *ChaosAddress) SubdomainID() string { return c.subdomainID }

// DomainName returns the owning subdomain's domain name.
func (c *ChaosAddress) DomainName() string { return c.domainName }

// LocalPart returns the canonical local part.
func (c *ChaosAddress) LocalPart() string { return c.localPart }

// Mode returns the current failure mode.
func (c *ChaosAddress) Mode() string { return c.mode }

// Deleted reports whether the address was terminally removed.
func (c *ChaosAddress) Deleted() bool { return c.deleted }

// AddressKey returns the natural lookup key, "local@domain".
func (c *ChaosAddress) AddressKey() string {
	return policy.AddressKey{LocalPart: c.localPart, Domain: c.domainName}.String()
}

// Create defines the chaos address.  The local part is canonicalized the
// same way the ingestion path canonicalizes recipients, so lookups match.
func (c *ChaosAddress) Create(id, subdomainID, domainName, localPart, mode string) error {
	if c.ID() != "" {
		return ErrAlreadyCreated
	}
	if !ValidMode(mode) {
		return ErrInvalidMode
	}
	local, err := policy.CanonicalLocalPart(localPart)
	if err != nil {
		return ErrInvalidLocal
	}
	aggregate.Raise(c, &Created{
		ID:          id,
		SubdomainID: subdomainID,
		DomainName:  domainName,
		LocalPart:   local,
		Mode:        mode,
	})
	return nil
}

// ChangeMode switches the failure mode.
func (c *ChaosAddress) ChangeMode(mode string) error {
	if c.ID() == "" {
		return ErrNotCreated
	}
	if c.deleted {
		return ErrDeleted
	}
	if !ValidMode(mode) {
		return ErrInvalidMode
	}
	if c.mode == mode {
		return ErrUnchangedMode
	}
	aggregate.Raise(c, &ModeChanged{Mode: mode})
	return nil
}

// Delete terminally removes the chaos address.
func (c *ChaosAddress) Delete() error {
	if c.ID() == "" {
		return ErrNotCreated
	}
	if c.deleted {
		return ErrDeleted
	}
	aggregate.Raise(c, &Deleted{})
	return nil
}

// ApplyEvent mutates aggregate state from one event.
func (c *ChaosAddress) ApplyEvent(ev aggregate.Event) {
	switch e := ev.(type) {
	case *Created:
		c.SetID(e.ID)
		c.subdomainID = e.SubdomainID
		c.domainName = e.DomainName
		c.localPart = e.LocalPart
		c.mode = e.Mode
	case *ModeChanged:
		c.mode = e.Mode
	case *Deleted:
		c.deleted = true
	}
}
