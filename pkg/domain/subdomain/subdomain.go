// Package subdomain holds the tenant mail subdomain aggregate: the
// consistency boundary for provisioning, suspension and catch-all policy of
// one "mail.example.com" style domain.
package subdomain

import (
	"errors"
	"strings"

	"github.com/snagmail/snagmail/pkg/aggregate"
	"github.com/snagmail/snagmail/pkg/policy"
)

// Behavior rejection reasons.  Rejected transitions raise no events.
var (
	ErrAlreadyCreated    = errors.New("subdomain already created")
	ErrNotCreated        = errors.New("subdomain not created")
	ErrInvalidDomainName = errors.New("invalid domain name")
	ErrAlreadySuspended  = errors.New("subdomain already suspended")
	ErrNotSuspended      = errors.New("subdomain not suspended")
	ErrDeleted           = errors.New("subdomain deleted")
)

// Subdomain is the event-sourced subdomain aggregate.  All state is built
// in ApplyEvent; behavior methods only validate and raise.
type Subdomain struct {
	aggregate.Base

	tenantID      string
	domainName    string
	suspended     bool
	suspendReason string
	catchAll      bool
	deleted       bool
}

var _ aggregate.Root = &Subdomain{}

// New returns an empty subdomain, ready for LoadFromHistory or Create.
func New() *Subdomain {
	return &Subdomain{}
}

// TenantID returns the owning tenant.
func (s *Subdomain) TenantID() string { return s.tenantID }

// DomainName returns the lowercased domain name.
func (s *Subdomain) DomainName() string { return s.domainName }

// Suspended reports whether delivery is suspended.
func (s *Subdomain) Suspended() bool { return s.suspended }

// SuspendReason returns the reason recorded with the latest suspension.
func (s *Subdomain) SuspendReason() string { return s.suspendReason }

// CatchAll reports whether unmatched local parts are accepted.
func (s *Subdomain) CatchAll() bool { return s.catchAll }

// Deleted reports whether the subdomain was terminally removed.
func (s *Subdomain) Deleted() bool { return s.deleted }

// Create provisions the subdomain.  The domain name must pass RFC1035
// validation and is stored lowercased.
func (s *Subdomain) Create(id, tenantID, domainName string) error {
	if s.ID() != "" {
		return ErrAlreadyCreated
	}
	if !policy.ValidDomainPart(domainName) {
		return ErrInvalidDomainName
	}
	aggregate.Raise(s, &Created{
		ID:         id,
		TenantID:   tenantID,
		DomainName: strings.ToLower(domainName),
	})
	return nil
}

// Suspend stops delivery for the subdomain.
func (s *Subdomain) Suspend(reason string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if s.suspended {
		return ErrAlreadySuspended
	}
	aggregate.Raise(s, &Suspended{Reason: reason})
	return nil
}

// Reinstate lifts a suspension.
func (s *Subdomain) Reinstate() error {
	if err := s.mutable(); err != nil {
		return err
	}
	if !s.suspended {
		return ErrNotSuspended
	}
	aggregate.Raise(s, &Reinstated{})
	return nil
}

// SetCatchAll toggles catch-all delivery.  Setting the current value is a
// no-op success that raises nothing.
func (s *Subdomain) SetCatchAll(enabled bool) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if s.catchAll == enabled {
		return nil
	}
	aggregate.Raise(s, &CatchAllChanged{Enabled: enabled})
	return nil
}

// Delete terminally removes the subdomain.
func (s *Subdomain) Delete() error {
	if err := s.mutable(); err != nil {
		return err
	}
	aggregate.Raise(s, &Deleted{})
	return nil
}

func (s *Subdomain) mutable() error {
	if s.ID() == "" {
		return ErrNotCreated
	}
	if s.deleted {
		return ErrDeleted
	}
	return nil
}

// ApplyEvent mutates aggregate state from one event.  Events outside the
// subdomain vocabulary indicate a programming error and are ignored.
func (s *Subdomain) ApplyEvent(ev aggregate.Event) {
	switch e := ev.(type) {
	case *Created:
		s.SetID(e.ID)
		s.tenantID = e.TenantID
		s.domainName = e.DomainName
		s.catchAll = true
	case *Suspended:
		s.suspended = true
		s.suspendReason = e.Reason
	case *Reinstated:
		s.suspended = false
		s.suspendReason = ""
	case *CatchAllChanged:
		s.catchAll = e.Enabled
	case *Deleted:
		s.deleted = true
	}
}
