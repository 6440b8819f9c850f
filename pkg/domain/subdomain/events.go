package subdomain

import (
	"encoding/json"
	"fmt"

	"github.com/snagmail/snagmail/pkg/aggregate"
)

// StreamType identifies subdomain event streams in the log.
const StreamType = "subdomain"

// Event wire names.
const (
	CreatedName         = "subdomain.created"
	SuspendedName       = "subdomain.suspended"
	ReinstatedName      = "subdomain.reinstated"
	CatchAllChangedName = "subdomain.catchall-changed"
	DeletedName         = "subdomain.deleted"
)

// Created records the provisioning of a tenant mail subdomain.
type Created struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	DomainName string `json:"domainName"`
}

// Suspended records an administrative suspension.
type Suspended struct {
	Reason string `json:"reason"`
}

// Reinstated records the lifting of a suspension.
type Reinstated struct{}

// CatchAllChanged records a toggle of catch-all delivery.
type CatchAllChanged struct {
	Enabled bool `json:"enabled"`
}

// Deleted records the terminal removal of a subdomain.
type Deleted struct{}

// EventName implements aggregate.Event.
func (Created) EventName() string         { return CreatedName }
func (Suspended) EventName() string       { return SuspendedName }
func (Reinstated) EventName() string      { return ReinstatedName }
func (CatchAllChanged) EventName() string { return CatchAllChangedName }
func (Deleted) EventName() string         { return DeletedName }

// DecodeEvent rebuilds a typed subdomain event from its stored form.
func DecodeEvent(name string, data []byte) (aggregate.Event, error) {
	var ev aggregate.Event
	switch name {
	case CreatedName:
		ev = &Created{}
	case SuspendedName:
		ev = &Suspended{}
	case ReinstatedName:
		ev = &Reinstated{}
	case CatchAllChangedName:
		ev = &CatchAllChanged{}
	case DeletedName:
		ev = &Deleted{}
	default:
		return nil, fmt.Errorf("unknown subdomain event %q", name)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
