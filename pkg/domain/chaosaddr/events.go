package chaosaddr

import (
	"encoding/json"
	"fmt"

	"github.com/snagmail/snagmail/pkg/aggregate"
)

// StreamType identifies chaos address event streams in the log.
const StreamType = "chaos-address"

// Event wire names.
const (
	CreatedName     = "chaos-address.created"
	ModeChangedName = "chaos-address.mode-changed"
	DeletedName     = "chaos-address.deleted"
)

// Created records the definition of a chaos address under a subdomain.
type Created struct {
	ID          string `json:"id"`
	SubdomainID string `json:"subdomainId"`
	DomainName  string `json:"domainName"`
	LocalPart   string `json:"localPart"`
	Mode        string `json:"mode"`
}

// ModeChanged records a switch to a different failure mode.
type ModeChanged struct {
	Mode string `json:"mode"`
}

// Deleted records the terminal removal of a chaos address.
type Deleted struct{}

// EventName implements aggregate.Event.
func (Created) EventName() string     { return CreatedName }
func (ModeChanged) EventName() string { return ModeChangedName }
func (Deleted) EventName() string     { return DeletedName }

// DecodeEvent rebuilds a typed chaos address event from its stored form.
func DecodeEvent(name string, data []byte) (aggregate.Event, error) {
	var ev aggregate.Event
	switch name {
	case CreatedName:
		ev = &Created{}
	case ModeChangedName:
		ev = &ModeChanged{}
	case DeletedName:
		ev = &Deleted{}
	default:
		return nil, fmt.Errorf("unknown chaos address event %q", name)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
