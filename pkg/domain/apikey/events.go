package apikey

import (
	"encoding/json"
	"fmt"

	"github.com/snagmail/snagmail/pkg/aggregate"
)

// StreamType identifies API key event streams in the log.
const StreamType = "apikey"

// Event wire names.
const (
	IssuedName  = "apikey.issued"
	RevokedName = "apikey.revoked"
)

// Issued records the creation of a tenant API key.  Only the digest of the
// secret is kept.
type Issued struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Label    string `json:"label"`
	Digest   string `json:"digest"`
}

// Revoked records the permanent invalidation of a key.
type Revoked struct {
	Reason string `json:"reason"`
}

// EventName implements aggregate.Event.
func (Issued) EventName() string  { return IssuedName }
func (Revoked) EventName() string { return RevokedName }

// DecodeEvent rebuilds a typed API key event from its stored form.
func DecodeEvent(name string, data []byte) (aggregate.Event, error) {
	var ev aggregate.Event
	switch name {
	case IssuedName:
		ev = &Issued{}
	case RevokedName:
		ev = &Revoked{}
	default:
		return nil, fmt.Errorf("unknown apikey event %q", name)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
