// Package bus carries coarse-grained integration events between modules of
// one process.  Integration events are distinct from aggregate events: they
// describe state changes at the granularity other modules and caches react
// to, and carry the ids and natural keys subscribers need to invalidate
// precisely.
package bus

// Integration event names.
const (
	SubdomainStatusChangedName = "subdomain.status-changed"
	ChaosAddressUpdatedName    = "chaos-address.updated"
	APIKeyRevokedName          = "apikey.revoked"
)

// Event is an immutable cross-module notification.
type Event interface {
	EventName() string
}

// SubdomainStatusChanged announces that a subdomain's externally visible
// state (existence, suspension, catch-all) changed.
type SubdomainStatusChanged struct {
	SubdomainID string
	DomainName  string
	Suspended   bool
	Deleted     bool
}

// ChaosAddressUpdated announces that a chaos address was created, changed
// or removed.
type ChaosAddressUpdated struct {
	ChaosAddressID string
	SubdomainID    string
	DomainName     string
	AddressKey     string
	Deleted        bool
}

// APIKeyRevoked announces that an API key is no longer valid.
type APIKeyRevoked struct {
	APIKeyID string
	TenantID string
}

// EventName implements Event.
func (SubdomainStatusChanged) EventName() string { return SubdomainStatusChangedName }
func (ChaosAddressUpdated) EventName() string    { return ChaosAddressUpdatedName }
func (APIKeyRevoked) EventName() string          { return APIKeyRevokedName }
