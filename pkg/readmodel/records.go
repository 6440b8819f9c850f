package readmodel

// Collection names.  Index collections map aggregate ids to the natural
// keys their lookup documents are stored under.
const (
	SubdomainCollection      = "subdomain_lookup"
	SubdomainIndexCollection = "subdomain_ids"
	ChaosCollection          = "chaos_lookup"
	ChaosIndexCollection     = "chaos_ids"
	APIKeyCollection         = "apikey_lookup"
)

// SubdomainLookup is the ingestion-path view of one subdomain, keyed by its
// domain name.
type SubdomainLookup struct {
	SubdomainID   string `json:"subdomainId"`
	TenantID      string `json:"tenantId"`
	DomainName    string `json:"domainName"`
	IsSuspended   bool   `json:"isSuspended"`
	SuspendReason string `json:"suspendReason,omitempty"`
	CatchAll      bool   `json:"catchAll"`
}

// ChaosAddressLookup is the ingestion-path view of one chaos address, keyed
// by "local@domain".
type ChaosAddressLookup struct {
	ChaosAddressID string `json:"chaosAddressId"`
	SubdomainID    string `json:"subdomainId"`
	DomainName     string `json:"domainName"`
	LocalPart      string `json:"localPart"`
	Mode           string `json:"mode"`
}

// APIKeyLookup is the verification view of one API key, keyed by key id.
type APIKeyLookup struct {
	APIKeyID string `json:"apiKeyId"`
	TenantID string `json:"tenantId"`
	Label    string `json:"label"`
	Digest   string `json:"digest"`
	Revoked  bool   `json:"revoked"`
}
