package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/snagmail/snagmail/pkg/aggregate"
	"github.com/snagmail/snagmail/pkg/eventlog"
	"github.com/snagmail/snagmail/pkg/ingest"
	"github.com/snagmail/snagmail/pkg/readmodel"
)

// SubdomainService is the subdomain command surface the API drives.
type SubdomainService interface {
	Provision(ctx context.Context, tenantID, domainName string) (string, error)
	Suspend(ctx context.Context, id, reason string) error
	Reinstate(ctx context.Context, id string) error
	SetCatchAll(ctx context.Context, id string, enabled bool) error
	Delete(ctx context.Context, id string) error
}

// ChaosAddressService is the chaos address command surface.
type ChaosAddressService interface {
	Define(ctx context.Context, subdomainID, domainName, localPart, mode string) (string, error)
	ChangeMode(ctx context.Context, id, mode string) error
	Remove(ctx context.Context, id string) error
}

// APIKeyService is the API key command surface.
type APIKeyService interface {
	Issue(ctx context.Context, tenantID, label, digest string) (string, error)
	Revoke(ctx context.Context, id, reason string) error
}

// Resolver answers recipient routing probes.
type Resolver interface {
	Resolve(ctx context.Context, address string) (ingest.Decision, error)
}

// Services bundles the command services exposed by the admin API.
type Services struct {
	Subdomains SubdomainService
	Addresses  ChaosAddressService
	APIKeys    APIKeyService
	Resolver   Resolver
}

type subdomainRequest struct {
	TenantID   string `json:"tenantId"`
	DomainName string `json:"domainName"`
}

type chaosAddressRequest struct {
	SubdomainID string `json:"subdomainId"`
	DomainName  string `json:"domainName"`
	LocalPart   string `json:"localPart"`
	Mode        string `json:"mode"`
}

type apiKeyRequest struct {
	TenantID string `json:"tenantId"`
	Label    string `json:"label"`
	Digest   string `json:"digest"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type catchAllRequest struct {
	Enabled bool `json:"enabled"`
}

type createdResponse struct {
	ID string `json:"id"`
}

type decisionResponse struct {
	Accept      bool   `json:"accept"`
	Reason      string `json:"reason"`
	SubdomainID string `json:"subdomainId,omitempty"`
	TenantID    string `json:"tenantId,omitempty"`
	ChaosMode   string `json:"chaosMode,omitempty"`
}

// createSubdomain provisions a subdomain for a tenant.
func (c *controller) createSubdomain(w http.ResponseWriter, req *http.Request) {
	var body subdomainRequest
	if !c.decodeRequest(w, req, &body) {
		return
	}
	id, err := c.services.Subdomains.Provision(req.Context(), body.TenantID, body.DomainName)
	c.renderCommand(w, err, http.StatusCreated, createdResponse{ID: id})
}

// suspendSubdomain stops delivery for a subdomain.
func (c *controller) suspendSubdomain(w http.ResponseWriter, req *http.Request) {
	var body reasonRequest
	if !c.decodeRequest(w, req, &body) {
		return
	}
	err := c.services.Subdomains.Suspend(req.Context(), mux.Vars(req)["id"], body.Reason)
	c.renderCommand(w, err, http.StatusNoContent, nil)
}

// reinstateSubdomain lifts a suspension.
func (c *controller) reinstateSubdomain(w http.ResponseWriter, req *http.Request) {
	err := c.services.Subdomains.Reinstate(req.Context(), mux.Vars(req)["id"])
	c.renderCommand(w, err, http.StatusNoContent, nil)
}

// setCatchAll toggles catch-all delivery for a subdomain.
func (c *controller) setCatchAll(w http.ResponseWriter, req *http.Request) {
	var body catchAllRequest
	if !c.decodeRequest(w, req, &body) {
		return
	}
	err := c.services.Subdomains.SetCatchAll(req.Context(), mux.Vars(req)["id"], body.Enabled)
	c.renderCommand(w, err, http.StatusNoContent, nil)
}

// deleteSubdomain terminally removes a subdomain.
func (c *controller) deleteSubdomain(w http.ResponseWriter, req *http.Request) {
	err := c.services.Subdomains.Delete(req.Context(), mux.Vars(req)["id"])
	c.renderCommand(w, err, http.StatusNoContent, nil)
}

// createChaosAddress defines a misbehaving address under a subdomain.
func (c *controller) createChaosAddress(w http.ResponseWriter, req *http.Request) {
	var body chaosAddressRequest
	if !c.decodeRequest(w, req, &body) {
		return
	}
	id, err := c.services.Addresses.Define(
		req.Context(), body.SubdomainID, body.DomainName, body.LocalPart, body.Mode)
	c.renderCommand(w, err, http.StatusCreated, createdResponse{ID: id})
}

// changeChaosMode switches a chaos address to a different failure mode.
func (c *controller) changeChaosMode(w http.ResponseWriter, req *http.Request) {
	var body modeRequest
	if !c.decodeRequest(w, req, &body) {
		return
	}
	err := c.services.Addresses.ChangeMode(req.Context(), mux.Vars(req)["id"], body.Mode)
	c.renderCommand(w, err, http.StatusNoContent, nil)
}

// deleteChaosAddress removes a chaos address.
func (c *controller) deleteChaosAddress(w http.ResponseWriter, req *http.Request) {
	err := c.services.Addresses.Remove(req.Context(), mux.Vars(req)["id"])
	c.renderCommand(w, err, http.StatusNoContent, nil)
}

// createAPIKey issues a key for a tenant.  The digest arrives pre-hashed;
// raw key material never crosses this API.
func (c *controller) createAPIKey(w http.ResponseWriter, req *http.Request) {
	var body apiKeyRequest
	if !c.decodeRequest(w, req, &body) {
		return
	}
	id, err := c.services.APIKeys.Issue(req.Context(), body.TenantID, body.Label, body.Digest)
	c.renderCommand(w, err, http.StatusCreated, createdResponse{ID: id})
}

// revokeAPIKey revokes a key.
func (c *controller) revokeAPIKey(w http.ResponseWriter, req *http.Request) {
	var body reasonRequest
	if !c.decodeRequest(w, req, &body) {
		return
	}
	err := c.services.APIKeys.Revoke(req.Context(), mux.Vars(req)["id"], body.Reason)
	c.renderCommand(w, err, http.StatusNoContent, nil)
}

// resolveAddress runs a recipient through the ingestion resolver, exactly
// as the SMTP layer would.
func (c *controller) resolveAddress(w http.ResponseWriter, req *http.Request) {
	d, err := c.services.Resolver.Resolve(req.Context(), mux.Vars(req)["address"])
	if err != nil {
		if errors.Is(err, readmodel.ErrUnavailable) {
			renderJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
		c.logger.Error().Err(err).Msg("Resolve request failed")
		renderJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	renderJSON(w, http.StatusOK, decisionResponse{
		Accept:      d.Accept,
		Reason:      d.Reason,
		SubdomainID: d.SubdomainID,
		TenantID:    d.TenantID,
		ChaosMode:   d.ChaosMode,
	})
}

// decodeRequest parses a JSON request body, responding 400 on failure.
func (c *controller) decodeRequest(w http.ResponseWriter, req *http.Request, into interface{}) bool {
	if err := json.NewDecoder(req.Body).Decode(into); err != nil {
		renderJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return false
	}
	return true
}

// renderCommand maps a command outcome to an HTTP response.  Validation
// rejections from the domain layer are client errors; only storage faults
// are server errors.
func (c *controller) renderCommand(w http.ResponseWriter, err error, okStatus int, body interface{}) {
	switch {
	case err == nil:
		if body == nil {
			w.WriteHeader(okStatus)
			return
		}
		renderJSON(w, okStatus, body)
	case errors.Is(err, aggregate.ErrNotFound):
		renderJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, eventlog.ErrVersionConflict):
		renderJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, eventlog.ErrUnavailable), errors.Is(err, readmodel.ErrUnavailable):
		c.logger.Error().Err(err).Msg("Command failed on storage")
		renderJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		renderJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
}
