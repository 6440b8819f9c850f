package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/snagmail/snagmail/pkg/config"
	"github.com/snagmail/snagmail/pkg/lookup"
	"github.com/snagmail/snagmail/pkg/projection"
	"github.com/snagmail/snagmail/pkg/readmodel"
)

// Rebuilder is the projection engine surface the admin API drives.
type Rebuilder interface {
	Names() []string
	Rebuild(ctx context.Context, name string) (int, error)
}

// Lookups bundles the caches probed by the lookup endpoints.
type Lookups struct {
	Subdomains *lookup.SubdomainCache
	Addresses  *lookup.AddressCache
}

type controller struct {
	rebuilder Rebuilder
	lookups   Lookups
	services  Services
	logger    zerolog.Logger
}

type statusResponse struct {
	Version     string   `json:"version"`
	BuildDate   string   `json:"buildDate,omitempty"`
	Projections []string `json:"projections"`
}

type rebuildResponse struct {
	Projection string `json:"projection"`
	Streams    int    `json:"streams"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// status reports build info and the registered projections.
func (c *controller) status(w http.ResponseWriter, req *http.Request) {
	renderJSON(w, http.StatusOK, statusResponse{
		Version:     config.Version,
		BuildDate:   config.BuildDate,
		Projections: c.rebuilder.Names(),
	})
}

// rebuild truncates and replays one projection.  Safe against a live
// system: reads proceed against old data until the replay overwrites it.
func (c *controller) rebuild(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["name"]
	streams, err := c.rebuilder.Rebuild(req.Context(), name)
	switch {
	case errors.Is(err, projection.ErrUnknownProjection):
		renderJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, projection.ErrRebuildInProgress):
		renderJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case err != nil:
		c.logger.Error().Err(err).Str("projection", name).Msg("Rebuild request failed")
		renderJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		renderJSON(w, http.StatusOK, rebuildResponse{Projection: name, Streams: streams})
	}
}

// subdomainLookup probes the subdomain cache; ?refresh=1 forces a
// read-model query.
func (c *controller) subdomainLookup(w http.ResponseWriter, req *http.Request) {
	domain := mux.Vars(req)["domain"]
	refresh := req.URL.Query().Get("refresh") == "1"
	rec, err := c.lookups.Subdomains.Get(req.Context(), domain, refresh)
	c.renderLookup(w, req, rec == nil, err, func() interface{} { return rec })
}

// addressLookup probes the chaos address cache; ?refresh=1 forces a
// read-model query.
func (c *controller) addressLookup(w http.ResponseWriter, req *http.Request) {
	address := mux.Vars(req)["address"]
	refresh := req.URL.Query().Get("refresh") == "1"
	rec, err := c.lookups.Addresses.Get(req.Context(), address, refresh)
	c.renderLookup(w, req, rec == nil, err, func() interface{} { return rec })
}

func (c *controller) renderLookup(
	w http.ResponseWriter,
	req *http.Request,
	missing bool,
	err error,
	body func() interface{},
) {
	if err != nil {
		if errors.Is(err, readmodel.ErrUnavailable) {
			renderJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
		c.logger.Error().Err(err).Msg("Lookup request failed")
		renderJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if missing {
		http.NotFound(w, req)
		return
	}
	renderJSON(w, http.StatusOK, body())
}
