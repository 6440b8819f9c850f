// Package admin provides the administrative HTTP API: projection rebuild,
// lookup probes and status.
package admin

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snagmail/snagmail/pkg/config"
)

// Server hosts the admin API on its own listener.
type Server struct {
	addr     string
	router   *mux.Router
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger

	// notify allows the server to trigger a full shutdown if it fails.
	notify chan error
}

// NewServer sets up the admin API routes.
func NewServer(cfg config.Web, rebuilder Rebuilder, lookups Lookups, services Services) *Server {
	s := &Server{
		addr:   cfg.Addr,
		router: mux.NewRouter(),
		logger: log.With().Str("module", "admin").Logger(),
		notify: make(chan error, 1),
	}
	c := &controller{rebuilder: rebuilder, lookups: lookups, services: services, logger: s.logger}
	api := s.router.PathPrefix("/api/v1/").Subrouter()
	api.HandleFunc("/status", c.status).Methods("GET").Name("Status")
	api.HandleFunc("/projections/{name}/rebuild", c.rebuild).Methods("POST").Name("ProjectionRebuild")
	api.HandleFunc("/lookup/subdomains/{domain}", c.subdomainLookup).Methods("GET").Name("SubdomainLookup")
	api.HandleFunc("/lookup/addresses/{address}", c.addressLookup).Methods("GET").Name("AddressLookup")
	api.HandleFunc("/resolve/{address}", c.resolveAddress).Methods("GET").Name("Resolve")
	api.HandleFunc("/subdomains", c.createSubdomain).Methods("POST").Name("SubdomainCreate")
	api.HandleFunc("/subdomains/{id}/suspend", c.suspendSubdomain).Methods("POST").Name("SubdomainSuspend")
	api.HandleFunc("/subdomains/{id}/reinstate", c.reinstateSubdomain).Methods("POST").Name("SubdomainReinstate")
	api.HandleFunc("/subdomains/{id}/catchall", c.setCatchAll).Methods("PUT").Name("SubdomainCatchAll")
	api.HandleFunc("/subdomains/{id}", c.deleteSubdomain).Methods("DELETE").Name("SubdomainDelete")
	api.HandleFunc("/chaos-addresses", c.createChaosAddress).Methods("POST").Name("ChaosAddressCreate")
	api.HandleFunc("/chaos-addresses/{id}/mode", c.changeChaosMode).Methods("PUT").Name("ChaosAddressMode")
	api.HandleFunc("/chaos-addresses/{id}", c.deleteChaosAddress).Methods("DELETE").Name("ChaosAddressDelete")
	api.HandleFunc("/apikeys", c.createAPIKey).Methods("POST").Name("APIKeyCreate")
	api.HandleFunc("/apikeys/{id}/revoke", c.revokeAPIKey).Methods("POST").Name("APIKeyRevoke")
	return s
}

// ServeHTTP dispatches a request through the admin routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(w, req)
}

// Notify returns a channel carrying a fatal server error, if one occurs.
func (s *Server) Notify() <-chan error {
	return s.notify
}

// Start begins listening for HTTP requests, blocking until ctx is canceled.
func (s *Server) Start(ctx context.Context) {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	// Not using ListenAndServe because it lacks a way to close the listener.
	s.logger.Info().Str("addr", s.addr).Msg("Admin API listening")
	var err error
	s.listener, err = net.Listen("tcp", s.addr)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to start admin listener")
		s.notify <- err
		return
	}
	go s.serve(ctx)

	<-ctx.Done()
	s.logger.Debug().Msg("Admin API shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutCtx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to shut down admin server")
	}
}

// serve runs the HTTP server until the listener closes.
func (s *Server) serve(ctx context.Context) {
	err := s.server.Serve(s.listener)
	select {
	case <-ctx.Done():
		// Normal shutdown.
	default:
		s.logger.Error().Err(err).Msg("Admin server failed")
		s.notify <- err
	}
}

// renderJSON writes a JSON response body.
func renderJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Str("module", "admin").Err(err).Msg("Failed to encode response")
	}
}
