// Package server implements the SCIM 1.0 resource server (§4.7): a
// gorilla/mux router dispatching to a base.Backend, negotiating between
// the JSON and XML codecs and instrumented with Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	logger "github.com/juju/loggo"

	"github.com/scimdrift/scimd/base"
	"github.com/scimdrift/scimd/conf"
	"github.com/scimdrift/scimd/schema"
)

var log = logger.GetLogger("scimd.server")

const apiBase = "/v1"

// Server wires a schema.Registry and base.Backend into an HTTP server
// implementing the SCIM 1.0 REST API.
type Server struct {
	reg     *schema.Registry
	backend base.Backend
	cfg     *conf.ServerConfig
	router  *mux.Router
	metrics *Metrics
	httpSrv *http.Server
}

// New builds a Server; call Router (for tests) or ListenAndServe.
func New(reg *schema.Registry, backend base.Backend, cfg *conf.ServerConfig) *Server {
	s := &Server{reg: reg, backend: backend, cfg: cfg, metrics: NewMetrics()}
	s.router = s.buildRouter()
	return s
}

// Router exposes the underlying http.Handler, primarily for httptest.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) buildRouter() *mux.Router {
	router := mux.NewRouter()
	router.StrictSlash(true)
	router.Use(s.metricsMiddleware)
	router.Use(requestIDMiddleware)
	router.Use(methodOverrideMiddleware)

	router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	api := router.PathPrefix(apiBase).Subrouter()

	api.HandleFunc("/ServiceProviderConfig", s.handleServiceProviderConfig).Methods("GET")
	api.HandleFunc("/ResourceTypes", s.handleResourceTypes).Methods("GET")
	api.HandleFunc("/ResourceTypes/{name}", s.handleResourceTypes).Methods("GET")
	api.HandleFunc("/Schemas", s.handleSchemas).Methods("GET")
	api.HandleFunc("/Schemas/{id}", s.handleSchemas).Methods("GET")
	api.HandleFunc("/.search", s.authenticated(s.handleGlobalSearch)).Methods("POST")

	for _, rt := range s.reg.ResourceTypes() {
		ep := rt.Endpoint
		api.HandleFunc(ep, s.authenticated(s.handleCollection(rt))).Methods("GET", "POST")
		api.HandleFunc(ep+"/.search", s.authenticated(s.handleResourceTypeSearch(rt))).Methods("POST")
		api.HandleFunc(ep+"/{id}", s.authenticated(s.handleItem(rt))).Methods("GET", "PUT", "PATCH", "DELETE")
	}

	return router
}

// ListenAndServe starts the HTTP server using the configured listen
// address and request timeout.
func (s *Server) ListenAndServe() error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.router,
		ReadTimeout:  s.cfg.RequestTimeout(),
		WriteTimeout: s.cfg.RequestTimeout(),
	}
	log.Infof("server: listening on %s", s.cfg.ListenAddress)
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// requestIDMiddleware stamps every request with an X-Request-Id (echoing
// one supplied by the caller, otherwise minting a fresh one) so log lines
// for the same request can be correlated.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", rid)
		next.ServeHTTP(w, r)
	})
}

func methodOverrideMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if override := r.Header.Get("X-HTTP-Method-Override"); override != "" {
			r.Method = override
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := mux.CurrentRoute(r)
		path := r.URL.Path
		if route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		s.metrics.Observe(path, r.Method, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}
