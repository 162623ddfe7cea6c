package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getgrove/grove/pkg/inspect"
	"github.com/getgrove/grove/pkg/logging"
	"github.com/getgrove/grove/pkg/store"
)

// API serves a store's control plane over HTTP.
type API struct {
	store      *store.Store
	httpServer *http.Server
	port       int
	startTime  time.Time
	version    string
	log        *slog.Logger
}

// Option configures the API.
type Option func(*API)

// WithVersion sets the version string reported by the status endpoint.
func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// New creates an API for the given store.
func New(s *store.Store, port int, opts ...Option) *API {
	a := &API{
		store:   s,
		port:    port,
		version: "dev",
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	mux := http.NewServeMux()
	a.registerRoutes(mux)
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

// registerRoutes sets up all API routes.
func (a *API) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /status", a.handleStatus)

	mux.HandleFunc("GET /state", a.handleGetState)
	mux.HandleFunc("PUT /state", a.handleRehydrate)

	mux.HandleFunc("POST /operations/{name}", a.handleRunOperation)
	mux.HandleFunc("GET /derived/{name}", a.handleGetDerived)

	mux.HandleFunc("GET /log", a.handleGetLog)
	mux.HandleFunc("POST /replay", a.handleReplay)

	mux.Handle("GET /feed", inspect.NewWSHandler(a.store.Feed(), a.log))
	mux.Handle("GET /feed/sse", inspect.NewSSEHandler(a.store.Feed(), a.log))

	if m := a.store.Metrics(); m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}
}

// Port returns the port the API listens on.
func (a *API) Port() int { return a.port }

// Handler returns the API's HTTP handler, for mounting into an
// existing server.
func (a *API) Handler() http.Handler { return a.httpServer.Handler }

// Start begins serving in the background.
func (a *API) Start() error {
	a.startTime = time.Now()
	a.log.Info("starting store admin API", "port", a.port)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("store admin API error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (a *API) Stop(ctx context.Context) error {
	a.log.Info("stopping store admin API")
	return a.httpServer.Shutdown(ctx)
}

// Uptime returns how long the API has been serving.
func (a *API) Uptime() string {
	if a.startTime.IsZero() {
		return "0s"
	}
	return time.Since(a.startTime).Round(time.Second).String()
}
