// Package novix wires the marketplace session registry and interaction
// dispatcher to the HTTP and WebSocket surfaces.
package novix

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/novix-ai/novix/pkg/novix/agent"
	"github.com/novix-ai/novix/pkg/novix/config"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/executor"
	"github.com/novix-ai/novix/pkg/novix/llm"
	"github.com/novix-ai/novix/pkg/novix/marketplace"
	"github.com/novix-ai/novix/pkg/novix/metrics"
	"github.com/novix-ai/novix/pkg/novix/session"
	"github.com/novix-ai/novix/pkg/novix/tools"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
)

// App is the marketplace backend: catalog, session registry, dispatcher and
// the surfaces exposing them.
type App struct {
	Settings   *config.Settings
	Catalog    *marketplace.Store
	Registry   *session.Registry
	Dispatcher *executor.Dispatcher
	Metrics    *metrics.Metrics
	Tools      []tools.Tool

	gatherer  prometheus.Gatherer
	log       logr.Logger
	router    *mux.Router
	ownsStore bool

	// sockets tracks hijacked connections, which http.Server.Shutdown
	// does not wait for
	socketsMu sync.Mutex
	sockets   sync.WaitGroup
	shutdown  context.Context
	stop      context.CancelFunc
}

type appOptions struct {
	factory   agent.Factory
	newClient func(config.ModelConfig) (llm.Client, error)
	catalog   *marketplace.Store
	registry  *prometheus.Registry
	log       *logr.Logger
}

// Option configures an App
type Option func(*appOptions)

// WithFactory replaces the LLM-backed agent factory
func WithFactory(f agent.Factory) Option {
	return func(o *appOptions) {
		o.factory = f
	}
}

// WithClientFactory keeps the LLM-backed agent factory but creates model
// clients with newClient
func WithClientFactory(newClient func(config.ModelConfig) (llm.Client, error)) Option {
	return func(o *appOptions) {
		o.newClient = newClient
	}
}

// WithCatalog uses an already opened catalog store. The caller keeps
// ownership and closes it.
func WithCatalog(store *marketplace.Store) Option {
	return func(o *appOptions) {
		o.catalog = store
	}
}

// WithPrometheusRegistry registers collectors on reg instead of a private registry
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(o *appOptions) {
		o.registry = reg
	}
}

// WithLogger sets the application logger
func WithLogger(log logr.Logger) Option {
	return func(o *appOptions) {
		o.log = &log
	}
}

// NewApp assembles the application from settings
func NewApp(settings *config.Settings, opts ...Option) (*App, error) {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeAgentConfig, "invalid settings", err)
	}

	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}

	log := ctrllog.Log.WithName("novix")
	if o.log != nil {
		log = *o.log
	}

	app := &App{
		Settings: settings,
		log:      log,
	}
	app.shutdown, app.stop = context.WithCancel(context.Background())

	app.Catalog = o.catalog
	if app.Catalog == nil {
		store, err := marketplace.Open(settings.Catalog.DSN)
		if err != nil {
			return nil, err
		}
		app.Catalog = store
		app.ownsStore = true
	}

	reg := o.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	app.gatherer = reg
	app.Metrics = metrics.New(reg)

	app.Tools = []tools.Tool{marketplace.NewSearchTool(app.Catalog)}

	factory := o.factory
	if factory == nil {
		llmFactory := agent.NewLLMFactory(settings.AgentConfig(), app.Tools...)
		if o.newClient != nil {
			llmFactory.NewClient = o.newClient
		}
		factory = llmFactory
	}

	app.Registry = session.NewRegistry(factory,
		session.WithIdleTTL(settings.Session.IdleTTL),
		session.WithNetwork(settings.Wallet.Network),
		session.WithMetrics(app.Metrics),
		session.WithLogger(log),
	)
	app.Dispatcher = executor.NewDispatcher(app.Registry,
		executor.WithBusyPolicy(settings.Session.BusyPolicy),
		executor.WithTimeout(settings.Session.InteractionTimeout),
		executor.WithMetrics(app.Metrics),
		executor.WithLogger(log),
	)

	return app, nil
}

// Handler returns the router serving both surfaces
func (a *App) Handler() http.Handler {
	if a.router == nil {
		a.router = mux.NewRouter()
		a.setupRoutes()
	}
	return a.router
}

// Build creates the HTTP server. Request contexts derive from ctx, so
// cancelling it cancels in-flight interactions.
func (a *App) Build(ctx context.Context) (*http.Server, error) {
	server := &http.Server{
		Addr:         a.Settings.Addr(),
		Handler:      a.Handler(),
		ReadTimeout:  a.Settings.Server.ReadTimeout,
		WriteTimeout: a.Settings.Server.WriteTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	return server, nil
}

// trackSocket registers a socket handler unless the app is shutting down
func (a *App) trackSocket() bool {
	a.socketsMu.Lock()
	defer a.socketsMu.Unlock()
	if a.shutdown.Err() != nil {
		return false
	}
	a.sockets.Add(1)
	return true
}

// RunReaper evicts idle sessions until ctx is done
func (a *App) RunReaper(ctx context.Context) error {
	return a.Registry.Run(ctx, a.Settings.Session.ReapInterval)
}

// Close disconnects socket clients, waits for their handlers and releases
// the catalog store when the app opened it
func (a *App) Close() error {
	a.socketsMu.Lock()
	a.stop()
	a.socketsMu.Unlock()
	a.sockets.Wait()

	if a.ownsStore && a.Catalog != nil {
		return a.Catalog.Close()
	}
	return nil
}

func (a *App) setupRoutes() {
	a.router.Use(a.loggingMiddleware, mux.CORSMethodMiddleware(a.router), a.corsMiddleware)

	a.router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	a.router.Handle("/metrics", metrics.Handler(a.gatherer)).Methods(http.MethodGet)
	a.router.HandleFunc("/ws", a.handleSocket).Methods(http.MethodGet)

	a.router.HandleFunc("/api/agent-session", a.handleListSessions).
		Methods(http.MethodGet, http.MethodOptions)
	a.router.HandleFunc("/api/agent-session/create", a.handleCreateSession).
		Methods(http.MethodPost, http.MethodOptions)
	a.router.HandleFunc("/api/agent-session/interact/{sessionId}", a.handleInteract).
		Methods(http.MethodPost, http.MethodOptions)
	a.router.HandleFunc("/api/agent-session/remove/{sessionId}", a.handleRemoveSession).
		Methods(http.MethodDelete, http.MethodOptions)
	a.router.HandleFunc("/api/agent-session/add-wallet/{sessionId}", a.handleAddWallet).
		Methods(http.MethodPost, http.MethodOptions)

	a.router.HandleFunc("/api/agents", a.handleListAgents).
		Methods(http.MethodGet, http.MethodOptions)
	a.router.HandleFunc("/api/agents/profile/details/{id}", a.handleAgentDetails).
		Methods(http.MethodGet, http.MethodOptions)
	a.router.HandleFunc("/api/agents/get/all/by-owner/{ownerId}", a.handleAgentsByOwner).
		Methods(http.MethodGet, http.MethodOptions)
}
