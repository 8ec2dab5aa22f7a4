// Package app wires the components together and serves the HTTP surface.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"flightdeck-go/internal/auth"
	"flightdeck-go/internal/config"
	"flightdeck-go/internal/profile"
	"flightdeck-go/internal/proxy"
	"flightdeck-go/internal/refresh"
	"flightdeck-go/internal/session"
	"flightdeck-go/internal/storage"
	"flightdeck-go/internal/traffic"
	"flightdeck-go/internal/worker"
)

// Application holds all the major components of the service.
type Application struct {
	Config        *config.Config
	Logger        *zap.Logger
	Flow          *auth.Flow
	Opener        *auth.BrowserOpener
	Profiles      *profile.Resolver
	Traffic       *traffic.Service
	Scheduler     *refresh.Scheduler
	Sessions      session.Store
	Storage       *storage.SQLiteStorage
	WorkerPool    *worker.Pool
	HTTPServer    *http.Server
	MetricsServer *http.Server

	// pending holds the outcome of the most recent login attempt until a
	// status poll claims it.
	mu      sync.Mutex
	pending *loginOutcome
}

type loginOutcome struct {
	result *auth.Result
	err    error
}

// New creates and initializes a new Application instance.
func New(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	sessions, err := storage.NewSessionStore(store, []byte(cfg.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	pool := worker.NewPool(cfg.NumWorkers, cfg.NumWorkers*2, logger)

	var relay *proxy.Client
	if cfg.Proxy.Endpoint != "" {
		relay = proxy.NewClient(cfg.Proxy.Endpoint, logger)
	}

	profiles := profile.NewResolver(cfg.ProfileURL(), proxyOrNil(relay), logger)
	feed := traffic.NewService(cfg.Feed.URL, proxyOrNil(relay), logger)

	provider := auth.Provider{
		ClientID:    cfg.Provider.ClientID,
		AuthURL:     cfg.AuthURL(),
		TokenURL:    cfg.TokenURL(),
		RedirectURI: cfg.Provider.RedirectURI,
		Scopes:      cfg.Provider.Scopes,
	}
	opener := &auth.BrowserOpener{}
	flow := auth.NewFlow(provider, opener, auth.NewExchanger(provider),
		profiles, cfg.Refresh.PollInterval.Duration, logger)

	scheduler := refresh.NewScheduler(cfg.Refresh.Interval.Duration, feed.Fetch, pool, logger)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		Flow:          flow,
		Opener:        opener,
		Profiles:      profiles,
		Traffic:       feed,
		Scheduler:     scheduler,
		Sessions:      sessions,
		Storage:       store,
		WorkerPool:    pool,
		MetricsServer: metricsServer,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/start", app.handleLoginStart)
	mux.HandleFunc("GET /login/status", app.handleLoginStatus)
	mux.HandleFunc("POST /login/cancel", app.handleLoginCancel)
	mux.HandleFunc("POST /login/vid", app.handleLoginVID)
	mux.HandleFunc("GET /auth/callback", app.handleAuthCallback)
	mux.HandleFunc("POST /logout", app.handleLogout)
	mux.Handle("GET /api/session", app.requireAuth(http.HandlerFunc(app.handleSession)))
	mux.Handle("GET /api/traffic", app.requireAuth(http.HandlerFunc(app.handleTraffic)))

	app.HTTPServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
	}

	return app, nil
}

// proxyOrNil keeps a typed-nil *proxy.Client out of the fetcher interfaces.
func proxyOrNil(c *proxy.Client) profile.ProxyFetcher {
	if c == nil {
		return nil
	}
	return c
}

// Start begins the application's services.
func (a *Application) Start() error {
	go func() {
		a.Logger.Info("metrics server listening", zap.String("addr", a.MetricsServer.Addr))
		if err := a.MetricsServer.ListenAndServe(); err != http.ErrServerClosed {
			a.Logger.Fatal("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		a.Logger.Info("http server listening", zap.String("addr", a.HTTPServer.Addr))
		if err := a.HTTPServer.ListenAndServe(); err != http.ErrServerClosed {
			a.Logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the application's services.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.Info("stopping application")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("http server shutdown", zap.Error(err))
	}
	if err := a.MetricsServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("metrics server shutdown", zap.Error(err))
	}

	a.Flow.Cancel()
	a.Scheduler.Stop()
	a.WorkerPool.Stop()

	if err := a.Storage.Close(); err != nil {
		a.Logger.Warn("closing database", zap.Error(err))
	}

	a.Logger.Info("application stopped")
	return nil
}
