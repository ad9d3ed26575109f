// Package gateway assembles the forwarding engine, route table,
// history ledger and admin surface into a running HTTP server.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avhookgw/internal/admin"
	"github.com/vyrodovalexey/avhookgw/internal/allowlist"
	"github.com/vyrodovalexey/avhookgw/internal/config"
	"github.com/vyrodovalexey/avhookgw/internal/forward"
	"github.com/vyrodovalexey/avhookgw/internal/health"
	"github.com/vyrodovalexey/avhookgw/internal/history"
	"github.com/vyrodovalexey/avhookgw/internal/middleware"
	"github.com/vyrodovalexey/avhookgw/internal/observability"
	"github.com/vyrodovalexey/avhookgw/internal/routes"
)

// forwardPrefix is the public forwarding path prefix.
const forwardPrefix = "/forward"

// ginModeOnce ensures gin.SetMode is only called once to avoid race
// conditions.
var ginModeOnce sync.Once

// Gateway is the assembled webhook gateway.
type Gateway struct {
	cfg     *config.Config
	logger  observability.Logger
	metrics *observability.Metrics

	routes    *routes.Store
	ledger    *history.Ledger
	forwarder *forward.Forwarder
	checker   *health.Checker
	watcher   *routes.Watcher

	handler    http.Handler
	httpServer *http.Server

	mu      sync.Mutex
	running bool
}

// New builds a gateway from configuration. Nothing is listening until
// Start is called.
func New(cfg *config.Config, logger observability.Logger, version string) (*Gateway, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	metrics := observability.NewMetrics("hookgw")
	metrics.SetBuildInfo(version)

	store, err := routes.NewStore(cfg.RoutesFile, routes.WithStoreLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open route store: %w", err)
	}

	recent, err := newRecentStore(cfg)
	if err != nil {
		return nil, err
	}

	ledger, err := history.NewLedger(cfg.HistoryFile, recent,
		history.WithLedgerLogger(logger),
		history.WithDropHook(metrics.RecordHistoryDrop),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open history ledger: %w", err)
	}

	extractor := middleware.NewClientIPExtractor(cfg.TrustedProxies)
	allow := allowlist.New(cfg.AllowedHosts)

	forwarder := forward.New(store, allow, ledger,
		forward.WithLogger(logger),
		forward.WithMetrics(metrics),
		forward.WithUpstreamTimeout(cfg.UpstreamTimeout),
		forward.WithClientIPFunc(extractor.Extract),
	)

	checker := health.NewChecker(version)
	registerChecks(checker, recent)

	g := &Gateway{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		routes:    store,
		ledger:    ledger,
		forwarder: forwarder,
		checker:   checker,
	}

	if cfg.WatchRoutes {
		watcher, err := routes.NewWatcher(store,
			routes.WithWatcherLogger(logger),
			routes.WithReloadCallback(metrics.RecordRouteReload),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create routes watcher: %w", err)
		}
		g.watcher = watcher
	}

	g.handler = g.buildHandler()

	return g, nil
}

// newRecentStore builds the configured recent history store.
func newRecentStore(cfg *config.Config) (history.RecentStore, error) {
	switch cfg.HistoryBackend {
	case "redis":
		store, err := history.NewRedisStore(history.RedisStoreConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.HistoryCapacity)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis history store: %w", err)
		}
		return store, nil
	default:
		return history.NewMemoryStore(cfg.HistoryCapacity), nil
	}
}

// registerChecks wires readiness checks for the gateway's backing
// services.
func registerChecks(checker *health.Checker, recent history.RecentStore) {
	redisStore, ok := recent.(*history.RedisStore)
	if !ok {
		return
	}

	checker.RegisterCheck("redis", func() health.Check {
		ctx, cancel := context.WithTimeout(context.Background(), health.CheckTimeout)
		defer cancel()

		if err := redisStore.Ping(ctx); err != nil {
			return health.Check{Status: health.StatusUnhealthy, Message: err.Error()}
		}
		return health.Check{Status: health.StatusHealthy}
	})
}

// buildHandler assembles the gin engine and the outer middleware
// chain.
func (g *Gateway) buildHandler() http.Handler {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	engine := gin.New()

	forwardHandler := g.forwarder.Handler(forwardPrefix)
	engine.Any(forwardPrefix+"/*rest", gin.WrapH(forwardHandler))

	// gin's Any covers only the nine standard methods. Extension
	// methods (PROPFIND, PURGE, ...) fall through to NoRoute, so the
	// forwarding surface is mounted there too.
	engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.EscapedPath(), forwardPrefix+"/") {
			forwardHandler.ServeHTTP(c.Writer, c.Request)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "no such endpoint",
		})
	})

	adminAPI := admin.NewAPI(g.routes, g.ledger, g.logger)
	adminGroup := engine.Group("", admin.BearerAuth(g.cfg.AdminToken))
	adminAPI.Register(adminGroup)

	engine.GET("/healthz", gin.WrapF(g.checker.HealthHandler()))
	engine.GET("/readyz", gin.WrapF(g.checker.ReadinessHandler()))

	if g.cfg.MetricsEnabled {
		engine.GET(g.cfg.MetricsPath, gin.WrapH(g.metrics.Handler()))
	}

	var handler http.Handler = engine
	if g.cfg.MaxBodyBytes > 0 {
		handler = middleware.BodyLimit(g.cfg.MaxBodyBytes, g.logger)(handler)
	}
	handler = middleware.Logging(g.logger)(handler)
	handler = middleware.RequestID()(handler)
	handler = middleware.Recovery(g.logger)(handler)

	return handler
}

// Handler returns the fully assembled HTTP handler. Used by tests.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Routes returns the route store.
func (g *Gateway) Routes() *routes.Store {
	return g.routes
}

// Start starts the HTTP server and, when enabled, the routes file
// watcher.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return errors.New("gateway already running")
	}

	addr := fmt.Sprintf("%s:%d", g.cfg.Address, g.cfg.Port)
	g.httpServer = &http.Server{
		Addr:              addr,
		Handler:           g.handler,
		ReadHeaderTimeout: g.cfg.ReadHeaderTimeout,
		IdleTimeout:       g.cfg.IdleTimeout,
	}
	g.running = true
	g.mu.Unlock()

	if g.watcher != nil {
		if err := g.watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start routes watcher: %w", err)
		}
	}

	g.logger.Info("starting HTTP server",
		observability.String("addr", addr),
	)

	go func() {
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("HTTP server error", observability.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts the gateway down.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return nil
	}
	g.running = false
	g.mu.Unlock()

	if g.watcher != nil {
		if err := g.watcher.Stop(); err != nil {
			g.logger.Error("failed to stop routes watcher", observability.Error(err))
		}
	}

	var firstErr error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		firstErr = err
	}

	if err := g.ledger.Close(); err != nil {
		g.logger.Error("failed to close history ledger", observability.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
