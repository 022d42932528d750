package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"copilot-gateway/internal/account"
	"copilot-gateway/internal/cache"
	"copilot-gateway/internal/config"
	"copilot-gateway/internal/convert"
	"copilot-gateway/internal/core"
	"copilot-gateway/internal/metrics"
	"copilot-gateway/internal/process"

	"github.com/gin-gonic/gin"
)

// ChatInvoker sends requests to the Copilot backend.
type ChatInvoker interface {
	ChatCompletions(ctx context.Context, chat *convert.Request) (process.ChatResult, error)
	Embeddings(ctx context.Context, in *core.EmbeddingRequest) ([]byte, error)
}

// Admitter is the admission checkpoint run before every upstream call.
type Admitter interface {
	Admit(ctx context.Context, summary string) error
}

// UsageFetcher loads the Copilot usage document for an identity token.
type UsageFetcher interface {
	Usage(ctx context.Context, githubToken string) ([]byte, error)
}

// ModelCatalog serves the cached model listing and descriptor lookups.
type ModelCatalog interface {
	convert.CapabilityLookup
	Raw() []byte
}

// StatusReporter exposes the state of the session refresher.
type StatusReporter interface {
	Status() account.RefresherStatus
}

// Deps are the collaborators the HTTP layer drives.
type Deps struct {
	Store     *account.Store
	Refresher StatusReporter
	GitHub    UsageFetcher
	Invoker   ChatInvoker
	Catalog   ModelCatalog
	Gate      Admitter
}

// Server application server
type Server struct {
	port    string
	ginMode string
	config  config.ServerConfig
	logger  core.Logger
	router  *gin.Engine

	store     *account.Store
	refresher StatusReporter
	github    UsageFetcher
	invoker   ChatInvoker
	catalog   ModelCatalog
	gate      Admitter

	usageStore     *cache.LRUCache
	usage          *cache.UsageCache
	metricsService *metrics.MetricsService

	validClientKeys map[string]bool
	clientLimiter   *clientLimiter

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required in ServerConfig")
	}
	if deps.Store == nil || deps.Invoker == nil || deps.Catalog == nil || deps.Gate == nil {
		return nil, fmt.Errorf("store, invoker, catalog and gate are required")
	}

	metricsService := metrics.NewMetricsService(metrics.MetricsConfig{
		SaveInterval: core.MinSaveInterval,
		HistorySize:  core.MaxRequestHistory,
		Storage:      cfg.Storage,
		Logger:       cfg.Logger,
	})
	if err := metricsService.LoadStats(); err != nil {
		cfg.Logger.Warn("Failed to load historical stats: %v", err)
	}

	validClientKeys := make(map[string]bool)
	for _, key := range cfg.ClientAPIKeys {
		validClientKeys[key] = true
	}
	if len(validClientKeys) == 0 {
		cfg.Logger.Warn("No client API keys configured, the gateway accepts unauthenticated requests")
	} else {
		cfg.Logger.Info("Loaded %d client API keys", len(validClientKeys))
	}

	usageStore := cache.NewCache(core.CacheDefaultCapacity)
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	s := &Server{
		port:            cfg.Port,
		ginMode:         cfg.GinMode,
		config:          cfg,
		logger:          cfg.Logger,
		store:           deps.Store,
		refresher:       deps.Refresher,
		github:          deps.GitHub,
		invoker:         deps.Invoker,
		catalog:         deps.Catalog,
		gate:            deps.Gate,
		usageStore:      usageStore,
		usage:           cache.NewUsageCache(usageStore, core.UsageCacheTTL),
		metricsService:  metricsService,
		validClientKeys: validClientKeys,
		shutdownCtx:     shutdownCtx,
		shutdownCancel:  shutdownCancel,
	}
	if cfg.ClientRateLimitRPM > 0 {
		s.clientLimiter = newClientLimiter(shutdownCtx, cfg.ClientRateLimitRPM)
	}

	s.setupRoutes()
	return s, nil
}

// NewHTTPClient builds the pooled client used for GitHub and Copilot calls.
func NewHTTPClient(settings config.HTTPClientSettings) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          settings.MaxIdleConns,
		MaxIdleConnsPerHost:   settings.MaxIdleConnsPerHost,
		MaxConnsPerHost:       settings.MaxConnsPerHost,
		IdleConnTimeout:       settings.IdleConnTimeout,
		TLSHandshakeTimeout:   settings.TLSHandshakeTimeout,
		ExpectContinueTimeout: core.HTTPExpectContinueTimeout,
		ForceAttemptHTTP2:     true,
		ResponseHeaderTimeout: core.HTTPResponseHeaderTimeout,
	}

	// RequestTimeout also bounds streamed completions, body reads included.
	return &http.Client{
		Transport: transport,
		Timeout:   settings.RequestTimeout,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until SIGINT/SIGTERM or Close.
func (s *Server) Run() error {
	s.setupGracefulShutdown()

	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute, // SSE streams need longer timeout
	}

	go func() {
		<-s.shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("Server shutdown error: %v", err)
		}
	}()

	s.logger.Info("Server starting on port %s", s.port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops Run without a signal.
func (s *Server) Shutdown() {
	s.shutdownCancel()
}

func (s *Server) setupGracefulShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-quit:
			s.logger.Info("Shutdown signal received, shutting down gracefully...")
			s.shutdownCancel()
		case <-s.shutdownCtx.Done():
		}
		signal.Stop(quit)
	}()
}

// Close releases background workers and saves statistics.
func (s *Server) Close() error {
	s.shutdownCancel()

	var closeErr error
	if s.metricsService != nil {
		if err := s.metricsService.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close metrics service: %w", err))
		}
	}
	if s.usageStore != nil {
		s.usageStore.Stop()
	}
	return closeErr
}
