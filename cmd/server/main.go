package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/janisto/content-api/internal/api"
	"github.com/janisto/content-api/internal/config"
	"github.com/janisto/content-api/internal/http/v1/routes"
	applog "github.com/janisto/content-api/internal/platform/logging"
	"github.com/janisto/content-api/internal/platform/metrics"
	appmiddleware "github.com/janisto/content-api/internal/platform/middleware"
	"github.com/janisto/content-api/internal/platform/respond"
	"github.com/janisto/content-api/internal/platform/tracing"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

const maxHeaderBytes = 64 << 10

func main() {
	os.Exit(run())
}

func run() int {
	defer func() {
		if err := applog.Sync(); err != nil {
			applog.LogError(context.Background(), "logger sync error", err)
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		applog.LogError(context.Background(), "config load failed", err)
		return 1
	}
	if err := applog.Configure(cfg.LogLevel, cfg.Tracing.ServiceName, Version); err != nil {
		applog.LogError(context.Background(), "invalid log level", err, zap.String("level", cfg.LogLevel))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, Version)
	if err != nil {
		applog.LogError(ctx, "tracing init failed", err)
		return 1
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler, err := newHandler(cfg, reg, Version)
	if err != nil {
		applog.LogError(ctx, "handler setup failed", err)
		return 1
	}
	srv := newServer(cfg, handler)

	listenErr := make(chan error, 1)
	go func() {
		applog.LogInfo(ctx, "server listening", zap.String("addr", srv.Addr), zap.String("version", Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	exitCode := 0
	select {
	case err := <-listenErr:
		applog.LogError(ctx, "listen failed", err, zap.String("addr", srv.Addr))
		exitCode = 1
	case <-ctx.Done():
		applog.LogInfo(context.Background(), "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		applog.LogError(shutdownCtx, "server shutdown error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		applog.LogError(shutdownCtx, "tracing shutdown error", err)
	}
	applog.LogInfo(context.Background(), "server exited")
	return exitCode
}

// newHandler builds the router, middleware stack and API. Collectors for
// request metrics are registered on reg.
func newHandler(cfg *config.Config, reg *prometheus.Registry, version string) (http.Handler, error) {
	respond.Install()

	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	stack := []func(http.Handler) http.Handler{
		appmiddleware.Security(cfg.DocsPath, cfg.Metrics.Path),
		appmiddleware.Vary(),
		appmiddleware.CORS(cfg.CORSOrigins...),
		appmiddleware.RequestID(),
		// RealIP trusts X-Forwarded-For and X-Real-IP. Only deploy behind a
		// proxy that overwrites them (Cloud Run, nginx).
		chimiddleware.RealIP,
		chimiddleware.RequestSize(cfg.MaxBodyBytes),
		applog.RequestLogger(),
		applog.AccessLogger(),
	}
	if cfg.Metrics.Enabled {
		httpMetrics, err := metrics.New(reg)
		if err != nil {
			return nil, err
		}
		stack = append(stack, httpMetrics.Middleware(cfg.Metrics.Path))
	}
	stack = append(stack, respond.Recoverer())
	router.Use(stack...)

	if cfg.Metrics.Enabled {
		router.Method(http.MethodGet, cfg.Metrics.Path, metrics.Handler(reg))
	}

	humaAPI := humachi.New(router, api.NewConfig("Content API", version, cfg.DocsPath))
	api.DescribeCBOR(humaAPI.OpenAPI())
	routes.Register(humaAPI, version)

	return otelhttp.NewHandler(router, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	), nil
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}
}
