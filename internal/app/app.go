package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"routekit/internal/config"
	"routekit/internal/di"
	apierrors "routekit/internal/errors"
	"routekit/internal/infrastructure"
	customMiddleware "routekit/internal/middleware"
	"routekit/internal/openapi"
	"routekit/internal/routing"
	"routekit/internal/server"
	"routekit/internal/services"
	handlers "routekit/internal/transport/http"
	ws "routekit/internal/websocket"
)

const AppName = "routekit"

// Build metadata, set with -ldflags at link time
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// Application wires configuration, telemetry, the root container and the
// server together and owns their lifecycle.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Container     *di.Container
	Server        *server.Server
	Docs          *openapi.Collector

	mu     sync.Mutex
	router chi.Router
}

// New builds an application from cfg. A nil logger is built from cfg.Logging.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, apierrors.NewConfigError("nil configuration", nil)
	}
	if logger == nil {
		var err error
		logger, err = infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("commit", Commit))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	if err := routing.InitMetrics(otelProviders.Meter); err != nil {
		return nil, fmt.Errorf("failed to initialize routing metrics: %w", err)
	}
	if err := ws.InitOTelMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize WebSocket OpenTelemetry metrics: %w", err)
	}
	systemMetrics, err := infrastructure.NewSystemMetrics(otelProviders.Meter, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize system metrics: %w", err)
	}

	errHandler := apierrors.NewErrorHandler(logger, cfg.Logging.Level == "debug")

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Container:     di.New(),
		Server:        server.New(cfg.Server, nil, errHandler, logger),
		Docs:          openapi.NewCollector(cfg.Docs),
	}

	if err := a.provide(systemMetrics, errHandler); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := a.mount(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// provide seeds the root container with the application singletons and
// every service and controller constructor.
func (a *Application) provide(systemMetrics *infrastructure.SystemMetrics, errHandler *apierrors.ErrorHandler) error {
	c := a.Container
	return errors.Join(
		di.ProvideValue(c, a.Config),
		di.ProvideValue(c, a.Logger),
		di.ProvideValue(c, a.OTelProviders),
		di.ProvideValue(c, systemMetrics),
		di.ProvideValue(c, errHandler),
		di.ProvideValue(c, a.Server),
		di.ProvideValue(c, a.Docs),
		di.ProvideValue(c, services.BuildInfo{Version: Version, Commit: Commit, BuildTime: BuildTime}),
		services.Register(c),
		handlers.Register(c),
	)
}

// mount builds a fresh router, registers every controller on it and swaps it
// into the server.
func (a *Application) mount(ctx context.Context) error {
	router, err := a.newRouter()
	if err != nil {
		return err
	}

	err = handlers.Mount(ctx, a.Container, router, a.Server, a.Docs.Consume,
		routing.WithLogger(a.Logger),
		routing.WithWebSocketConfig(a.Config.WebSocket))
	if err != nil {
		routing.CleanUp(router, a.Server)
		return fmt.Errorf("failed to register controllers: %w", err)
	}

	a.router = router
	a.Server.SetHandler(router)

	a.Logger.InfoContext(ctx, "Controllers registered",
		slog.Int("api_operations", len(a.Docs.Records())),
		slog.Int("websocket_routes", routing.WebSocketRoutes(a.Server)))
	return nil
}

// newRouter creates the chi app with the middleware stack.
// Order: RequestID → RealIP → OTel → Logger → Recovery → SecurityHeaders → CORS → RateLimit
func (a *Application) newRouter() (*chi.Mux, error) {
	r := chi.NewRouter()
	errHandler := a.Server.ErrorHandler()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenTelemetry middleware: %w", err)
	}
	r.Use(otelMiddleware.Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(apierrors.RecoveryMiddleware(errHandler))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.Config.Security.AllowedOrigins))
	}
	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.NotFound(errHandler.NotFound)
	r.MethodNotAllowed(errHandler.MethodNotAllowed)
	return r, nil
}

// Reload tears down the WebSocket routes, rebuilds the router and registers
// every controller again. Open WebSocket connections are closed.
func (a *Application) Reload(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := routing.CleanUp(a.router, a.Server); err != nil {
		a.Logger.WarnContext(ctx, "WebSocket cleanup reported errors", slog.String("error", err.Error()))
	}
	a.Docs.Reset()

	if err := a.mount(ctx); err != nil {
		return err
	}
	a.Logger.InfoContext(ctx, "Controllers reloaded")
	return nil
}

// Serve serves on ln until ctx is cancelled, then stops the application.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.Server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		return a.Stop(stopCtx)
	})

	go a.startupCheck(gctx)

	return g.Wait()
}

// Run listens on the configured port until SIGINT or SIGTERM.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.Config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Config.Addr(), err)
	}
	return a.Serve(ctx, ln)
}

// Stop closes WebSocket routes, drains the HTTP server and flushes telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	a.mu.Lock()
	router := a.router
	a.mu.Unlock()

	var errs []error
	if err := routing.CleanUp(router, a.Server); err != nil {
		errs = append(errs, fmt.Errorf("websocket cleanup: %w", err))
	}
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// startupCheck logs the readiness state once the server is up.
func (a *Application) startupCheck(ctx context.Context) {
	hs, err := di.Resolve[*services.HealthService](a.Container)
	if err != nil {
		a.Logger.WarnContext(ctx, "Startup health check skipped", slog.String("error", err.Error()))
		return
	}

	status := hs.ReadinessCheck(ctx)
	if status.Status != "ready" {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.Any("services", status.Services))
		return
	}
	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", a.Config.Addr()),
		slog.Any("routes", hs.RouteStats()))
}
