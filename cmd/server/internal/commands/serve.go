package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/medistock/tenant-auth/internal/api"
	"github.com/medistock/tenant-auth/internal/core/password"
	"github.com/medistock/tenant-auth/internal/core/ports"
	"github.com/medistock/tenant-auth/internal/core/service"
	"github.com/medistock/tenant-auth/internal/core/token"
	"github.com/medistock/tenant-auth/internal/infrastructure/queue"
	"github.com/medistock/tenant-auth/internal/telemetry"
	"github.com/medistock/tenant-auth/pkg/logger"
)

type ServeCmd struct {
	ShutdownTimeout time.Duration `help:"Grace period for in-flight requests on shutdown." default:"15s"`
}

func (s *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := bootstrap(ctx, globals)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     globals.Version,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close(context.Background(), log)

	hasher, err := password.NewHasher(cfg.Password.BcryptCost)
	if err != nil {
		return err
	}
	issuer, err := token.NewIssuer(token.Config{
		AccessSecret:  cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     token.ParseExpiry(cfg.JWT.ExpiresIn),
		RefreshTTL:    token.ParseExpiry(cfg.JWT.RefreshExpiresIn),
	})
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	// Last-login writes run on a worker pool unless workers is zero.
	var (
		recorder   ports.LoginRecorder
		dispatcher *queue.Dispatcher
	)
	if cfg.Workers.LastLogin > 0 {
		dispatcher = queue.NewDispatcher(cfg.Workers.LastLogin, b.store, logger.Component("last_login"))
		dispatcher.Start(context.WithoutCancel(ctx))
		recorder = dispatcher
	}

	authService := service.NewAuthService(b.store, hasher, issuer, recorder, logger.Component("auth_service"))
	guard := service.NewTenantGuard(b.store, logger.Component("tenant_guard"))

	e := api.NewRouter(api.Dependencies{
		Auth:         authService,
		Guard:        guard,
		Tokens:       issuer,
		TenantHeader: cfg.TenantHeader,
		Health:       b.health,
		Log:          log,
	})

	srv := configureHTTPServer(":"+cfg.Port, otelhttp.NewHandler(e, "http.server"))

	log.Info().
		Str("addr", srv.Addr).
		Str("store", cfg.StoreDriver).
		Str("env", cfg.Env).
		Msg("server listening")

	err = serveUntilDone(ctx, srv, s.ShutdownTimeout, log)
	if dispatcher != nil {
		dispatcher.Close()
	}
	if err != nil {
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}

// serveUntilDone runs srv until ctx is cancelled or the listener fails, then
// shuts it down. A listener failure is returned so the process exits non-zero.
func serveUntilDone(ctx context.Context, srv *http.Server, timeout time.Duration, log zerolog.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("server stopped unexpectedly")
			runErr = fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	return runErr
}
