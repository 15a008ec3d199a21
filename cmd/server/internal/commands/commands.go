package commands

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/medistock/tenant-auth/internal/pkg/config"
	"github.com/medistock/tenant-auth/pkg/logger"
)

const serviceName = "tenant-auth"

type Globals struct {
	Debug   bool
	Version string
}

// bootstrap loads configuration and initialises the process logger.
func bootstrap(ctx context.Context, globals *Globals) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	level := cfg.LogLevel
	if globals.Debug {
		level = "debug"
	}
	log := logger.Init(logger.Options{
		Level:   level,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
		Version: globals.Version,
	})
	return cfg, log, nil
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
