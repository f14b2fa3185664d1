// Command videofed-ops is the optional, separate ops binary (SPEC_FULL
// §11): it wraps an internal/app.App's method-call reporting surface behind
// a small read-only gorilla/mux API, authenticated the same way the
// teacher's internal/server/server.go authenticated its API. It is
// explicitly not part of the federation core.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tributary-ai/videofed/internal/app"
	"github.com/tributary-ai/videofed/internal/config"
	"github.com/tributary-ai/videofed/internal/middleware"
	"github.com/tributary-ai/videofed/internal/obs"
	"github.com/tributary-ai/videofed/internal/opsapi"
)

func main() {
	var configPath = flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLogger(obs.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup logger: %v\n", err)
		os.Exit(1)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start app: %v\n", err)
		os.Exit(1)
	}

	srv, err := opsapi.NewServer(a, &opsapi.ServerConfig{
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		Security:       cfg.ToSecurityMiddlewareConfig(),
		Validation: &middleware.ValidationConfig{
			Enabled:  cfg.Server.EnableOpenAPIValidation,
			SpecPath: "docs/openapi.yaml",
		},
	}, logger.Entry().Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build ops server: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrors <- err
		}
	}()

	logrusLogger := logger.Entry().Logger
	select {
	case err := <-serverErrors:
		logrusLogger.WithError(err).Error("ops server failed")
	case sig := <-sigChan:
		logrusLogger.WithField("signal", sig.String()).Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logrusLogger.WithError(err).Error("ops server shutdown error")
	}
	a.Stop(shutdownCtx)
}
