// Command videofed runs the federated video-discovery core: it loads
// configuration, builds the root App (spec.md §9), starts every adapter
// and background loop, and blocks until a shutdown signal arrives.
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
	"github.com/tributary-ai/videofed/internal/obs"
)

// Application is the process wrapper: it owns the root App plus the signal
// handling/shutdown-ordering Run needs, mirroring the teacher's
// cmd/llm-router/main.go Application type.
type Application struct {
	config *config.Config
	app    *app.App
	logger *obs.Logger
}

func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := obs.NewLogger(obs.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build app: %w", err)
	}

	return &Application{config: cfg, app: a, logger: logger}, nil
}

// Run starts every adapter and background loop, then blocks until a
// shutdown signal or a fatal startup error.
func (a *Application) Run() error {
	a.logger.Info("starting videofed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	startErrors := make(chan error, 1)
	go func() {
		if err := a.app.Start(ctx); err != nil {
			startErrors <- fmt.Errorf("app failed to start: %w", err)
		}
	}()

	go a.runMetricsTicker(ctx)

	select {
	case err := <-startErrors:
		return err
	case sig := <-sigChan:
		a.logger.With("signal", sig.String()).Info("shutdown signal received")
	case <-ctx.Done():
	}

	a.logger.Info("starting graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	a.app.Stop(shutdownCtx)
	a.logger.Info("graceful shutdown completed")
	return nil
}

// runMetricsTicker mirrors Prioritizer/Fallback/HealthMonitor state into the
// Prometheus gauges on a fixed interval until ctx is cancelled.
func (a *Application) runMetricsTicker(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.app.MetricsTick(ctx)
		}
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  YOUTUBE_API_KEY        YouTube Data API key\n")
	fmt.Fprintf(os.Stderr, "  APIFY_API_TOKEN        Apify actor-runner token (rumble, odysee)\n")
	fmt.Fprintf(os.Stderr, "  VIDEOFED_PORT          Ops API port (default: 8080)\n")
	fmt.Fprintf(os.Stderr, "  VIDEOFED_LOG_LEVEL     Log level (debug,info,warn,error,fatal)\n")
	fmt.Fprintf(os.Stderr, "  VIDEOFED_LOG_FORMAT    Log format (json,text)\n")
	fmt.Fprintf(os.Stderr, "  VIDEOFED_DEFAULT_STRATEGY  Prioritizer strategy\n")
	fmt.Fprintf(os.Stderr, "  NETWORK_STRATEGY       single|split\n")
	fmt.Fprintf(os.Stderr, "  VPN_INTERFACE, DEFAULT_INTERFACE\n")
	fmt.Fprintf(os.Stderr, "  DISCORD_USE_VPN, YOUTUBE_USE_VPN, RUMBLE_USE_VPN, ODYSEE_USE_VPN, PEERTUBE_USE_VPN\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --config configs/config.yaml\n", os.Args[0])
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		showHelp   = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	application, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create application: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}
