package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/hubkeeper/internal/config"
	"github.com/rickgao/hubkeeper/internal/connection"
	"github.com/rickgao/hubkeeper/internal/events"
	"github.com/rickgao/hubkeeper/internal/hub"
	"github.com/rickgao/hubkeeper/internal/metrics"
	"github.com/rickgao/hubkeeper/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/hubkeeper.local.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "log debug output and hub messages")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := newLogger(os.Stdout, cfg.Log, *verbose)
	slog.SetDefault(logger)

	logger.Info("starting hubkeeper",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)
	logger.Info("configuration loaded",
		"hub_url", cfg.Hub.URL,
		"transport", cfg.Hub.Transport,
		"groups", cfg.Hub.Groups,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	m := metrics.New()
	factory := hub.NewFactory(
		hub.WithLogger(logger),
		hub.WithHandshakeTimeout(cfg.Hub.HandshakeTimeout),
	)
	mgr := connection.NewManager(factory,
		connection.WithLogger(logger),
		connection.WithMetrics(m),
		connection.WithBackoff(cfg.Backoff()),
		connection.WithPingInterval(cfg.Keepalive.Interval),
	)

	if err := subscribeLogging(mgr, logger, *verbose); err != nil {
		logger.Error("failed to register event listeners", "error", err)
		os.Exit(1)
	}

	// Start health server early so connection progress is observable
	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHandler(mgr, m.Handler(), cfg.Metrics.Path),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", "error", err)
		}
	}()

	if err := mgr.Start(cfg.Session()); err != nil {
		logger.Error("failed to start session", "error", err)
		os.Exit(1)
	}

	logger.Info("hubkeeper running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := mgr.Close(shutdownCtx); err != nil {
		logger.Warn("connection manager close", "error", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown", "error", err)
	}

	logger.Info("hubkeeper stopped")
}

// subscribeLogging logs every lifecycle event. Hub messages are only logged
// when verbose.
func subscribeLogging(mgr *connection.Manager, logger *slog.Logger, verbose bool) error {
	for _, kind := range events.Kinds() {
		if kind == events.KindHubMessage && !verbose {
			continue
		}
		if _, err := mgr.On(kind, func(e events.Event) { logEvent(logger, e) }); err != nil {
			return err
		}
	}
	return nil
}

func logEvent(logger *slog.Logger, e events.Event) {
	attrs := []any{"event", e.Kind.String()}
	if e.Group != "" {
		attrs = append(attrs, "group", e.Group)
	}
	if e.Attempt > 0 {
		attrs = append(attrs, "attempt", e.Attempt)
	}
	if e.Delay > 0 {
		attrs = append(attrs, "delay", e.Delay)
	}
	if e.Target != "" {
		attrs = append(attrs, "target", e.Target, "args", len(e.Args))
	}
	if e.Err != nil {
		attrs = append(attrs, "error", e.Err)
	}

	switch e.Kind {
	case events.KindReconnectExhausted:
		logger.Error("hub connection", attrs...)
	case events.KindConnectionError, events.KindConnectionTimeout, events.KindGroupJoinError:
		logger.Warn("hub connection", attrs...)
	case events.KindHubMessage:
		logger.Debug("hub message", attrs...)
	default:
		logger.Info("hub connection", attrs...)
	}
}
