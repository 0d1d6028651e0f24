package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rickgao/hubkeeper/internal/config"
	"github.com/rickgao/hubkeeper/internal/connection"
	"github.com/rickgao/hubkeeper/internal/version"
)

// statusSource is the read side of the connection manager.
type statusSource interface {
	Status() (connection.State, bool)
	Groups() []string
}

// newHandler serves /health and the Prometheus metrics endpoint.
func newHandler(src statusSource, metricsHandler http.Handler, metricsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		state, started := src.Status()

		health := struct {
			Status     string         `json:"status"`
			Version    string         `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:  healthStatus(state, started),
			Version: version.Version,
			Components: map[string]any{
				"hub": map[string]any{
					"state":   state.String(),
					"started": started,
					"groups":  src.Groups(),
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	if metricsHandler != nil {
		mux.Handle(metricsPath, metricsHandler)
	}

	return mux
}

func healthStatus(state connection.State, started bool) string {
	switch {
	case state == connection.StateConnected:
		return "healthy"
	case !started || state == connection.StateDisconnected:
		return "unhealthy"
	default:
		return "degraded"
	}
}

// newLogger builds the slog handler named by the log config.
func newLogger(w io.Writer, cfg config.LogConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
