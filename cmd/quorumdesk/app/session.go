package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	qdapp "github.com/quorumdesk/quorumdesk/internal/app"
	"github.com/quorumdesk/quorumdesk/internal/config"
	"github.com/quorumdesk/quorumdesk/internal/telemetry"
	"github.com/quorumdesk/quorumdesk/internal/versions"
)

const (
	telemetryShutdownTimeout = 5 * time.Second
	metricsReadHeaderTimeout = 10 * time.Second
)

// errNotTerminal is returned when a password is needed but cannot be asked for
var errNotTerminal = errors.New("stdin is not a terminal")

// session is an opened quorumdesk session with its telemetry
type session struct {
	*qdapp.App
	tel *telemetry.Telemetry
}

// openSession loads the configuration, sets up telemetry and logs in
func (o *rootOptions) openSession(ctx context.Context, cfg *config.Config, opts ...qdapp.AppOption) (*session, error) {
	tel, err := newTelemetry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	appOpts := append([]qdapp.AppOption{
		qdapp.WithConfig(cfg),
		qdapp.WithTelemetry(tel),
		qdapp.WithPasswordPrompt(passwordPrompt(o.stdin, os.Stderr, cfg.Server.Username)),
	}, opts...)

	a, err := qdapp.NewApp(ctx, appOpts...)
	if err != nil {
		shutdownTelemetry(tel)
		return nil, err
	}
	return &session{App: a, tel: tel}, nil
}

// Close releases the session and flushes telemetry
func (s *session) Close() {
	if err := s.App.Close(); err != nil {
		slog.Warn("Failed to close session", "error", err)
	}
	shutdownTelemetry(s.tel)
}

// newTelemetry initializes telemetry from the configuration
func newTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	telCfg := cfg.Telemetry
	if telCfg != nil && telCfg.ServiceVersion == "" {
		withVersion := *telCfg
		withVersion.ServiceVersion = versions.GetInfo().Version
		telCfg = &withVersion
	}

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(telCfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return tel, nil
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		slog.Warn("Failed to shut down telemetry", "error", err)
	}
}

// serveMetrics exposes the Prometheus endpoint when that exporter is configured.
// The returned function stops the server.
func serveMetrics(cfg *config.Config, tel *telemetry.Telemetry) func() {
	handler := tel.MetricsHandler()
	if handler == nil || cfg.Telemetry == nil || cfg.Telemetry.Metrics == nil {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle(qdapp.MetricsPath, handler)
	server := &http.Server{
		Addr:              cfg.Telemetry.Metrics.GetListenAddress(),
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		slog.Info("Serving metrics", "address", server.Addr, "path", qdapp.MetricsPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

// passwordPrompt asks for the password on the terminal without echo
func passwordPrompt(in *os.File, out io.Writer, username string) func() (string, error) {
	return func() (string, error) {
		fd := int(in.Fd()) //nolint:gosec // file descriptors fit in an int
		if !term.IsTerminal(fd) {
			return "", errNotTerminal
		}

		if _, err := fmt.Fprintf(out, "Contraseña para %s: ", username); err != nil {
			return "", err
		}
		password, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(string(password)), nil
	}
}
