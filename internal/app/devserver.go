package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/yaml.v3"

	"github.com/quorumdesk/quorumdesk/internal/apitest"
	"github.com/quorumdesk/quorumdesk/internal/attendance"
	"github.com/quorumdesk/quorumdesk/internal/telemetry"
	"github.com/quorumdesk/quorumdesk/internal/voting"
)

const (
	defaultDevAddress        = "127.0.0.1:5000"
	defaultReadHeaderTimeout = 10 * time.Second
	defaultIdleTimeout       = 60 * time.Second

	// MetricsPath serves Prometheus metrics when the exporter is enabled
	MetricsPath = "/metrics"
)

// Seed is the fixture file of the development server
type Seed struct {
	Records []SeedRecord      `yaml:"records"`
	Votings []SeedVoting      `yaml:"votings,omitempty"`
	Users   map[string]string `yaml:"users,omitempty"`
}

// SeedRecord is one attendance row of the fixture
type SeedRecord struct {
	ID                  int64  `yaml:"id"`
	Shareholder         string `yaml:"accionista,omitempty"`
	LegalRepresentative string `yaml:"representante,omitempty"`
	Proxy               string `yaml:"apoderado,omitempty"`
	Shares              int64  `yaml:"acciones"`
	Status              string `yaml:"estado,omitempty"`
}

// SeedVoting is a voting session of the fixture
type SeedVoting struct {
	ID        string         `yaml:"id"`
	Quorum    int64          `yaml:"quorum"`
	Questions []SeedQuestion `yaml:"questions,omitempty"`
}

// SeedQuestion is a question of a fixture voting session
type SeedQuestion struct {
	ID      int64            `yaml:"id"`
	Text    string           `yaml:"texto"`
	Options map[int64]string `yaml:"opciones"`
}

// LoadSeed reads a fixture file
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i, r := range seed.Records {
		if r.ID <= 0 {
			return nil, fmt.Errorf("records[%d]: id must be positive", i)
		}
		if r.Status != "" {
			if _, err := attendance.ParseStatus(r.Status); err != nil {
				return nil, fmt.Errorf("records[%d]: %w", i, err)
			}
		}
	}
	return &seed, nil
}

// options turns the fixture into fake server options
func (s *Seed) options() []apitest.Option {
	records := make([]attendance.Record, 0, len(s.Records))
	for _, r := range s.Records {
		status := attendance.NormalizeStatus(r.Status)
		records = append(records, attendance.Record{
			ID:                  r.ID,
			Shareholder:         r.Shareholder,
			LegalRepresentative: r.LegalRepresentative,
			Proxy:               r.Proxy,
			Shares:              r.Shares,
			Status:              status,
		})
	}
	opts := []apitest.Option{apitest.WithRecords(records...)}

	for _, v := range s.Votings {
		opts = append(opts, apitest.WithQuorum(v.ID, v.Quorum))
		questions := make([]voting.Question, 0, len(v.Questions))
		for _, q := range v.Questions {
			question := voting.Question{ID: q.ID, Text: q.Text}
			for id, text := range q.Options {
				question.Options = append(question.Options, voting.Option{ID: id, Text: text})
			}
			slices.SortFunc(question.Options, func(a, b voting.Option) int {
				return cmp.Compare(a.ID, b.ID)
			})
			questions = append(questions, question)
		}
		if len(questions) > 0 {
			opts = append(opts, apitest.WithQuestions(v.ID, questions...))
		}
	}

	for user, password := range s.Users {
		opts = append(opts, apitest.WithUser(user, password))
	}
	return opts
}

// DevServerOption configures the development server
type DevServerOption func(*devServerConfig) error

type devServerConfig struct {
	address     string
	seed        *Seed
	socketIO    bool
	middlewares []func(http.Handler) http.Handler
	telemetry   *telemetry.Telemetry
}

// WithAddress sets the listen address
func WithAddress(addr string) DevServerOption {
	return func(cfg *devServerConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithSeed sets the data served by the fake
func WithSeed(seed *Seed) DevServerOption {
	return func(cfg *devServerConfig) error {
		cfg.seed = seed
		return nil
	}
}

// WithSocketIO makes the push channel emit Socket.IO frames
func WithSocketIO(enabled bool) DevServerOption {
	return func(cfg *devServerConfig) error {
		cfg.socketIO = enabled
		return nil
	}
}

// WithDevTelemetry adds HTTP metrics and tracing middleware and the metrics endpoint
func WithDevTelemetry(tel *telemetry.Telemetry) DevServerOption {
	return func(cfg *devServerConfig) error {
		cfg.telemetry = tel
		return nil
	}
}

// DevServer serves the fake meeting service for local testing
type DevServer struct {
	fake       *apitest.Server
	httpServer *http.Server
}

// NewDevServer builds the development server
func NewDevServer(opts ...DevServerOption) (*DevServer, error) {
	cfg := &devServerConfig{address: defaultDevAddress}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	cfg.middlewares = []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		LoggingMiddleware,
	}

	var metricsHandler http.Handler
	if cfg.telemetry != nil {
		inst, err := telemetry.NewServerInstrumentation(cfg.telemetry.TracerProvider(), cfg.telemetry.MeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create server instrumentation: %w", err)
		}
		// Measure runs first so requests rejected for a missing session are counted
		cfg.middlewares = append([]func(http.Handler) http.Handler{inst.Measure}, cfg.middlewares...)
		cfg.middlewares = append(cfg.middlewares, inst.Trace)
		metricsHandler = cfg.telemetry.MetricsHandler()
	}

	fakeOpts := []apitest.Option{apitest.WithMiddlewares(cfg.middlewares...)}
	if cfg.seed != nil {
		fakeOpts = append(fakeOpts, cfg.seed.options()...)
	}
	if cfg.socketIO {
		fakeOpts = append(fakeOpts, apitest.WithSocketIOFrames())
	}
	fake := apitest.New(fakeOpts...)

	handler := fake.Handler()
	if metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle(MetricsPath, metricsHandler)
		mux.Handle("/", handler)
		handler = mux
	}

	// No write timeout: it would also cut the hijacked push connections
	server := &http.Server{
		Addr:              cfg.address,
		Handler:           handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}

	slog.Info("Development server configured", "address", cfg.address, "records", fake.Len())
	return &DevServer{fake: fake, httpServer: server}, nil
}

// Fake returns the fake meeting service
func (d *DevServer) Fake() *apitest.Server {
	return d.fake
}

// Handler returns the root handler
func (d *DevServer) Handler() http.Handler {
	return d.httpServer.Handler
}

// Start serves until the server is stopped
func (d *DevServer) Start() error {
	slog.Info("Development server listening", "address", d.httpServer.Addr)
	if err := d.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop disconnects push subscribers and shuts the server down gracefully
func (d *DevServer) Stop(timeout time.Duration) error {
	slog.Info("Shutting down development server")
	d.fake.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := d.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("Development server shutdown complete")
	return nil
}

// LoggingMiddleware logs every request at debug level
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
