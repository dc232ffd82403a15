package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/quorumdesk/quorumdesk/internal/config"
	"github.com/quorumdesk/quorumdesk/internal/httpclient"
	"github.com/quorumdesk/quorumdesk/internal/markers"
	"github.com/quorumdesk/quorumdesk/internal/meeting"
	"github.com/quorumdesk/quorumdesk/internal/push"
	pkgsync "github.com/quorumdesk/quorumdesk/internal/sync"
	"github.com/quorumdesk/quorumdesk/internal/sync/coordinator"
	"github.com/quorumdesk/quorumdesk/internal/telemetry"
	"github.com/quorumdesk/quorumdesk/internal/voting"
)

const (
	// TracerName is the instrumentation name of session spans
	TracerName = "github.com/quorumdesk/quorumdesk"

	defaultInitialBackoff = 500 * time.Millisecond
)

// AppOption configures the session builder
//
//nolint:revive // This name is fine
type AppOption func(*appConfig) error

type appConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	httpClient httpclient.Client
	service    meeting.Service
	markers    markers.Store

	notifier       pkgsync.Notifier
	clock          func(time.Time)
	passwordPrompt func() (string, error)
	skipLogin      bool

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) AppOption {
	return func(cfg *appConfig) error {
		cfg.config = c
		return nil
	}
}

// WithHTTPClient allows injecting the HTTP client used to reach the meeting service
func WithHTTPClient(c httpclient.Client) AppOption {
	return func(cfg *appConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithService allows injecting a meeting service (for testing). No login is attempted.
func WithService(svc meeting.Service) AppOption {
	return func(cfg *appConfig) error {
		if svc == nil {
			return fmt.Errorf("service cannot be nil")
		}
		cfg.service = svc
		return nil
	}
}

// WithMarkerStore allows injecting the voted marker store
func WithMarkerStore(store markers.Store) AppOption {
	return func(cfg *appConfig) error {
		cfg.markers = store
		return nil
	}
}

// WithNotifier sets where sync notices are surfaced
func WithNotifier(n pkgsync.Notifier) AppOption {
	return func(cfg *appConfig) error {
		cfg.notifier = n
		return nil
	}
}

// WithClock sets the callback the sync loop calls on every clock tick
func WithClock(fn func(time.Time)) AppOption {
	return func(cfg *appConfig) error {
		cfg.clock = fn
		return nil
	}
}

// WithPasswordPrompt sets how the password is asked for when none is configured
func WithPasswordPrompt(prompt func() (string, error)) AppOption {
	return func(cfg *appConfig) error {
		cfg.passwordPrompt = prompt
		return nil
	}
}

// WithoutLogin skips opening a session even when a username is configured
func WithoutLogin() AppOption {
	return func(cfg *appConfig) error {
		cfg.skipLogin = true
		return nil
	}
}

// WithTelemetry sets the tracer and meter providers
func WithTelemetry(tel *telemetry.Telemetry) AppOption {
	return func(cfg *appConfig) error {
		if tel == nil {
			return nil
		}
		cfg.tracerProvider = tel.TracerProvider()
		cfg.meterProvider = tel.MeterProvider()
		return nil
	}
}

func baseConfig(opts ...AppOption) (*appConfig, error) {
	cfg := &appConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return cfg, nil
}

// NewApp builds a session from the configuration
func NewApp(ctx context.Context, opts ...AppOption) (*App, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	var tracer trace.Tracer
	if cfg.tracerProvider != nil {
		tracer = cfg.tracerProvider.Tracer(TracerName)
	}

	if cfg.httpClient == nil {
		cfg.httpClient = httpclient.NewDefaultClient(cfg.config.GetTimeout())
	}

	if cfg.service == nil {
		client, err := meeting.NewClient(cfg.config.GetBaseURL(), cfg.httpClient, meeting.WithTracer(tracer))
		if err != nil {
			return nil, fmt.Errorf("failed to create meeting client: %w", err)
		}
		if err := login(ctx, cfg, client); err != nil {
			return nil, err
		}
		cfg.service = client
	}

	if cfg.markers == nil {
		cfg.markers, err = markers.New(markers.Driver(cfg.config.GetMarkersDriver()), cfg.config.Markers.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open markers store: %w", err)
		}
	}

	// Close the markers store if a later step fails
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			_ = cfg.markers.Close()
		}
	}()

	controller, err := buildController(cfg, tracer)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	subscriber, err := buildSubscriber(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build push subscriber: %w", err)
	}

	var coordOpts []coordinator.Option
	if subscriber != nil {
		coordOpts = append(coordOpts, coordinator.WithEvents(subscriber.Events()))
	}
	if cfg.clock != nil {
		coordOpts = append(coordOpts, coordinator.WithClock(cfg.clock))
	}

	submitter, err := buildSubmitter(cfg, tracer)
	if err != nil {
		return nil, fmt.Errorf("failed to build voting components: %w", err)
	}

	cleanupNeeded = false
	slog.Info("Session components initialized",
		"base_url", cfg.config.GetBaseURL(),
		"scope", cfg.config.GetScope().String(),
		"push", subscriber != nil,
		"markers", cfg.config.GetMarkersDriver())

	return &App{
		config: cfg.config,
		components: &Components{
			Service:     cfg.service,
			Controller:  controller,
			Coordinator: coordinator.New(controller, cfg.config, coordOpts...),
			Subscriber:  subscriber,
			Submitter:   submitter,
			Markers:     cfg.markers,
		},
	}, nil
}

// login opens a session when a username is configured
func login(ctx context.Context, cfg *appConfig, client *meeting.Client) error {
	username := cfg.config.Server.Username
	if username == "" || cfg.skipLogin {
		return nil
	}

	password, err := cfg.config.GetPassword()
	if errors.Is(err, config.ErrNoPassword) && cfg.passwordPrompt != nil {
		password, err = cfg.passwordPrompt()
	}
	if err != nil {
		return fmt.Errorf("failed to resolve password for %s: %w", username, err)
	}

	if err := client.Login(ctx, username, password); err != nil {
		return err
	}
	slog.Info("Session opened", "user", username)
	return nil
}

// buildController creates the controller with its metrics
func buildController(cfg *appConfig, tracer trace.Tracer) (*pkgsync.Controller, error) {
	opts := []pkgsync.Option{
		pkgsync.WithTracer(tracer),
		pkgsync.WithConcurrencyLimit(cfg.config.Sync.MaxConcurrency),
		pkgsync.WithQuorumPolicy(cfg.config.GetQuorumPolicy()),
		pkgsync.WithDiscardPendingOnScopeChange(cfg.config.Sync.DiscardPendingOnScopeChange),
	}
	if cfg.notifier != nil {
		opts = append(opts, pkgsync.WithNotifier(cfg.notifier))
	}

	if cfg.meterProvider != nil {
		syncMetrics, err := telemetry.NewSyncMetrics(cfg.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
		if syncMetrics != nil {
			opts = append(opts, pkgsync.WithSyncMetrics(syncMetrics))
			slog.Debug("Sync metrics enabled")
		}
	}

	return pkgsync.NewController(cfg.service, opts...), nil
}

// buildSubscriber creates the push subscriber sharing the session cookie, or nil when push is disabled
func buildSubscriber(cfg *appConfig) (*push.Subscriber, error) {
	if !cfg.config.IsPushEnabled() {
		slog.Info("Push channel disabled, relying on reloads")
		return nil, nil
	}

	opts := []push.Option{
		push.WithCookieJar(cfg.httpClient.Jar()),
		push.WithBackoff(defaultInitialBackoff, cfg.config.GetPushMaxBackoff()),
	}
	if cfg.config.Push.SocketIO {
		opts = append(opts, push.WithSocketIO())
	}
	return push.NewSubscriber(cfg.config.GetBaseURL(), cfg.config.GetPushPath(), opts...)
}

// buildSubmitter creates the ballot submitter with its metrics
func buildSubmitter(cfg *appConfig, tracer trace.Tracer) (*voting.Submitter, error) {
	opts := []voting.SubmitterOption{
		voting.WithTracer(tracer),
		voting.WithConcurrencyLimit(cfg.config.Voting.MaxConcurrency),
	}
	if cfg.meterProvider != nil {
		voteMetrics, err := telemetry.NewVoteMetrics(cfg.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create vote metrics: %w", err)
		}
		if voteMetrics != nil {
			opts = append(opts, voting.WithVoteMetrics(voteMetrics))
		}
	}
	return voting.NewSubmitter(cfg.service, cfg.markers, opts...), nil
}
