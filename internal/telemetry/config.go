// Package telemetry wires OpenTelemetry tracing and metrics into quorumdesk.
//
// Traces are exported over OTLP/HTTP. Metrics are either pushed to the same
// collector or kept in a private Prometheus registry that the watch command
// and the development server expose for scraping.
package telemetry

import (
	"errors"
	"fmt"
)

const (
	// DefaultServiceName identifies quorumdesk in exported resources
	DefaultServiceName = "quorumdesk"

	// DefaultEndpoint is the OTLP/HTTP collector address
	DefaultEndpoint = "localhost:4318"

	// DefaultMetricsListenAddress is where scraped metrics are served
	DefaultMetricsListenAddress = "127.0.0.1:9464"

	// DefaultSampling is the ratio of traces kept when none is configured
	DefaultSampling = 0.05
)

// Metrics exporters
const (
	MetricsExporterOTLP       = "otlp"
	MetricsExporterPrometheus = "prometheus"
)

// Config is the telemetry section of the configuration file.
// A nil or disabled Config yields no-op providers.
type Config struct {
	Enabled bool `yaml:"enabled"`

	// ServiceName defaults to DefaultServiceName
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion defaults to the build version
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the collector as host:port; the exporters append /v1/traces and /v1/metrics
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure sends OTLP over plain HTTP
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig controls flush and request spans
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of root spans kept, in (0, 1]
	Sampling *float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig controls the sync, voting and HTTP instruments
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is MetricsExporterOTLP (default) or MetricsExporterPrometheus
	Exporter string `yaml:"exporter,omitempty"`

	// ListenAddress is only used by the Prometheus exporter
	ListenAddress string `yaml:"listenAddress,omitempty"`
}

// GetListenAddress returns the scrape address, falling back to DefaultMetricsListenAddress
func (c *MetricsConfig) GetListenAddress() string {
	if c == nil || c.ListenAddress == "" {
		return DefaultMetricsListenAddress
	}
	return c.ListenAddress
}

func (c *MetricsConfig) exporter() string {
	if c == nil || c.Exporter == "" {
		return MetricsExporterOTLP
	}
	return c.Exporter
}

func (c *TracingConfig) ratio() float64 {
	if c == nil || c.Sampling == nil {
		return DefaultSampling
	}
	return *c.Sampling
}

func (c *Config) serviceName() string {
	return valueOr(c.ServiceName, DefaultServiceName)
}

func (c *Config) serviceVersion() string {
	return valueOr(c.ServiceVersion, "unknown")
}

func (c *Config) endpoint() string {
	return valueOr(c.Endpoint, DefaultEndpoint)
}

func (c *Config) tracingEnabled() bool {
	return c != nil && c.Enabled && c.Tracing != nil && c.Tracing.Enabled
}

func (c *Config) metricsEnabled() bool {
	return c != nil && c.Enabled && c.Metrics != nil && c.Metrics.Enabled
}

// scraped reports whether metrics go to a Prometheus registry instead of the collector
func (c *Config) scraped() bool {
	return c.metricsEnabled() && c.Metrics.exporter() == MetricsExporterPrometheus
}

// Validate checks the enabled sections. Disabled sections are not inspected.
func (c *Config) Validate() error {
	var errs []error
	if c.tracingEnabled() {
		if s := c.Tracing.ratio(); s <= 0 || s > 1 {
			errs = append(errs, fmt.Errorf("tracing.sampling: %g is outside (0, 1]", s))
		}
	}
	if c.metricsEnabled() {
		switch e := c.Metrics.exporter(); e {
		case MetricsExporterOTLP, MetricsExporterPrometheus:
		default:
			errs = append(errs, fmt.Errorf("metrics.exporter: unknown exporter %q (want %q or %q)",
				e, MetricsExporterOTLP, MetricsExporterPrometheus))
		}
	}
	return errors.Join(errs...)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
