// Package telemetry provides OpenTelemetry instrumentation for quorumdesk.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the attendance sync metrics meter
	SyncMetricsMeterName = "github.com/quorumdesk/quorumdesk/sync"

	// VoteMetricsMeterName is the name used for the voting metrics meter
	VoteMetricsMeterName = "github.com/quorumdesk/quorumdesk/voting"
)

// SyncMetrics holds the OpenTelemetry instruments for attendance sync metrics
type SyncMetrics struct {
	flushDuration metric.Float64Histogram
	pendingEdits  metric.Int64Gauge
	remoteUpdates metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	flushDuration, err := meter.Float64Histogram(
		"quorumdesk_flush_duration_seconds",
		metric.WithDescription("Duration of pending edit flushes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	pendingEdits, err := meter.Int64Gauge(
		"quorumdesk_pending_edits",
		metric.WithDescription("Number of attendance edits not yet confirmed by the server"),
		metric.WithUnit("{edit}"),
	)
	if err != nil {
		return nil, err
	}

	remoteUpdates, err := meter.Int64Counter(
		"quorumdesk_remote_updates_total",
		metric.WithDescription("Number of attendance updates received on the push channel"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		flushDuration: flushDuration,
		pendingEdits:  pendingEdits,
		remoteUpdates: remoteUpdates,
	}, nil
}

// RecordFlushDuration records the duration of a flush for a scope
func (m *SyncMetrics) RecordFlushDuration(ctx context.Context, scope string, duration time.Duration, success bool) {
	if m == nil || m.flushDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("scope", scope),
		attribute.Bool("success", success),
	}

	m.flushDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordPendingEdits records the current number of pending edits
func (m *SyncMetrics) RecordPendingEdits(ctx context.Context, scope string, count int64) {
	if m == nil || m.pendingEdits == nil {
		return
	}

	m.pendingEdits.Record(ctx, count, metric.WithAttributes(attribute.String("scope", scope)))
}

// RecordRemoteUpdate counts an inbound update; known is false when the id is not in the replica
func (m *SyncMetrics) RecordRemoteUpdate(ctx context.Context, scope string, known bool) {
	if m == nil || m.remoteUpdates == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("scope", scope),
		attribute.Bool("known", known),
	}

	m.remoteUpdates.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// VoteMetrics holds the OpenTelemetry instruments for vote submission metrics
type VoteMetrics struct {
	votesTotal metric.Int64Counter
	batches    metric.Int64Counter
}

// NewVoteMetrics creates a new VoteMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewVoteMetrics(provider metric.MeterProvider) (*VoteMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(VoteMetricsMeterName)

	votesTotal, err := meter.Int64Counter(
		"quorumdesk_votes_total",
		metric.WithDescription("Number of votes sent to the server"),
		metric.WithUnit("{vote}"),
	)
	if err != nil {
		return nil, err
	}

	batches, err := meter.Int64Counter(
		"quorumdesk_vote_batches_total",
		metric.WithDescription("Number of question submissions"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, err
	}

	return &VoteMetrics{
		votesTotal: votesTotal,
		batches:    batches,
	}, nil
}

// RecordVoteBatch records one question submission and the votes it sent
func (m *VoteMetrics) RecordVoteBatch(ctx context.Context, votingID string, votes int, success bool) {
	if m == nil || m.batches == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("voting_id", votingID),
		attribute.Bool("success", success),
	)

	m.batches.Add(ctx, 1, attrs)
	m.votesTotal.Add(ctx, int64(votes), attrs)
}
