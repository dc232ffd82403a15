package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
	"github.com/quorumdesk/quorumdesk/internal/meeting"
	"github.com/quorumdesk/quorumdesk/internal/otel"
	"github.com/quorumdesk/quorumdesk/internal/telemetry"
)

// FlushResult summarizes one flush
type FlushResult struct {
	Attempted int
	Failed    int
}

// View is what a front end renders for a filter
type View struct {
	Scope attendance.Scope

	// Rows are the visible rows, in replica order
	Rows []attendance.Row

	// Summary aggregates the visible rows
	Summary attendance.Summary

	// Quorum is evaluated over every row, regardless of the filter
	Quorum attendance.QuorumResult

	Total   int
	Pending int
}

// Controller coordinates the local replica with the meeting service. It is safe for
// concurrent use.
type Controller struct {
	svc   meeting.Service
	store *attendance.Store

	mu     sync.RWMutex
	policy attendance.QuorumPolicy

	// flushMu serializes flushes
	flushMu sync.Mutex

	subMu       sync.Mutex
	subscribers map[chan struct{}]struct{}

	notifier             Notifier
	tracer               trace.Tracer
	metrics              *telemetry.SyncMetrics
	limit                int
	discardOnScopeChange bool
}

// Option configures a Controller
type Option func(*Controller)

// WithNotifier sets where notices are surfaced. Defaults to LogNotifier.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithTracer sets the tracer used for load and flush spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		c.tracer = tracer
	}
}

// WithSyncMetrics sets the metrics recorded by the controller
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *Controller) {
		c.metrics = metrics
	}
}

// WithConcurrencyLimit bounds the number of updates in flight during a flush.
// Zero or negative means unbounded.
func WithConcurrencyLimit(n int) Option {
	return func(c *Controller) {
		c.limit = n
	}
}

// WithQuorumPolicy sets the initial quorum policy. Loading a voting scope replaces the
// minimum with the one configured on the service.
func WithQuorumPolicy(policy attendance.QuorumPolicy) Option {
	return func(c *Controller) {
		c.policy = policy
	}
}

// WithDiscardPendingOnScopeChange drops pending edits when Load switches to another scope
func WithDiscardPendingOnScopeChange(discard bool) Option {
	return func(c *Controller) {
		c.discardOnScopeChange = discard
	}
}

// NewController creates a controller with an empty replica
func NewController(svc meeting.Service, opts ...Option) *Controller {
	c := &Controller{
		svc:         svc,
		store:       attendance.NewStore(),
		subscribers: make(map[chan struct{}]struct{}),
		notifier:    LogNotifier{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the replica owned by the controller
func (c *Controller) Store() *attendance.Store {
	return c.store
}

// QuorumPolicy returns the current quorum policy
func (c *Controller) QuorumPolicy() attendance.QuorumPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policy
}

// Load replaces the replica with the attendance list of scope. For a voting scope the
// quorum minimum of the session is loaded too.
func (c *Controller) Load(ctx context.Context, scope attendance.Scope) error {
	ctx, span := otel.StartSpan(ctx, c.tracer, "sync.Load",
		trace.WithAttributes(otel.AttrScope.String(scope.String())))
	defer span.End()

	records, err := c.svc.ListAttendance(ctx, scope)
	if err != nil {
		otel.RecordError(span, err)
		c.notify(SeverityError, "load", "No se pudo cargar la lista de asistencia", err)
		return fmt.Errorf("failed to load %s: %w", scope, err)
	}

	var quorum *meeting.QuorumConfig
	if scope.IsVoting() {
		cfg, err := c.svc.QuorumConfig(ctx, scope.VotingID)
		if err != nil {
			otel.RecordError(span, err)
			c.notify(SeverityError, "load", "No se pudo cargar el quorum de la votación", err)
			return fmt.Errorf("failed to load quorum of %s: %w", scope, err)
		}
		quorum = &cfg
	}

	if previous := c.store.Scope(); previous != scope && c.discardOnScopeChange {
		if n := c.store.DiscardPending(); n > 0 {
			slog.Warn("Discarded pending edits on scope change",
				"from", previous.String(),
				"to", scope.String(),
				"count", n)
		}
	}
	c.store.Replace(scope, records)

	if quorum != nil {
		c.mu.Lock()
		c.policy.Minimum = quorum.Minimum
		c.mu.Unlock()
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(records)))
	slog.Info("Attendance loaded", "scope", scope.String(), "records", len(records))
	c.metrics.RecordPendingEdits(ctx, scope.String(), int64(c.store.PendingCount()))
	c.changed()
	return nil
}

// Edit records a local status change for one record
func (c *Controller) Edit(id int64, status attendance.Status) error {
	if err := c.store.ApplyLocalEdit(id, status); err != nil {
		return err
	}
	c.metrics.RecordPendingEdits(context.Background(), c.store.Scope().String(), int64(c.store.PendingCount()))
	c.changed()
	return nil
}

// MarkAll sets status on every row visible through filter and flushes immediately.
// It returns the number of rows edited.
func (c *Controller) MarkAll(ctx context.Context, status attendance.Status, filter attendance.Filter) (int, FlushResult, error) {
	if !status.Valid() {
		return 0, FlushResult{}, fmt.Errorf("%w: %q", attendance.ErrInvalidStatus, status)
	}
	rows, err := attendance.Visible(c.store.Rows(), filter)
	if err != nil {
		return 0, FlushResult{}, err
	}
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	edited, skipped, err := c.store.ApplyLocalEdits(ids, status)
	if err != nil {
		return 0, FlushResult{}, err
	}
	if len(skipped) > 0 {
		slog.Warn("Rows left the list while marking", "ids", skipped)
	}
	slog.Info("Marked visible rows", "status", status, "rows", edited)
	c.changed()

	result, err := c.flush(ctx, "mark-all")
	return edited, result, err
}

// Save flushes every pending edit now
func (c *Controller) Save(ctx context.Context) (FlushResult, error) {
	return c.flush(ctx, "save")
}

// AutoSave flushes only when pending edits exist
func (c *Controller) AutoSave(ctx context.Context) (FlushResult, error) {
	if c.store.PendingCount() == 0 {
		return FlushResult{}, nil
	}
	return c.flush(ctx, "autosave")
}

// HandleRemote applies a status change pushed by the service. Remote truth clears any
// pending edit for the record.
func (c *Controller) HandleRemote(ctx context.Context, id int64, status attendance.Status) {
	scope := c.store.Scope().String()
	known := c.store.ApplyRemoteUpdate(id, status)
	if !known {
		slog.Debug("Remote update for a record outside the replica", "id", id, "status", status)
	}
	c.metrics.RecordRemoteUpdate(ctx, scope, known)
	c.metrics.RecordPendingEdits(ctx, scope, int64(c.store.PendingCount()))
	c.changed()
}

// View builds the rows, summary and quorum for filter
func (c *Controller) View(filter attendance.Filter) (View, error) {
	all := c.store.Rows()
	visible, err := attendance.Visible(all, filter)
	if err != nil {
		return View{}, err
	}
	return View{
		Scope:   c.store.Scope(),
		Rows:    visible,
		Summary: attendance.Aggregate(visible),
		Quorum:  c.QuorumPolicy().Evaluate(attendance.Aggregate(all)),
		Total:   len(all),
		Pending: c.store.PendingCount(),
	}, nil
}

// Subscribe returns a channel that receives a value after every change. Notifications
// are coalesced: a slow reader sees at most one queued value. Call the returned function
// to unsubscribe.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.subMu.Lock()
	c.subscribers[ch] = struct{}{}
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subscribers, ch)
			c.subMu.Unlock()
		})
	}
}

func (c *Controller) changed() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Controller) notify(severity Severity, op, message string, err error) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(Notice{Severity: severity, Op: op, Message: message, Err: err})
}

// flush pushes the pending edits concurrently. Pending edits are confirmed only when every
// request succeeded.
func (c *Controller) flush(ctx context.Context, op string) (FlushResult, error) {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	edits := c.store.PendingEdits()
	if len(edits) == 0 {
		return FlushResult{}, nil
	}
	scope := c.store.Scope()

	ctx, span := otel.StartSpan(ctx, c.tracer, "sync.Flush",
		trace.WithAttributes(
			otel.AttrScope.String(scope.String()),
			otel.AttrEditCount.Int(len(edits)),
		))
	defer span.End()

	start := time.Now()

	// errs[i] is only written by the goroutine of edit i
	errs := make([]error, len(edits))
	var g errgroup.Group
	if c.limit > 0 {
		g.SetLimit(c.limit)
	}
	for i, e := range edits {
		g.Go(func() error {
			errs[i] = c.svc.UpdateStatus(ctx, e.ID, e.Status, scope)
			return nil
		})
	}
	_ = g.Wait()

	var failures []EditFailure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, EditFailure{Edit: edits[i], Err: err})
		}
	}
	result := FlushResult{Attempted: len(edits), Failed: len(failures)}
	c.metrics.RecordFlushDuration(ctx, scope.String(), time.Since(start), len(failures) == 0)
	span.SetAttributes(otel.AttrFailedCount.Int(len(failures)))

	if len(failures) > 0 {
		flushErr := &FlushError{Attempted: len(edits), Failures: failures}
		otel.RecordError(span, flushErr)
		slog.Error("Flush failed, edits stay pending",
			"op", op,
			"scope", scope.String(),
			"failed", len(failures),
			"attempted", len(edits))
		c.notify(SeverityError, op, "No se pudieron guardar algunos cambios", flushErr)
		return result, flushErr
	}

	c.store.ConfirmEdits(edits)
	c.metrics.RecordPendingEdits(ctx, scope.String(), int64(c.store.PendingCount()))
	slog.Info("Flush completed", "op", op, "scope", scope.String(), "edits", len(edits))
	c.notify(SeverityInfo, op, fmt.Sprintf("%d cambios guardados", len(edits)), nil)
	c.changed()
	return result, nil
}
