package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
	"github.com/quorumdesk/quorumdesk/internal/otel"
	"github.com/quorumdesk/quorumdesk/internal/telemetry"
)

// VoteFailure is one vote the service did not accept
type VoteFailure struct {
	Vote Vote
	Err  error
}

// BatchError is returned when some votes of a batch failed
type BatchError struct {
	Attempted int
	Failures  []VoteFailure
}

// Error implements error
func (e *BatchError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, fmt.Sprintf("opcion %d (%d acciones): %v", f.Vote.OptionID, f.Vote.Shares, f.Err))
	}
	return fmt.Sprintf("%d of %d votes failed: %s", len(e.Failures), e.Attempted, strings.Join(msgs, "; "))
}

// Unwrap returns the individual vote errors
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Request describes one question submission
type Request struct {
	Ballot    *Ballot
	Attendees []attendance.Record

	// Force submits even if the question is already marked as voted
	Force bool
}

// Result summarizes a submission
type Result struct {
	Requests int
	Failed   int
	Marked   bool
}

// Submitter sends ballots to the meeting service
type Submitter struct {
	caster  Caster
	markers MarkerStore
	limit   int
	tracer  trace.Tracer
	metrics *telemetry.VoteMetrics
}

// SubmitterOption configures a Submitter
type SubmitterOption func(*Submitter)

// WithConcurrencyLimit bounds the number of votes in flight. Zero or negative means unbounded.
func WithConcurrencyLimit(n int) SubmitterOption {
	return func(s *Submitter) {
		s.limit = n
	}
}

// WithTracer sets the tracer used for submission spans
func WithTracer(tracer trace.Tracer) SubmitterOption {
	return func(s *Submitter) {
		s.tracer = tracer
	}
}

// WithVoteMetrics sets the metrics recorded for every batch
func WithVoteMetrics(metrics *telemetry.VoteMetrics) SubmitterOption {
	return func(s *Submitter) {
		s.metrics = metrics
	}
}

// NewSubmitter creates a Submitter
func NewSubmitter(caster Caster, markers MarkerStore, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		caster:  caster,
		markers: markers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit sends one vote per attendee with a selection, all concurrently.
// The question is marked as voted only when every vote was accepted.
func (s *Submitter) Submit(ctx context.Context, req Request) (Result, error) {
	ballot := req.Ballot
	ctx, span := otel.StartSpan(ctx, s.tracer, "voting.Submit",
		trace.WithAttributes(
			otel.AttrVotingID.String(ballot.VotingID),
			otel.AttrQuestionID.Int64(ballot.Question.ID),
		),
	)
	defer span.End()

	votes := ballot.Votes(req.Attendees)
	if len(votes) == 0 {
		return Result{}, ErrEmptyBallot
	}

	if !req.Force {
		voted, err := s.markers.IsVoted(ctx, ballot.VotingID, ballot.Question.ID)
		if err != nil {
			otel.RecordError(span, err)
			return Result{}, fmt.Errorf("failed to read voted marker: %w", err)
		}
		if voted {
			return Result{}, fmt.Errorf("%w: %s", ErrAlreadyVoted, MarkerKey(ballot.VotingID, ballot.Question.ID))
		}
	}

	slog.Info("Submitting votes",
		"voting_id", ballot.VotingID,
		"question_id", ballot.Question.ID,
		"votes", len(votes))

	// errs[i] is only written by the goroutine of vote i
	errs := make([]error, len(votes))
	var g errgroup.Group
	if s.limit > 0 {
		g.SetLimit(s.limit)
	}
	for i, v := range votes {
		g.Go(func() error {
			errs[i] = s.caster.CastVote(ctx, v)
			return nil
		})
	}
	_ = g.Wait()

	result := Result{Requests: len(votes)}
	var failures []VoteFailure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, VoteFailure{Vote: votes[i], Err: err})
		}
	}
	result.Failed = len(failures)
	s.metrics.RecordVoteBatch(ctx, ballot.VotingID, len(votes), len(failures) == 0)

	if len(failures) > 0 {
		batchErr := &BatchError{Attempted: len(votes), Failures: failures}
		otel.RecordError(span, batchErr)
		slog.Error("Vote batch failed",
			"voting_id", ballot.VotingID,
			"question_id", ballot.Question.ID,
			"failed", len(failures),
			"attempted", len(votes))
		return result, batchErr
	}

	if err := s.markers.MarkVoted(ctx, ballot.VotingID, ballot.Question.ID); err != nil {
		otel.RecordError(span, err)
		return result, fmt.Errorf("votes were accepted but the voted marker could not be saved: %w", err)
	}
	result.Marked = true
	return result, nil
}

// IsBatchError reports whether err carries a *BatchError
func IsBatchError(err error) bool {
	var batchErr *BatchError
	return errors.As(err, &batchErr)
}
