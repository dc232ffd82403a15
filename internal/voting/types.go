// Package voting implements share-weighted voting on multiple-choice questions:
// ballots, tallies and batch submission of votes for a question.
package voting

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownOption is returned when a selection names an option the question does not offer
	ErrUnknownOption = errors.New("unknown option")

	// ErrEmptyBallot is returned when a ballot has no selections
	ErrEmptyBallot = errors.New("ballot has no selections")

	// ErrAlreadyVoted is returned when a question was already submitted from this client
	ErrAlreadyVoted = errors.New("question already voted")
)

// Option is one of the choices of a question
type Option struct {
	ID   int64  `json:"id"`
	Text string `json:"texto"`
}

// Question is a multiple-choice question of a voting session
type Question struct {
	ID      int64    `json:"id"`
	Text    string   `json:"texto"`
	Options []Option `json:"opciones"`
}

// Option returns the option with the given id
func (q Question) Option(id int64) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Vote is the choice of one attendee for one question, weighted by the attendee's shares
type Vote struct {
	VotingID   string `json:"votacion_id"`
	QuestionID int64  `json:"pregunta_id"`
	OptionID   int64  `json:"opcion_id"`
	Shares     int64  `json:"acciones"`
}

// Caster sends a single vote to the meeting service
type Caster interface {
	CastVote(ctx context.Context, vote Vote) error
}

//go:generate mockgen -destination=mocks/mock_voting.go -package=mocks -source=types.go Caster,MarkerStore

// MarkerStore remembers which questions were already submitted from this client.
// Markers are local only and never checked against the server.
type MarkerStore interface {
	// IsVoted reports whether the question was marked as voted
	IsVoted(ctx context.Context, votingID string, questionID int64) (bool, error)

	// MarkVoted records the question as voted
	MarkVoted(ctx context.Context, votingID string, questionID int64) error

	// Unmark removes the marker of a question
	Unmark(ctx context.Context, votingID string, questionID int64) error
}

// MarkerKey returns the key a marker is stored under
func MarkerKey(votingID string, questionID int64) string {
	return fmt.Sprintf("votacion_%s_p%d", votingID, questionID)
}
