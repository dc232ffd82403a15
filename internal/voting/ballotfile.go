package voting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
)

// ErrUnknownQuestion is returned when a ballot file names a question the session does not have
var ErrUnknownQuestion = errors.New("unknown question")

// BallotFile is the YAML form of a ballot:
//
//	question: 4
//	assignAll: 10
//	selections:
//	  12: 11
//
// Selections are applied after assignAll, so they override it for single attendees.
type BallotFile struct {
	Question   int64           `yaml:"question"`
	AssignAll  *int64          `yaml:"assignAll,omitempty"`
	Selections map[int64]int64 `yaml:"selections,omitempty"`
}

// LoadBallotFile reads and parses a ballot file
func LoadBallotFile(path string) (*BallotFile, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read ballot file: %w", err)
	}
	var f BallotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse ballot file: %w", err)
	}
	if f.Question <= 0 {
		return nil, fmt.Errorf("ballot file: question must be positive")
	}
	return &f, nil
}

// Build resolves the file against the questions and attendees of a session
func (f *BallotFile) Build(votingID string, questions []Question, attendees []attendance.Record) (*Ballot, error) {
	var question *Question
	for i := range questions {
		if questions[i].ID == f.Question {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		return nil, fmt.Errorf("%w %d in voting %s", ErrUnknownQuestion, f.Question, votingID)
	}

	ballot := NewBallot(votingID, *question)
	if f.AssignAll != nil {
		if err := ballot.AssignAll(*f.AssignAll, attendees); err != nil {
			return nil, err
		}
	}
	for attendeeID, optionID := range f.Selections {
		if err := ballot.Select(attendeeID, optionID); err != nil {
			return nil, fmt.Errorf("attendee %d: %w", attendeeID, err)
		}
	}
	return ballot, nil
}
