package voting

import (
	"fmt"
	"sort"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
)

// Ballot holds the selections of a voting session for one question, keyed by attendee id
type Ballot struct {
	VotingID   string
	Question   Question
	selections map[int64]int64
}

// NewBallot creates an empty ballot for a question
func NewBallot(votingID string, question Question) *Ballot {
	return &Ballot{
		VotingID:   votingID,
		Question:   question,
		selections: make(map[int64]int64),
	}
}

// Select sets the option chosen by an attendee
func (b *Ballot) Select(attendeeID, optionID int64) error {
	if _, ok := b.Question.Option(optionID); !ok {
		return fmt.Errorf("%w %d for question %d", ErrUnknownOption, optionID, b.Question.ID)
	}
	b.selections[attendeeID] = optionID
	return nil
}

// AssignAll selects the same option for every attendee given
func (b *Ballot) AssignAll(optionID int64, attendees []attendance.Record) error {
	if _, ok := b.Question.Option(optionID); !ok {
		return fmt.Errorf("%w %d for question %d", ErrUnknownOption, optionID, b.Question.ID)
	}
	for _, a := range attendees {
		b.selections[a.ID] = optionID
	}
	return nil
}

// Clear removes the selection of an attendee
func (b *Ballot) Clear(attendeeID int64) {
	delete(b.selections, attendeeID)
}

// Selection returns the option chosen by an attendee
func (b *Ballot) Selection(attendeeID int64) (int64, bool) {
	id, ok := b.selections[attendeeID]
	return id, ok
}

// Len returns the number of attendees with a selection
func (b *Ballot) Len() int {
	return len(b.selections)
}

// Votes builds one vote per attendee with a selection, in attendee order.
// Selections of ids not listed in attendees are ignored since their shares are unknown.
func (b *Ballot) Votes(attendees []attendance.Record) []Vote {
	votes := make([]Vote, 0, len(b.selections))
	for _, a := range attendees {
		optionID, ok := b.selections[a.ID]
		if !ok {
			continue
		}
		votes = append(votes, Vote{
			VotingID:   b.VotingID,
			QuestionID: b.Question.ID,
			OptionID:   optionID,
			Shares:     max(a.Shares, 0),
		})
	}
	return votes
}

// TallyEntry is the running result of one option
type TallyEntry struct {
	Option Option
	Count  int
	Shares int64
}

// Tally counts the selections and summed shares per option, in option order
func (b *Ballot) Tally(attendees []attendance.Record) []TallyEntry {
	byOption := make(map[int64]*TallyEntry, len(b.Question.Options))
	entries := make([]TallyEntry, len(b.Question.Options))
	for i, o := range b.Question.Options {
		entries[i].Option = o
		byOption[o.ID] = &entries[i]
	}
	for _, v := range b.Votes(attendees) {
		if e, ok := byOption[v.OptionID]; ok {
			e.Count++
			e.Shares += v.Shares
		}
	}
	return entries
}

// Selections returns the attendee ids with a selection, sorted
func (b *Ballot) Selections() []int64 {
	ids := make([]int64, 0, len(b.selections))
	for id := range b.selections {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
