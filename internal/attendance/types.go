// Package attendance holds the attendance replica of a shareholder meeting, the
// pending-edit overlay on top of it and the aggregation used by every view.
package attendance

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the attendance state of a record
type Status string

const (
	// StatusInPerson means the shareholder attends in the room
	StatusInPerson Status = "PRESENCIAL"

	// StatusVirtual means the shareholder attends remotely
	StatusVirtual Status = "VIRTUAL"

	// StatusAbsent means the shareholder is not attending
	StatusAbsent Status = "AUSENTE"
)

var (
	// ErrInvalidStatus is returned when a value is not one of the known statuses
	ErrInvalidStatus = errors.New("invalid attendance status")

	// ErrUnknownRecord is returned when an edit targets an id that is not in the replica
	ErrUnknownRecord = errors.New("unknown attendance record")
)

// AllStatuses lists the statuses in display order
var AllStatuses = []Status{StatusInPerson, StatusVirtual, StatusAbsent}

// ParseStatus parses a status, ignoring case and surrounding whitespace
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
	return s, nil
}

// NormalizeStatus parses a status and falls back to StatusAbsent for unknown values.
// This is the rule the server applies to imported attendee lists.
func NormalizeStatus(value string) Status {
	s, err := ParseStatus(value)
	if err != nil {
		return StatusAbsent
	}
	return s
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusInPerson, StatusVirtual, StatusAbsent:
		return true
	}
	return false
}

// Present reports whether the status counts towards quorum
func (s Status) Present() bool {
	return s == StatusInPerson || s == StatusVirtual
}

// Record is one row of the meeting attendance list as served by the remote service.
// Name fields are optional; a JSON null decodes to the empty string.
type Record struct {
	ID                  int64  `json:"id"`
	Shareholder         string `json:"accionista"`
	LegalRepresentative string `json:"representante"`
	Proxy               string `json:"apoderado"`
	Shares              int64  `json:"acciones"`
	Status              Status `json:"estado"`
}

// DisplayName returns the first non-empty name field
func (r Record) DisplayName() string {
	for _, name := range []string{r.Shareholder, r.LegalRepresentative, r.Proxy} {
		if name != "" {
			return name
		}
	}
	return ""
}

// searchText is the haystack the text filter looks into
func (r Record) searchText() string {
	return r.Shareholder + " " + r.LegalRepresentative + " " + r.Proxy
}

// Scope selects which attendance list is loaded.
// An empty VotingID means the global attendance list.
type Scope struct {
	VotingID string
}

// IsVoting reports whether the scope is tied to a voting session
func (s Scope) IsVoting() bool {
	return s.VotingID != ""
}

// String returns a printable form of the scope
func (s Scope) String() string {
	if s.VotingID == "" {
		return "global"
	}
	return "votacion " + s.VotingID
}

// Edit is a proposed status for a record that has not been confirmed by the server
type Edit struct {
	ID     int64  `json:"id"`
	Status Status `json:"estado"`
}

// Row is a record as seen by views: the replica plus its effective status
type Row struct {
	Record
	Effective Status
	Pending   bool
}
