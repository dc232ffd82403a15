// Package meeting is the client of the meeting administration service: attendance,
// voting sessions, attendee list import, report export and login.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
	"github.com/quorumdesk/quorumdesk/internal/voting"
)

var (
	// ErrNoFile is returned when an import is requested without a file
	ErrNoFile = errors.New("no file selected")

	// ErrUnsupportedFile is returned when the import file is not a spreadsheet
	ErrUnsupportedFile = errors.New("unsupported file format, expected .xls or .xlsx")

	// ErrUnsupportedFormat is returned for an unknown export format
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrInvalidCredentials is returned when the server does not open a session
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionExpired is returned when the server answers with its login page instead of data
	ErrSessionExpired = errors.New("unexpected HTML response, the session may have expired")

	// ErrImportRejected is returned when the server refuses an uploaded attendee list
	ErrImportRejected = errors.New("import rejected by server")
)

// ExportFormat is a report format produced by the server
type ExportFormat string

const (
	// ExportExcel is an .xlsx spreadsheet
	ExportExcel ExportFormat = "excel"
	// ExportCSV is a comma separated file
	ExportCSV ExportFormat = "csv"
	// ExportPDF is a chart report
	ExportPDF ExportFormat = "pdf"
)

// ParseExportFormat validates an export format name
func ParseExportFormat(value string) (ExportFormat, error) {
	switch f := ExportFormat(value); f {
	case ExportExcel, ExportCSV, ExportPDF:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, value)
}

// Extension returns the file extension the server uses for the format
func (f ExportFormat) Extension() string {
	switch f {
	case ExportExcel:
		return ".xlsx"
	case ExportCSV:
		return ".csv"
	case ExportPDF:
		return ".pdf"
	}
	return ""
}

// QuorumConfig is the quorum setting of a voting session
type QuorumConfig struct {
	Minimum int64 `json:"quorum_minimo"`
}

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go Service

// Service defines the operations of the remote meeting service
type Service interface {
	// ListAttendance returns the full attendance list of a scope
	ListAttendance(ctx context.Context, scope attendance.Scope) ([]attendance.Record, error)

	// UpdateStatus sets the attendance status of one record
	UpdateStatus(ctx context.Context, id int64, status attendance.Status, scope attendance.Scope) error

	// QuorumConfig returns the quorum setting of a voting session
	QuorumConfig(ctx context.Context, votingID string) (QuorumConfig, error)

	// ListAttendees returns the attendees allowed to vote in a session
	ListAttendees(ctx context.Context, votingID string) ([]attendance.Record, error)

	// ListQuestions returns the questions of a session with their options
	ListQuestions(ctx context.Context, votingID string) ([]voting.Question, error)

	// CastVote sends a single vote
	CastVote(ctx context.Context, vote voting.Vote) error

	// ImportAttendance uploads a spreadsheet that replaces the attendance list
	ImportAttendance(ctx context.Context, filename string, content io.Reader) error

	// Export downloads a report into w and returns the number of bytes written
	Export(ctx context.Context, format ExportFormat, w io.Writer) (int64, error)

	// Login opens a session; the session cookie is reused by every later call
	Login(ctx context.Context, username, password string) error
}
