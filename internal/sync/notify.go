package sync

import (
	"log/slog"
)

// Severity classifies a notice
type Severity int

const (
	// SeverityInfo is a status message
	SeverityInfo Severity = iota

	// SeverityError is a failure the operator must acknowledge
	SeverityError
)

// String returns the severity name
func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "info"
}

// Notice is a user-visible message produced by an operation
type Notice struct {
	Severity Severity
	Op       string
	Message  string
	Err      error
}

// Notifier surfaces notices to the operator
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notice)

// Notify implements Notifier
func (f NotifierFunc) Notify(n Notice) {
	f(n)
}

// LogNotifier writes notices to the default logger
type LogNotifier struct{}

// Notify implements Notifier
func (LogNotifier) Notify(n Notice) {
	if n.Severity == SeverityError {
		slog.Error(n.Message, "op", n.Op, "error", n.Err)
		return
	}
	slog.Info(n.Message, "op", n.Op)
}
