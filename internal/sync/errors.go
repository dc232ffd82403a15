package sync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
)

// EditFailure is one edit the service did not accept
type EditFailure struct {
	Edit attendance.Edit
	Err  error
}

// FlushError is returned when some edits of a flush failed. Every edit of the batch,
// including the accepted ones, stays pending.
type FlushError struct {
	Attempted int
	Failures  []EditFailure
}

func (e *FlushError) Error() string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = fmt.Sprintf("%d", f.Edit.ID)
	}
	return fmt.Sprintf("%d of %d edits failed (ids %s): %v",
		len(e.Failures), e.Attempted, strings.Join(ids, ", "), e.Failures[0].Err)
}

// Unwrap returns the cause of every failed edit
func (e *FlushError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// FailedIDs returns the ids of the failed edits
func (e *FlushError) FailedIDs() []int64 {
	ids := make([]int64, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.Edit.ID
	}
	return ids
}

// IsFlushError reports whether err is a partial flush failure
func IsFlushError(err error) bool {
	var fe *FlushError
	return errors.As(err, &fe)
}
