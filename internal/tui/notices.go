package tui

import pkgsync "github.com/quorumdesk/quorumdesk/internal/sync"

// NoticeQueue is a Notifier that hands notices to the model.
// When the queue is full the notice is dropped; the log still has it.
type NoticeQueue struct {
	ch   chan pkgsync.Notice
	next pkgsync.Notifier
}

// NewNoticeQueue creates a queue that also forwards every notice to next, if not nil
func NewNoticeQueue(size int, next pkgsync.Notifier) *NoticeQueue {
	return &NoticeQueue{
		ch:   make(chan pkgsync.Notice, max(size, 1)),
		next: next,
	}
}

// Notify implements pkgsync.Notifier
func (q *NoticeQueue) Notify(n pkgsync.Notice) {
	if q.next != nil {
		q.next.Notify(n)
	}
	select {
	case q.ch <- n:
	default:
	}
}

// C returns the channel notices are delivered on
func (q *NoticeQueue) C() <-chan pkgsync.Notice {
	return q.ch
}
