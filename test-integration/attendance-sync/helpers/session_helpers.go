package helpers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/onsi/gomega"

	qdapp "github.com/quorumdesk/quorumdesk/internal/app"
	"github.com/quorumdesk/quorumdesk/internal/attendance"
	"github.com/quorumdesk/quorumdesk/internal/config"
	pkgsync "github.com/quorumdesk/quorumdesk/internal/sync"
)

// SessionTestHelper manages a quorumdesk session running against a fake server
type SessionTestHelper struct {
	ctx    context.Context
	config *config.Config
	app    *qdapp.App

	cancel context.CancelFunc
	done   chan error
	ticks  atomic.Int64
}

// NewSessionTestHelper builds a session from cfg
func NewSessionTestHelper(ctx context.Context, cfg *config.Config, opts ...qdapp.AppOption) (*SessionTestHelper, error) {
	h := &SessionTestHelper{ctx: ctx, config: cfg}

	opts = append([]qdapp.AppOption{
		qdapp.WithConfig(cfg),
		qdapp.WithClock(func(time.Time) { h.ticks.Add(1) }),
	}, opts...)
	app, err := qdapp.NewApp(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build session: %w", err)
	}
	h.app = app
	return h, nil
}

// Start runs the session in the background
func (h *SessionTestHelper) Start() {
	runCtx, cancel := context.WithCancel(h.ctx)
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() {
		h.done <- h.app.Run(runCtx)
	}()
}

// Stop ends the session and waits for it to return
func (h *SessionTestHelper) Stop() error {
	if h.cancel == nil {
		return h.app.Close()
	}
	h.cancel()
	select {
	case err := <-h.done:
		if err != nil {
			return err
		}
	case <-time.After(10 * time.Second):
		return fmt.Errorf("session did not stop")
	}
	h.cancel = nil
	return h.app.Close()
}

// App returns the session
func (h *SessionTestHelper) App() *qdapp.App {
	return h.app
}

// Controller returns the session controller
func (h *SessionTestHelper) Controller() *pkgsync.Controller {
	return h.app.Components().Controller
}

// Ticks returns the number of clock ticks seen so far
func (h *SessionTestHelper) Ticks() int64 {
	return h.ticks.Load()
}

// WaitForRecords waits until the replica holds n records
func (h *SessionTestHelper) WaitForRecords(n int, timeout time.Duration) {
	gomega.Eventually(func() int {
		return h.Controller().Store().Len()
	}, timeout, 20*time.Millisecond).Should(gomega.Equal(n))
}

// WaitForStatus waits until the effective status of a record equals status
func (h *SessionTestHelper) WaitForStatus(id int64, status attendance.Status, timeout time.Duration) {
	gomega.Eventually(func() attendance.Status {
		s, _ := h.Controller().Store().EffectiveState(id)
		return s
	}, timeout, 20*time.Millisecond).Should(gomega.Equal(status))
}

// WaitForPending waits until the number of pending edits equals n
func (h *SessionTestHelper) WaitForPending(n int, timeout time.Duration) {
	gomega.Eventually(func() int {
		return h.Controller().Store().PendingCount()
	}, timeout, 20*time.Millisecond).Should(gomega.Equal(n))
}
