package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quorumdesk/quorumdesk/internal/config"
	"github.com/quorumdesk/quorumdesk/internal/push"
	pkgsync "github.com/quorumdesk/quorumdesk/internal/sync"
)

// Coordinator schedules loads and flushes of a controller
type Coordinator interface {
	// Start loads the configured scope and runs the loop.
	// Blocks until the context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop ends the loop and waits for it to return
	Stop() error

	// RequestSave asks the loop to flush now. It never blocks.
	RequestSave()

	// RequestReload asks the loop to load the scope again. It never blocks.
	RequestReload()
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	controller *pkgsync.Controller
	config     *config.Config

	events <-chan push.Event
	clock  func(time.Time)

	saveRequests   chan struct{}
	reloadRequests chan struct{}

	// Lifecycle management
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithEvents sets the push events applied as remote updates
func WithEvents(events <-chan push.Event) Option {
	return func(c *defaultCoordinator) {
		c.events = events
	}
}

// WithClock sets the callback run on every clock tick
func WithClock(fn func(time.Time)) Option {
	return func(c *defaultCoordinator) {
		c.clock = fn
	}
}

// New creates a new coordinator with injected dependencies
func New(controller *pkgsync.Controller, cfg *config.Config, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		controller:     controller,
		config:         cfg,
		saveRequests:   make(chan struct{}, 1),
		reloadRequests: make(chan struct{}, 1),
		done:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start runs the coordinator loop
func (c *defaultCoordinator) Start(ctx context.Context) error {
	scope := c.config.GetScope()
	slog.Info("Starting sync coordinator", "scope", scope.String())

	// Create cancellable context for this coordinator
	coordCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		close(c.done)
		slog.Info("Sync coordinator shutting down")
	}()

	autosaveInterval := getInterval("sync.autosaveInterval", c.config.Sync.AutosaveInterval, config.DefaultAutosaveInterval)
	slog.Info("Configured autosave interval", "interval", autosaveInterval)

	autosave := time.NewTicker(autosaveInterval)
	defer autosave.Stop()

	var clockC <-chan time.Time
	if c.clock != nil {
		clock := time.NewTicker(getInterval("sync.clockInterval", c.config.Sync.ClockInterval, config.DefaultClockInterval))
		defer clock.Stop()
		clockC = clock.C
	}

	// Load failures are already surfaced by the controller; the loop keeps running
	// so a later reload or push event can recover
	_ = c.controller.Load(coordCtx, scope)

	events := c.events
	for {
		select {
		case <-autosave.C:
			if _, err := c.controller.AutoSave(coordCtx); err != nil {
				slog.Debug("Autosave failed", "error", err)
			}
		case now := <-clockC:
			c.clock(now)
		case ev, ok := <-events:
			if !ok {
				slog.Debug("Push event channel closed")
				events = nil
				continue
			}
			c.controller.HandleRemote(coordCtx, ev.ID, ev.Status)
		case <-c.saveRequests:
			if _, err := c.controller.Save(coordCtx); err != nil {
				slog.Debug("Manual save failed", "error", err)
			}
		case <-c.reloadRequests:
			_ = c.controller.Load(coordCtx, scope)
		case <-coordCtx.Done():
			slog.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()
	if cancel != nil {
		slog.Info("Stopping sync coordinator")
		cancel()
		// Wait for coordinator to finish
		<-c.done
	}
	return nil
}

// RequestSave implements Coordinator
func (c *defaultCoordinator) RequestSave() {
	select {
	case c.saveRequests <- struct{}{}:
	default:
	}
}

// RequestReload implements Coordinator
func (c *defaultCoordinator) RequestReload() {
	select {
	case c.reloadRequests <- struct{}{}:
	default:
	}
}
