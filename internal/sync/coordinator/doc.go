// Package coordinator runs the event loop around a sync.Controller.
//
// One goroutine owns every scheduled action, so loads, flushes and remote updates
// never interleave inside the loop:
//
//   - Initial load of the configured scope on start
//   - Autosave ticker (sync.autosaveInterval, default 30s) flushing pending edits if any
//   - Clock ticker (sync.clockInterval, default 1s) repainting the wall clock
//   - Push channel events applied as remote updates
//   - Manual save and reload requests
//
// # Lifecycle
//
//	coord := coordinator.New(controller, cfg,
//	    coordinator.WithEvents(subscriber.Events()),
//	    coordinator.WithClock(func(now time.Time) { ... }),
//	)
//	go func() { _ = coord.Start(ctx) }()
//	coord.RequestSave()
//	_ = coord.Stop()
//
// Timers belong to the Start call and are stopped when it returns, either through
// Stop or context cancellation.
package coordinator
