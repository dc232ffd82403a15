// Package sync keeps the local attendance replica and the meeting service in step.
//
// The Controller owns an attendance.Store and exposes the operations a front end needs:
// loading a scope, editing records locally, flushing pending edits to the service,
// applying inbound status changes and building views.
//
// # Flushing
//
// A flush pushes every pending edit concurrently as an independent request. Pending edits
// are confirmed only when the whole batch succeeds; on a partial failure every edit stays
// pending and the next flush re-sends all of them. Re-sending an accepted edit is harmless
// because status updates are idempotent. Flushes are serialized.
//
// # Coordinator
//
// The sync/coordinator subpackage runs the event loop around a Controller: initial load,
// autosave interval, clock ticks, manual save requests and push channel events.
package sync
