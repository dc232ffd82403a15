// Package integration runs complete quorumdesk sessions against the in-memory meeting
// service: loading, push updates, autosave, failed flushes and ballot submission.
package integration
