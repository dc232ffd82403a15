package app

import (
	"github.com/quorumdesk/quorumdesk/internal/markers"
	"github.com/quorumdesk/quorumdesk/internal/meeting"
	"github.com/quorumdesk/quorumdesk/internal/push"
	pkgsync "github.com/quorumdesk/quorumdesk/internal/sync"
	"github.com/quorumdesk/quorumdesk/internal/sync/coordinator"
	"github.com/quorumdesk/quorumdesk/internal/voting"
)

// Components groups everything a session is made of
type Components struct {
	// Service is the meeting service client
	Service meeting.Service

	// Controller owns the local attendance replica
	Controller *pkgsync.Controller

	// Coordinator runs the sync loop: timers, push events and save requests
	Coordinator coordinator.Coordinator

	// Subscriber receives push events; nil when push is disabled
	Subscriber *push.Subscriber

	// Submitter sends ballots
	Submitter *voting.Submitter

	// Markers remembers voted questions
	Markers markers.Store
}
