// Package helpers provides fixtures and session lifecycle helpers for the integration suite.
package helpers

import (
	"github.com/quorumdesk/quorumdesk/internal/attendance"
	"github.com/quorumdesk/quorumdesk/internal/config"
	"github.com/quorumdesk/quorumdesk/internal/voting"
)

// VotingID is the voting session served by the fake
const VotingID = "7"

// CreateTestRecords returns the attendance list every scenario starts from
func CreateTestRecords() []attendance.Record {
	return []attendance.Record{
		{ID: 1, Shareholder: "Ana Pérez", Shares: 1000000, Status: attendance.StatusInPerson},
		{ID: 2, LegalRepresentative: "Grupo Sur S.A.", Proxy: "Marta Díaz", Shares: 250000, Status: attendance.StatusVirtual},
		{ID: 3, Shareholder: "Luis Gómez", Shares: 600000, Status: attendance.StatusAbsent},
		{ID: 4, Shareholder: "Carla Ruiz", Shares: 150000, Status: attendance.StatusAbsent},
	}
}

// CreateTestQuestion returns the question of the test voting session
func CreateTestQuestion() voting.Question {
	return voting.Question{
		ID:   4,
		Text: "Aprobación de estados financieros",
		Options: []voting.Option{
			{ID: 10, Text: "A favor"},
			{ID: 11, Text: "En contra"},
			{ID: 12, Text: "Abstención"},
		},
	}
}

// NewTestConfig returns a session configuration for baseURL with fast timers
func NewTestConfig(baseURL, markersPath string) *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{BaseURL: baseURL, Timeout: "5s"},
		Sync: config.SyncConfig{
			AutosaveInterval: "200ms",
			ClockInterval:    "50ms",
		},
		Push:    config.PushConfig{MaxBackoff: "500ms"},
		Markers: config.MarkersConfig{Driver: config.MarkersDriverMemory},
	}
	if markersPath != "" {
		cfg.Markers = config.MarkersConfig{Driver: config.MarkersDriverFile, Path: markersPath}
	}
	return cfg
}
