// Package storage provides persistence for debate sessions.
package storage

import (
	"github.com/alienxp03/council/internal/core"
)

// Storage defines the interface for session persistence. Only
// finalized session records are stored; records are write-once.
type Storage interface {
	// Initialize sets up the storage (creates tables, etc.)
	Initialize() error

	// Close closes the storage connection.
	Close() error

	// SaveSession stores a finalized session record.
	SaveSession(rec *core.SessionRecord) error

	// GetSession retrieves a session by ID, nil when not found.
	GetSession(id string) (*core.SessionRecord, error)

	// ListSessions returns session summaries, newest first.
	ListSessions(limit, offset int) ([]*core.SessionSummary, error)

	// DeleteSession removes a session.
	DeleteSession(id string) error
}
