package chat

import (
	"context"
	"errors"
)

var ErrSessionNotFound = errors.New("session not found")

// Repository defines all database operations for chat sessions, their
// message history, and the menu context attached to each session.
type Repository interface {
	CreateSession(ctx context.Context, id string) error
	SessionExists(ctx context.Context, id string) (bool, error)

	AppendMessage(ctx context.Context, sessionID, role, content string) error
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)

	// SaveContext stores the serialized menu context for a session id,
	// replacing any prior context wholesale. Temp-prefixed ids that have
	// no session row yet are accepted.
	SaveContext(ctx context.Context, sessionID string, doc []byte) error

	// LoadContext returns nil when the session has no attached context.
	LoadContext(ctx context.Context, sessionID string) ([]byte, error)

	// MoveContext reassigns a context from a temporary id to the real
	// session that adopted it.
	MoveContext(ctx context.Context, fromID, toID string) error
}
