// Package handoff snapshots a reviewed item set into the immutable context
// object a chat session consumes.
package handoff

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maercaestro/poc-data/internal/catalog"
)

// SourceTag marks every packaged context with its provenance.
const SourceTag = "vision_analysis"

// TempSessionPrefix marks session ids minted when no chat session existed at
// packaging time. The real session adopts the context later; this shim is
// load-bearing for the upload-before-chat flow and must not be tightened.
const TempSessionPrefix = "temp_"

var ErrNoItems = errors.New("cannot package an empty item set")

// MenuContext is the handoff artifact. Immutable once produced: a new
// context fully replaces any prior one for the consuming session.
type MenuContext struct {
	Items     []catalog.Item `json:"items"`
	Timestamp string         `json:"timestamp"`
	Source    string         `json:"source"`
}

// Package builds a MenuContext from the reviewed items. Packaging is pure;
// persisting and session binding are the caller's separate steps. Empty
// input is a caller error, never silently packaged.
func Package(items []catalog.Item) (*MenuContext, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	snapshot := make([]catalog.Item, len(items))
	for i, it := range items {
		snapshot[i] = it.Clone()
	}

	return &MenuContext{
		Items:     snapshot,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Source:    SourceTag,
	}, nil
}

// MintTempSessionID creates a placeholder session identifier so a packaged
// context is not lost when no chat session exists yet.
func MintTempSessionID() string {
	return TempSessionPrefix + uuid.New().String()
}

func IsTempSessionID(id string) bool {
	return strings.HasPrefix(id, TempSessionPrefix)
}

// CacheStore is the single named slot holding the last-packaged context.
// Every save overwrites the slot wholesale; contexts are never merged.
type CacheStore interface {
	Save(ctx context.Context, mc *MenuContext) error
	Load(ctx context.Context) (*MenuContext, error)
}

// SessionBinder attaches a context to a chat session id.
type SessionBinder interface {
	AttachContext(ctx context.Context, sessionID string, mc *MenuContext) error
}

type Service struct {
	cache    CacheStore
	sessions SessionBinder
}

func NewService(cache CacheStore, sessions SessionBinder) *Service {
	return &Service{cache: cache, sessions: sessions}
}

// Handoff packages the items, binds them to the session (minting a temporary
// id when none is given), and refreshes the cache slot. Returns the context
// and the session id it was bound to.
func (s *Service) Handoff(ctx context.Context, sessionID string, items []catalog.Item) (*MenuContext, string, error) {
	mc, err := Package(items)
	if err != nil {
		return nil, "", err
	}

	if sessionID == "" {
		sessionID = MintTempSessionID()
	}

	if err := s.sessions.AttachContext(ctx, sessionID, mc); err != nil {
		return nil, "", err
	}
	if err := s.cache.Save(ctx, mc); err != nil {
		return nil, "", err
	}
	return mc, sessionID, nil
}
