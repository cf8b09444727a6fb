package annotation

import (
	"context"
	"errors"
	"sync"

	"github.com/maercaestro/poc-data/internal/catalog"
)

var ErrNoSession = errors.New("no review session for this scope")

// Manager holds one live Session per scope. Starting a scope replaces its
// session wholesale: results still in flight for the abandoned session merge
// into a store nothing reads anymore, which is how stale-scope responses get
// dropped instead of merged.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	gw       Gateway
}

func NewManager(gw Gateway) *Manager {
	return &Manager{sessions: make(map[string]*Session), gw: gw}
}

// Start seeds a fresh session from the catalog service listing.
func (m *Manager) Start(ctx context.Context, scope catalog.Scope) (*Session, error) {
	page, err := m.gw.ListPage(ctx, scope)
	if err != nil {
		return nil, err
	}

	session := NewSession(scope, m.gw)
	session.Store().Seed(page.Items)

	m.mu.Lock()
	m.sessions[scope.Key()] = session
	m.mu.Unlock()
	return session, nil
}

// StartFromParse seeds a fresh session from a vision parse instead of the
// stored catalog (the upload flow).
func (m *Manager) StartFromParse(scope catalog.Scope, result catalog.ParseResult) *Session {
	session := NewSession(scope, m.gw)
	session.Store().Seed(result.Items)

	m.mu.Lock()
	m.sessions[scope.Key()] = session
	m.mu.Unlock()
	return session
}

func (m *Manager) Get(scope catalog.Scope) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[scope.Key()]
	if !ok {
		return nil, ErrNoSession
	}
	return session, nil
}
