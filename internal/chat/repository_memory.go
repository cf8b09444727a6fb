package chat

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository backs the chat service in tests.
type InMemoryRepository struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[string]time.Time
	messages map[string][]Message
	contexts map[string][]byte
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		nextID:   1,
		sessions: make(map[string]time.Time),
		messages: make(map[string][]Message),
		contexts: make(map[string][]byte),
	}
}

func (r *InMemoryRepository) CreateSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		r.sessions[id] = time.Now()
	}
	return nil
}

func (r *InMemoryRepository) SessionExists(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok, nil
}

func (r *InMemoryRepository) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[sessionID] = append(r.messages[sessionID], Message{
		ID:        r.nextID,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
	r.nextID++
	return nil
}

func (r *InMemoryRepository) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages[sessionID]...), nil
}

func (r *InMemoryRepository) SaveContext(ctx context.Context, sessionID string, doc []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[sessionID] = append([]byte(nil), doc...)
	return nil
}

func (r *InMemoryRepository) LoadContext(ctx context.Context, sessionID string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.contexts[sessionID]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), doc...), nil
}

func (r *InMemoryRepository) MoveContext(ctx context.Context, fromID, toID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.contexts[fromID]; ok {
		r.contexts[toID] = doc
		delete(r.contexts, fromID)
	}
	return nil
}
