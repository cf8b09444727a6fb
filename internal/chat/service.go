package chat

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/maercaestro/poc-data/internal/handoff"
)

type Service struct {
	repo  Repository
	model ModelClient
}

func NewService(repo Repository, model ModelClient) *Service {
	return &Service{repo: repo, model: model}
}

// CreateSession mints a real session. When the caller holds a temporary
// session id from an earlier handoff, the attached context moves over to the
// new session (the reconciliation half of the temp-id shim).
func (s *Service) CreateSession(ctx context.Context, adoptTempID string) (*Session, error) {
	id := uuid.New().String()
	if err := s.repo.CreateSession(ctx, id); err != nil {
		return nil, err
	}

	if adoptTempID != "" && handoff.IsTempSessionID(adoptTempID) {
		if err := s.repo.MoveContext(ctx, adoptTempID, id); err != nil {
			return nil, err
		}
	}

	return &Session{ID: id}, nil
}

func (s *Service) History(ctx context.Context, sessionID string) ([]Message, error) {
	exists, err := s.repo.SessionExists(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrSessionNotFound
	}
	return s.repo.ListMessages(ctx, sessionID)
}

// AttachContext binds a packaged menu context to a session id. Temp ids
// without a session row are accepted so the context is not lost.
func (s *Service) AttachContext(ctx context.Context, sessionID string, mc *handoff.MenuContext) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}

	doc, err := json.Marshal(mc)
	if err != nil {
		return err
	}
	return s.repo.SaveContext(ctx, sessionID, doc)
}

// Send appends the user message, generates a grounded reply, and appends it.
// A missing session id starts a fresh session on the fly.
func (s *Service) Send(ctx context.Context, sessionID, message string) (string, string, error) {
	if message == "" {
		return "", "", errors.New("message is required")
	}

	if sessionID == "" {
		session, err := s.CreateSession(ctx, "")
		if err != nil {
			return "", "", err
		}
		sessionID = session.ID
	} else if err := s.repo.CreateSession(ctx, sessionID); err != nil {
		// Idempotent: registers temp-born ids on first use.
		return "", "", err
	}

	history, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return "", "", err
	}
	contextDoc, err := s.repo.LoadContext(ctx, sessionID)
	if err != nil {
		return "", "", err
	}

	reply, err := s.model.Reply(ctx, history, contextDoc, message)
	if err != nil {
		return "", "", err
	}

	if err := s.repo.AppendMessage(ctx, sessionID, RoleUser, message); err != nil {
		return "", "", err
	}
	if err := s.repo.AppendMessage(ctx, sessionID, RoleAssistant, reply); err != nil {
		return "", "", err
	}
	return sessionID, reply, nil
}
