package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/maercaestro/poc-data/internal/catalog"
	"github.com/maercaestro/poc-data/internal/handoff"
)

type fakeModel struct {
	lastContext []byte
	lastHistory []Message
	err         error
}

func (m *fakeModel) Reply(ctx context.Context, history []Message, contextDoc []byte, userMessage string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.lastContext = contextDoc
	m.lastHistory = history
	return "echo: " + userMessage, nil
}

func sampleContext() *handoff.MenuContext {
	p := 6.5
	return &handoff.MenuContext{
		Items: []catalog.Item{
			{ID: catalog.PersistedID(1), Name: "Nasi Kerabu", Price: catalog.Price{Value: &p, Currency: "MYR"}, Status: catalog.StatusVerified},
		},
		Timestamp: "2025-01-01T00:00:00Z",
		Source:    handoff.SourceTag,
	}
}

func TestSend_NewSessionOnTheFly(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, &fakeModel{})

	sessionID, reply, err := svc.Send(context.Background(), "", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sessionID == "" {
		t.Fatal("expected a minted session id")
	}
	if reply != "echo: hello" {
		t.Errorf("unexpected reply: %q", reply)
	}

	msgs, err := svc.History(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Errorf("unexpected history: %+v", msgs)
	}
}

func TestSend_HistoryAccumulates(t *testing.T) {
	repo := NewInMemoryRepository()
	model := &fakeModel{}
	svc := NewService(repo, model)

	sessionID, _, err := svc.Send(context.Background(), "", "first")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := svc.Send(context.Background(), sessionID, "second"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The model saw the first exchange when answering the second message.
	if len(model.lastHistory) != 2 {
		t.Errorf("expected 2 prior messages, got %d", len(model.lastHistory))
	}

	msgs, _ := svc.History(context.Background(), sessionID)
	if len(msgs) != 4 {
		t.Errorf("expected 4 messages, got %d", len(msgs))
	}
}

func TestSend_ModelFailureAppendsNothing(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, &fakeModel{err: errors.New("model down")})

	session, err := svc.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if _, _, err := svc.Send(context.Background(), session.ID, "hello"); err == nil {
		t.Fatal("expected model failure")
	}

	msgs, _ := svc.History(context.Background(), session.ID)
	if len(msgs) != 0 {
		t.Errorf("failed sends must not leave messages, got %d", len(msgs))
	}
}

func TestAttachContext_GroundsReplies(t *testing.T) {
	repo := NewInMemoryRepository()
	model := &fakeModel{}
	svc := NewService(repo, model)

	session, err := svc.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if err := svc.AttachContext(context.Background(), session.ID, sampleContext()); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	if _, _, err := svc.Send(context.Background(), session.ID, "what's on the menu?"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var mc handoff.MenuContext
	if err := json.Unmarshal(model.lastContext, &mc); err != nil {
		t.Fatalf("model did not receive the context: %v", err)
	}
	if len(mc.Items) != 1 || mc.Items[0].Name != "Nasi Kerabu" {
		t.Errorf("unexpected context: %+v", mc.Items)
	}
}

func TestCreateSession_AdoptsTempContext(t *testing.T) {
	repo := NewInMemoryRepository()
	model := &fakeModel{}
	svc := NewService(repo, model)

	// Handoff happened before any chat session existed.
	tempID := handoff.MintTempSessionID()
	if err := svc.AttachContext(context.Background(), tempID, sampleContext()); err != nil {
		t.Fatalf("attach to temp id failed: %v", err)
	}

	session, err := svc.CreateSession(context.Background(), tempID)
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if handoff.IsTempSessionID(session.ID) {
		t.Error("the real session must not reuse the temp id")
	}

	if _, _, err := svc.Send(context.Background(), session.ID, "hi"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if model.lastContext == nil {
		t.Fatal("context did not move to the real session")
	}

	// The temp slot is gone.
	doc, _ := repo.LoadContext(context.Background(), tempID)
	if doc != nil {
		t.Error("temp context slot must be emptied after adoption")
	}
}

func TestCreateSession_IgnoresNonTempAdoptID(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, &fakeModel{})

	if err := svc.AttachContext(context.Background(), "other-session", sampleContext()); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	session, err := svc.CreateSession(context.Background(), "other-session")
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}

	// Contexts only move from temp ids.
	doc, _ := repo.LoadContext(context.Background(), "other-session")
	if doc == nil {
		t.Error("non-temp contexts must stay where they are")
	}
	doc, _ = repo.LoadContext(context.Background(), session.ID)
	if doc != nil {
		t.Error("new session must not steal a non-temp context")
	}
}

func TestHistory_UnknownSession(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), &fakeModel{})
	if _, err := svc.History(context.Background(), "ghost"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSend_TempBornSessionRegistersOnFirstUse(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, &fakeModel{})

	tempID := handoff.MintTempSessionID()
	if err := svc.AttachContext(context.Background(), tempID, sampleContext()); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	gotID, _, err := svc.Send(context.Background(), tempID, "hello")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if gotID != tempID {
		t.Errorf("expected the temp id to stay, got %q", gotID)
	}

	exists, _ := repo.SessionExists(context.Background(), tempID)
	if !exists {
		t.Error("first send must register the session")
	}
}

func TestSend_RejectsEmptyMessage(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), &fakeModel{})
	if _, _, err := svc.Send(context.Background(), "", ""); err == nil {
		t.Error("expected an error for the empty message")
	}
}
