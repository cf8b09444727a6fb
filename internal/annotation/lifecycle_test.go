package annotation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/maercaestro/poc-data/internal/catalog"
)

// --------------------------------------------------
// Fake Gateway
// --------------------------------------------------

type fakeGateway struct {
	mu      sync.Mutex
	nextID  int64
	items   map[int64]catalog.Item
	failIDs map[string]error

	creates int
	updates int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextID:  1,
		items:   make(map[int64]catalog.Item),
		failIDs: make(map[string]error),
	}
}

func (g *fakeGateway) CreateItem(ctx context.Context, scope catalog.Scope, item catalog.Item) (catalog.Item, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.creates++
	if err := g.failIDs[item.ID.String()]; err != nil {
		return catalog.Item{}, err
	}

	created := item.Clone()
	created.ID = catalog.PersistedID(g.nextID)
	g.items[g.nextID] = created
	g.nextID++
	return created.Clone(), nil
}

func (g *fakeGateway) UpdateItem(ctx context.Context, id catalog.ItemID, patch catalog.Patch) (catalog.Item, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.updates++
	if err := g.failIDs[id.String()]; err != nil {
		return catalog.Item{}, err
	}

	it, ok := g.items[id.Persisted()]
	if !ok {
		return catalog.Item{}, errors.New("update item: 404 Not Found")
	}
	it.Apply(patch)
	g.items[id.Persisted()] = it
	return it.Clone(), nil
}

func (g *fakeGateway) ListPage(ctx context.Context, scope catalog.Scope) (*catalog.Page, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	page := &catalog.Page{SourceID: scope.SourceID, Page: scope.Page, Items: []catalog.Item{}}
	for id := int64(1); id < g.nextID; id++ {
		if it, ok := g.items[id]; ok {
			page.Items = append(page.Items, it.Clone())
		}
	}
	return page, nil
}

func (g *fakeGateway) ExportCatalog(ctx context.Context, sourceID string) (json.RawMessage, error) {
	return json.RawMessage(`{"source_id":"` + sourceID + `"}`), nil
}

func (g *fakeGateway) seed(items ...catalog.Item) {
	for _, it := range items {
		g.items[it.ID.Persisted()] = it.Clone()
		if it.ID.Persisted() >= g.nextID {
			g.nextID = it.ID.Persisted() + 1
		}
	}
}

func testScope() catalog.Scope {
	return catalog.Scope{SourceID: "src-1", Page: 1}
}

func strPtr(s string) *string { return &s }

// --------------------------------------------------
// SAVE
// --------------------------------------------------

func TestSave_ProvisionalExchangesID(t *testing.T) {
	gw := newFakeGateway()
	session := NewSession(testScope(), gw)

	manual := session.AddManual()

	saved, err := session.Save(context.Background(), manual.ID, catalog.Patch{Name: strPtr("Kopi O")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ID.IsProvisional() {
		t.Fatal("save must exchange the provisional id")
	}
	if saved.Status != catalog.StatusEdited {
		t.Errorf("first save promotes to edited, got %s", saved.Status)
	}
	if saved.Name != "Kopi O" {
		t.Errorf("patch lost: %+v", saved)
	}

	// Old id gone, new id present, position preserved.
	if _, ok := session.Store().Get(manual.ID); ok {
		t.Error("provisional id still resolvable after save")
	}
	if _, ok := session.Store().Get(saved.ID); !ok {
		t.Error("persisted id missing after save")
	}
	if gw.creates != 1 || gw.updates != 0 {
		t.Errorf("expected one create, got creates=%d updates=%d", gw.creates, gw.updates)
	}
}

func TestSave_PersistedPatchesInPlace(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(catalog.Item{ID: catalog.PersistedID(1), Name: "Old", Confidence: 0.8, Status: catalog.StatusDetected, RawText: "old raw"})

	session := NewSession(testScope(), gw)
	session.Store().Seed([]catalog.Item{{ID: catalog.PersistedID(1), Name: "Old", Confidence: 0.8, Status: catalog.StatusDetected, RawText: "old raw"}})

	saved, err := session.Save(context.Background(), catalog.PersistedID(1), catalog.Patch{Name: strPtr("New")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Name != "New" || saved.Status != catalog.StatusEdited {
		t.Errorf("unexpected save result: %+v", saved)
	}
	if saved.RawText != "old raw" {
		t.Errorf("raw text must survive, got %q", saved.RawText)
	}
	if gw.creates != 0 || gw.updates != 1 {
		t.Errorf("expected one update, got creates=%d updates=%d", gw.creates, gw.updates)
	}
}

func TestSave_GatewayFailureLeavesLocalState(t *testing.T) {
	gw := newFakeGateway()
	session := NewSession(testScope(), gw)

	manual := session.AddManual()
	gw.failIDs[manual.ID.String()] = errors.New("create item: 503 Service Unavailable")

	_, err := session.Save(context.Background(), manual.ID, catalog.Patch{Name: strPtr("x")})
	if err == nil {
		t.Fatal("expected gateway failure")
	}

	// The provisional item is untouched and still exchangeable later.
	got, ok := session.Store().Get(manual.ID)
	if !ok {
		t.Fatal("provisional item lost on failed save")
	}
	if got.Name != "" || got.Status != catalog.StatusDetected {
		t.Errorf("local state changed on failure: %+v", got)
	}

	delete(gw.failIDs, manual.ID.String())
	saved, err := session.Save(context.Background(), manual.ID, catalog.Patch{Name: strPtr("x")})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if saved.ID.IsProvisional() {
		t.Error("retry must complete the exchange")
	}
}

func TestSave_RemoteVerifiedWins(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(catalog.Item{ID: catalog.PersistedID(1), Name: "Item", Status: catalog.StatusVerified})

	session := NewSession(testScope(), gw)
	session.Store().Seed([]catalog.Item{{ID: catalog.PersistedID(1), Name: "Item", Status: catalog.StatusEdited}})

	saved, err := session.Save(context.Background(), catalog.PersistedID(1), catalog.Patch{Name: strPtr("Item")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Status != catalog.StatusVerified {
		t.Errorf("remote verified flag is authoritative, got %s", saved.Status)
	}
}

// --------------------------------------------------
// VERIFY
// --------------------------------------------------

func TestVerify_RemoteFirst(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(catalog.Item{ID: catalog.PersistedID(1), Name: "Item", Status: catalog.StatusEdited})

	session := NewSession(testScope(), gw)
	session.Store().Seed([]catalog.Item{{ID: catalog.PersistedID(1), Name: "Item", Status: catalog.StatusEdited}})

	verified, err := session.Verify(context.Background(), catalog.PersistedID(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verified.Status != catalog.StatusVerified {
		t.Errorf("expected verified, got %s", verified.Status)
	}

	local, _ := session.Store().Get(catalog.PersistedID(1))
	if local.Status != catalog.StatusVerified {
		t.Errorf("local mirror missing, got %s", local.Status)
	}
}

func TestVerify_FailureLeavesStatus(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(catalog.Item{ID: catalog.PersistedID(1), Name: "Item", Status: catalog.StatusEdited})
	gw.failIDs["1"] = errors.New("update item: 500 Internal Server Error")

	session := NewSession(testScope(), gw)
	session.Store().Seed([]catalog.Item{{ID: catalog.PersistedID(1), Name: "Item", Status: catalog.StatusEdited}})

	if _, err := session.Verify(context.Background(), catalog.PersistedID(1)); err == nil {
		t.Fatal("expected failure")
	}

	local, _ := session.Store().Get(catalog.PersistedID(1))
	if local.Status != catalog.StatusEdited {
		t.Errorf("status must not move without a persisted verify, got %s", local.Status)
	}
}

func TestVerify_ProvisionalRejected(t *testing.T) {
	gw := newFakeGateway()
	session := NewSession(testScope(), gw)
	manual := session.AddManual()

	_, err := session.Verify(context.Background(), manual.ID)
	if !errors.Is(err, ErrNotPersisted) {
		t.Errorf("expected ErrNotPersisted, got %v", err)
	}
	if gw.updates != 0 {
		t.Error("no remote call for an unsaved item")
	}
}

// --------------------------------------------------
// BULK VERIFY
// --------------------------------------------------

func TestBulkVerify_PartialFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(
		catalog.Item{ID: catalog.PersistedID(1), Name: "A", Status: catalog.StatusEdited},
		catalog.Item{ID: catalog.PersistedID(2), Name: "B", Status: catalog.StatusEdited},
		catalog.Item{ID: catalog.PersistedID(3), Name: "C", Status: catalog.StatusEdited},
	)
	gw.failIDs["2"] = errors.New("update item: 502 Bad Gateway")

	session := NewSession(testScope(), gw)
	session.Store().Seed([]catalog.Item{
		{ID: catalog.PersistedID(1), Name: "A", Status: catalog.StatusEdited},
		{ID: catalog.PersistedID(2), Name: "B", Status: catalog.StatusEdited},
		{ID: catalog.PersistedID(3), Name: "C", Status: catalog.StatusEdited},
	})

	result := session.BulkVerify(context.Background(), []catalog.ItemID{
		catalog.PersistedID(1), catalog.PersistedID(2), catalog.PersistedID(3),
	})

	if len(result.Verified) != 2 {
		t.Fatalf("expected 2 verified, got %d", len(result.Verified))
	}
	if len(result.Failures) != 1 || result.Failures[0].ID != catalog.PersistedID(2) {
		t.Fatalf("expected one failure for id 2, got %+v", result.Failures)
	}

	a, _ := session.Store().Get(catalog.PersistedID(1))
	b, _ := session.Store().Get(catalog.PersistedID(2))
	c, _ := session.Store().Get(catalog.PersistedID(3))
	if a.Status != catalog.StatusVerified || c.Status != catalog.StatusVerified {
		t.Errorf("successes must land: a=%s c=%s", a.Status, c.Status)
	}
	if b.Status != catalog.StatusEdited {
		t.Errorf("failed id must keep its status, got %s", b.Status)
	}
}

// --------------------------------------------------
// FILTERS + ORDER
// --------------------------------------------------

func TestItems_ReviewOrder(t *testing.T) {
	gw := newFakeGateway()
	session := NewSession(testScope(), gw)
	session.Store().Seed([]catalog.Item{
		{ID: catalog.PersistedID(1), Name: "Sure", Confidence: 0.9, Status: catalog.StatusVerified},
		{ID: catalog.PersistedID(2), Name: "Shaky", Confidence: 0.4, Status: catalog.StatusDetected},
		{ID: catalog.PersistedID(3), Name: "Okay", Confidence: 0.6, Status: catalog.StatusEdited},
	})

	items := session.Items(FilterAll)
	want := []string{"Shaky", "Okay", "Sure"}
	for i, name := range want {
		if items[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, items[i].Name)
		}
	}
}

func TestItems_NeedsReviewIncludesLowConfidenceVerified(t *testing.T) {
	gw := newFakeGateway()
	session := NewSession(testScope(), gw)
	session.Store().Seed([]catalog.Item{
		{ID: catalog.PersistedID(1), Name: "LowVerified", Confidence: 0.5, Status: catalog.StatusVerified},
		{ID: catalog.PersistedID(2), Name: "HighVerified", Confidence: 0.9, Status: catalog.StatusVerified},
		{ID: catalog.PersistedID(3), Name: "Detected", Confidence: 0.9, Status: catalog.StatusDetected},
	})

	items := session.Items(FilterNeedsReview)
	if len(items) != 2 {
		t.Fatalf("expected 2 items needing review, got %d", len(items))
	}
	names := map[string]bool{}
	for _, it := range items {
		names[it.Name] = true
	}
	if !names["LowVerified"] || !names["Detected"] {
		t.Errorf("unexpected filter result: %v", names)
	}
}

// --------------------------------------------------
// EXPORT GATE
// --------------------------------------------------

func TestCanExport_FlipsWithCompleteness(t *testing.T) {
	gw := newFakeGateway()
	session := NewSession(testScope(), gw)

	price := 5.0
	session.Store().Seed([]catalog.Item{
		{ID: catalog.PersistedID(1), Name: "Done", Price: catalog.Price{Value: &price, Currency: "MYR"}, Status: catalog.StatusVerified},
		{ID: catalog.PersistedID(2), Name: "", Price: catalog.Price{Value: &price, Currency: "MYR"}, Status: catalog.StatusDetected},
	})

	if session.CanExport() {
		t.Error("nameless item must block export")
	}
	if _, err := session.Export(context.Background()); !errors.Is(err, ErrExportBlocked) {
		t.Errorf("expected ErrExportBlocked, got %v", err)
	}

	if err := session.Store().Replace(catalog.PersistedID(2), catalog.Item{
		ID: catalog.PersistedID(2), Name: "Named", Price: catalog.Price{Value: &price, Currency: "MYR"}, Status: catalog.StatusEdited,
	}); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	if !session.CanExport() {
		t.Error("complete set must unlock export")
	}
	doc, err := session.Export(context.Background())
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(doc) == 0 {
		t.Error("expected an export document")
	}
}

// --------------------------------------------------
// SESSIONS
// --------------------------------------------------

func TestManager_StartReplacesSession(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(catalog.Item{ID: catalog.PersistedID(1), Name: "Item", Status: catalog.StatusDetected})

	m := NewManager(gw)
	scope := testScope()

	first, err := m.Start(context.Background(), scope)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	second, err := m.Start(context.Background(), scope)
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if first == second {
		t.Fatal("restart must mint a fresh session")
	}

	got, err := m.Get(scope)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != second {
		t.Error("the manager must hand out the latest session")
	}

	// A late merge into the abandoned session is invisible.
	if err := first.Store().Replace(catalog.PersistedID(1), catalog.Item{ID: catalog.PersistedID(1), Name: "Stale", Status: catalog.StatusVerified}); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	current, _ := got.Store().Get(catalog.PersistedID(1))
	if current.Name != "Item" {
		t.Errorf("stale result leaked into the live session: %+v", current)
	}
}

func TestManager_GetUnknownScope(t *testing.T) {
	m := NewManager(newFakeGateway())
	if _, err := m.Get(catalog.Scope{SourceID: "nope", Page: 1}); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}
