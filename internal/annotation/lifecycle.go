package annotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/maercaestro/poc-data/internal/catalog"
)

// needsReviewThreshold: verified items below this confidence still count as
// needing review in the filter tally.
const needsReviewThreshold = 0.75

// ErrNotPersisted: verification is always persisted before it is reflected
// locally, so an item that was never saved cannot be verified.
var ErrNotPersisted = errors.New("item must be saved before it can be verified")

// ErrExportBlocked is the incomplete-export precondition: it is a disabled
// state, not a remote failure.
var ErrExportBlocked = errors.New("export blocked: every item needs a name and a price")

// Gateway is the remote catalog service boundary as the lifecycle needs it.
type Gateway interface {
	CreateItem(ctx context.Context, scope catalog.Scope, item catalog.Item) (catalog.Item, error)
	UpdateItem(ctx context.Context, id catalog.ItemID, patch catalog.Patch) (catalog.Item, error)
	ListPage(ctx context.Context, scope catalog.Scope) (*catalog.Page, error)
	ExportCatalog(ctx context.Context, sourceID string) (json.RawMessage, error)
}

type Filter string

const (
	FilterAll         Filter = "all"
	FilterNeedsReview Filter = "needs"
	FilterEdited      Filter = "edited"
	FilterVerified    Filter = "verified"
)

// Session is the live review workspace for one scope. All operator mutations
// serialize through its mutex; only BulkVerify fans out, and its merges go
// through the store one id at a time.
type Session struct {
	scope catalog.Scope
	store *Store
	gw    Gateway

	mu sync.Mutex
}

func NewSession(scope catalog.Scope, gw Gateway) *Session {
	return &Session{scope: scope, store: NewStore(), gw: gw}
}

func (s *Session) Scope() catalog.Scope { return s.scope }
func (s *Session) Store() *Store        { return s.store }

// Save merges the patch into the item and persists it. Provisional items go
// through the creation path and exchange their id; persisted items are
// patched in place. Local state only changes after the gateway accepted the
// write, and the gateway's verified flag is authoritative.
func (s *Session) Save(ctx context.Context, id catalog.ItemID, patch catalog.Patch) (catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.store.Get(id)
	if !ok {
		return catalog.Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}

	if id.IsProvisional() {
		payload := current.Clone()
		payload.Apply(patch)
		payload.Status = catalog.StatusEdited

		created, err := s.gw.CreateItem(ctx, s.scope, payload)
		if err != nil {
			return catalog.Item{}, err
		}
		if created.Status != catalog.StatusVerified {
			created.Status = catalog.StatusEdited
		}
		if err := s.store.ReplaceProvisional(id, created); err != nil {
			return catalog.Item{}, err
		}
		return created, nil
	}

	updated, err := s.gw.UpdateItem(ctx, id, patch)
	if err != nil {
		return catalog.Item{}, err
	}
	if updated.Status != catalog.StatusVerified {
		updated.Status = catalog.StatusEdited
	}
	// Provenance is immutable; keep the local copy's raw text if the
	// service did not echo one.
	if updated.RawText == "" {
		updated.RawText = current.RawText
	}
	if err := s.store.Replace(id, updated); err != nil {
		return catalog.Item{}, err
	}
	return updated, nil
}

// Verify persists the verified status remotely, then mirrors it locally.
// A gateway failure leaves local state untouched.
func (s *Session) Verify(ctx context.Context, id catalog.ItemID) (catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifyRemote(ctx, id)
}

type BulkFailure struct {
	ID  catalog.ItemID
	Err error
}

type BulkResult struct {
	Verified []catalog.ItemID
	Failures []BulkFailure
}

// BulkVerify applies Verify to each id independently and concurrently.
// One failure never blocks the rest; each merge into the store is atomic
// per id.
func (s *Session) BulkVerify(ctx context.Context, ids []catalog.ItemID) BulkResult {
	errs := make([]error, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id catalog.ItemID) {
			defer wg.Done()
			_, errs[i] = s.verifyRemote(ctx, id)
		}(i, id)
	}
	wg.Wait()

	var result BulkResult
	for i, id := range ids {
		if errs[i] != nil {
			result.Failures = append(result.Failures, BulkFailure{ID: id, Err: errs[i]})
			continue
		}
		result.Verified = append(result.Verified, id)
	}
	return result
}

// verifyRemote pushes the verified status through the gateway and mirrors it
// into the store. It takes no session mutex: Verify serializes against saves
// by holding s.mu around the call, while BulkVerify invokes it from several
// goroutines at once and relies on the store's own per-mutation locking.
func (s *Session) verifyRemote(ctx context.Context, id catalog.ItemID) (catalog.Item, error) {
	current, ok := s.store.Get(id)
	if !ok {
		return catalog.Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if id.IsProvisional() {
		return catalog.Item{}, ErrNotPersisted
	}

	verified := catalog.StatusVerified
	updated, err := s.gw.UpdateItem(ctx, id, catalog.Patch{Status: &verified})
	if err != nil {
		return catalog.Item{}, err
	}
	updated.Status = catalog.StatusVerified
	if updated.RawText == "" {
		updated.RawText = current.RawText
	}
	if err := s.store.Replace(id, updated); err != nil {
		return catalog.Item{}, err
	}
	return updated, nil
}

// AddManual appends a new operator item; the caller opens it in edit mode
// because its id is provisional, not because of its status.
func (s *Session) AddManual() catalog.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.AddManual()
}

// Items returns the filtered working set in review order.
func (s *Session) Items(filter Filter) []catalog.Item {
	items := s.store.Filter(matcher(filter))
	return ReviewOrder(items)
}

func matcher(filter Filter) func(catalog.Item) bool {
	switch filter {
	case FilterNeedsReview:
		return func(it catalog.Item) bool {
			return it.Status != catalog.StatusVerified || it.Confidence < needsReviewThreshold
		}
	case FilterEdited:
		return func(it catalog.Item) bool { return it.Status == catalog.StatusEdited }
	case FilterVerified:
		return func(it catalog.Item) bool { return it.Status == catalog.StatusVerified }
	default:
		return func(catalog.Item) bool { return true }
	}
}

// ReviewOrder sorts unverified items before verified ones, then by ascending
// confidence: the least confident items need review first. The sort is
// stable, so document order still breaks ties.
func ReviewOrder(items []catalog.Item) []catalog.Item {
	out := make([]catalog.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		vi := out[i].Status == catalog.StatusVerified
		vj := out[j].Status == catalog.StatusVerified
		if vi != vj {
			return !vi
		}
		return out[i].Confidence < out[j].Confidence
	})
	return out
}

// CanExport reports whether every item carries a non-empty name and a
// non-null price value.
func (s *Session) CanExport() bool {
	return CanExport(s.store.All())
}

func CanExport(items []catalog.Item) bool {
	for _, it := range items {
		if it.Name == "" || it.Price.Value == nil {
			return false
		}
	}
	return true
}

// Export requests the server-side consolidation, gated on completeness.
func (s *Session) Export(ctx context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.CanExport() {
		return nil, ErrExportBlocked
	}
	return s.gw.ExportCatalog(ctx, s.scope.SourceID)
}
