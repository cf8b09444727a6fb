// Package annotation holds the working set of catalog items for one review
// scope and drives the detected -> edited -> verified lifecycle against the
// remote catalog service.
package annotation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maercaestro/poc-data/internal/catalog"
)

var (
	ErrItemNotFound = errors.New("item not found in store")

	// ErrTokenConsumed guards the exchanged-exactly-once invariant for
	// provisional ids.
	ErrTokenConsumed = errors.New("provisional id already exchanged")
)

const (
	manualSection = "Manual Entry"
	manualRawText = "Manually added item"
)

// Store is the ordered in-memory collection of items for one scope. It is the
// single source of truth for review presentation and for export/handoff.
// Collection order is stable under single-item mutation; only AddManual
// appends and Seed resets.
type Store struct {
	mu        sync.Mutex
	items     []catalog.Item
	activeID  *catalog.ItemID
	consumed  map[string]bool
	manualSeq int
}

func NewStore() *Store {
	return &Store{consumed: make(map[string]bool)}
}

// Seed replaces the whole collection and clears the active selection.
func (s *Store) Seed(items []catalog.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make([]catalog.Item, len(items))
	for i, it := range items {
		s.items[i] = it.Clone()
	}
	s.activeID = nil
}

func (s *Store) index(id catalog.ItemID) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// Get returns a copy of the item.
func (s *Store) Get(id catalog.ItemID) (catalog.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return catalog.Item{}, false
	}
	return s.items[i].Clone(), true
}

// UpsertLocal merges a partial update into the matching item in place.
func (s *Store) UpsertLocal(id catalog.ItemID, patch catalog.Patch) (catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return catalog.Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	s.items[i].Apply(patch)
	return s.items[i].Clone(), nil
}

// Replace swaps the stored item wholesale, preserving its position.
func (s *Store) Replace(id catalog.ItemID, item catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	s.items[i] = item.Clone()
	return nil
}

// AddManual appends a blank operator-created item with a unique provisional
// id. Manual items carry confidence 1.0 and stay detected until first save.
func (s *Store) AddManual() catalog.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.manualSeq++
	token := fmt.Sprintf("%s%d_%d", catalog.ProvisionalPrefix, time.Now().UnixMilli(), s.manualSeq)

	item := catalog.Item{
		ID:         catalog.ProvisionalID(token),
		Price:      catalog.Price{Currency: catalog.DefaultCurrency},
		Tags:       []string{},
		Section:    manualSection,
		Confidence: 1.0,
		Status:     catalog.StatusDetected,
		RawText:    manualRawText,
	}
	s.items = append(s.items, item)
	return item.Clone()
}

// ReplaceProvisional exchanges a provisional-id entry for the persisted item
// in place. Each token is exchanged exactly once.
func (s *Store) ReplaceProvisional(oldID catalog.ItemID, persisted catalog.Item) error {
	if !oldID.IsProvisional() {
		return fmt.Errorf("id %s is not provisional", oldID)
	}
	if persisted.ID.IsProvisional() {
		return fmt.Errorf("replacement id %s is still provisional", persisted.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.consumed[oldID.String()] {
		return fmt.Errorf("%w: %s", ErrTokenConsumed, oldID)
	}
	i := s.index(oldID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, oldID)
	}
	s.items[i] = persisted.Clone()
	s.consumed[oldID.String()] = true
	return nil
}

// All returns a copy of the collection in its current order.
func (s *Store) All() []catalog.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]catalog.Item, len(s.items))
	for i, it := range s.items {
		out[i] = it.Clone()
	}
	return out
}

// Filter returns matching items without mutating the collection.
func (s *Store) Filter(pred func(catalog.Item) bool) []catalog.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []catalog.Item{}
	for _, it := range s.items {
		if pred(it) {
			out = append(out, it.Clone())
		}
	}
	return out
}

func (s *Store) SetActive(id catalog.ItemID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = &id
}

func (s *Store) Active() (catalog.ItemID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == nil {
		return catalog.ItemID{}, false
	}
	return *s.activeID, true
}
