package catalog

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository backs the catalog service in tests.
type InMemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	pages  map[string]*Page          // scope key -> page meta (items held separately)
	items  map[int64]Item            // persisted id -> item
	owner  map[int64]string          // persisted id -> scope key
	order  map[string][]int64        // scope key -> insertion order
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		nextID: 1,
		pages:  make(map[string]*Page),
		items:  make(map[int64]Item),
		owner:  make(map[int64]string),
		order:  make(map[string][]int64),
	}
}

func (r *InMemoryRepository) GetPage(ctx context.Context, scope Scope) (*Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta, ok := r.pages[scope.Key()]
	if !ok {
		return nil, ErrPageNotFound
	}

	page := *meta
	page.Items = []Item{}
	for _, id := range r.order[scope.Key()] {
		page.Items = append(page.Items, r.items[id].Clone())
	}
	sort.SliceStable(page.Items, func(i, j int) bool {
		return page.Items[i].Confidence < page.Items[j].Confidence
	})
	return &page, nil
}

func (r *InMemoryRepository) CreateItem(ctx context.Context, scope Scope, item Item) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := scope.Key()
	if _, ok := r.pages[key]; !ok {
		r.pages[key] = &Page{
			SourceID:   scope.SourceID,
			Page:       scope.Page,
			PageWidth:  800,
			PageHeight: 1200,
		}
	}

	created := item.Clone()
	created.ID = PersistedID(r.nextID)
	if created.Status == "" {
		created.Status = StatusDetected
	}
	if created.Price.Currency == "" {
		created.Price.Currency = DefaultCurrency
	}
	if created.Section == "" {
		created.Section = DefaultSection
	}
	created.Tags = FilterTags(created.Tags)

	r.items[r.nextID] = created
	r.owner[r.nextID] = key
	r.order[key] = append(r.order[key], r.nextID)
	r.nextID++
	return created.Clone(), nil
}

func (r *InMemoryRepository) UpdateItem(ctx context.Context, id int64, patch Patch) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	it.Apply(patch)
	r.items[id] = it
	return it.Clone(), nil
}

func (r *InMemoryRepository) ListPages(ctx context.Context, sourceID string) ([]Page, error) {
	r.mu.Lock()
	scopes := []Scope{}
	for _, meta := range r.pages {
		if meta.SourceID == sourceID {
			scopes = append(scopes, Scope{SourceID: meta.SourceID, Page: meta.Page})
		}
	}
	r.mu.Unlock()

	sort.Slice(scopes, func(i, j int) bool { return scopes[i].Page < scopes[j].Page })

	pages := []Page{}
	for _, s := range scopes {
		p, err := r.GetPage(ctx, s)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *p)
	}
	return pages, nil
}
