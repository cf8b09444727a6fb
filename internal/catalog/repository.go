package catalog

import (
	"context"
	"errors"
)

var (
	ErrPageNotFound = errors.New("page not found")
	ErrItemNotFound = errors.New("item not found")
)

// Repository defines all database operations for catalog pages and items.
type Repository interface {

	// GetPage returns the page with its items ordered by ascending
	// confidence. ErrPageNotFound when the scope has never been written.
	GetPage(ctx context.Context, scope Scope) (*Page, error)

	// CreateItem persists a new item under the scope, creating the page row
	// if needed, and returns the item with its server-assigned id.
	CreateItem(ctx context.Context, scope Scope, item Item) (Item, error)

	// UpdateItem merges a partial update into an existing item.
	// ErrItemNotFound for unknown ids.
	UpdateItem(ctx context.Context, id int64, patch Patch) (Item, error)

	// ListPages returns every page of a source in page order, for export.
	ListPages(ctx context.Context, sourceID string) ([]Page, error)
}
