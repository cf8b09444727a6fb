package catalog

import (
	"context"
	"errors"
	"time"
)

// Service is the catalog store the review workflow persists into. It is the
// authoritative side of the item lifecycle: saves land here, and the verified
// flag it echoes back wins over the caller's local state.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetPage returns the stored page, or an empty page for scopes that were
// never written. The demo scope seeds one sample item so the review UI has
// something to show before any upload.
func (s *Service) GetPage(ctx context.Context, scope Scope) (*Page, error) {
	page, err := s.repo.GetPage(ctx, scope)
	if err == nil {
		return page, nil
	}
	if !errors.Is(err, ErrPageNotFound) {
		return nil, err
	}

	page = &Page{
		SourceID:   scope.SourceID,
		Page:       scope.Page,
		PageWidth:  800,
		PageHeight: 1200,
		Items:      []Item{},
	}
	if scope.SourceID == "demo" {
		price := 24.99
		size := 500.0
		page.Items = append(page.Items, Item{
			ID:         PersistedID(1),
			Name:       "Sample Product",
			Brand:      "Demo Brand",
			Price:      Price{Value: &price, Currency: DefaultCurrency},
			Size:       Size{Value: SizeValue{Number: &size}, Unit: "g"},
			Tags:       []string{"demo"},
			Section:    DefaultSection,
			RawText:    "Demo Brand Sample Product 500g RM24.99",
			Confidence: 0.95,
			Status:     StatusDetected,
		})
	}
	return page, nil
}

func (s *Service) CreateItem(ctx context.Context, scope Scope, item Item) (Item, error) {
	if item.Status == "" {
		item.Status = StatusDetected
	}
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	return s.repo.CreateItem(ctx, scope, item)
}

func (s *Service) UpdateItem(ctx context.Context, id int64, patch Patch) (Item, error) {
	if patch.Price != nil {
		probe := Item{Price: *patch.Price, Status: StatusDetected}
		if err := probe.Validate(); err != nil {
			return Item{}, err
		}
	}
	if patch.Status != nil {
		switch *patch.Status {
		case StatusDetected, StatusEdited, StatusVerified:
		default:
			return Item{}, errors.New("unknown status")
		}
	}
	return s.repo.UpdateItem(ctx, id, patch)
}

// Export consolidates every page of the source into one document.
func (s *Service) Export(ctx context.Context, sourceID string) (*ExportDocument, error) {
	pages, err := s.repo.ListPages(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return &ExportDocument{
		SourceID:   sourceID,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Pages:      pages,
	}, nil
}
