package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultCurrency is applied whenever the source data carries no currency.
	DefaultCurrency = "MYR"

	// DefaultSection groups items whose source section has no name.
	DefaultSection = "General"

	// ProvisionalPrefix marks client-generated ids for items that have not
	// been persisted yet.
	ProvisionalPrefix = "manual_"
)

type Status string

const (
	StatusDetected Status = "detected"
	StatusEdited   Status = "edited"
	StatusVerified Status = "verified"
)

// ItemID is either a persisted id assigned by the catalog store or a
// provisional client-generated token. A provisional id is exchanged for a
// persisted one exactly once, at first successful save.
type ItemID struct {
	num   int64
	token string
}

func PersistedID(n int64) ItemID {
	return ItemID{num: n}
}

func ProvisionalID(token string) ItemID {
	return ItemID{token: token}
}

func (id ItemID) IsZero() bool {
	return id.num == 0 && id.token == ""
}

func (id ItemID) IsProvisional() bool {
	return id.token != ""
}

// Persisted returns the server-assigned id. Only valid when !IsProvisional().
func (id ItemID) Persisted() int64 {
	return id.num
}

func (id ItemID) String() string {
	if id.token != "" {
		return id.token
	}
	return strconv.FormatInt(id.num, 10)
}

// ParseItemID accepts either a decimal persisted id or a provisional token.
func ParseItemID(s string) (ItemID, error) {
	if s == "" {
		return ItemID{}, errors.New("empty item id")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return PersistedID(n), nil
	}
	if strings.HasPrefix(s, ProvisionalPrefix) || strings.HasPrefix(s, "item_") {
		return ProvisionalID(s), nil
	}
	return ItemID{}, fmt.Errorf("invalid item id %q", s)
}

// Persisted ids travel as JSON numbers, provisional ids as strings.
func (id ItemID) MarshalJSON() ([]byte, error) {
	if id.token != "" {
		return json.Marshal(id.token)
	}
	return json.Marshal(id.num)
}

func (id *ItemID) UnmarshalJSON(b []byte) error {
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*id = PersistedID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("item id must be a number or string: %w", err)
	}
	parsed, err := ParseItemID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

type Price struct {
	Value    *float64 `json:"value"`
	Currency string   `json:"currency"`
}

// SizeValue is either numeric or free text; sizes arrive both ways from the
// vision model ("500", 500, "large"). Numeric strings are normalized to
// numbers.
type SizeValue struct {
	Number *float64
	Text   string
}

func (v SizeValue) IsZero() bool {
	return v.Number == nil && v.Text == ""
}

func (v SizeValue) String() string {
	if v.Number != nil {
		return strconv.FormatFloat(*v.Number, 'f', -1, 64)
	}
	return v.Text
}

func (v SizeValue) MarshalJSON() ([]byte, error) {
	if v.Number != nil {
		return json.Marshal(*v.Number)
	}
	if v.Text != "" {
		return json.Marshal(v.Text)
	}
	return []byte("null"), nil
}

func (v *SizeValue) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = SizeValue{}
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*v = SizeValue{Number: &n}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("size value must be a number or string")
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		*v = SizeValue{Number: &n}
		return nil
	}
	*v = SizeValue{Text: s}
	return nil
}

// ParseSizeValue reconstructs a SizeValue from its stored string form.
func ParseSizeValue(s string) SizeValue {
	if s == "" {
		return SizeValue{}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return SizeValue{Number: &n}
	}
	return SizeValue{Text: s}
}

type Size struct {
	Value SizeValue `json:"value"`
	Unit  string    `json:"unit,omitempty"`
}

// Item is one menu/product entry under review.
type Item struct {
	ID                ItemID   `json:"id"`
	Name              string   `json:"name"`
	Brand             string   `json:"brand,omitempty"`
	Description       string   `json:"description,omitempty"`
	Price             Price    `json:"price"`
	Size              Size     `json:"size"`
	Tags              []string `json:"tags"`
	Section           string   `json:"section"`
	Confidence        float64  `json:"confidence"`
	Status            Status   `json:"status"`
	AdditionalContext string   `json:"additionalContext"`
	RawText           string   `json:"raw_text,omitempty"`
}

// Validate checks the invariants that hold for every stored item.
func (it *Item) Validate() error {
	if it.Price.Value != nil {
		v := *it.Price.Value
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("price value %v must be a finite non-negative number", v)
		}
	}
	switch it.Status {
	case StatusDetected, StatusEdited, StatusVerified:
	default:
		return fmt.Errorf("unknown status %q", it.Status)
	}
	if it.Confidence < 0 || it.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", it.Confidence)
	}
	return nil
}

// FilterTags drops empty strings while preserving order and case.
func FilterTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Patch is a partial item update. Nil fields are left untouched.
type Patch struct {
	Name              *string   `json:"name,omitempty"`
	Brand             *string   `json:"brand,omitempty"`
	Description       *string   `json:"description,omitempty"`
	Price             *Price    `json:"price,omitempty"`
	Size              *Size     `json:"size,omitempty"`
	Tags              *[]string `json:"tags,omitempty"`
	Section           *string   `json:"section,omitempty"`
	Status            *Status   `json:"status,omitempty"`
	AdditionalContext *string   `json:"additionalContext,omitempty"`
}

// Apply merges the patch into the item. raw_text is provenance and is
// immutable once set, so the patch cannot carry it.
func (it *Item) Apply(p Patch) {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Brand != nil {
		it.Brand = *p.Brand
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Price != nil {
		it.Price = *p.Price
		if it.Price.Currency == "" {
			it.Price.Currency = DefaultCurrency
		}
	}
	if p.Size != nil {
		it.Size = *p.Size
	}
	if p.Tags != nil {
		it.Tags = FilterTags(*p.Tags)
	}
	if p.Section != nil {
		it.Section = *p.Section
	}
	if p.Status != nil {
		it.Status = *p.Status
	}
	if p.AdditionalContext != nil {
		it.AdditionalContext = *p.AdditionalContext
	}
}

// Clone returns a deep copy.
func (it Item) Clone() Item {
	out := it
	if it.Price.Value != nil {
		v := *it.Price.Value
		out.Price.Value = &v
	}
	if it.Size.Value.Number != nil {
		v := *it.Size.Value.Number
		out.Size.Value.Number = &v
	}
	if it.Tags != nil {
		out.Tags = append([]string(nil), it.Tags...)
	}
	return out
}

// Scope identifies the page/source being annotated.
type Scope struct {
	SourceID string
	Page     int
}

func (s Scope) Key() string {
	return fmt.Sprintf("%s/%d", s.SourceID, s.Page)
}

// Page is one catalog page with its items.
type Page struct {
	SourceID   string `json:"source_id"`
	Page       int    `json:"page"`
	PageWidth  int    `json:"page_width"`
	PageHeight int    `json:"page_height"`
	Items      []Item `json:"items"`
}

// ExportDocument is the server-side consolidation of every page of a source.
type ExportDocument struct {
	SourceID   string `json:"source_id"`
	ExportedAt string `json:"exported_at"`
	Pages      []Page `json:"pages"`
}
