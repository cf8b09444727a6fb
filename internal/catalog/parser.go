package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/maercaestro/poc-data/internal/vision"
)

const (
	// detectedConfidence is fixed: the vision call does not return
	// per-item confidence.
	detectedConfidence = 0.8

	defaultItemName = "Unnamed Item"
)

// MenuDoc is the structured document the vision model returns (canta.menu v1).
type MenuDoc struct {
	Source   string         `json:"source"`
	Sections []Section      `json:"sections"`
	Meta     map[string]any `json:"meta,omitempty"`
}

type Section struct {
	Name  string        `json:"name"`
	Time  string        `json:"time,omitempty"`
	Items []SectionItem `json:"items"`
}

type SectionItem struct {
	Name  string   `json:"name"`
	Desc  string   `json:"desc"`
	Price Price    `json:"price"`
	Size  Size     `json:"size"`
	Tags  []string `json:"tags"`
}

// ParseResult carries the candidate items plus diagnostic detail. At most one
// of ParsedStructure/ParseError is set; Items may be empty even when
// ParsedStructure is present.
type ParseResult struct {
	Items           []Item
	ParsedStructure *MenuDoc
	ParseError      string
}

// Parse reconciles a raw vision payload into typed catalog items.
//
// A response without a distinct raw_response is a valid free-text-only
// answer, not a failure. A raw_response that is not valid JSON is reported
// through ParseError and the caller keeps showing the free text. Sections and
// items that do not match the expected shape are skipped individually; the
// mapper is best-effort, never a strict validator.
func Parse(resp vision.DetectResult) ParseResult {
	if resp.RawResponse == "" || resp.RawResponse == resp.Description {
		return ParseResult{Items: []Item{}}
	}

	var envelope struct {
		Source   string            `json:"source"`
		Sections []json.RawMessage `json:"sections"`
		Meta     map[string]any    `json:"meta"`
	}
	if err := json.Unmarshal([]byte(resp.RawResponse), &envelope); err != nil {
		return ParseResult{Items: []Item{}, ParseError: err.Error()}
	}

	doc := &MenuDoc{Source: envelope.Source, Meta: envelope.Meta}
	items := []Item{}
	seq := 0

	for _, rawSection := range envelope.Sections {
		var section struct {
			Name  string            `json:"name"`
			Time  string            `json:"time"`
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(rawSection, &section); err != nil {
			continue
		}

		parsed := Section{Name: section.Name, Time: section.Time}
		for _, rawItem := range section.Items {
			var si SectionItem
			if err := json.Unmarshal(rawItem, &si); err != nil {
				continue
			}
			parsed.Items = append(parsed.Items, si)

			seq++
			items = append(items, synthesize(seq, section.Name, si))
		}
		doc.Sections = append(doc.Sections, parsed)
	}

	return ParseResult{Items: items, ParsedStructure: doc}
}

func synthesize(seq int, sectionName string, si SectionItem) Item {
	name := si.Name
	if name == "" {
		name = defaultItemName
	}
	section := sectionName
	if section == "" {
		section = DefaultSection
	}
	price := si.Price
	if price.Currency == "" {
		price.Currency = DefaultCurrency
	}
	return Item{
		ID:          ProvisionalID(fmt.Sprintf("item_%d", seq)),
		Name:        name,
		Description: si.Desc,
		Price:       price,
		Size:        si.Size,
		Tags:        FilterTags(si.Tags),
		Section:     section,
		Confidence:  detectedConfidence,
		Status:      StatusDetected,
	}
}
