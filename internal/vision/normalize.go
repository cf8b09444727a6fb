package vision

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	moneySymbols = regexp.MustCompile(`[RM\s$€£¥₹]`)
	moneyNumber  = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// NormalizeMoney coerces a money value to a float rounded to cents. Strings
// may carry currency markers ("RM 12", "$8.50"); anything without a number
// in it comes back nil.
func NormalizeMoney(v any) *float64 {
	switch n := v.(type) {
	case float64:
		r := math.Round(n*100) / 100
		return &r
	case string:
		cleaned := moneySymbols.ReplaceAllString(strings.TrimSpace(n), "")
		if m := moneyNumber.FindString(cleaned); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				r := math.Round(f*100) / 100
				return &r
			}
		}
	}
	return nil
}

// NormalizeDocument cleans a canta.menu payload in its generic JSON form:
// missing envelope fields are filled in, strings trimmed, money strings
// coerced to numbers, tags unified to a list. Returns the re-serialized
// document, or the decode error when the content is not JSON at all.
func NormalizeDocument(content string) (string, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return "", err
	}
	normalizeMenu(doc)

	out, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func normalizeMenu(doc map[string]any) {
	if _, ok := doc["source"]; !ok {
		doc["source"] = "Unknown"
	}
	if _, ok := doc["schema"]; !ok {
		doc["schema"] = map[string]any{"name": "canta.menu", "version": "1.0"}
	}
	if _, ok := doc["meta"]; !ok {
		doc["meta"] = map[string]any{}
	}

	sections, ok := doc["sections"].([]any)
	if !ok {
		doc["sections"] = []any{}
		return
	}
	for _, raw := range sections {
		section, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		trimField(section, "name")
		trimField(section, "time")

		items, ok := section["items"].([]any)
		if !ok {
			section["items"] = []any{}
			continue
		}
		for _, ri := range items {
			if item, ok := ri.(map[string]any); ok {
				normalizeItem(item)
			}
		}
	}
}

func normalizeItem(item map[string]any) {
	trimField(item, "name")
	trimField(item, "desc")

	price, ok := item["price"].(map[string]any)
	if !ok {
		price = map[string]any{}
		item["price"] = price
	}
	if v := NormalizeMoney(price["value"]); v != nil {
		price["value"] = *v
	} else {
		price["value"] = nil
	}
	if _, ok := price["currency"]; !ok {
		price["currency"] = "MYR"
	}

	size, ok := item["size"].(map[string]any)
	if !ok {
		size = map[string]any{}
		item["size"] = size
	}
	size["value"] = coerceNumber(size["value"])
	trimField(size, "unit")

	if tags := normalizeTags(item["tags"]); tags != nil {
		item["tags"] = tags
	} else {
		item["tags"] = nil
	}
}

func coerceNumber(v any) any {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return nil
}

func normalizeTags(v any) []any {
	collect := func(raw []any) []any {
		out := []any{}
		for _, t := range raw {
			if t == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(t)); s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}

	switch t := v.(type) {
	case string:
		parts := []any{}
		for _, p := range strings.Split(t, ",") {
			parts = append(parts, p)
		}
		return collect(parts)
	case []any:
		return collect(t)
	}
	return nil
}

func trimField(m map[string]any, key string) {
	if s, ok := m[key].(string); ok {
		if t := strings.TrimSpace(s); t != "" {
			m[key] = t
		} else {
			m[key] = nil
		}
	}
}
