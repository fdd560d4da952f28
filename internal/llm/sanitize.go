package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
)

var errNotObject = errors.New("model output is not a JSON object")

// StripCodeFences removes a surrounding ``` or ```json fence, which some
// models add even in JSON mode.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// DecodeObject parses model text into a JSON object.
func DecodeObject(raw string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(StripCodeFences(raw)), &v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return m, nil
}

// NormalizeObject cleans a decoded candidate in place:
//   - drops unknown top-level keys
//   - trims string fields
//   - coerces numeric strings ("27.00", "$3.50") in money and quantity fields
//
// It returns notes describing each change.
func NormalizeObject(m map[string]any) []string {
	notes := make([]string, 0, 4)

	allowed := map[string]struct{}{"items": {}, "totalPrice": {}, "receipt": {}}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			notes = append(notes, k+"(unknown)")
		}
	}

	if coerceNumber(m, "totalPrice") {
		notes = append(notes, "totalPrice(string)")
	}

	if items, ok := m["items"].([]any); ok {
		for i, it := range items {
			obj, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := obj["name"].(string); ok {
				obj["name"] = strings.TrimSpace(s)
			}
			for _, k := range []string{"quantity", "price", "lineTotal"} {
				if coerceNumber(obj, k) {
					notes = append(notes, fmt.Sprintf("items[%d].%s(string)", i, k))
				}
			}
		}
	}

	if rec, ok := m["receipt"].(map[string]any); ok {
		for _, k := range []string{"storeName", "purchaseDate"} {
			if s, ok := rec[k].(string); ok {
				rec[k] = strings.TrimSpace(s)
			}
		}
	}
	return notes
}

// coerceNumber replaces a numeric string at m[k] with its float value.
func coerceNumber(m map[string]any, k string) bool {
	s, ok := m[k].(string)
	if !ok {
		return false
	}
	f, ok := ParseAmount(s)
	if !ok {
		return false
	}
	m[k] = f
	return true
}

// ParseAmount reads "42.74", "$42.74" or "1,042.74" as a number.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
