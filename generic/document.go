package generic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// DOCUMENT SEMANTICS - Shared by every Store implementation
// =============================================================================
// Memory and SQLite stores must agree on what a filter matches and how an
// update or increment changes a body. Both call into these helpers so the
// contract lives in one place.

// decodeObject decodes a JSON object keeping numbers exact.
func decodeObject(data json.RawMessage) (map[string]any, error) {
	obj := make(map[string]any)
	if len(data) == 0 {
		return obj, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("document body is not a JSON object: %w", err)
	}
	return obj, nil
}

// StampLayout is the stored form of instants: UTC with nine fractional
// digits, so the string order of two stamps is their time order.
const StampLayout = "2006-01-02T15:04:05.000000000Z"

// FormatStamp renders t in StampLayout.
func FormatStamp(t time.Time) string {
	return t.UTC().Format(StampLayout)
}

// normalizeStamps rewrites top-level RFC 3339 instants in an encoded
// object into StampLayout. Calendar dates are left alone.
func normalizeStamps(data json.RawMessage) (json.RawMessage, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	for k, v := range obj {
		str, ok := v.(string)
		if !ok || !strings.Contains(str, "T") {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
			obj[k] = FormatStamp(t)
		}
	}
	return json.Marshal(obj)
}

// ApplyUpdate merges the top-level fields of patch into body.
// A null field in patch removes the field.
func ApplyUpdate(body, patch json.RawMessage) (json.RawMessage, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	fields, err := decodeObject(patch)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		if v == nil {
			delete(obj, k)
			continue
		}
		obj[k] = v
	}
	return json.Marshal(obj)
}

// ApplyIncrement adds delta to an integer field (missing = 0).
func ApplyIncrement(body json.RawMessage, field string, delta int64, nonNegative bool) (json.RawMessage, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	var current int64
	if raw, ok := obj[field]; ok && raw != nil {
		num, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("field %q is not numeric", field)
		}
		current, err = num.Int64()
		if err != nil {
			return nil, fmt.Errorf("field %q is not an integer: %w", field, err)
		}
	}
	next := current + delta
	if nonNegative && next < 0 {
		return nil, fmt.Errorf("%s %d%+d: %w", field, current, delta, ErrNegativeCounter)
	}
	obj[field] = next
	return json.Marshal(obj)
}

// Matches reports whether body satisfies every filter.
func Matches(body json.RawMessage, filters []Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	obj, err := decodeObject(body)
	if err != nil {
		return false, err
	}
	for _, f := range filters {
		if !matchFilter(obj[f.Field], f) {
			return false, nil
		}
	}
	return true, nil
}

func matchFilter(actual any, f Filter) bool {
	if f.Op == OpNeq {
		cmp, ok := compareValues(actual, f.Value)
		return !ok || cmp != 0
	}
	cmp, ok := compareValues(actual, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEq:
		return cmp == 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	}
	return false
}

// compareValues orders two scalar values of the same JSON type.
// ok is false when the values are not comparable (missing field, type mismatch).
func compareValues(a, b any) (int, bool) {
	a, b = normalizeScalar(a), normalizeScalar(b)
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func normalizeScalar(v any) any {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil
		}
		return f
	case time.Time:
		return FormatStamp(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case float32:
		return float64(x)
	case fmt.Stringer:
		// TimePoint, decimal.Decimal and friends compare by their string form.
		return x.String()
	}
	return v
}

// FieldValue extracts a top-level scalar for ordering.
func FieldValue(body json.RawMessage, field string) any {
	obj, err := decodeObject(body)
	if err != nil {
		return nil
	}
	return obj[field]
}

// SortDocuments orders docs by a top-level field, then by id so the order
// is total. Documents missing the field sort first.
func SortDocuments(docs []Document, field string, desc bool) {
	if field == "" {
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
		return
	}
	keys := make(map[string]any, len(docs))
	for _, d := range docs {
		keys[d.ID] = FieldValue(d.Data, field)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		cmp, ok := compareValues(keys[docs[i].ID], keys[docs[j].ID])
		if !ok {
			// nil sorts first
			ai, bi := keys[docs[i].ID] == nil, keys[docs[j].ID] == nil
			if ai != bi {
				return ai != desc
			}
			cmp = 0
		}
		if cmp == 0 {
			return docs[i].ID < docs[j].ID
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}
