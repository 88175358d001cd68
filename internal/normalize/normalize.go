// Package normalize maps arbitrarily-keyed enrichment payloads into typed
// ParsedEntry variants. Extraction is heuristic and best-effort: garbled
// payloads degrade to nil fields, never to errors.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/grofunds/grofunds/internal/model"
)

// DateLayout is the canonical output form for all normalized dates.
const DateLayout = "2006-01-02"

// dateLayouts are the accepted textual date forms, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// Normalize maps a raw enrichment payload into the ParsedEntry variant for
// kind. It is total: any input map produces a fully-formed variant whose
// fields are nil wherever the payload carried nothing usable.
func Normalize(doc map[string]any, kind model.EntryKind) model.ParsedEntry {
	r := newResolver(doc)
	km := keysFor(kind)

	switch kind {
	case model.KindIncome:
		return model.ParsedIncome{
			Amount:     r.number(km.amount),
			Currency:   upper(r.str(km.currency)),
			Type:       r.str(km.category),
			Source:     r.str(km.party),
			DateText:   r.date(km.date),
			Notes:      r.str(km.notes),
			Confidence: r.number(km.confidence),
		}
	case model.KindGoal:
		return model.ParsedGoal{
			Title:       r.str(km.title),
			Type:        r.str(km.category),
			Amount:      r.number(km.amount),
			StartAmount: r.number(km.startAmount),
			Currency:    upper(r.str(km.currency)),
			DueDateText: r.date(km.date),
			Notes:       r.str(km.notes),
			Confidence:  r.number(km.confidence),
		}
	default:
		return model.ParsedExpense{
			Amount:      r.number(km.amount),
			Currency:    upper(r.str(km.currency)),
			Category:    r.str(km.category),
			Subcategory: r.str(km.subcategory),
			Merchant:    r.str(km.party),
			DateText:    r.date(km.date),
			Notes:       r.str(km.notes),
			Confidence:  r.number(km.confidence),
		}
	}
}

// resolver answers key lookups against a payload that may nest extracted
// fields under a "result" map, top level taking precedence on conflicts.
type resolver struct {
	doc    map[string]any
	result map[string]any
}

func newResolver(doc map[string]any) resolver {
	r := resolver{doc: doc}
	if nested, ok := doc["result"].(map[string]any); ok {
		r.result = nested
	}
	return r
}

func (r resolver) lookup(key string) (any, bool) {
	if v, ok := r.doc[key]; ok && v != nil {
		return v, true
	}
	if v, ok := r.result[key]; ok && v != nil {
		return v, true
	}
	return nil, false
}

// str returns the first present, non-blank string value among keys.
func (r resolver) str(keys []string) *string {
	for _, k := range keys {
		v, ok := r.lookup(k)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		return &s
	}
	return nil
}

// number locates the first present value among keys and coerces it to a
// float64. Native numbers and numeric strings are accepted; any other type
// yields nil for the field.
func (r resolver) number(keys []string) *float64 {
	for _, k := range keys {
		if v, ok := r.lookup(k); ok {
			return toFloat(v)
		}
	}
	return nil
}

func toFloat(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return &f
		}
		return nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
		return nil
	default:
		return nil
	}
}

// date locates the first present value among keys and normalizes it to
// yyyy-MM-dd. Store-native timestamps convert directly; strings are tried
// against the accepted layouts in order. Anything that does not convert
// leaves the field nil, which callers treat as "unparsed, keep previous".
func (r resolver) date(keys []string) *string {
	for _, k := range keys {
		v, ok := r.lookup(k)
		if !ok {
			continue
		}
		switch d := v.(type) {
		case time.Time:
			s := d.Format(DateLayout)
			return &s
		case int64:
			s := time.UnixMilli(d).UTC().Format(DateLayout)
			return &s
		case float64:
			// Epoch milliseconds survive a JSON round-trip as float64.
			if d >= 1e12 {
				s := time.UnixMilli(int64(d)).UTC().Format(DateLayout)
				return &s
			}
			return nil
		case string:
			return parseDateText(d)
		default:
			return nil
		}
	}
	return nil
}

func parseDateText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			out := t.Format(DateLayout)
			return &out
		}
	}
	return nil
}

func upper(s *string) *string {
	if s == nil {
		return nil
	}
	u := strings.ToUpper(strings.TrimSpace(*s))
	return &u
}
