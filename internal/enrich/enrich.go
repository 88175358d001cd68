// Package enrich provides a local, rule-based stand-in for the hosted
// enrichment service. It reads a pending draft, extracts what it can from
// the note with simple heuristics, writes the result back under "result",
// and flips status to "processed". Intended for development and tests.
package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/grofunds/grofunds/internal/model"
	"github.com/grofunds/grofunds/internal/normalize"
	"github.com/grofunds/grofunds/internal/service"
)

// Enricher processes pending drafts in the document store.
type Enricher struct {
	store           service.DocumentStore
	inputField      string
	defaultCurrency string
}

// New creates an enricher. inputField names the document key holding the
// note; defaultCurrency is used when the note carries no currency signal.
func New(store service.DocumentStore, inputField, defaultCurrency string) *Enricher {
	if inputField == "" {
		inputField = "input"
	}
	if defaultCurrency == "" {
		defaultCurrency = "CAD"
	}
	return &Enricher{store: store, inputField: inputField, defaultCurrency: defaultCurrency}
}

// Enrich processes the draft at path once. Documents whose status is no
// longer "pending" are left untouched. An empty note yields status "error"
// with an error message, matching the hosted service's behavior.
func (e *Enricher) Enrich(ctx context.Context, path string) error {
	doc, err := e.store.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load draft: %w", err)
	}

	if s, ok := doc["status"].(string); ok && !strings.EqualFold(s, model.StatusPending) {
		return nil
	}

	note, _ := doc[e.inputField].(string)
	if strings.TrimSpace(note) == "" {
		return e.store.Update(ctx, path, map[string]any{
			"status": model.StatusError,
			"error":  "Empty input",
		})
	}

	result := e.extract(note, kindFromPath(path), currencyHint(doc, e.defaultCurrency))
	return e.store.Update(ctx, path, map[string]any{
		"status": model.StatusProcessed,
		"result": result,
	})
}

var amountPattern = regexp.MustCompile(`(?:\$\s*)?(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`)

func (e *Enricher) extract(note string, kind model.EntryKind, currency string) map[string]any {
	result := map[string]any{
		"currency":   currency,
		"confidence": 0.5,
	}

	lower := strings.ToLower(note)

	if m := amountPattern.FindStringSubmatch(note); m != nil {
		raw := strings.ReplaceAll(m[1], ",", "")
		if amt, err := strconv.ParseFloat(raw, 64); err == nil && amt > 0 {
			result["confidence"] = 0.7
			switch kind {
			case model.KindGoal:
				result["target"] = amt
			default:
				result["amount"] = amt
			}
		}
	}

	switch {
	case strings.Contains(lower, "usd") || strings.Contains(lower, "us$"):
		result["currency"] = "USD"
	case strings.Contains(lower, "eur") || strings.Contains(lower, "€"):
		result["currency"] = "EUR"
	case strings.Contains(lower, "cad") || strings.Contains(lower, "c$"):
		result["currency"] = "CAD"
	}

	if day := relativeDay(lower); day != "" {
		switch kind {
		case model.KindGoal:
			result["due"] = day
		default:
			result["date"] = day
		}
	}

	if kind == model.KindExpense {
		if merchant, category, subcategory := merchantHint(lower); category != "" {
			if merchant != "" {
				result["merchant"] = merchant
			}
			result["category"] = category
			result["subcategory"] = subcategory
			result["confidence"] = 0.85
		}
	}

	return result
}

// merchantHint maps well-known merchant names to a category guess, the way
// the hosted service's prompt seeds its examples.
func merchantHint(lower string) (merchant, category, subcategory string) {
	switch {
	case strings.Contains(lower, "starbucks"):
		return "Starbucks", "Food & Drink", "Coffee & Tea"
	case strings.Contains(lower, "tim hortons"):
		return "Tim Hortons", "Food & Drink", "Coffee & Tea"
	case strings.Contains(lower, "uber"):
		return "Uber", "Transport", "Taxi"
	case strings.Contains(lower, "shell") || strings.Contains(lower, "esso") || strings.Contains(lower, "petro"):
		return "Shell", "Transport", "Fuel"
	case strings.Contains(lower, "walmart"):
		return "Walmart", "Food & Drink", "Groceries"
	case strings.Contains(lower, "costco"):
		return "Costco", "Food & Drink", "Groceries"
	case strings.Contains(lower, "netflix"):
		return "Netflix", "Entertainment", "Streaming"
	case strings.Contains(lower, "coffee") || strings.Contains(lower, "latte") || strings.Contains(lower, "espresso"):
		return "", "Food & Drink", "Coffee & Tea"
	case strings.Contains(lower, "grocery") || strings.Contains(lower, "groceries"):
		return "", "Food & Drink", "Groceries"
	}
	return "", "", ""
}

func relativeDay(lower string) string {
	now := time.Now()
	switch {
	case strings.Contains(lower, "yesterday"):
		return now.AddDate(0, 0, -1).Format(normalize.DateLayout)
	case strings.Contains(lower, "today"):
		return now.Format(normalize.DateLayout)
	case strings.Contains(lower, "tomorrow"):
		return now.AddDate(0, 0, 1).Format(normalize.DateLayout)
	}
	return ""
}

func currencyHint(doc map[string]any, fallback string) string {
	if client, ok := doc["_client"].(map[string]any); ok {
		if hint, ok := client["currencyHint"].(string); ok && hint != "" {
			return strings.ToUpper(hint)
		}
	}
	return fallback
}

// kindFromPath derives the entry kind from the users/{uid}/{collection}/{id}
// convention, defaulting to expense.
func kindFromPath(path string) model.EntryKind {
	parts := strings.Split(path, "/")
	if len(parts) != 4 {
		return model.KindExpense
	}
	switch parts[2] {
	case "incomes":
		return model.KindIncome
	case "goals":
		return model.KindGoal
	default:
		return model.KindExpense
	}
}
