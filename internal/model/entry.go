// Package model defines the core domain types shared across the application.
package model

import "fmt"

// EntryKind determines which collection a draft lives in and which
// normalization rules apply to its enrichment payload. A draft's kind is
// immutable; changing kind forces a full session reset.
type EntryKind string

// Supported entry kinds.
const (
	KindExpense EntryKind = "expense"
	KindIncome  EntryKind = "income"
	KindGoal    EntryKind = "goal"
)

// Collection returns the document collection name for this kind.
func (k EntryKind) Collection() string {
	switch k {
	case KindIncome:
		return "incomes"
	case KindGoal:
		return "goals"
	default:
		return "expenses"
	}
}

// Valid reports whether k is one of the supported kinds.
func (k EntryKind) Valid() bool {
	switch k {
	case KindExpense, KindIncome, KindGoal:
		return true
	}
	return false
}

// ParseKind converts a user-supplied string into an EntryKind.
func ParseKind(s string) (EntryKind, error) {
	k := EntryKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown entry kind %q", s)
	}
	return k, nil
}

// Document status values written and consumed by the draft lifecycle.
// Anything other than pending/error is treated as enriched.
const (
	StatusPending   = "pending"
	StatusError     = "error"
	StatusProcessed = "processed"
	StatusSaved     = "saved"
)

// DraftRef identifies exactly one in-flight provisional document.
// It is created on a successful submit and destroyed on save, reset,
// or kind change.
type DraftRef struct {
	ID   string
	Path string
	Kind EntryKind
}
