package session

import (
	"strconv"
	"strings"

	"github.com/grofunds/grofunds/internal/model"
)

// Form is the denormalized, editable projection the presentation layer binds
// to: the entry kind, the free-text note, the common editable fields, the
// kind-specific fields, and the draft identity. Discrete setters are
// last-write-wins; normalization bulk-merges non-nil fields exactly once per
// draft.
type Form struct {
	Kind model.EntryKind

	InputNote      string
	Amount         string
	CategoryOrType string
	Currency       string
	Date           string
	Note           string

	// Expense only.
	Subcategory string
	Merchant    string

	// Income only.
	IncomeSource string

	// Goal only.
	GoalTitle       string
	GoalDueDate     string
	GoalStartAmount string

	DraftID      string
	DocPath      string
	IsParsed     bool
	ParsePreview string
	ParseError   string
}

// NewForm returns the initial form for kind.
func NewForm(kind model.EntryKind, defaultCurrency string) Form {
	return Form{
		Kind:     kind,
		Currency: defaultCurrency,
		Date:     "Today",
	}
}

// applyParsed merges only non-nil normalized fields into f; fields the
// payload carried nothing for keep their current value. Returns how many
// fields were merged.
func (f *Form) applyParsed(entry model.ParsedEntry) int {
	merged := 0

	setString := func(dst *string, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			*dst = *v
			merged++
		}
	}
	setNumber := func(dst *string, v *float64) {
		if v != nil {
			*dst = strconv.FormatFloat(*v, 'f', 2, 64)
			merged++
		}
	}

	switch p := entry.(type) {
	case model.ParsedExpense:
		setNumber(&f.Amount, p.Amount)
		setString(&f.Currency, p.Currency)
		setString(&f.Date, p.DateText)
		setString(&f.Note, p.Notes)
		setString(&f.CategoryOrType, p.Category)
		setString(&f.Subcategory, p.Subcategory)
		setString(&f.Merchant, p.Merchant)
	case model.ParsedIncome:
		setNumber(&f.Amount, p.Amount)
		setString(&f.Currency, p.Currency)
		setString(&f.Date, p.DateText)
		setString(&f.Note, p.Notes)
		setString(&f.CategoryOrType, p.Type)
		setString(&f.IncomeSource, p.Source)
	case model.ParsedGoal:
		setNumber(&f.Amount, p.Amount)
		setString(&f.Currency, p.Currency)
		setString(&f.Note, p.Notes)
		setString(&f.CategoryOrType, p.Type)
		setString(&f.GoalTitle, p.Title)
		setString(&f.GoalDueDate, p.DueDateText)
		setNumber(&f.GoalStartAmount, p.StartAmount)
	}

	return merged
}
