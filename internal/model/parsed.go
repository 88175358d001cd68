package model

// ParsedEntry is the normalized form of an enrichment payload. Exactly one
// variant exists per EntryKind. Extraction is best-effort: a nil field means
// the payload carried no usable value for it, and the caller must keep its
// previous or default value.
type ParsedEntry interface {
	parsedEntry()
}

// ParsedExpense is the normalized shape of an expense payload.
type ParsedExpense struct {
	Amount      *float64
	Currency    *string
	Category    *string
	Subcategory *string
	Merchant    *string
	DateText    *string // yyyy-MM-dd
	Notes       *string
	Confidence  *float64
}

func (ParsedExpense) parsedEntry() {}

// ParsedIncome is the normalized shape of an income payload. Source is the
// paying party (employer, client, payer).
type ParsedIncome struct {
	Amount     *float64
	Currency   *string
	Type       *string
	Source     *string
	DateText   *string // yyyy-MM-dd
	Notes      *string
	Confidence *float64
}

func (ParsedIncome) parsedEntry() {}

// ParsedGoal is the normalized shape of a goal payload. Amount is the
// target amount; StartAmount is current progress toward it.
type ParsedGoal struct {
	Title       *string
	Type        *string
	Amount      *float64
	StartAmount *float64
	Currency    *string
	DueDateText *string // yyyy-MM-dd
	Notes       *string
	Confidence  *float64
}

func (ParsedGoal) parsedEntry() {}

// String returns a pointer to s. Convenience for building test fixtures
// and merge inputs.
func String(s string) *string { return &s }

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }
