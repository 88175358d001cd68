// Package session implements the draft session controller: the root
// orchestrator owning the submit/parse/save state machines, the editable
// form aggregate, and the one-active-draft-per-session invariant.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grofunds/grofunds/internal/common"
	"github.com/grofunds/grofunds/internal/gateway"
	"github.com/grofunds/grofunds/internal/model"
	"github.com/grofunds/grofunds/internal/normalize"
	"github.com/grofunds/grofunds/internal/watch"
)

// Config holds the session's identity and client hints.
type Config struct {
	// UID is the owning user; drafts live under users/{uid}/...
	UID string
	// DefaultCurrency seeds the form's currency field and is forwarded as
	// a hint to the enrichment service.
	DefaultCurrency string
	Locale          string
	TimeZone        string
	// OnChange, when set, is invoked with a consistent snapshot after
	// every state mutation. Called from gateway and subscription
	// goroutines; implementations must be fast and non-blocking.
	OnChange func(Snapshot)
}

// Snapshot is a consistent copy of the session's observable state.
type Snapshot struct {
	Submit SubmitState
	Parse  watch.ParseState
	Save   SaveState
	Form   Form
}

// Controller drives one logical user session: at most one live draft at a
// time, created by Submit, enriched externally, merged once into the form,
// finalized by Save or abandoned by Reset.
//
// All state lives behind a single mutex. Gateway completions and
// subscription callbacks serialize through it, so the form is never updated
// from interleaved partial writes.
type Controller struct {
	gateway  *gateway.Gateway
	observer *watch.Observer
	config   Config

	mu     sync.Mutex
	submit SubmitState
	parse  watch.ParseState
	save   SaveState
	form   Form
	draft  *model.DraftRef
}

// New creates a session controller for the given user. The observer is
// wired back into the controller's state sink.
func New(gw *gateway.Gateway, config Config) *Controller {
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = "CAD"
	}
	c := &Controller{
		gateway: gw,
		config:  config,
		submit:  SubmitIdle{},
		parse:   watch.Pending{},
		save:    SaveIdle{},
		form:    NewForm(model.KindExpense, config.DefaultCurrency),
	}
	c.observer = watch.New(gw, gw.InputField(), c.onParseState)
	return c
}

// Snapshot returns a consistent copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Submit: c.submit, Parse: c.parse, Save: c.save, Form: c.form}
}

// Submit creates a provisional draft from the note and starts watching its
// enrichment. A blank note is rejected synchronously. Any prior unsaved
// draft is deleted best-effort; its failure is logged, never surfaced.
func (c *Controller) Submit(ctx context.Context, kind model.EntryKind, note string) error {
	if strings.TrimSpace(note) == "" {
		c.mu.Lock()
		c.submit = SubmitError{Message: "Note cannot be empty"}
		c.mu.Unlock()
		c.notifyChange()
		return common.ErrBlankNote
	}

	c.mu.Lock()
	if kind != c.form.Kind {
		c.mu.Unlock()
		c.Reset(ctx, kind)
		c.mu.Lock()
	}
	prior := c.draft
	c.draft = nil
	c.submit = Submitting{}
	c.form.InputNote = note
	c.form.IsParsed = false
	c.form.DraftID = ""
	c.form.DocPath = ""
	c.mu.Unlock()
	c.notifyChange()

	if prior != nil {
		// Fire-and-forget cleanup of the abandoned draft.
		go c.deleteIfNotSaved(context.Background(), *prior)
	}

	draft, err := c.gateway.CreateDraft(ctx, c.config.UID, kind, note, c.hints())
	if err != nil {
		c.mu.Lock()
		c.submit = SubmitError{Message: common.Message(err, "Failed to save draft")}
		c.mu.Unlock()
		c.notifyChange()
		return err
	}

	c.mu.Lock()
	d := draft
	c.draft = &d
	c.submit = SubmitSuccess{Draft: draft}
	c.form.DraftID = draft.ID
	c.form.DocPath = draft.Path
	c.mu.Unlock()

	if err := c.observer.Watch(draft.Path); err != nil {
		c.mu.Lock()
		c.parse = watch.Failed{Message: common.Message(err, "Failed to observe draft")}
		c.form.ParseError = common.Message(err, "Failed to observe draft")
		c.mu.Unlock()
	}

	c.notifyChange()
	return nil
}

// Save validates the form, writes the finalized fields with status "saved",
// and on success resets the session for the same kind. Validation failures
// are no-ops: no gateway call, no state transition.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	form := c.form
	c.mu.Unlock()

	amt, err := validateSave(form)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.save = Saving{}
	c.mu.Unlock()
	c.notifyChange()

	if err := c.gateway.Update(ctx, form.DocPath, saveFields(form, amt)); err != nil {
		c.mu.Lock()
		c.save = SaveError{Message: common.Message(err, "Failed to save")}
		c.mu.Unlock()
		c.notifyChange()
		return err
	}

	c.mu.Lock()
	c.save = SaveSuccess{Path: form.DocPath}
	c.mu.Unlock()
	c.notifyChange()

	// The document now carries status "saved", so the reset's
	// delete-if-unsaved check will leave it alone.
	c.Reset(ctx, form.Kind)
	return nil
}

// CanSave reports whether the form currently satisfies Save's preconditions.
// Mirrors the validation Save performs, for presentation-layer gating.
func (c *Controller) CanSave() bool {
	c.mu.Lock()
	form := c.form
	saving := c.save
	c.mu.Unlock()

	if _, ok := saving.(Saving); ok {
		return false
	}
	_, err := validateSave(form)
	return err == nil
}

// Reset abandons the current draft (deleting it if unsaved), stops the
// observer, and reinitializes every sub-state for kind.
func (c *Controller) Reset(ctx context.Context, kind model.EntryKind) {
	c.mu.Lock()
	prior := c.draft
	c.draft = nil
	c.mu.Unlock()

	if prior != nil {
		c.deleteIfNotSaved(ctx, *prior)
	}

	c.observer.Stop()

	c.mu.Lock()
	c.submit = SubmitIdle{}
	c.save = SaveIdle{}
	c.parse = watch.Pending{}
	c.form = NewForm(kind, c.config.DefaultCurrency)
	c.mu.Unlock()
	c.notifyChange()
}

// ChangeKind switches the session to a new entry kind. A real change forces
// a full reset so no field survives across kinds.
func (c *Controller) ChangeKind(ctx context.Context, kind model.EntryKind) {
	c.mu.Lock()
	same := c.form.Kind == kind
	c.mu.Unlock()

	if !same {
		c.Reset(ctx, kind)
	}
}

// Form field setters. Idempotent, last-write-wins.

func (c *Controller) SetInputNote(v string) { c.setField(func(f *Form) { f.InputNote = v }) }

func (c *Controller) SetAmount(v string) { c.setField(func(f *Form) { f.Amount = v }) }

func (c *Controller) SetCurrency(v string) { c.setField(func(f *Form) { f.Currency = v }) }

func (c *Controller) SetDate(v string) { c.setField(func(f *Form) { f.Date = v }) }

func (c *Controller) SetNote(v string) { c.setField(func(f *Form) { f.Note = v }) }

func (c *Controller) SetCategoryOrType(v string) { c.setField(func(f *Form) { f.CategoryOrType = v }) }

func (c *Controller) SetSubcategory(v string) { c.setField(func(f *Form) { f.Subcategory = v }) }

func (c *Controller) SetMerchant(v string) { c.setField(func(f *Form) { f.Merchant = v }) }

func (c *Controller) SetIncomeSource(v string) { c.setField(func(f *Form) { f.IncomeSource = v }) }

func (c *Controller) SetGoalTitle(v string) { c.setField(func(f *Form) { f.GoalTitle = v }) }

func (c *Controller) SetGoalDueDate(v string) { c.setField(func(f *Form) { f.GoalDueDate = v }) }

func (c *Controller) SetGoalStartAmount(v string) { c.setField(func(f *Form) { f.GoalStartAmount = v }) }

func (c *Controller) setField(mutate func(*Form)) {
	c.mu.Lock()
	mutate(&c.form)
	c.mu.Unlock()
	c.notifyChange()
}

// onParseState is the observer's sink. Emissions for a path other than the
// active draft's are discarded; this closes the race where a superseded
// listener's callback fires after a new draft was created.
func (c *Controller) onParseState(path string, state watch.ParseState) {
	c.mu.Lock()
	if c.draft == nil || c.draft.Path != path {
		c.mu.Unlock()
		return
	}
	c.parse = state

	switch st := state.(type) {
	case watch.Pending:
		c.form.ParsePreview = ""
		if st.Note != nil {
			c.form.ParsePreview = *st.Note
		}
		c.form.ParseError = ""
	case watch.Failed:
		c.form.ParseError = st.Message
		c.form.ParsePreview = ""
	case watch.Ready:
		// User edits take precedence over further enrichment: merge
		// exactly once per draft.
		if !c.form.IsParsed {
			entry := normalize.Normalize(st.Fields, c.form.Kind)
			if c.form.applyParsed(entry) > 0 {
				c.form.IsParsed = true
			}
			c.form.ParsePreview = ""
			c.form.ParseError = ""
		}
	}
	c.mu.Unlock()
	c.notifyChange()
}

// deleteIfNotSaved fetches the draft's status and deletes the document only
// when it is not "saved". Errors are swallowed: cleanup must never block the
// user from proceeding.
func (c *Controller) deleteIfNotSaved(ctx context.Context, draft model.DraftRef) {
	fields, err := c.gateway.Get(ctx, draft.Path)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			slog.Warn("Failed to check draft before cleanup", "path", draft.Path, "error", err)
		}
		return
	}

	status := model.StatusPending
	if s, ok := fields["status"].(string); ok && s != "" {
		status = strings.ToLower(s)
	}
	if status == model.StatusSaved {
		return
	}

	if err := c.gateway.Delete(ctx, draft.Path); err != nil {
		slog.Warn("Failed to delete abandoned draft", "path", draft.Path, "error", err)
	}
}

func (c *Controller) hints() gateway.Hints {
	return gateway.Hints{
		Currency: c.config.DefaultCurrency,
		Locale:   c.config.Locale,
		TimeZone: c.config.TimeZone,
	}
}

func (c *Controller) notifyChange() {
	if c.config.OnChange != nil {
		c.config.OnChange(c.Snapshot())
	}
}

// validateSave checks Save's preconditions: an active document path, a
// positive amount, and for goals a title and due date.
func validateSave(form Form) (decimal.Decimal, error) {
	if strings.TrimSpace(form.DocPath) == "" {
		return decimal.Zero, common.ErrNoDraft
	}

	amt, err := decimal.NewFromString(strings.TrimSpace(form.Amount))
	if err != nil || !amt.IsPositive() {
		return decimal.Zero, common.ErrInvalidAmount
	}

	if form.Kind == model.KindGoal {
		if strings.TrimSpace(form.GoalTitle) == "" || strings.TrimSpace(form.GoalDueDate) == "" {
			return decimal.Zero, common.ErrMissingFields
		}
	}

	return amt, nil
}

// saveFields builds the finalized field set written on save.
func saveFields(form Form, amt decimal.Decimal) map[string]any {
	currency := strings.ToUpper(strings.TrimSpace(form.Currency))

	fields := map[string]any{
		"amount":     amt.InexactFloat64(),
		"currency":   currency,
		"date":       saveDay(form.Date),
		"status":     model.StatusSaved,
		"userEdited": true,
	}
	if n := strings.TrimSpace(form.Note); n != "" {
		fields["note"] = n
	}

	switch form.Kind {
	case model.KindIncome:
		fields["type"] = form.CategoryOrType
		if s := strings.TrimSpace(form.IncomeSource); s != "" {
			fields["source"] = s
		}
	case model.KindGoal:
		fields["type"] = form.CategoryOrType
		fields["title"] = strings.TrimSpace(form.GoalTitle)
		fields["dueDate"] = strings.TrimSpace(form.GoalDueDate)
		start := decimal.Zero
		if s, err := decimal.NewFromString(strings.TrimSpace(form.GoalStartAmount)); err == nil {
			start = s
		}
		fields["startAmount"] = start.InexactFloat64()
	default:
		fields["category"] = form.CategoryOrType
		fields["subcategory"] = form.Subcategory
		if m := strings.TrimSpace(form.Merchant); m != "" {
			fields["merchant"] = m
		}
	}

	return fields
}

// saveDay interprets the edited date text, falling back to today when it
// does not parse as yyyy-MM-dd.
func saveDay(s string) string {
	if t, err := time.Parse(normalize.DateLayout, strings.TrimSpace(s)); err == nil {
		return t.Format(normalize.DateLayout)
	}
	return time.Now().Format(normalize.DateLayout)
}
