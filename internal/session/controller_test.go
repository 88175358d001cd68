package session

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grofunds/grofunds/internal/common"
	"github.com/grofunds/grofunds/internal/gateway"
	"github.com/grofunds/grofunds/internal/model"
	"github.com/grofunds/grofunds/internal/testutil"
	"github.com/grofunds/grofunds/internal/watch"
)

func newTestController(t *testing.T) (*Controller, *testutil.Store) {
	t.Helper()
	store := testutil.NewStore()
	c := New(gateway.New(store), Config{UID: "u1", DefaultCurrency: "CAD"})
	return c, store
}

// eventually polls the snapshot until cond holds.
func eventually(t *testing.T, c *Controller, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = c.Snapshot()
		return cond(snap)
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestSubmitRejectsBlankNote(t *testing.T) {
	c, store := newTestController(t)

	err := c.Submit(context.Background(), model.KindExpense, "   ")
	require.ErrorIs(t, err, common.ErrBlankNote)

	snap := c.Snapshot()
	assert.Equal(t, SubmitError{Message: "Note cannot be empty"}, snap.Submit)
	assert.Empty(t, store.Paths(), "no document is created for a blank note")
}

func TestSubmitCreatesPendingDraft(t *testing.T) {
	c, store := newTestController(t)

	require.NoError(t, c.Submit(context.Background(), model.KindExpense, "latte $5.25"))

	snap := c.Snapshot()
	success, ok := snap.Submit.(SubmitSuccess)
	require.True(t, ok, "submit state is %T", snap.Submit)
	assert.Equal(t, model.KindExpense, success.Draft.Kind)
	assert.Equal(t, success.Draft.Path, snap.Form.DocPath)
	assert.Equal(t, success.Draft.ID, snap.Form.DraftID)

	doc := store.Doc(success.Draft.Path)
	require.NotNil(t, doc)
	assert.Equal(t, "latte $5.25", doc["input"])
	assert.Equal(t, model.StatusPending, doc["status"])
	assert.Equal(t, 1, store.Subscribes[success.Draft.Path])
}

func TestSubmitSurfacesGatewayFailure(t *testing.T) {
	c, store := newTestController(t)
	store.CreateErr = common.NewUserError("store unavailable", assert.AnError)

	err := c.Submit(context.Background(), model.KindExpense, "latte")
	require.Error(t, err)

	snap := c.Snapshot()
	assert.Equal(t, SubmitError{Message: "store unavailable"}, snap.Submit)
	assert.Empty(t, snap.Form.DocPath)
}

func TestDraftLifecycle(t *testing.T) {
	c, store := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, model.KindExpense, "Starbucks latte $5.25 yesterday"))
	path := c.Snapshot().Form.DocPath
	require.NotEmpty(t, path)

	// The draft starts pending; its note comes back as the preview.
	eventually(t, c, func(s Snapshot) bool {
		_, pending := s.Parse.(watch.Pending)
		return pending && s.Form.ParsePreview == "Starbucks latte $5.25 yesterday"
	})

	// Enrichment completes out of band.
	require.NoError(t, store.Update(ctx, path, map[string]any{
		"status": model.StatusProcessed,
		"result": map[string]any{
			"amount":   5.25,
			"merchant": "Starbucks",
			"category": "Dining",
			"date":     "2025-08-31",
		},
	}))

	snap := eventually(t, c, func(s Snapshot) bool { return s.Form.IsParsed })
	assert.Equal(t, "5.25", snap.Form.Amount)
	assert.Equal(t, "Starbucks", snap.Form.Merchant)
	assert.Equal(t, "Dining", snap.Form.CategoryOrType)
	assert.Equal(t, "2025-08-31", snap.Form.Date)
	assert.Equal(t, "CAD", snap.Form.Currency, "absent fields keep their value")
	assert.Empty(t, snap.Form.ParsePreview)
	assert.True(t, c.CanSave())

	require.NoError(t, c.Save(ctx))

	doc := store.Doc(path)
	require.NotNil(t, doc, "a saved draft is never deleted")
	assert.Equal(t, model.StatusSaved, doc["status"])
	assert.Equal(t, true, doc["userEdited"])
	assert.Equal(t, 5.25, doc["amount"])
	assert.Equal(t, "CAD", doc["currency"])
	assert.Equal(t, "Starbucks", doc["merchant"])
	assert.Equal(t, "Dining", doc["category"])
	assert.Equal(t, "2025-08-31", doc["date"])

	// Save resets the session for the same kind.
	snap = c.Snapshot()
	assert.Equal(t, SubmitIdle{}, snap.Submit)
	assert.Equal(t, SaveIdle{}, snap.Save)
	assert.Equal(t, model.KindExpense, snap.Form.Kind)
	assert.Empty(t, snap.Form.DocPath)
	assert.Empty(t, snap.Form.Amount)
	assert.NotContains(t, store.DeletedPaths(), path)
}

func TestSecondEnrichmentIsIgnored(t *testing.T) {
	c, store := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, model.KindExpense, "latte $5.25"))
	path := c.Snapshot().Form.DocPath

	require.NoError(t, store.Update(ctx, path, map[string]any{
		"status": model.StatusProcessed,
		"result": map[string]any{"amount": 5.25},
	}))
	eventually(t, c, func(s Snapshot) bool { return s.Form.IsParsed })

	c.SetAmount("9.99")

	require.NoError(t, store.Update(ctx, path, map[string]any{
		"result": map[string]any{"amount": 1.00},
	}))

	// The later result must not clobber the user's edit.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "9.99", c.Snapshot().Form.Amount)
}

func TestEnrichmentFailureSurfacesMessage(t *testing.T) {
	c, store := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, model.KindExpense, "latte"))
	path := c.Snapshot().Form.DocPath

	require.NoError(t, store.Update(ctx, path, map[string]any{
		"status": model.StatusError,
		"error":  "Empty input",
	}))

	snap := eventually(t, c, func(s Snapshot) bool {
		_, failed := s.Parse.(watch.Failed)
		return failed
	})
	assert.Equal(t, "Empty input", snap.Form.ParseError)
	assert.False(t, snap.Form.IsParsed)

	// Manual entry still allows saving after a failed parse.
	c.SetAmount("4.50")
	require.NoError(t, c.Save(ctx))
	assert.Equal(t, model.StatusSaved, store.Doc(path)["status"])
}

func TestSaveValidation(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(c *Controller)
		wantErr error
	}{
		{
			name:    "no active draft",
			prepare: func(c *Controller) { c.SetAmount("5.25") },
			wantErr: common.ErrNoDraft,
		},
		{
			name: "empty amount",
			prepare: func(c *Controller) {
				_ = c.Submit(context.Background(), model.KindExpense, "latte")
			},
			wantErr: common.ErrInvalidAmount,
		},
		{
			name: "zero amount",
			prepare: func(c *Controller) {
				_ = c.Submit(context.Background(), model.KindExpense, "latte")
				c.SetAmount("0")
			},
			wantErr: common.ErrInvalidAmount,
		},
		{
			name: "negative amount",
			prepare: func(c *Controller) {
				_ = c.Submit(context.Background(), model.KindExpense, "latte")
				c.SetAmount("-3")
			},
			wantErr: common.ErrInvalidAmount,
		},
		{
			name: "non-numeric amount",
			prepare: func(c *Controller) {
				_ = c.Submit(context.Background(), model.KindExpense, "latte")
				c.SetAmount("five")
			},
			wantErr: common.ErrInvalidAmount,
		},
		{
			name: "goal missing title and due date",
			prepare: func(c *Controller) {
				_ = c.Submit(context.Background(), model.KindGoal, "save 5k")
				c.SetAmount("5000")
			},
			wantErr: common.ErrMissingFields,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store := newTestController(t)
			tt.prepare(c)

			err := c.Save(context.Background())
			require.ErrorIs(t, err, tt.wantErr)

			// A failed validation is a pure no-op: no state transition,
			// no write reaches the store.
			after := c.Snapshot()
			assert.Equal(t, SaveIdle{}, after.Save)
			assert.False(t, c.CanSave())
			if path := after.Form.DocPath; path != "" {
				assert.Equal(t, model.StatusPending, store.Doc(path)["status"])
			}
		})
	}
}

func TestIncomeSaveFields(t *testing.T) {
	c, store := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, model.KindIncome, "paycheck 2500"))
	path := c.Snapshot().Form.DocPath

	require.NoError(t, store.Update(ctx, path, map[string]any{
		"status": model.StatusProcessed,
		"result": map[string]any{
			"amount": 2500.0,
			"type":   "Salary",
			"source": "Acme Corp",
		},
	}))

	snap := eventually(t, c, func(s Snapshot) bool { return s.Form.IsParsed })
	assert.Equal(t, "Acme Corp", snap.Form.IncomeSource)

	require.NoError(t, c.Save(ctx))

	doc := store.Doc(path)
	require.NotNil(t, doc)
	assert.Equal(t, "Salary", doc["type"])
	assert.Equal(t, "Acme Corp", doc["source"])
	assert.Equal(t, 2500.0, doc["amount"])
	_, hasCategory := doc["category"]
	assert.False(t, hasCategory)
}

func TestGoalSaveFields(t *testing.T) {
	c, store := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, model.KindGoal, "vacation fund"))
	path := c.Snapshot().Form.DocPath

	c.SetAmount("5000")
	c.SetGoalTitle("Vacation")
	c.SetGoalDueDate("2026-12-31")
	c.SetGoalStartAmount("250")
	c.SetCategoryOrType("savings")
	require.True(t, c.CanSave())

	require.NoError(t, c.Save(ctx))

	doc := store.Doc(path)
	require.NotNil(t, doc)
	assert.Equal(t, "Vacation", doc["title"])
	assert.Equal(t, "2026-12-31", doc["dueDate"])
	assert.Equal(t, 250.0, doc["startAmount"])
	assert.Equal(t, "savings", doc["type"])
	assert.Equal(t, 5000.0, doc["amount"])
}

func TestSaveFallsBackToToday(t *testing.T) {
	c, store := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, model.KindExpense, "latte"))
	path := c.Snapshot().Form.DocPath
	c.SetAmount("5.25")
	// The initial form date is the placeholder "Today", not a real date.

	require.NoError(t, c.Save(ctx))

	today := time.Now().Format("2006-01-02")
	assert.Equal(t, today, store.Doc(path)["date"])
}

func TestSubmitReplacesUnsavedDraft(t *testing.T) {
	c, store := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, model.KindExpense, "first"))
	first := c.Snapshot().Form.DocPath

	require.NoError(t, c.Submit(ctx, model.KindExpense, "second"))
	second := c.Snapshot().Form.DocPath
	require.NotEqual(t, first, second)

	// Cleanup of the replaced draft runs in the background.
	require.Eventually(t, func() bool {
		return slices.Contains(store.DeletedPaths(), first)
	}, 2*time.Second, 5*time.Millisecond)
	assert.NotNil(t, store.Doc(second))
}

func TestResetDeletesUnsavedDraft(t *testing.T) {
	c, store := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, model.KindExpense, "latte"))
	path := c.Snapshot().Form.DocPath

	c.Reset(ctx, model.KindExpense)

	assert.Nil(t, store.Doc(path))
	snap := c.Snapshot()
	assert.Equal(t, SubmitIdle{}, snap.Submit)
	assert.Equal(t, watch.Pending{}, snap.Parse)
	assert.Empty(t, snap.Form.DocPath)
	assert.Equal(t, "CAD", snap.Form.Currency)
}

func TestChangeKindResetsEverything(t *testing.T) {
	c, store := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, model.KindExpense, "latte"))
	path := c.Snapshot().Form.DocPath
	c.SetAmount("5.25")
	c.SetMerchant("Starbucks")

	c.ChangeKind(ctx, model.KindGoal)

	snap := c.Snapshot()
	assert.Equal(t, model.KindGoal, snap.Form.Kind)
	assert.Empty(t, snap.Form.Amount)
	assert.Empty(t, snap.Form.Merchant)
	assert.Nil(t, store.Doc(path), "the abandoned draft is removed")

	// Same kind again is a no-op.
	c.SetGoalTitle("Vacation")
	c.ChangeKind(ctx, model.KindGoal)
	assert.Equal(t, "Vacation", c.Snapshot().Form.GoalTitle)
}

func TestStaleEmissionDoesNotTouchForm(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, model.KindExpense, "latte"))

	// An emission for a path other than the active draft's is discarded.
	c.onParseState("users/u1/expenses/stale", watch.Ready{
		Fields: map[string]any{"amount": 99.0},
	})

	snap := c.Snapshot()
	assert.Empty(t, snap.Form.Amount)
	assert.False(t, snap.Form.IsParsed)
}

func TestMergeWithNoFieldsLeavesUnparsed(t *testing.T) {
	c, store := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, model.KindExpense, "latte"))
	path := c.Snapshot().Form.DocPath

	// An enrichment result carrying nothing usable merges zero fields.
	require.NoError(t, store.Update(ctx, path, map[string]any{
		"status": model.StatusProcessed,
		"result": map[string]any{"confidence": "high"},
	}))

	eventually(t, c, func(s Snapshot) bool {
		_, ready := s.Parse.(watch.Ready)
		return ready
	})
	assert.False(t, c.Snapshot().Form.IsParsed)
}

func TestOnChangeObservesEveryTransition(t *testing.T) {
	store := testutil.NewStore()

	var mu sync.Mutex
	var snaps []Snapshot
	record := func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	}

	c := New(gateway.New(store), Config{UID: "u1", OnChange: record})
	require.NoError(t, c.Submit(context.Background(), model.KindExpense, "latte"))

	sawSubmitting, sawSuccess := false, false
	mu.Lock()
	defer mu.Unlock()
	for _, s := range snaps {
		switch s.Submit.(type) {
		case Submitting:
			sawSubmitting = true
		case SubmitSuccess:
			sawSuccess = true
		}
	}
	assert.True(t, sawSubmitting)
	assert.True(t, sawSuccess)
}
