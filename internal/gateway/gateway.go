// Package gateway provides a deadline-wrapped façade over the document store,
// speaking the users/{uid}/{collection}/{id} path convention.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/grofunds/grofunds/internal/common"
	"github.com/grofunds/grofunds/internal/model"
	"github.com/grofunds/grofunds/internal/service"
)

// Config holds the gateway's tunables.
type Config struct {
	// InputField names the document key that carries the user's note.
	InputField string
	// WriteTimeout bounds create and update operations.
	WriteTimeout time.Duration
	// ReadTimeout bounds get and delete operations.
	ReadTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		InputField:   "input",
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
}

// Hints carries optional client context forwarded to the enrichment service.
// Only non-empty values are written, nested so the service can ignore them.
type Hints struct {
	Currency string
	Locale   string
	TimeZone string
}

func (h Hints) fields() map[string]any {
	m := make(map[string]any)
	if h.Currency != "" {
		m["currencyHint"] = h.Currency
	}
	if h.Locale != "" {
		m["localeHint"] = h.Locale
	}
	if h.TimeZone != "" {
		m["timeZone"] = h.TimeZone
	}
	return m
}

// Gateway wraps a DocumentStore with operation deadlines. A deadline failure
// surfaces as common.ErrTimeout and callers must treat it like any other
// failure. Policy about whether a document may be deleted belongs to the
// caller; every operation here is unconditional.
type Gateway struct {
	store  service.DocumentStore
	config Config
}

// New creates a gateway with the default configuration.
func New(store service.DocumentStore) *Gateway {
	return NewWithConfig(store, DefaultConfig())
}

// NewWithConfig creates a gateway with custom configuration. Zero values
// fall back to the defaults.
func NewWithConfig(store service.DocumentStore, config Config) *Gateway {
	def := DefaultConfig()
	if config.InputField == "" {
		config.InputField = def.InputField
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = def.ReadTimeout
	}
	return &Gateway{store: store, config: config}
}

// InputField returns the configured note field name.
func (g *Gateway) InputField() string {
	return g.config.InputField
}

// CreateDraft writes a new pending draft for uid and returns its reference.
// The document starts with the trimmed note, status "pending", and any
// non-empty hints; the store stamps createdAt/updatedAt.
func (g *Gateway) CreateDraft(ctx context.Context, uid string, kind model.EntryKind, note string, hints Hints) (model.DraftRef, error) {
	if uid == "" {
		return model.DraftRef{}, common.NewUserError("not logged in", common.ErrNotAuthenticated)
	}

	id := uuid.NewString()
	path := fmt.Sprintf("users/%s/%s/%s", uid, kind.Collection(), id)

	fields := map[string]any{
		g.config.InputField: strings.TrimSpace(note),
		"status":            model.StatusPending,
	}
	if h := hints.fields(); len(h) > 0 {
		fields["_client"] = h
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.WriteTimeout)
	defer cancel()

	if err := g.store.Create(ctx, path, fields); err != nil {
		return model.DraftRef{}, wrapTimeout(err, "create draft")
	}

	return model.DraftRef{ID: id, Path: path, Kind: kind}, nil
}

// Get returns the full document at path.
func (g *Gateway) Get(ctx context.Context, path string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.ReadTimeout)
	defer cancel()

	fields, err := g.store.Get(ctx, path)
	if err != nil {
		return nil, wrapTimeout(err, "get document")
	}
	return fields, nil
}

// Update merges fields into the document at path.
func (g *Gateway) Update(ctx context.Context, path string, fields map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, g.config.WriteTimeout)
	defer cancel()

	if err := g.store.Update(ctx, path, fields); err != nil {
		return wrapTimeout(err, "update document")
	}
	return nil
}

// Delete removes the document at path unconditionally.
func (g *Gateway) Delete(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, g.config.ReadTimeout)
	defer cancel()

	if err := g.store.Delete(ctx, path); err != nil {
		return wrapTimeout(err, "delete document")
	}
	return nil
}

// Subscribe opens a live feed for path. Subscriptions are long-lived and
// carry no deadline; their lifetime is owned by the caller.
func (g *Gateway) Subscribe(path string) (service.Subscription, error) {
	return g.store.Subscribe(path)
}

func wrapTimeout(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, common.ErrTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}
