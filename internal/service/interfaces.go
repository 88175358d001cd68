// Package service defines the interfaces for all application services.
package service

import "context"

// DocumentEvent is one observation of a live document. Err is set on
// transport failure; Exists is false when the document is absent or was
// deleted; otherwise Fields carries the full document.
type DocumentEvent struct {
	Fields map[string]any
	Err    error
	Exists bool
}

// Subscription is a live feed of events for a single document path.
// Delivery is conflated: a slow consumer sees only the most recent event,
// intermediate values may be dropped, ordering is never violated.
// Cancel is idempotent and closes Events.
type Subscription interface {
	Events() <-chan DocumentEvent
	Cancel()
}

// DocumentStore is the capability contract over the underlying document
// database: create/get/update/delete/subscribe by path. Implementations
// stamp createdAt/updatedAt server-side; callers never supply timestamps.
type DocumentStore interface {
	// Create writes a new document at path. It must fail if a document
	// already exists there.
	Create(ctx context.Context, path string, fields map[string]any) error

	// Get returns the full document at path.
	Get(ctx context.Context, path string) (map[string]any, error)

	// Update merges fields into an existing document at path.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Delete removes the document at path. Deleting a missing document
	// is not an error.
	Delete(ctx context.Context, path string) error

	// Subscribe opens a live feed for path. The document's current state
	// (including "does not exist") is delivered as the first event.
	Subscribe(path string) (Subscription, error)
}
