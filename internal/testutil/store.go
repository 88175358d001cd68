// Package testutil provides shared fakes for tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grofunds/grofunds/internal/common"
	"github.com/grofunds/grofunds/internal/service"
)

// Store is an in-memory, scriptable DocumentStore for tests. It records
// calls, supports injected failures and blocking, and fans out subscription
// events with the same conflated delivery as the production store.
type Store struct {
	mu   sync.Mutex
	docs map[string]map[string]any
	subs map[string][]*fakeSub

	// Subscribes counts Subscribe calls per path.
	Subscribes map[string]int
	// Deleted records every deleted path in order.
	Deleted []string

	// Injected failures. When set, the matching operation fails.
	CreateErr error
	GetErr    error
	UpdateErr error
	DeleteErr error

	// BlockCreate makes Create wait for ctx cancellation, for deadline
	// tests.
	BlockCreate bool
	// NoCancel leaves subscriptions live after Cancel, simulating a late
	// callback from a superseded listener.
	NoCancel bool
}

// NewStore creates an empty fake store.
func NewStore() *Store {
	return &Store{
		docs:       make(map[string]map[string]any),
		subs:       make(map[string][]*fakeSub),
		Subscribes: make(map[string]int),
	}
}

// Create implements service.DocumentStore.
func (s *Store) Create(ctx context.Context, path string, fields map[string]any) error {
	if s.BlockCreate {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.CreateErr != nil {
		return s.CreateErr
	}

	s.mu.Lock()
	if _, ok := s.docs[path]; ok {
		s.mu.Unlock()
		return fmt.Errorf("document %s: %w", path, common.ErrDuplicateEntry)
	}
	doc := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		doc[k] = v
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	doc["createdAt"] = now
	doc["updatedAt"] = now
	s.docs[path] = doc
	s.mu.Unlock()

	s.notify(path)
	return nil
}

// Get implements service.DocumentStore.
func (s *Store) Get(_ context.Context, path string) (map[string]any, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", path, common.ErrNotFound)
	}
	return copyDoc(doc), nil
}

// Update implements service.DocumentStore.
func (s *Store) Update(_ context.Context, path string, fields map[string]any) error {
	if s.UpdateErr != nil {
		return s.UpdateErr
	}

	s.mu.Lock()
	doc, ok := s.docs[path]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("document %s: %w", path, common.ErrNotFound)
	}
	for k, v := range fields {
		doc[k] = v
	}
	doc["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	s.mu.Unlock()

	s.notify(path)
	return nil
}

// Delete implements service.DocumentStore.
func (s *Store) Delete(_ context.Context, path string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}

	s.mu.Lock()
	_, existed := s.docs[path]
	delete(s.docs, path)
	s.Deleted = append(s.Deleted, path)
	s.mu.Unlock()

	if existed {
		s.notify(path)
	}
	return nil
}

// Subscribe implements service.DocumentStore.
func (s *Store) Subscribe(path string) (service.Subscription, error) {
	sub := &fakeSub{
		store: s,
		path:  path,
		ch:    make(chan service.DocumentEvent, 1),
	}

	s.mu.Lock()
	s.Subscribes[path]++
	s.subs[path] = append(s.subs[path], sub)
	s.mu.Unlock()

	sub.push(s.snapshot(path))
	return sub, nil
}

// Doc returns a copy of the stored document, or nil when absent.
func (s *Store) Doc(path string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return nil
	}
	return copyDoc(doc)
}

// DeletedPaths returns every deleted path in order. Safe to call while
// background cleanup goroutines are still running.
func (s *Store) DeletedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Deleted...)
}

// Paths returns every stored document path.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.docs))
	for p := range s.docs {
		paths = append(paths, p)
	}
	return paths
}

// Emit pushes an arbitrary event to every live subscriber of path.
func (s *Store) Emit(path string, ev service.DocumentEvent) {
	s.mu.Lock()
	subs := append([]*fakeSub(nil), s.subs[path]...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.push(ev)
	}
}

func (s *Store) notify(path string) {
	s.Emit(path, s.snapshot(path))
}

func (s *Store) snapshot(path string) service.DocumentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return service.DocumentEvent{Exists: false}
	}
	return service.DocumentEvent{Fields: copyDoc(doc), Exists: true}
}

func copyDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

type fakeSub struct {
	store *Store
	path  string
	ch    chan service.DocumentEvent

	mu       sync.Mutex
	canceled bool
}

func (f *fakeSub) Events() <-chan service.DocumentEvent {
	return f.ch
}

func (f *fakeSub) Cancel() {
	if f.store.NoCancel {
		return
	}

	f.store.mu.Lock()
	subs := f.store.subs[f.path]
	for i, sub := range subs {
		if sub == f {
			f.store.subs[f.path] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	f.store.mu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.canceled {
		f.canceled = true
		close(f.ch)
	}
}

func (f *fakeSub) push(ev service.DocumentEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.canceled {
		return
	}
	for {
		select {
		case f.ch <- ev:
			return
		default:
			select {
			case <-f.ch:
			default:
			}
		}
	}
}
