package storage

import (
	"sync"

	"github.com/grofunds/grofunds/internal/service"
)

// subscription is one live feed on a document path. Delivery is conflated:
// the single-slot buffer is replaced rather than blocking the writer, so a
// slow consumer only ever sees the most recent state.
type subscription struct {
	store *SQLiteStore
	path  string
	ch    chan service.DocumentEvent

	mu     sync.Mutex
	closed bool
}

func (s *subscription) Events() <-chan service.DocumentEvent {
	return s.ch
}

// Cancel removes the subscription from the fan-out and closes Events.
// Safe to call more than once.
func (s *subscription) Cancel() {
	s.store.mu.Lock()
	if set, ok := s.store.subs[s.path]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(s.store.subs, s.path)
		}
	}
	s.store.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *subscription) push(ev service.DocumentEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- ev:
			return
		default:
			// Buffer full: displace the stale event.
			select {
			case <-s.ch:
			default:
			}
		}
	}
}
