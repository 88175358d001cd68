// Package watch observes a live draft document and reduces its event stream
// to a three-state ParseState.
package watch

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/grofunds/grofunds/internal/model"
	"github.com/grofunds/grofunds/internal/service"
)

// ParseState reflects the live enrichment state of a watched document.
// Transitions are driven solely by subscription events, never by local
// intent. Pending is both the initial and the after-stop value.
type ParseState interface {
	parseState()
}

// Pending means the document is still being enriched. Note carries the
// user's original input text when the document has one.
type Pending struct {
	Note *string
}

func (Pending) parseState() {}

// Ready means enrichment finished; Fields holds the full document.
type Ready struct {
	Fields map[string]any
}

func (Ready) parseState() {}

// Failed means a transport failure, a missing document, or a stored
// enrichment error.
type Failed struct {
	Message string
}

func (Failed) parseState() {}

// Sink receives state transitions from the subscription goroutine. The path
// identifies which watched document produced the state; consumers must
// compare it against their active draft before applying the state.
type Sink func(path string, state ParseState)

// Subscriber is the slice of the document store the observer needs.
type Subscriber interface {
	Subscribe(path string) (service.Subscription, error)
}

// Observer owns at most one live subscription at a time. Every Watch stamps
// its subscription with a generation token; emissions carrying a superseded
// token are discarded, so the sink never sees a state from a listener whose
// path is no longer active. This covers re-watching the same path after a
// Stop, which path comparison alone would not.
type Observer struct {
	store      Subscriber
	sink       Sink
	inputField string

	mu    sync.Mutex
	path  string
	gen   uint64
	sub   service.Subscription
	state ParseState
}

// New creates an observer that reports into sink. inputField names the
// document key holding the user's original note.
func New(store Subscriber, inputField string, sink Sink) *Observer {
	return &Observer{
		store:      store,
		sink:       sink,
		inputField: inputField,
		state:      Pending{},
	}
}

// Watch opens a live subscription on path. Watching the already-active path
// is a no-op; otherwise any prior subscription is canceled first and the
// state resets to Pending.
func (o *Observer) Watch(path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.path == path && o.sub != nil {
		return nil
	}

	o.cancelLocked()

	sub, err := o.store.Subscribe(path)
	if err != nil {
		return err
	}

	o.gen++
	o.path = path
	o.sub = sub

	go o.run(o.gen, path, sub)
	return nil
}

// Stop cancels the active subscription, if any, and resets to Pending.
func (o *Observer) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelLocked()
}

// State returns the most recent parse state.
func (o *Observer) State() ParseState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Observer) cancelLocked() {
	if o.sub != nil {
		o.sub.Cancel()
		o.sub = nil
	}
	o.gen++
	o.path = ""
	o.state = Pending{}
}

func (o *Observer) run(gen uint64, path string, sub service.Subscription) {
	for ev := range sub.Events() {
		o.deliver(gen, path, reduce(ev, o.inputField))
	}
}

func (o *Observer) deliver(gen uint64, path string, state ParseState) {
	o.mu.Lock()
	if gen != o.gen || path != o.path {
		o.mu.Unlock()
		slog.Debug("Dropping stale emission", "path", path)
		return
	}
	o.state = state
	o.mu.Unlock()

	if o.sink != nil {
		o.sink(path, state)
	}
}

// reduce translates one store event into a ParseState.
func reduce(ev service.DocumentEvent, inputField string) ParseState {
	if ev.Err != nil {
		return Failed{Message: ev.Err.Error()}
	}
	if !ev.Exists {
		return Failed{Message: "document not found"}
	}

	d := ev.Fields
	status := model.StatusPending
	if s, ok := d["status"].(string); ok && s != "" {
		status = strings.ToLower(s)
	}

	switch status {
	case model.StatusPending:
		return Pending{Note: noteText(d, inputField)}
	case model.StatusError:
		msg := "unknown error"
		if s, ok := d["error"].(string); ok && s != "" {
			msg = s
		}
		return Failed{Message: msg}
	default:
		return Ready{Fields: d}
	}
}

// noteText extracts the user's original note for pending previews, accepting
// the configured input field plus the legacy "note"/"input" spellings.
func noteText(d map[string]any, inputField string) *string {
	for _, k := range []string{inputField, "note", "input"} {
		if s, ok := d[k].(string); ok && s != "" {
			return &s
		}
	}
	return nil
}
