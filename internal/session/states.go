package session

import "github.com/grofunds/grofunds/internal/model"

// SubmitState tracks provisional draft creation:
// Idle → Submitting → Success | Error, and back to Idle on reset.
type SubmitState interface {
	submitState()
}

// SubmitIdle is the resting state before any submit.
type SubmitIdle struct{}

func (SubmitIdle) submitState() {}

// Submitting means a create call is in flight.
type Submitting struct{}

func (Submitting) submitState() {}

// SubmitSuccess carries the created draft reference.
type SubmitSuccess struct {
	Draft model.DraftRef
}

func (SubmitSuccess) submitState() {}

// SubmitError carries a user-facing failure message.
type SubmitError struct {
	Message string
}

func (SubmitError) submitState() {}

// SaveState tracks finalization of the edited entry:
// Idle → Saving → Success | Error. Success triggers a full session reset.
type SaveState interface {
	saveState()
}

// SaveIdle is the resting state before any save.
type SaveIdle struct{}

func (SaveIdle) saveState() {}

// Saving means an update call is in flight.
type Saving struct{}

func (Saving) saveState() {}

// SaveSuccess carries the path of the saved document.
type SaveSuccess struct {
	Path string
}

func (SaveSuccess) saveState() {}

// SaveError carries a user-facing failure message.
type SaveError struct {
	Message string
}

func (SaveError) saveState() {}
