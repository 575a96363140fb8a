// Package secflow drives the credential-gated lifecycle of operations on
// protected files. A flow walks Idle -> AwaitingCredential ->
// CredentialCaptured -> Submitting -> Resolved; operations on plain files
// skip the credential states entirely. The credential artifact is treated as
// an opaque byte string and handed to the Submitter unread.
package secflow

import (
	"context"
	"errors"
	"sync"
)

// State of a flow.
type State int

const (
	Idle State = iota
	AwaitingCredential
	CredentialCaptured
	Submitting
	ResolvedOK
	ResolvedErr
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingCredential:
		return "awaiting_credential"
	case CredentialCaptured:
		return "credential_captured"
	case Submitting:
		return "submitting"
	case ResolvedOK:
		return "resolved_ok"
	case ResolvedErr:
		return "resolved_err"
	default:
		return "unknown"
	}
}

// Purpose names the gated operation a flow performs.
type Purpose string

const (
	PurposeEncrypt Purpose = "encrypt"
	PurposeDecrypt Purpose = "decrypt"
	PurposePreview Purpose = "preview"
)

// ErrBusy is returned when Run is called while a run is already in flight.
var ErrBusy = errors.New("flow already in flight")

// Scanner produces a credential artifact for a purpose. cancelled reports
// that the user dismissed the prompt; artifact is then ignored.
type Scanner interface {
	Scan(ctx context.Context, purpose Purpose) (artifact []byte, cancelled bool, err error)
}

// Request carries everything a Submitter needs to perform the operation.
// Artifact is nil for plain files.
type Request struct {
	FileID   string
	Purpose  Purpose
	Artifact []byte
}

// Submitter performs the gated operation. A returned error resolves the
// flow; the flow never retries on its own.
type Submitter interface {
	Submit(ctx context.Context, req Request) error
}

// Outcome of one Run.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

// Flow serializes gated operations for one file. A second Run while one is
// in flight is rejected with ErrBusy rather than queued, so a double-click
// cannot submit twice.
type Flow struct {
	scanner   Scanner
	submitter Submitter

	mu       sync.Mutex
	state    State
	inFlight bool

	// OnTransition, when set, observes every state change.
	OnTransition func(State)
}

func New(scanner Scanner, submitter Submitter) *Flow {
	return &Flow{scanner: scanner, submitter: submitter, state: Idle}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) transition(s State) {
	f.mu.Lock()
	f.state = s
	cb := f.OnTransition
	f.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// Run executes one flow for the file. Encrypted operations prompt for a
// credential first; plain operations go straight to submission. On cancel
// the flow returns to Idle with no submission. On failure the flow resolves
// and the file is untouched; the caller starts a fresh Run to try again.
func (f *Flow) Run(ctx context.Context, fileID string, purpose Purpose, encrypted bool) (Outcome, error) {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return OutcomeFailed, ErrBusy
	}
	f.inFlight = true
	f.state = Idle
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight = false
		f.mu.Unlock()
	}()

	var artifact []byte
	if encrypted {
		f.transition(AwaitingCredential)
		a, cancelled, err := f.scanner.Scan(ctx, purpose)
		if err != nil {
			f.transition(ResolvedErr)
			return OutcomeFailed, err
		}
		if cancelled {
			f.transition(Idle)
			return OutcomeCancelled, nil
		}
		artifact = a
		f.transition(CredentialCaptured)
	}

	f.transition(Submitting)
	if err := f.submitter.Submit(ctx, Request{FileID: fileID, Purpose: purpose, Artifact: artifact}); err != nil {
		f.transition(ResolvedErr)
		return OutcomeFailed, err
	}
	f.transition(ResolvedOK)
	return OutcomeOK, nil
}
