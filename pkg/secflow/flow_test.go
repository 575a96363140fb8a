package secflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScanner struct {
	artifact  []byte
	cancelled bool
	err       error
	calls     int
	release   chan struct{} // when set, Scan blocks until closed
}

func (s *fakeScanner) Scan(ctx context.Context, purpose Purpose) ([]byte, bool, error) {
	s.calls++
	if s.release != nil {
		<-s.release
	}
	return s.artifact, s.cancelled, s.err
}

type fakeSubmitter struct {
	mu    sync.Mutex
	err   error
	calls []Request
}

func (s *fakeSubmitter) Submit(ctx context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	return s.err
}

func (s *fakeSubmitter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestEncryptedFlowHappyPath(t *testing.T) {
	scanner := &fakeScanner{artifact: []byte("artifact")}
	submitter := &fakeSubmitter{}
	flow := New(scanner, submitter)

	var seen []State
	flow.OnTransition = func(s State) { seen = append(seen, s) }

	outcome, err := flow.Run(context.Background(), "f-1", PurposeDecrypt, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, []State{AwaitingCredential, CredentialCaptured, Submitting, ResolvedOK}, seen)

	require.Equal(t, 1, submitter.callCount())
	assert.Equal(t, []byte("artifact"), submitter.calls[0].Artifact)
	assert.Equal(t, "f-1", submitter.calls[0].FileID)
}

func TestPlainFileSkipsCredential(t *testing.T) {
	scanner := &fakeScanner{}
	submitter := &fakeSubmitter{}
	flow := New(scanner, submitter)

	var seen []State
	flow.OnTransition = func(s State) { seen = append(seen, s) }

	outcome, err := flow.Run(context.Background(), "f-1", PurposeDecrypt, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, []State{Submitting, ResolvedOK}, seen)
	assert.Zero(t, scanner.calls, "plain files must never prompt")
	assert.Nil(t, submitter.calls[0].Artifact)
}

func TestCancelReturnsToIdleWithoutSubmitting(t *testing.T) {
	scanner := &fakeScanner{cancelled: true}
	submitter := &fakeSubmitter{}
	flow := New(scanner, submitter)

	outcome, err := flow.Run(context.Background(), "f-1", PurposePreview, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Equal(t, Idle, flow.State())
	assert.Zero(t, submitter.callCount(), "cancel must have no side effects")
}

func TestSubmitFailureResolvesWithoutRetry(t *testing.T) {
	scanner := &fakeScanner{artifact: []byte("a")}
	submitter := &fakeSubmitter{err: errors.New("credential rejected")}
	flow := New(scanner, submitter)

	outcome, err := flow.Run(context.Background(), "f-1", PurposeDecrypt, true)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, ResolvedErr, flow.State())
	assert.Equal(t, 1, submitter.callCount(), "no automatic retry")

	// a fresh run starts over and can succeed
	submitter.err = nil
	outcome, err = flow.Run(context.Background(), "f-1", PurposeDecrypt, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, 2, submitter.callCount())
}

func TestScannerErrorResolves(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("scanner offline")}
	submitter := &fakeSubmitter{}
	flow := New(scanner, submitter)

	outcome, err := flow.Run(context.Background(), "f-1", PurposeDecrypt, true)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Zero(t, submitter.callCount())
}

func TestConcurrentRunRejected(t *testing.T) {
	release := make(chan struct{})
	scanner := &fakeScanner{artifact: []byte("a"), release: release}
	submitter := &fakeSubmitter{}
	flow := New(scanner, submitter)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = flow.Run(context.Background(), "f-1", PurposeDecrypt, true)
	}()

	// wait until the first run is holding the prompt open
	for flow.State() != AwaitingCredential {
		time.Sleep(time.Millisecond)
	}

	_, err := flow.Run(context.Background(), "f-1", PurposeDecrypt, true)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	<-done
	assert.Equal(t, 1, submitter.callCount(), "only the first run may submit")
}
