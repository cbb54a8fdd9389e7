package orchestrator

import (
	"errors"
	"fmt"
	"time"
)

type Phase string

const (
	PhaseProfile        Phase = "profile"
	PhaseQueries        Phase = "queries"
	PhasePersistQueries Phase = "persist_queries"
	PhaseAliases        Phase = "aliases"
	PhaseExecute        Phase = "execute"
	PhaseScore          Phase = "score"
	PhaseCompetitors    Phase = "competitors"
	PhasePersistScan    Phase = "persist_scan"
	PhaseDone           Phase = "done"
)

// Fatal reports whether a failure in the phase aborts the scan.
func (p Phase) Fatal() bool {
	switch p {
	case PhaseProfile, PhaseQueries, PhaseAliases, PhaseExecute:
		return true
	}
	return false
}

var (
	ErrNoQueries   = errors.New("no queries survived generation and validation")
	ErrNoResponses = errors.New("no provider returned an answer")
)

// PhaseError is returned by Run when a fatal phase fails or the context ends
// before the result is persisted. Nothing is persisted for the scan in that
// case.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string { return fmt.Sprintf("%s phase: %v", e.Phase, e.Err) }
func (e *PhaseError) Unwrap() error { return e.Err }

// Observer receives pipeline telemetry. Implementations must be safe for
// concurrent use.
type Observer interface {
	PhaseFailed(phase string, fatal bool)
	ProviderCall(provider string, err error)
	ScanFinished(outcome string, score int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) PhaseFailed(string, bool) {}
func (nopObserver) ProviderCall(string, error) {}
func (nopObserver) ScanFinished(string, int, time.Duration) {}
