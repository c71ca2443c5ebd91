package crm

import (
	"errors"
	"fmt"
	"strings"

	"renolink/models"
)

var (
	// ErrNotFound means the id does not resolve to a lead the caller may see.
	ErrNotFound = errors.New("lead not found")

	// ErrVersionConflict means another actor mutated the lead since the
	// caller last read it. The caller must re-fetch and retry; the engine
	// never retries on its own.
	ErrVersionConflict = errors.New("lead version conflict")

	// ErrLeadClosed rejects snooze/assign on a terminal lead. Notes remain
	// allowed on closed leads.
	ErrLeadClosed = errors.New("lead is in a terminal status")
)

// InvalidTransitionError carries the allowed target set so callers can show
// it instead of guessing.
type InvalidTransitionError struct {
	From      models.LeadStatus
	Requested models.LeadStatus
	Allowed   []models.LeadStatus
}

func (e *InvalidTransitionError) Error() string {
	targets := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		targets[i] = string(s)
	}
	return fmt.Sprintf("invalid transition %s -> %s (allowed: %s)",
		e.From, e.Requested, strings.Join(targets, ", "))
}

// DownstreamError wraps a collaborator failure. The lead state is untouched
// when one of these comes back; the failure is surfaced verbatim.
type DownstreamError struct {
	Collaborator string
	Err          error
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("%s collaborator failed: %v", e.Collaborator, e.Err)
}

func (e *DownstreamError) Unwrap() error { return e.Err }
