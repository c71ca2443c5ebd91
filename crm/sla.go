package crm

import (
	"time"

	"renolink/models"
)

// SLAState is the computed response-time badge for a lead.
type SLAState string

const (
	SLAOk       SLAState = "ok"
	SLAWarning  SLAState = "warning"
	SLABreached SLAState = "breached"
	SLANone     SLAState = "n/a"
)

// Policy is the maximum dwell time a lead may spend in a status before its
// service commitment is breached, plus the elapsed time at which the badge
// turns to warning.
type Policy struct {
	Max     time.Duration
	Warning time.Duration
}

// PolicySet maps status to policy. Statuses with no entry are exempt from
// SLA and evaluate to n/a.
type PolicySet map[models.LeadStatus]Policy

// DefaultPolicies returns the stock response-time commitments. Durations are
// overridable through the environment (see config).
func DefaultPolicies() PolicySet {
	return PolicySet{
		models.StatusNew:        {Max: 2 * time.Hour, Warning: 90 * time.Minute},
		models.StatusNoAnswer:   {Max: 24 * time.Hour, Warning: 18 * time.Hour},
		models.StatusNoAnswerX5: {Max: 4 * time.Hour, Warning: 3 * time.Hour},
		models.StatusFollowup:   {Max: 8 * time.Hour, Warning: 6 * time.Hour},
	}
}

// Badge is the derived SLA view attached to every lead read. It is never
// stored; only status_entered_at and snooze_until are.
type Badge struct {
	State     SLAState       `json:"state"`
	Remaining *time.Duration `json:"remaining"`
}

// Evaluate computes the SLA badge for a lead at the given instant. It is
// pure: same inputs, same output, and the lead is never mutated.
//
// An active snooze forces ok regardless of dwell time. Once a snooze lapses
// the clock anchor becomes snooze_until instead of status_entered_at, so the
// paused interval is not counted against the commitment.
func Evaluate(lead *models.Lead, policies PolicySet, now time.Time) Badge {
	policy, ok := policies[lead.Status]
	if !ok || lead.Status.IsTerminal() {
		return Badge{State: SLANone}
	}

	if lead.SnoozeUntil != nil && now.Before(*lead.SnoozeUntil) {
		remaining := policy.Max
		return Badge{State: SLAOk, Remaining: &remaining}
	}

	anchor := lead.StatusEnteredAt
	if lead.SnoozeUntil != nil && lead.SnoozeUntil.After(anchor) {
		anchor = *lead.SnoozeUntil
	}

	elapsed := now.Sub(anchor)
	remaining := policy.Max - elapsed

	state := SLAOk
	switch {
	case remaining <= 0:
		state = SLABreached
	case elapsed >= policy.Warning:
		state = SLAWarning
	}
	return Badge{State: state, Remaining: &remaining}
}
