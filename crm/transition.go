package crm

import "renolink/models"

// EscalationThreshold is the no-answer streak at which a lead is pushed to
// no_answer_x5 for supervisory attention.
const EscalationThreshold = 5

// transitions is the allowed status graph. Missing current statuses are
// terminal; no_answer_x5 is absent as a target everywhere because it is only
// ever produced by the escalation rule, never requested.
var transitions = map[models.LeadStatus]map[models.LeadStatus]bool{
	models.StatusNew: {
		models.StatusNoAnswer:          true,
		models.StatusFollowup:          true,
		models.StatusNotRelevant:       true,
		models.StatusError:             true,
		models.StatusDeniesContact:     true,
		models.StatusProjectInProgress: true,
	},
	models.StatusNoAnswer: {
		models.StatusNoAnswer:          true, // re-attempt, feeds the streak
		models.StatusFollowup:          true,
		models.StatusNotRelevant:       true,
		models.StatusError:             true,
		models.StatusDeniesContact:     true,
		models.StatusProjectInProgress: true,
	},
	models.StatusNoAnswerX5: {
		models.StatusNoAnswer:          true,
		models.StatusFollowup:          true,
		models.StatusNotRelevant:       true,
		models.StatusError:             true,
		models.StatusDeniesContact:     true,
		models.StatusProjectInProgress: true,
	},
	models.StatusFollowup: {
		models.StatusNoAnswer:          true,
		models.StatusNotRelevant:       true,
		models.StatusError:             true,
		models.StatusDeniesContact:     true,
		models.StatusProjectInProgress: true,
	},
	models.StatusProjectInProgress: {
		models.StatusProjectCompleted: true,
	},
}

// AllowedTargets returns the statuses reachable from current, in board
// column order. Empty for terminal statuses.
func AllowedTargets(current models.LeadStatus) []models.LeadStatus {
	next := transitions[current]
	var out []models.LeadStatus
	for _, s := range models.AllStatuses {
		if next[s] {
			out = append(out, s)
		}
	}
	return out
}

// Validate enforces the allowed status graph. It returns nil when the move
// is permitted and an *InvalidTransitionError otherwise.
func Validate(current, requested models.LeadStatus) error {
	if requested.IsValid() && requested != models.StatusNoAnswerX5 && transitions[current][requested] {
		return nil
	}
	return &InvalidTransitionError{
		From:      current,
		Requested: requested,
		Allowed:   AllowedTargets(current),
	}
}

// Escalate computes the stored status and streak after an accepted
// transition. Entering no_answer from new/no_answer/no_answer_x5 grows the
// streak; hitting the threshold overrides the result to no_answer_x5 and
// resets the streak. Any other target resets the streak to zero.
func Escalate(prev, requested models.LeadStatus, streak int) (models.LeadStatus, int) {
	if requested != models.StatusNoAnswer {
		return requested, 0
	}
	switch prev {
	case models.StatusNew, models.StatusNoAnswer, models.StatusNoAnswerX5:
		streak++
	default:
		streak = 0
	}
	if streak >= EscalationThreshold {
		return models.StatusNoAnswerX5, 0
	}
	return models.StatusNoAnswer, streak
}
