package crm

import (
	"time"

	"renolink/models"
)

// AssignmentRouter owns lead-to-user assignment. It only performs the write
// and the audit entry; who may be assigned is the access layer's concern.
// Reassignment does not touch status_entered_at, so the SLA clock keeps
// running across handovers.
type AssignmentRouter struct {
	store Store
	now   func() time.Time
}

func NewAssignmentRouter(store Store, now func() time.Time) *AssignmentRouter {
	return &AssignmentRouter{store: store, now: now}
}

// Assign sets (or, with a nil assignee, clears) the lead's assigned user
// under the usual version check. Terminal leads cannot be reassigned.
func (r *AssignmentRouter) Assign(lead *models.Lead, assignee *string, expectedVersion int, actor string) error {
	if lead.Status.IsTerminal() {
		return ErrLeadClosed
	}

	oldValue := ""
	if lead.AssignedTo != nil {
		oldValue = *lead.AssignedTo
	}
	newValue := ""
	if assignee != nil {
		newValue = *assignee
	}

	lead.AssignedTo = assignee
	entry := &models.AuditEntry{
		LeadID:     lead.ID,
		Actor:      actor,
		ChangeKind: models.ChangeAssignment,
		OldValue:   oldValue,
		NewValue:   newValue,
		At:         r.now(),
	}
	return r.store.Save(lead, expectedVersion, entry)
}
