package crm

import "renolink/models"

// Filter narrows a lead listing. Zero value means "everything, newest first".
type Filter struct {
	Statuses []models.LeadStatus
	Source   string
	// Query is matched case-insensitively against name, phone and email.
	Query   string
	SortAsc bool
}

// Store is the durable record of leads. Save is an atomic compare-and-swap
// on the lead version: either the stored version matches expectedVersion and
// the whole write (version bump and audit entry included) lands, or nothing
// is written and ErrVersionConflict comes back.
type Store interface {
	Create(lead *models.Lead) error
	Get(id string) (*models.Lead, error)
	List(supplierID string, f Filter) ([]models.Lead, error)
	Save(lead *models.Lead, expectedVersion int, entry *models.AuditEntry) error

	// AppendNote inserts the note and refreshes the lead's denormalized
	// last_activity fields in the same atomic write; the lead version is
	// bumped without an expected-version check (note appends commute).
	AppendNote(note *models.LeadNote) error
	Notes(leadID string) ([]models.LeadNote, error)

	AuditTrail(leadID string) ([]models.AuditEntry, error)

	// Delete removes the lead and its notes after detaching any order rows
	// referencing it. Audit entries are retained.
	Delete(id string) error
}
