package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeadStatus is the lifecycle position of a lead on the supplier board.
type LeadStatus string

const (
	StatusNew               LeadStatus = "new"
	StatusNoAnswer          LeadStatus = "no_answer"
	StatusFollowup          LeadStatus = "followup"
	StatusNoAnswerX5        LeadStatus = "no_answer_x5"
	StatusNotRelevant       LeadStatus = "not_relevant"
	StatusError             LeadStatus = "error"
	StatusDeniesContact     LeadStatus = "denies_contact"
	StatusProjectInProgress LeadStatus = "project_in_progress"
	StatusProjectCompleted  LeadStatus = "project_completed"
)

// AllStatuses lists every valid lead status, in board column order.
var AllStatuses = []LeadStatus{
	StatusNew,
	StatusNoAnswer,
	StatusFollowup,
	StatusNoAnswerX5,
	StatusNotRelevant,
	StatusError,
	StatusDeniesContact,
	StatusProjectInProgress,
	StatusProjectCompleted,
}

// IsValid reports whether s is a member of the fixed status set.
func (s LeadStatus) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions. Terminal leads
// can still be annotated but never reassigned, snoozed or moved.
func (s LeadStatus) IsTerminal() bool {
	switch s {
	case StatusNotRelevant, StatusError, StatusDeniesContact, StatusProjectCompleted:
		return true
	}
	return false
}

// LeadPriority is descriptive metadata only; it never feeds the SLA policy
// or the transition table.
type LeadPriority string

const (
	PriorityVIP    LeadPriority = "vip"
	PriorityHigh   LeadPriority = "high"
	PriorityMedium LeadPriority = "medium"
	PriorityLow    LeadPriority = "low"
)

// Lead is one inbound sales opportunity owned by one supplier.
type Lead struct {
	ID         string `gorm:"type:uuid;primaryKey" json:"id"`
	SupplierID string `gorm:"not null;index" json:"supplier_id"`

	Name         string `json:"name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`

	Status         LeadStatus   `gorm:"not null;index" json:"status"`
	NoAnswerStreak int          `gorm:"default:0" json:"no_answer_streak"`
	Priority       LeadPriority `gorm:"default:medium" json:"priority"`

	SourceKey    string `gorm:"index" json:"source_key"`
	CampaignName string `json:"campaign_name"`

	AssignedTo *string `gorm:"index" json:"assigned_to"`

	// StatusEnteredAt anchors the SLA clock; only status changes move it.
	StatusEnteredAt time.Time  `gorm:"not null" json:"status_entered_at"`
	SnoozeUntil     *time.Time `json:"snooze_until"`

	LastActivityNote string     `json:"last_activity_note"`
	LastActivityDate *time.Time `json:"last_activity_date"`

	// Version drives optimistic concurrency; it moves by exactly 1 on
	// every successful mutation.
	Version   int       `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`

	Notes []LeadNote `gorm:"foreignKey:LeadID" json:"notes,omitempty"`
}

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// LeadNote is an append-only annotation; immutable once created.
type LeadNote struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	LeadID    string    `gorm:"not null;index" json:"lead_id"`
	Author    string    `gorm:"not null" json:"author"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (n *LeadNote) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// ChangeKind classifies audit entries.
type ChangeKind string

const (
	ChangeStatus     ChangeKind = "status"
	ChangeAssignment ChangeKind = "assignment"
	ChangeSnooze     ChangeKind = "snooze"
)

// AuditEntry is an append-only record of status/assignment/snooze changes.
// Entries are never updated or deleted; they survive lead deletion so the
// trail stays usable for support diagnostics.
type AuditEntry struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	LeadID     string     `gorm:"not null;index" json:"lead_id"`
	Actor      string     `gorm:"not null" json:"actor"`
	ChangeKind ChangeKind `gorm:"not null" json:"change_kind"`
	OldValue   string     `json:"old_value"`
	NewValue   string     `json:"new_value"`
	At         time.Time  `gorm:"not null" json:"at"`
}

func (e *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
