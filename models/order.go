package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Order is the slice of the external order record the engine needs to know
// about: a row that may hold a foreign reference to a lead. On lead deletion
// the reference is detached (set null) before the lead row goes away.
type Order struct {
	ID         string  `gorm:"type:uuid;primaryKey" json:"id"`
	SupplierID string  `gorm:"not null;index" json:"supplier_id"`
	LeadID     *string `gorm:"index" json:"lead_id"`

	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
