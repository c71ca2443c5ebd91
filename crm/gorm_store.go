package crm

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"renolink/models"
)

// GormStore is the Postgres-backed Store.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Create(lead *models.Lead) error {
	return s.DB.Create(lead).Error
}

func (s *GormStore) Get(id string) (*models.Lead, error) {
	var lead models.Lead
	if err := s.DB.Where("id = ?", id).First(&lead).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lead, nil
}

func (s *GormStore) List(supplierID string, f Filter) ([]models.Lead, error) {
	query := s.DB.Where("supplier_id = ?", supplierID)

	if len(f.Statuses) > 0 {
		query = query.Where("status IN ?", f.Statuses)
	}
	if f.Source != "" {
		query = query.Where("source_key = ?", f.Source)
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		query = query.Where(
			"name ILIKE ? OR contact_phone ILIKE ? OR contact_email ILIKE ?",
			like, like, like,
		)
	}

	order := "created_at DESC"
	if f.SortAsc {
		order = "created_at ASC"
	}

	var leads []models.Lead
	if err := query.Order(order).Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}

func (s *GormStore) Save(lead *models.Lead, expectedVersion int, entry *models.AuditEntry) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Lead{}).
			Where("id = ? AND version = ?", lead.ID, expectedVersion).
			Updates(map[string]interface{}{
				"status":            lead.Status,
				"no_answer_streak":  lead.NoAnswerStreak,
				"assigned_to":       lead.AssignedTo,
				"status_entered_at": lead.StatusEnteredAt,
				"snooze_until":      lead.SnoozeUntil,
				"version":           expectedVersion + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Guarded update missed: either the row is gone or someone
			// else moved the version first.
			var count int64
			if err := tx.Model(&models.Lead{}).Where("id = ?", lead.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrVersionConflict
		}
		lead.Version = expectedVersion + 1
		if entry != nil {
			return tx.Create(entry).Error
		}
		return nil
	})
}

func (s *GormStore) AppendNote(note *models.LeadNote) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(note).Error; err != nil {
			return err
		}
		now := note.CreatedAt
		if now.IsZero() {
			now = time.Now()
		}
		res := tx.Model(&models.Lead{}).
			Where("id = ?", note.LeadID).
			Updates(map[string]interface{}{
				"last_activity_note": note.Text,
				"last_activity_date": now,
				"version":            gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *GormStore) Notes(leadID string) ([]models.LeadNote, error) {
	var notes []models.LeadNote
	if err := s.DB.Where("lead_id = ?", leadID).Order("created_at DESC").Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *GormStore) AuditTrail(leadID string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	if err := s.DB.Where("lead_id = ?", leadID).Order("at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *GormStore) Delete(id string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		// Detach order references first so the delete cannot trip over a
		// foreign key (best-effort detach policy).
		if err := tx.Model(&models.Order{}).
			Where("lead_id = ?", id).
			Update("lead_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("lead_id = ?", id).Delete(&models.LeadNote{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Lead{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
