package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicshield/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func preloadHistory(db *gorm.DB) *gorm.DB {
	return db.Preload("History", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	})
}

// CreateComplaint assigns the next complaint id (when unset) and stores the
// complaint with its initial history in one transaction, so a failed insert
// never consumes a number.
func (s *Service) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	assignedID := c.ComplaintID == ""
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if assignedID {
			seq, err := nextSequence(tx, ComplaintCounter)
			if err != nil {
				return err
			}
			c.ComplaintID = models.FormatComplaintID(seq)
		}
		if err := tx.Omit(clause.Associations).Create(c).Error; err != nil {
			return fmt.Errorf("insert complaint: %w", err)
		}
		if len(c.History) == 0 {
			return nil
		}
		for i := range c.History {
			c.History[i].ComplaintRef = c.ID
		}
		if err := tx.Create(&c.History).Error; err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
		return nil
	})
	if err != nil {
		if assignedID {
			c.ComplaintID = ""
		}
		c.ID = 0
	}
	return err
}

// FindComplaint loads a complaint with its full history.
func (s *Service) FindComplaint(ctx context.Context, complaintID string) (*models.Complaint, error) {
	var c models.Complaint
	err := preloadHistory(s.DB.WithContext(ctx)).
		Where("complaint_id = ?", complaintID).
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateComplaint writes every column of c and inserts the appended history
// entries. The write only succeeds if the stored version still equals
// c.Version; on success c.Version is incremented.
func (s *Service) UpdateComplaint(ctx context.Context, c *models.Complaint, appended ...models.StatusEntry) error {
	prev := c.Version
	c.Version = prev + 1
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(c).
			Select("*").
			Omit(clause.Associations, "ID", "ComplaintID", "OwnerID", "CreatedAt").
			Where("version = ?", prev).
			Updates(c)
		if res.Error != nil {
			return fmt.Errorf("update complaint %s: %w", c.ComplaintID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		if len(appended) == 0 {
			return nil
		}
		for i := range appended {
			appended[i].ComplaintRef = c.ID
		}
		if err := tx.Create(&appended).Error; err != nil {
			return fmt.Errorf("append history to %s: %w", c.ComplaintID, err)
		}
		return nil
	})
	if err != nil {
		c.Version = prev
	}
	return err
}

// ListComplaints returns complaints matching f, newest first.
func (s *Service) ListComplaints(ctx context.Context, f ListFilter) ([]models.Complaint, error) {
	q := preloadHistory(s.DB.WithContext(ctx)).Order("created_at DESC, id DESC")
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.Department != "" {
		q = q.Where("LOWER(department) = LOWER(?)", f.Department)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", models.Names(f.Statuses))
	}
	var out []models.Complaint
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindOverdue returns complaints awaiting an authority whose deadline has passed.
func (s *Service) FindOverdue(ctx context.Context, now time.Time) ([]models.Complaint, error) {
	var out []models.Complaint
	err := s.DB.WithContext(ctx).
		Where("status = ?", models.StatusSentToAuthority.String()).
		Where("escalation_deadline IS NOT NULL AND escalation_deadline <= ?", now).
		Order("escalation_deadline ASC").
		Find(&out).Error
	return out, err
}

// FindStale returns complaints in one of statuses not touched since before.
func (s *Service) FindStale(ctx context.Context, statuses []models.Status, before time.Time) ([]models.Complaint, error) {
	var out []models.Complaint
	err := s.DB.WithContext(ctx).
		Where("status IN ?", models.Names(statuses)).
		Where("updated_at < ?", before).
		Order("id ASC").
		Find(&out).Error
	return out, err
}
