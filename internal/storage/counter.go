package storage

import (
	"context"
	"fmt"

	"civicshield/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NextSequence atomically increments the named counter and returns the new value.
func (s *Service) NextSequence(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		seq, err = nextSequence(tx, name)
		return err
	})
	return seq, err
}

// nextSequence runs inside the caller's transaction. The row-level lock taken
// by the UPDATE serializes concurrent callers until the transaction ends.
func nextSequence(tx *gorm.DB, name string) (int64, error) {
	res := tx.Model(&models.Counter{}).Where("name = ?", name).Update("seq", gorm.Expr("seq + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("increment counter %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		if err := ensureCounter(tx, name); err != nil {
			return 0, err
		}
		res = tx.Model(&models.Counter{}).Where("name = ?", name).Update("seq", gorm.Expr("seq + 1"))
		if res.Error != nil {
			return 0, fmt.Errorf("increment counter %s: %w", name, res.Error)
		}
		if res.RowsAffected == 0 {
			return 0, fmt.Errorf("counter %s could not be created", name)
		}
	}
	var ctr models.Counter
	if err := tx.Where("name = ?", name).Take(&ctr).Error; err != nil {
		return 0, fmt.Errorf("read counter %s: %w", name, err)
	}
	return ctr.Seq, nil
}

func ensureCounter(tx *gorm.DB, name string) error {
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Counter{Name: name}).Error
	if err != nil {
		return fmt.Errorf("create counter %s: %w", name, err)
	}
	return nil
}

// MigrateCounter fast-forwards the complaint counter past every id already
// stored, so data written before the counter existed never collides with new
// ids. It is idempotent and returns the counter value afterwards.
func (s *Service) MigrateCounter(ctx context.Context) (int64, error) {
	var seq int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCounter(tx, ComplaintCounter); err != nil {
			return err
		}

		var ids []string
		if err := tx.Model(&models.Complaint{}).Pluck("complaint_id", &ids).Error; err != nil {
			return fmt.Errorf("scan complaint ids: %w", err)
		}
		var highest int64
		for _, id := range ids {
			if n, ok := models.ParseComplaintSeq(id); ok && n > highest {
				highest = n
			}
		}

		var ctr models.Counter
		if err := tx.Where("name = ?", ComplaintCounter).Take(&ctr).Error; err != nil {
			return fmt.Errorf("read counter: %w", err)
		}
		seq = ctr.Seq
		if highest <= ctr.Seq {
			return nil
		}
		if err := tx.Model(&models.Counter{}).
			Where("name = ? AND seq < ?", ComplaintCounter, highest).
			Update("seq", highest).Error; err != nil {
			return fmt.Errorf("fast-forward counter: %w", err)
		}
		seq = highest
		return nil
	})
	return seq, err
}
