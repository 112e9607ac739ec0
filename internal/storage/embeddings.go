package storage

import (
	"context"
	"fmt"

	"civicshield/backend/internal/models"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm/clause"
)

// CorpusDocuments returns the text of every stored complaint.
func (s *Service) CorpusDocuments(ctx context.Context) ([]CorpusDocument, error) {
	var docs []CorpusDocument
	err := s.DB.WithContext(ctx).
		Model(&models.Complaint{}).
		Select("complaint_id, department, heading, description").
		Order("id ASC").
		Scan(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	return docs, nil
}

type candidateRow struct {
	ComplaintID string
	Department  string
	Heading     string
	Description string
	Status      models.Status
	Embedding   pgvector.Vector
}

// SimilarityCandidates returns complaints that have an embedding, skipping
// excludeID and every status in exclude.
func (s *Service) SimilarityCandidates(ctx context.Context, exclude []models.Status, excludeID string) ([]Candidate, error) {
	q := s.DB.WithContext(ctx).
		Table("complaints AS c").
		Select("c.complaint_id, c.department, c.heading, c.description, c.status, e.embedding").
		Joins("JOIN complaint_embeddings AS e ON e.complaint_id = c.complaint_id").
		Where("c.complaint_id <> ?", excludeID)
	if len(exclude) > 0 {
		q = q.Where("c.status NOT IN ?", models.Names(exclude))
	}
	var rows []candidateRow
	if err := q.Order("c.id ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load similarity candidates: %w", err)
	}
	out := make([]Candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, Candidate{
			ComplaintID: r.ComplaintID,
			Department:  r.Department,
			Heading:     r.Heading,
			Description: r.Description,
			Status:      r.Status,
			Embedding:   r.Embedding.Slice(),
		})
	}
	return out, nil
}

// MissingEmbeddings returns up to limit analysed complaints without a vector.
// Complaints still waiting for the pipeline are left to it.
func (s *Service) MissingEmbeddings(ctx context.Context, limit int) ([]CorpusDocument, error) {
	var docs []CorpusDocument
	err := s.DB.WithContext(ctx).
		Table("complaints AS c").
		Select("c.complaint_id, c.department, c.heading, c.description").
		Joins("LEFT JOIN complaint_embeddings AS e ON e.complaint_id = c.complaint_id").
		Where("e.complaint_id IS NULL").
		Where("c.status NOT IN ?", models.Names([]models.Status{models.StatusSubmitted, models.StatusAIReview})).
		Order("c.id ASC").
		Limit(limit).
		Scan(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("load complaints without embedding: %w", err)
	}
	return docs, nil
}

// SaveEmbedding stores vec for a complaint unless one is already stored.
// It reports whether a row was written.
func (s *Service) SaveEmbedding(ctx context.Context, complaintID string, vec []float32) (bool, error) {
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ComplaintEmbedding{ComplaintID: complaintID, Embedding: pgvector.NewVector(vec)})
	if res.Error != nil {
		return false, fmt.Errorf("save embedding for %s: %w", complaintID, res.Error)
	}
	return res.RowsAffected == 1, nil
}
