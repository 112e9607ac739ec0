// Package storage persists complaints, their history and embeddings with
// gorm, and provides the redis primitives the background jobs share.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicshield/backend/internal/config"
	"civicshield/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrNotFound is returned when no complaint has the requested id.
	ErrNotFound = errors.New("complaint not found")
	// ErrConflict is returned when a concurrent writer committed first.
	ErrConflict = errors.New("complaint was modified concurrently")
)

// ComplaintCounter names the sequence behind complaint ids.
const ComplaintCounter = "complaint_id"

// ListFilter narrows List queries. Zero fields are ignored.
type ListFilter struct {
	OwnerID    string
	Department string
	Statuses   []models.Status
}

// CorpusDocument is the text of one complaint as seen by the corpus index.
type CorpusDocument struct {
	ComplaintID string
	Department  string
	Heading     string
	Description string
}

// Candidate is a stored complaint that already has an embedding.
type Candidate struct {
	ComplaintID string
	Department  string
	Heading     string
	Description string
	Status      models.Status
	Embedding   []float32
}

// Storage is everything the workflow needs from persistence.
type Storage interface {
	CreateComplaint(ctx context.Context, c *models.Complaint) error
	FindComplaint(ctx context.Context, complaintID string) (*models.Complaint, error)
	UpdateComplaint(ctx context.Context, c *models.Complaint, appended ...models.StatusEntry) error
	ListComplaints(ctx context.Context, f ListFilter) ([]models.Complaint, error)
	FindOverdue(ctx context.Context, now time.Time) ([]models.Complaint, error)
	FindStale(ctx context.Context, statuses []models.Status, before time.Time) ([]models.Complaint, error)

	NextSequence(ctx context.Context, name string) (int64, error)
	MigrateCounter(ctx context.Context) (int64, error)

	CorpusDocuments(ctx context.Context) ([]CorpusDocument, error)
	SimilarityCandidates(ctx context.Context, exclude []models.Status, excludeID string) ([]Candidate, error)
	MissingEmbeddings(ctx context.Context, limit int) ([]CorpusDocument, error)
	SaveEmbedding(ctx context.Context, complaintID string, vec []float32) (bool, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// Open connects to the database selected by cfg.Database.Driver.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.Path)
	default:
		dialector = postgres.Open(cfg.PostgresDSN())
	}
	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Database.Driver, err)
	}
	if cfg.Database.Driver == "sqlite" {
		// sqlite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// AutoMigrate creates or updates every table the backend owns.
func AutoMigrate(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("enable pgvector: %w", err)
		}
	}
	return db.AutoMigrate(
		&models.Complaint{},
		&models.StatusEntry{},
		&models.ComplaintEmbedding{},
		&models.Counter{},
	)
}
