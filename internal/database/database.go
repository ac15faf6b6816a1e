package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Conceptual-Machines/magda-omr/internal/models"
)

const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 100
)

var ErrNoDatabaseURL = errors.New("database url is empty")

// Connect opens a Postgres connection
func Connect(databaseURL string) (*gorm.DB, error) {
	if databaseURL == "" {
		return nil, ErrNoDatabaseURL
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the conversion history table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Conversion{}); err != nil {
		return fmt.Errorf("migrate conversions: %w", err)
	}
	return nil
}

// ConversionStore persists conversion history
type ConversionStore interface {
	Record(ctx context.Context, c *models.Conversion) error
	Recent(ctx context.Context, limit int) ([]models.Conversion, error)
}

// GormStore keeps history in Postgres
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Record(ctx context.Context, c *models.Conversion) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("record conversion: %w", err)
	}
	return nil
}

// Recent returns the newest conversions first
func (s *GormStore) Recent(ctx context.Context, limit int) ([]models.Conversion, error) {
	var conversions []models.Conversion
	if err := recentQuery(s.db.WithContext(ctx), limit).Find(&conversions).Error; err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}
	if conversions == nil {
		conversions = []models.Conversion{}
	}
	return conversions, nil
}

func recentQuery(tx *gorm.DB, limit int) *gorm.DB {
	return tx.Model(&models.Conversion{}).
		Order("created_at desc").
		Order("id desc").
		Limit(ClampLimit(limit))
}

// NoopStore is used when no database is configured
type NoopStore struct{}

func (NoopStore) Record(context.Context, *models.Conversion) error { return nil }

func (NoopStore) Recent(context.Context, int) ([]models.Conversion, error) {
	return []models.Conversion{}, nil
}

// Open returns a GormStore for databaseURL, or a NoopStore when it is empty
func Open(databaseURL string) (ConversionStore, error) {
	if databaseURL == "" {
		return NoopStore{}, nil
	}
	db, err := Connect(databaseURL)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return NewGormStore(db), nil
}

// ClampLimit bounds a requested page size to 1..MaxRecentLimit; zero or
// negative means DefaultRecentLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		return MaxRecentLimit
	}
	return limit
}
