package store

import (
	"fmt"

	"github.com/mwillard/beacon/internal/models"
	"gorm.io/gorm"
)

// GormStore persists alerts to the configured database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is required")
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Append(alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("store: alert is required")
	}
	if err := s.db.Create(alert).Error; err != nil {
		return fmt.Errorf("store: append alert %s: %w", alert.ID, err)
	}
	return nil
}

func (s *GormStore) History(limit int) ([]models.Alert, error) {
	q := s.db.Preload("Deliveries").Order("triggered_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Alert
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	return out, nil
}

func (s *GormStore) Get(id string) (*models.Alert, error) {
	var a models.Alert
	if err := s.db.Preload("Deliveries").First(&a, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: get alert %s: %w", id, err)
	}
	return &a, nil
}

func (s *GormStore) Count() (int64, error) {
	var n int64
	if err := s.db.Model(&models.Alert{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}
