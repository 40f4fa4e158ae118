package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"service-availability-backend/internal/model"
)

// DefaultListLimit caps ListSaves when the caller passes no limit.
const DefaultListLimit = 50

// Store defines the interface for all journal operations.
type Store interface {
	RecordSave(ctx context.Context, rec *model.SaveRecord) error
	ListSaves(ctx context.Context, serviceID string, limit int) ([]model.SaveRecord, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// RecordSave appends one journal row.
func (s *gormStore) RecordSave(ctx context.Context, rec *model.SaveRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record save for service %q: %w", rec.ServiceID, err)
	}
	return nil
}

// ListSaves returns the newest journal rows for a service first.
func (s *gormStore) ListSaves(ctx context.Context, serviceID string, limit int) ([]model.SaveRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var records []model.SaveRecord
	err := s.db.WithContext(ctx).
		Where("service_id = ?", serviceID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list saves for service %q: %w", serviceID, err)
	}
	return records, nil
}
