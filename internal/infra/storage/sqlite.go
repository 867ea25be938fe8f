package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mm_bot/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the SQLite fill journal. It is write-only from the bot's point
// of view: balances are never restored from it.
type Storage struct {
	db *gorm.DB
}

var _ domain.FillJournal = (*Storage)(nil)

// NewStorage opens (or creates) the journal at path.
func NewStorage(path string) (*Storage, error) {
	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newStorage(db)
}

func newStorage(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(&domain.FillRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Storage{db: db}, nil
}

// ======================================================================================
// Fill Operations
// ======================================================================================

// RecordFill appends one simulated fill.
func (s *Storage) RecordFill(ctx context.Context, fill domain.Fill) error {
	return s.db.WithContext(ctx).Create(domain.NewFillRecord(fill)).Error
}

// RecentFills returns up to limit fills, newest first.
func (s *Storage) RecentFills(ctx context.Context, limit int) ([]domain.FillRecord, error) {
	var fills []domain.FillRecord
	err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&fills).Error
	return fills, err
}

// CountFills returns the number of journaled fills per side ("BID"/"ASK").
func (s *Storage) CountFills(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Side  string
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&domain.FillRecord{}).
		Select("side, count(*) as count").Group("side").Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(rows))
	for _, r := range rows {
		result[r.Side] = r.Count
	}
	return result, nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
