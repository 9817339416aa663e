// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Entry model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an entry is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-journal-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateEntry allocates the next entry id from the persisted counter and
// inserts the row, both inside one transaction. The counter advance and the
// insert commit atomically, so as soon as this returns the entry is durable
// and its id can never be reissued.
func CreateEntry(ctx context.Context, db *gorm.DB, content string) (*domain.Entry, error) {
	var e *domain.Entry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := NextID(tx, domain.EntryIDCounter)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		e = &domain.Entry{
			ID:        id,
			Content:   content,
			Version:   domain.SchemaVersion,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Create(e).Error
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetEntry fetches a single entry by id, or ErrNotFound if missing.
func GetEntry(ctx context.Context, db *gorm.DB, id int64) (*domain.Entry, error) {
	var e domain.Entry
	if err := db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEntries returns all entries ordered by creation time descending
// (newest first), with id descending as a deterministic tiebreak.
func ListEntries(ctx context.Context, db *gorm.DB) ([]domain.Entry, error) {
	var out []domain.Entry
	err := db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// CountEntries uses a raw COUNT so a missing table surfaces as an error.
func CountEntries(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM entries").Scan(&total).Error
	return total, err
}

// UpdateEntryContent replaces the content of an entry in place and bumps
// UpdatedAt. CreatedAt and ID are immutable. Returns ErrNotFound when no
// row matched.
func UpdateEntryContent(ctx context.Context, db *gorm.DB, id int64, content string) error {
	res := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"content":    content,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEntry removes an entry by id. Returns ErrNotFound when no row
// matched. The entry's analysis row, if any, is left alone: cross-store
// deletion is the caller's responsibility.
func DeleteEntry(ctx context.Context, db *gorm.DB, id int64) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Entry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearEntries deletes every entry. The id counter is NOT reset: cleared
// ids stay retired.
func ClearEntries(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Where("1 = 1").Delete(&domain.Entry{}).Error
}
