// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Analysis
// model. Transition legality is enforced one level up in the service layer;
// these functions only read and write rows.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-journal-backend/internal/domain"
)

// GetAnalysis fetches the analysis row for an entry, or ErrNotFound.
func GetAnalysis(ctx context.Context, db *gorm.DB, entryID int64) (*domain.Analysis, error) {
	var a domain.Analysis
	if err := db.WithContext(ctx).Where("entry_id = ?", entryID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveAnalysis inserts or fully replaces the analysis row for its entry id.
// The commit is durable before return (WAL synchronous write).
func SaveAnalysis(ctx context.Context, db *gorm.DB, a *domain.Analysis) error {
	a.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(a).Error
}

// ListAnalyses returns all analysis rows ordered by entry id ascending.
func ListAnalyses(ctx context.Context, db *gorm.DB) ([]domain.Analysis, error) {
	var out []domain.Analysis
	err := db.WithContext(ctx).Order("entry_id ASC").Find(&out).Error
	return out, err
}

// ListStaleInProgress returns in-progress rows whose StartedAt is before
// cutoff. These are attempts orphaned by a crash; the reconciler requeues
// them.
func ListStaleInProgress(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Analysis, error) {
	var out []domain.Analysis
	err := db.WithContext(ctx).
		Where("status = ? AND started_at < ?", domain.StatusInProgress, cutoff).
		Order("entry_id ASC").
		Find(&out).Error
	return out, err
}

// DeleteAnalysis removes the analysis row for an entry. Deleting a missing
// row is not an error: callers delete analyses opportunistically after
// entry deletion.
func DeleteAnalysis(ctx context.Context, db *gorm.DB, entryID int64) error {
	res := db.WithContext(ctx).Where("entry_id = ?", entryID).Delete(&domain.Analysis{})
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return res.Error
	}
	return nil
}

// ClearAnalyses deletes every analysis row.
func ClearAnalyses(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Where("1 = 1").Delete(&domain.Analysis{}).Error
}

// CountAnalysesByStatus returns the number of analysis rows in the given
// status. Uses a raw COUNT so a missing table surfaces as an error.
func CountAnalysesByStatus(ctx context.Context, db *gorm.DB, status domain.AnalysisStatus) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM analyses WHERE status = ?", status).
		Scan(&total).Error
	return total, err
}
