// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides full-store snapshot export and import
// for backup and migration tooling.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-journal-backend/internal/domain"
)

// ExportSnapshot serializes the entire store: every entry (oldest first so
// the export is stable), every analysis row, and the id counter.
func ExportSnapshot(ctx context.Context, db *gorm.DB) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{
		Version:    domain.SchemaVersion,
		ExportedAt: time.Now().UTC(),
	}

	if err := db.WithContext(ctx).Order("id ASC").Find(&snap.Entries).Error; err != nil {
		return nil, err
	}
	analyses, err := ListAnalyses(ctx, db)
	if err != nil {
		return nil, err
	}
	snap.Analyses = analyses

	next, err := PeekID(db.WithContext(ctx), domain.EntryIDCounter)
	if err != nil {
		return nil, err
	}
	snap.NextID = next
	return snap, nil
}

// ImportSnapshot replaces the entire store state with the snapshot's
// contents, including the id counter, in one transaction. The counter is
// clamped to at least the highest imported entry id so the next allocation
// can never collide with an imported row.
func ImportSnapshot(ctx context.Context, db *gorm.DB, snap *domain.Snapshot) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.Entry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&domain.Analysis{}).Error; err != nil {
			return err
		}

		if len(snap.Entries) > 0 {
			if err := tx.Create(&snap.Entries).Error; err != nil {
				return err
			}
		}
		if len(snap.Analyses) > 0 {
			if err := tx.Create(&snap.Analyses).Error; err != nil {
				return err
			}
		}

		next := snap.NextID
		for _, e := range snap.Entries {
			if e.ID > next {
				next = e.ID
			}
		}
		return RestoreID(tx, domain.EntryIDCounter, next)
	})
}
