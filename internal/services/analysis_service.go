// Package services – AnalysisService
//
// This file implements AnalysisService, which owns the analysis record
// state machine: none → in_progress → {completed, failed}, with
// failed → in_progress on retry. Every mutating call persists the record
// durably before returning (same synchronous-write contract as the entry
// store). Transition legality is enforced here; the repo layer only reads
// and writes rows.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-journal-backend/internal/analyzer"
	"github.com/tbourn/go-journal-backend/internal/domain"
	"github.com/tbourn/go-journal-backend/internal/repo"
)

// AnalysisService coordinates analysis record persistence and the status
// state machine.
type AnalysisService struct {
	DB *gorm.DB

	// now is the clock seam for tests; defaults to time.Now.
	now func() time.Time
}

// NewAnalysisService returns an AnalysisService over the given database
// handle.
func NewAnalysisService(db *gorm.DB) *AnalysisService {
	return &AnalysisService{DB: db, now: time.Now}
}

func (s *AnalysisService) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

// MarkInProgress creates the record on first use or transitions an existing
// one to in_progress, incrementing Attempts and setting StartedAt. The
// scheduledAt instant, when non-zero, is recorded on first creation.
//
// A completed record is refused (ErrIllegalTransition): re-analysis goes
// through Delete first, which keeps the default flow from ever walking a
// completed record backwards.
func (s *AnalysisService) MarkInProgress(ctx context.Context, entryID int64, scheduledAt time.Time) (*domain.Analysis, error) {
	started := s.clock()

	a, err := repo.GetAnalysis(ctx, s.DB, entryID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		a = &domain.Analysis{
			EntryID: entryID,
			Status:  domain.StatusInProgress,
			Version: domain.SchemaVersion,
		}
		if !scheduledAt.IsZero() {
			t := scheduledAt.UTC()
			a.ScheduledAt = &t
		}
	case err != nil:
		return nil, err
	default:
		if !a.Status.CanTransitionTo(domain.StatusInProgress) {
			return nil, fmt.Errorf("%w: %s -> %s for entry %d", ErrIllegalTransition, a.Status, domain.StatusInProgress, entryID)
		}
		a.Status = domain.StatusInProgress
		a.Error = ""
	}

	a.Attempts++
	a.StartedAt = &started

	if err := repo.SaveAnalysis(ctx, s.DB, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SaveAnalysis stores a completed result. Legal only from in_progress, or
// from completed for an idempotent re-save.
func (s *AnalysisService) SaveAnalysis(ctx context.Context, entryID int64, result *analyzer.Result) (*domain.Analysis, error) {
	a, err := repo.GetAnalysis(ctx, s.DB, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s -> %s for entry %d", ErrIllegalTransition, domain.StatusNone, domain.StatusCompleted, entryID)
		}
		return nil, err
	}
	if !a.Status.CanTransitionTo(domain.StatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s for entry %d", ErrIllegalTransition, a.Status, domain.StatusCompleted, entryID)
	}

	done := s.clock()
	a.Status = domain.StatusCompleted
	a.Message = result.Message
	a.Tags = result.Tags
	a.Observations = result.Observations
	a.Questions = result.Questions
	a.Pathways = result.Pathways
	a.Error = ""
	a.CompletedAt = &done

	if err := repo.SaveAnalysis(ctx, s.DB, a); err != nil {
		return nil, err
	}
	return a, nil
}

// MarkFailed records a terminal failure. Legal only from in_progress.
func (s *AnalysisService) MarkFailed(ctx context.Context, entryID int64, cause error) (*domain.Analysis, error) {
	a, err := repo.GetAnalysis(ctx, s.DB, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s -> %s for entry %d", ErrIllegalTransition, domain.StatusNone, domain.StatusFailed, entryID)
		}
		return nil, err
	}
	if !a.Status.CanTransitionTo(domain.StatusFailed) {
		return nil, fmt.Errorf("%w: %s -> %s for entry %d", ErrIllegalTransition, a.Status, domain.StatusFailed, entryID)
	}

	a.Status = domain.StatusFailed
	if cause != nil {
		a.Error = cause.Error()
	}

	if err := repo.SaveAnalysis(ctx, s.DB, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get fetches the analysis record for an entry, mapping missing rows to
// ErrAnalysisNotFound.
func (s *AnalysisService) Get(ctx context.Context, entryID int64) (*domain.Analysis, error) {
	a, err := repo.GetAnalysis(ctx, s.DB, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	return a, nil
}

// Exists reports whether any analysis record exists for the entry id.
func (s *AnalysisService) Exists(ctx context.Context, entryID int64) (bool, error) {
	_, err := repo.GetAnalysis(ctx, s.DB, entryID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

// Delete removes the analysis record for an entry. Missing records are not
// an error: deletion is independent of the entry and callers clean up
// opportunistically.
func (s *AnalysisService) Delete(ctx context.Context, entryID int64) error {
	return repo.DeleteAnalysis(ctx, s.DB, entryID)
}

// Clear removes every analysis record.
func (s *AnalysisService) Clear(ctx context.Context) error {
	return repo.ClearAnalyses(ctx, s.DB)
}

// ListStale returns in-progress records older than maxAge, i.e. attempts
// orphaned by a crash mid-analysis.
func (s *AnalysisService) ListStale(ctx context.Context, maxAge time.Duration) ([]domain.Analysis, error) {
	return repo.ListStaleInProgress(ctx, s.DB, s.clock().Add(-maxAge))
}
