// Package services – EntryService
//
// This file implements EntryService, the application-level owner of journal
// entry lifecycle: validation, durable creation with monotonic id
// allocation, in-place edits, deletion, full-store snapshots, and the
// integrity scan. The service never constructs entries outside Create and
// never mutates store internals from other components.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the entry id where applicable.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-journal-backend/internal/domain"
	"github.com/tbourn/go-journal-backend/internal/repo"
)

// MaxContentRunes is the upper bound on entry content length.
const MaxContentRunes = 10000

// EntryService coordinates entry persistence and validation.
type EntryService struct {
	DB *gorm.DB
}

// NewEntryService returns an EntryService over the given database handle.
func NewEntryService(db *gorm.DB) *EntryService {
	return &EntryService{DB: db}
}

// validateContent trims and bounds-checks entry content, returning the
// trimmed text.
func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return "", ErrContentTooLong
	}
	return content, nil
}

// Create validates content and persists a new entry. The id comes from the
// persisted counter inside the same transaction as the insert, so the entry
// is durable and retrievable the moment Create returns, and a restart can
// never reuse its id.
//
// On a storage failure it runs one best-effort cleanup pass (WAL
// checkpoint) and retries the write once; a second failure surfaces as
// ErrStorage.
func (s *EntryService) Create(ctx context.Context, content string) (*domain.Entry, error) {
	tr := otel.Tracer("services/EntryService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	e, err := repo.CreateEntry(ctx, s.DB, content)
	if err == nil {
		span.SetAttributes(attribute.Int64("entry.id", e.ID))
		return e, nil
	}

	// Cleanup-and-retry: reclaim WAL space, then one more attempt.
	s.DB.WithContext(ctx).Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	e, retryErr := repo.CreateEntry(ctx, s.DB, content)
	if retryErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, retryErr)
	}
	span.SetAttributes(attribute.Int64("entry.id", e.ID))
	return e, nil
}

// Get fetches an entry by id, mapping missing rows to ErrEntryNotFound.
func (s *EntryService) Get(ctx context.Context, id int64) (*domain.Entry, error) {
	e, err := repo.GetEntry(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

// List returns a materialized slice of all entries, newest first.
func (s *EntryService) List(ctx context.Context) ([]domain.Entry, error) {
	return repo.ListEntries(ctx, s.DB)
}

// Update replaces an entry's content in place after the same validation as
// Create. CreatedAt and the id are immutable.
func (s *EntryService) Update(ctx context.Context, id int64, content string) error {
	tr := otel.Tracer("services/EntryService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(attribute.Int64("entry.id", id)),
	)
	defer span.End()

	content, err := validateContent(content)
	if err != nil {
		return err
	}
	if err := repo.UpdateEntryContent(ctx, s.DB, id, content); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrEntryNotFound
		}
		return err
	}
	return nil
}

// Delete removes an entry. Its analysis row, if any, stays behind; callers
// that want both gone delete the analysis explicitly (no cascade).
func (s *EntryService) Delete(ctx context.Context, id int64) error {
	if err := repo.DeleteEntry(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrEntryNotFound
		}
		return err
	}
	return nil
}

// Clear removes every entry. The id counter keeps its value: cleared ids
// stay retired.
func (s *EntryService) Clear(ctx context.Context) error {
	return repo.ClearEntries(ctx, s.DB)
}

// ExportSnapshot serializes the full store, including analyses and the id
// counter, for backup tooling.
func (s *EntryService) ExportSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	tr := otel.Tracer("services/EntryService")
	ctx, span := tr.Start(ctx, "ExportSnapshot")
	defer span.End()

	return repo.ExportSnapshot(ctx, s.DB)
}

// ImportSnapshot replaces the entire store state with the snapshot's
// contents, counter included. Snapshots from newer schema versions are
// refused rather than guessed at.
func (s *EntryService) ImportSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	tr := otel.Tracer("services/EntryService")
	ctx, span := tr.Start(ctx, "ImportSnapshot",
		trace.WithAttributes(attribute.Int("snapshot.entries", len(snap.Entries))),
	)
	defer span.End()

	if snap.Version > domain.SchemaVersion {
		return fmt.Errorf("%w: %d", ErrSnapshotVersion, snap.Version)
	}
	return repo.ImportSnapshot(ctx, s.DB, snap)
}

// CheckIntegrity runs the read-only diagnostic scan over both stores.
func (s *EntryService) CheckIntegrity(ctx context.Context) ([]domain.IntegrityIssue, error) {
	return repo.CheckIntegrity(ctx, s.DB)
}
