// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the integrity scan: a read-only
// diagnostic pass over both stores. It reports violations, it never
// repairs them.
package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-journal-backend/internal/domain"
)

// Issue kinds reported by CheckIntegrity.
const (
	IssueDuplicateID    = "duplicate_id"
	IssueEmptyContent   = "empty_content"
	IssueZeroTimestamp  = "zero_timestamp"
	IssueCounterBehind  = "counter_behind"
	IssueOrphanAnalysis = "orphan_analysis"
)

// CheckIntegrity scans both stores and returns every violation found:
// duplicate entry ids, empty content, zero timestamps, a counter lagging
// behind the highest entry id, and analysis rows whose entry is gone.
// The orphan check is informational: lenient cross-store deletion makes
// orphans legal, but backup tooling wants to know about them.
func CheckIntegrity(ctx context.Context, db *gorm.DB) ([]domain.IntegrityIssue, error) {
	var issues []domain.IntegrityIssue

	entries, err := ListEntries(ctx, db)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(entries))
	var maxID int64
	for _, e := range entries {
		if seen[e.ID] {
			issues = append(issues, domain.IntegrityIssue{
				EntryID: e.ID,
				Kind:    IssueDuplicateID,
				Detail:  fmt.Sprintf("entry id %d appears more than once", e.ID),
			})
		}
		seen[e.ID] = true
		if e.ID > maxID {
			maxID = e.ID
		}
		if e.Content == "" {
			issues = append(issues, domain.IntegrityIssue{
				EntryID: e.ID,
				Kind:    IssueEmptyContent,
				Detail:  "entry content is empty",
			})
		}
		if e.CreatedAt.IsZero() {
			issues = append(issues, domain.IntegrityIssue{
				EntryID: e.ID,
				Kind:    IssueZeroTimestamp,
				Detail:  "entry has no creation timestamp",
			})
		}
	}

	counter, err := PeekID(db.WithContext(ctx), domain.EntryIDCounter)
	if err != nil {
		return nil, err
	}
	if counter < maxID {
		issues = append(issues, domain.IntegrityIssue{
			Kind:   IssueCounterBehind,
			Detail: fmt.Sprintf("id counter %d is behind highest entry id %d", counter, maxID),
		})
	}

	analyses, err := ListAnalyses(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, a := range analyses {
		if !seen[a.EntryID] {
			issues = append(issues, domain.IntegrityIssue{
				EntryID: a.EntryID,
				Kind:    IssueOrphanAnalysis,
				Detail:  fmt.Sprintf("analysis for entry %d has no entry row", a.EntryID),
			})
		}
	}

	return issues, nil
}
