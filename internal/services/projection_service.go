// Package services – ProjectionService
//
// This file implements the read-side projection: a derived, filterable
// view that joins entries with their analysis records and decorates each
// row with display fields. The projection is recomputed per query from the
// stores; it holds no state of its own.
package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-journal-backend/internal/domain"
	"github.com/tbourn/go-journal-backend/internal/repo"
	"github.com/tbourn/go-journal-backend/internal/search"
)

// PreviewRunes bounds the derived preview length.
const PreviewRunes = 120

// titleRunes bounds the derived title length.
const titleRunes = 60

var titleCaser = cases.Title(language.English)

// ProjectionQuery narrows and orders the projected view. Zero values mean
// "no constraint"; filters combine with AND, and Tags matches any-of.
type ProjectionQuery struct {
	From        *time.Time
	To          *time.Time
	SearchTerm  string
	HasAnalysis *bool
	Tags        []string
	SortAsc     bool
}

// ProjectedEntry is one row of the read-side view.
type ProjectedEntry struct {
	ID        int64                 `json:"id"`
	Content   string                `json:"content"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
	Status    domain.AnalysisStatus `json:"status"`
	Analysis  *domain.Analysis      `json:"analysis,omitempty"`

	Title      string        `json:"title"`
	Preview    string        `json:"preview"`
	WordCount  int           `json:"wordCount"`
	IsToday    bool          `json:"isToday"`
	Highlights []search.Span `json:"highlights,omitempty"`
}

// ProjectionService computes the joined entry/analysis view.
type ProjectionService struct {
	DB *gorm.DB

	// now is the clock seam for the IsToday derivation; defaults to time.Now.
	now func() time.Time
}

// NewProjectionService returns a ProjectionService over the given database
// handle.
func NewProjectionService(db *gorm.DB) *ProjectionService {
	return &ProjectionService{DB: db, now: time.Now}
}

// Query loads the projection: every entry joined with its analysis record
// (if any), filtered and ordered per q. Orphan analyses, records whose
// entry is gone, simply never surface here.
//
// Filter order is date window, then search term, then analysis presence,
// then tags. The search term matches entry content and, when an analysis
// exists, its message, tags, observations, and questions, all
// case-insensitively.
func (s *ProjectionService) Query(ctx context.Context, q ProjectionQuery) ([]ProjectedEntry, error) {
	tr := otel.Tracer("services/ProjectionService")
	ctx, span := tr.Start(ctx, "Query")
	defer span.End()

	entries, err := repo.ListEntries(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	analyses, err := repo.ListAnalyses(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	byEntry := make(map[int64]*domain.Analysis, len(analyses))
	for i := range analyses {
		byEntry[analyses[i].EntryID] = &analyses[i]
	}

	term := strings.TrimSpace(q.SearchTerm)
	today := s.today()

	out := make([]ProjectedEntry, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		a := byEntry[e.ID]

		if q.From != nil && e.CreatedAt.Before(*q.From) {
			continue
		}
		if q.To != nil && e.CreatedAt.After(*q.To) {
			continue
		}
		if term != "" && !matchesTerm(e, a, term) {
			continue
		}
		if q.HasAnalysis != nil && *q.HasAnalysis != (a != nil) {
			continue
		}
		if len(q.Tags) > 0 && !matchesAnyTag(a, q.Tags) {
			continue
		}

		out = append(out, s.project(e, a, term, today))
	}

	// ListEntries is newest first already; re-sort only for ascending.
	if q.SortAsc {
		sort.Slice(out, func(i, j int) bool {
			if out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].ID < out[j].ID
			}
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
	}
	return out, nil
}

// GetProjected returns the projected row for one entry id.
func (s *ProjectionService) GetProjected(ctx context.Context, id int64) (*ProjectedEntry, error) {
	e, err := repo.GetEntry(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	var a *domain.Analysis
	if got, aerr := repo.GetAnalysis(ctx, s.DB, id); aerr == nil {
		a = got
	}
	p := s.project(e, a, "", s.today())
	return &p, nil
}

func (s *ProjectionService) today() time.Time {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	y, m, d := now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *ProjectionService) project(e *domain.Entry, a *domain.Analysis, term string, today time.Time) ProjectedEntry {
	p := ProjectedEntry{
		ID:        e.ID,
		Content:   e.Content,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		Status:    domain.StatusNone,
		Analysis:  a,
		Title:     deriveTitle(e.Content),
		Preview:   search.Preview(e.Content, PreviewRunes),
		WordCount: search.WordCount(e.Content),
	}
	if a != nil {
		p.Status = a.Status
	}
	created := e.CreatedAt.UTC()
	p.IsToday = !created.Before(today) && created.Before(today.Add(24*time.Hour))
	if term != "" {
		p.Highlights = search.Spans(e.Content, term)
	}
	return p
}

// deriveTitle builds a display title from the first line of the content:
// clipped at a word boundary and title-cased.
func deriveTitle(content string) string {
	line := strings.TrimSpace(content)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	return titleCaser.String(search.Preview(line, titleRunes))
}

func matchesTerm(e *domain.Entry, a *domain.Analysis, term string) bool {
	if search.ContainsFold(e.Content, term) {
		return true
	}
	if a == nil {
		return false
	}
	if search.ContainsFold(a.Message, term) {
		return true
	}
	return search.AnyContainsFold(a.Tags, term) ||
		search.AnyContainsFold(a.Observations, term) ||
		search.AnyContainsFold(a.Questions, term)
}

func matchesAnyTag(a *domain.Analysis, tags []string) bool {
	if a == nil {
		return false
	}
	for _, want := range tags {
		for _, have := range a.Tags {
			if strings.EqualFold(strings.TrimSpace(have), strings.TrimSpace(want)) {
				return true
			}
		}
	}
	return false
}
