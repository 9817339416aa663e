// Journal entry HTTP handlers.
//
// This file exposes the REST endpoints for entry persistence:
//   - POST   /entries        (create an entry; schedules background analysis)
//   - GET    /entries        (list entries, newest first, paginated)
//   - GET    /entries/:id    (fetch one entry)
//   - PUT    /entries/:id    (replace entry content; triggers re-analysis)
//   - DELETE /entries/:id    (delete one entry and its analysis record)
//   - DELETE /entries        (clear the journal)
//
// Handlers are transport-thin: they validate and normalize inputs, delegate
// to the services layer, and map sentinel errors onto stable HTTP codes.
// Creation returns only after the entry is durably stored; the analysis
// pipeline runs behind the response and never affects the status code.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-journal-backend/internal/domain"
	"github.com/tbourn/go-journal-backend/internal/http/middleware"
	"github.com/tbourn/go-journal-backend/internal/services"
	"github.com/tbourn/go-journal-backend/internal/utils"
)

//
// Service boundaries consumed by the HTTP layer.
//

// EntryService is the entry persistence surface used by handlers.
type EntryService interface {
	Create(ctx context.Context, content string) (*domain.Entry, error)
	Get(ctx context.Context, id int64) (*domain.Entry, error)
	List(ctx context.Context) ([]domain.Entry, error)
	Update(ctx context.Context, id int64, content string) error
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
	ExportSnapshot(ctx context.Context) (*domain.Snapshot, error)
	ImportSnapshot(ctx context.Context, snap *domain.Snapshot) error
	CheckIntegrity(ctx context.Context) ([]domain.IntegrityIssue, error)
}

// AnalysisService is the analysis record surface used by handlers.
type AnalysisService interface {
	Get(ctx context.Context, entryID int64) (*domain.Analysis, error)
	Delete(ctx context.Context, entryID int64) error
	Clear(ctx context.Context) error
}

// ProjectionService is the read-side query surface used by handlers.
type ProjectionService interface {
	Query(ctx context.Context, q services.ProjectionQuery) ([]services.ProjectedEntry, error)
	GetProjected(ctx context.Context, id int64) (*services.ProjectedEntry, error)
}

// Scheduler enqueues entries for background analysis. A nil Scheduler on
// Handlers disables scheduling (e.g., no health context configured).
type Scheduler interface {
	Schedule(ctx context.Context, e *domain.Entry)
	Retry(ctx context.Context, e *domain.Entry) error
	QueueLen() int
}

// Handlers bundles the service dependencies for all route handlers.
type Handlers struct {
	entrySvc    EntryService
	analysisSvc AnalysisService
	projSvc     ProjectionService
	sched       Scheduler
}

// New constructs a Handlers instance bound to the given services. sched may
// be nil when background analysis is disabled.
func New(entrySvc EntryService, analysisSvc AnalysisService, projSvc ProjectionService, sched Scheduler) *Handlers {
	return &Handlers{entrySvc: entrySvc, analysisSvc: analysisSvc, projSvc: projSvc, sched: sched}
}

//
// DTOs
//

// EntryRequest is the JSON payload for creating or updating an entry.
type EntryRequest struct {
	// Content is the journal text. It must be non-empty after trimming.
	Content string `json:"content" binding:"required,min=1"`
}

// ListEntriesResponse contains a page of entries and pagination metadata.
type ListEntriesResponse struct {
	Entries    []domain.Entry `json:"entries"`
	Pagination Pagination     `json:"pagination"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes entry text for consistent downstream behavior:
// CRLF/CR become LF, runs of 3+ LFs collapse to exactly two, and surrounding
// whitespace is trimmed.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// entryID parses the :id path parameter. Entry ids are positive integers.
func entryID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "entry id must be a positive integer")
		return 0, false
	}
	return id, true
}

// failEntryErr maps service sentinel errors onto HTTP responses. code is the
// domain code used for unexpected (5xx) failures.
func failEntryErr(c *gin.Context, err error, code string) {
	switch {
	case errors.Is(err, services.ErrEmptyContent):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
	case errors.Is(err, services.ErrContentTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest,
			fmt.Sprintf("content too long: max %d runes", services.MaxContentRunes))
	case errors.Is(err, services.ErrEntryNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "entry not found")
	default:
		fail(c, http.StatusInternalServerError, code, err.Error())
	}
}

//
// Handlers
//

// CreateEntry persists a new journal entry and, when eligible, schedules it
// for background analysis. The 201 response is written only after the entry
// is durable; analysis runs entirely behind it.
func (h *Handlers) CreateEntry(c *gin.Context) {
	ctx := c.Request.Context()

	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	e, err := h.entrySvc.Create(ctx, sanitizeContent(req.Content))
	if err != nil {
		failEntryErr(c, err, ErrCodeCreateFailed)
		return
	}

	if h.sched != nil {
		// Detached context: scheduling must outlive the request.
		h.sched.Schedule(context.WithoutCancel(ctx), e)
	}

	ok(c, http.StatusCreated, e)
}

// ListEntries returns a page of raw entries, newest first.
func (h *Handlers) ListEntries(c *gin.Context) {
	ctx := c.Request.Context()

	entries, err := h.entrySvc.List(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	page := utils.AtoiDefault(c.Query("page"), utils.DefaultPage)
	limit := utils.AtoiDefault(c.Query("limit"), utils.DefaultLimit)
	page, limit = utils.NormalizePage(page, limit)
	start, end := utils.Window(len(entries), page, limit)

	totalPages := (len(entries) + limit - 1) / limit
	ok(c, http.StatusOK, ListEntriesResponse{
		Entries: entries[start:end],
		Pagination: Pagination{
			Page:       page,
			PageSize:   limit,
			Total:      len(entries),
			TotalPages: totalPages,
		},
	})
}

// GetEntry fetches a single entry by id.
func (h *Handlers) GetEntry(c *gin.Context) {
	id, okID := entryID(c)
	if !okID {
		return
	}
	e, err := h.entrySvc.Get(c.Request.Context(), id)
	if err != nil {
		failEntryErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, e)
}

// UpdateEntry replaces the content of an existing entry. The previous
// analysis no longer describes the text, so its record is dropped and the
// entry is rescheduled.
func (h *Handlers) UpdateEntry(c *gin.Context) {
	ctx := c.Request.Context()
	id, okID := entryID(c)
	if !okID {
		return
	}

	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	if err := h.entrySvc.Update(ctx, id, sanitizeContent(req.Content)); err != nil {
		failEntryErr(c, err, ErrCodeUpdateFailed)
		return
	}

	e, err := h.entrySvc.Get(ctx, id)
	if err != nil {
		failEntryErr(c, err, ErrCodeInternal)
		return
	}

	if h.sched != nil {
		if err := h.sched.Retry(context.WithoutCancel(ctx), e); err != nil {
			// The updated text is safe either way; re-analysis is best effort.
			middleware.LoggerFrom(c).Warn().Err(err).Int64("entry_id", id).Msg("re-analysis scheduling failed")
		}
	}

	ok(c, http.StatusOK, e)
}

// DeleteEntry removes an entry and, opportunistically, its analysis record.
func (h *Handlers) DeleteEntry(c *gin.Context) {
	ctx := c.Request.Context()
	id, okID := entryID(c)
	if !okID {
		return
	}

	if err := h.entrySvc.Delete(ctx, id); err != nil {
		failEntryErr(c, err, ErrCodeDeleteFailed)
		return
	}
	// The stores are independent; a failure here leaves a harmless orphan
	// that the integrity check reports.
	_ = h.analysisSvc.Delete(ctx, id)

	noContent(c)
}

// ClearEntries wipes the journal and all analysis records. Retired entry ids
// are not reused afterwards.
func (h *Handlers) ClearEntries(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.entrySvc.Clear(ctx); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
		return
	}
	if err := h.analysisSvc.Clear(ctx); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
		return
	}
	noContent(c)
}
