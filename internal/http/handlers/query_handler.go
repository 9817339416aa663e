// Projection (read-side) HTTP handlers.
//
// This file exposes the derived journal view:
//   - GET /journal      (filterable, searchable, paginated projection)
//   - GET /journal/:id  (one projected entry with derived display fields)
//
// Query parameters for GET /journal:
//   - q            free-text search over content and analysis fields
//   - from, to     RFC 3339 timestamps bounding CreatedAt
//   - has_analysis "true"/"false" to filter by analysis presence
//   - tags         comma-separated analysis tags (any-of, case-insensitive)
//   - sort         "asc" for oldest first; default is newest first
//   - page, limit  pagination over the filtered result
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-journal-backend/internal/services"
	"github.com/tbourn/go-journal-backend/internal/utils"
)

// JournalResponse contains one page of the projected journal view.
type JournalResponse struct {
	Entries    []services.ProjectedEntry `json:"entries"`
	Pagination Pagination                `json:"pagination"`
}

// parseProjectionQuery builds a ProjectionQuery from request parameters.
// A malformed timestamp aborts the request with 400 and returns false.
func parseProjectionQuery(c *gin.Context) (services.ProjectionQuery, bool) {
	var q services.ProjectionQuery

	q.SearchTerm = strings.TrimSpace(c.Query("q"))
	q.SortAsc = strings.EqualFold(c.Query("sort"), "asc")

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "from must be RFC 3339")
			return q, false
		}
		q.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "to must be RFC 3339")
			return q, false
		}
		q.To = &t
	}

	if raw := c.Query("has_analysis"); raw != "" {
		switch strings.ToLower(raw) {
		case "true", "1":
			v := true
			q.HasAnalysis = &v
		case "false", "0":
			v := false
			q.HasAnalysis = &v
		default:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "has_analysis must be true or false")
			return q, false
		}
	}

	if raw := c.Query("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				q.Tags = append(q.Tags, tag)
			}
		}
	}

	return q, true
}

// QueryJournal returns the filtered projection, one page at a time.
func (h *Handlers) QueryJournal(c *gin.Context) {
	ctx := c.Request.Context()

	q, okQ := parseProjectionQuery(c)
	if !okQ {
		return
	}

	rows, err := h.projSvc.Query(ctx, q)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	page := utils.AtoiDefault(c.Query("page"), utils.DefaultPage)
	limit := utils.AtoiDefault(c.Query("limit"), utils.DefaultLimit)
	page, limit = utils.NormalizePage(page, limit)
	start, end := utils.Window(len(rows), page, limit)

	totalPages := (len(rows) + limit - 1) / limit
	ok(c, http.StatusOK, JournalResponse{
		Entries: rows[start:end],
		Pagination: Pagination{
			Page:       page,
			PageSize:   limit,
			Total:      len(rows),
			TotalPages: totalPages,
		},
	})
}

// GetJournalEntry returns one projected entry with its derived fields.
func (h *Handlers) GetJournalEntry(c *gin.Context) {
	id, okID := entryID(c)
	if !okID {
		return
	}
	row, err := h.projSvc.GetProjected(c.Request.Context(), id)
	if err != nil {
		failEntryErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, row)
}
