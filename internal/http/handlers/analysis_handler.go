// Analysis record HTTP handlers.
//
// This file exposes the per-entry analysis lifecycle:
//   - GET    /entries/:id/analysis        (fetch the analysis record)
//   - DELETE /entries/:id/analysis        (drop the record; entry untouched)
//   - POST   /entries/:id/analysis/retry  (discard and re-run analysis)
//
// Retrying is the only way to re-analyze a completed entry: the record is
// deleted first, then the entry goes through the normal scheduling gate.
// The retry response is 202; completion is observable by polling GET.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-journal-backend/internal/services"
)

// RetryResponse acknowledges a scheduled re-analysis.
type RetryResponse struct {
	EntryID  int64 `json:"entryId"`
	QueueLen int   `json:"queueLen"`
}

// GetAnalysis fetches the analysis record for an entry.
func (h *Handlers) GetAnalysis(c *gin.Context) {
	id, okID := entryID(c)
	if !okID {
		return
	}
	a, err := h.analysisSvc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrAnalysisNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no analysis for entry")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, a)
}

// DeleteAnalysis removes the analysis record for an entry. Missing records
// succeed; the operation is idempotent.
func (h *Handlers) DeleteAnalysis(c *gin.Context) {
	id, okID := entryID(c)
	if !okID {
		return
	}
	if err := h.analysisSvc.Delete(c.Request.Context(), id); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
		return
	}
	noContent(c)
}

// RetryAnalysis discards any existing analysis and schedules a fresh run.
// The entry must exist; the analyzer pipeline must be enabled.
func (h *Handlers) RetryAnalysis(c *gin.Context) {
	ctx := c.Request.Context()
	id, okID := entryID(c)
	if !okID {
		return
	}

	if h.sched == nil {
		fail(c, http.StatusConflict, ErrCodeConflict, "analysis pipeline disabled")
		return
	}

	e, err := h.entrySvc.Get(ctx, id)
	if err != nil {
		failEntryErr(c, err, ErrCodeInternal)
		return
	}

	if err := h.sched.Retry(context.WithoutCancel(ctx), e); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeAnalysisFailed, err.Error())
		return
	}

	ok(c, http.StatusAccepted, RetryResponse{EntryID: id, QueueLen: h.sched.QueueLen()})
}
