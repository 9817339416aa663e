// Snapshot and diagnostics HTTP handlers.
//
// This file exposes backup and integrity endpoints:
//   - GET  /snapshot   (export the full store as JSON)
//   - POST /snapshot   (replace the store from a snapshot)
//   - GET  /integrity  (read-only consistency scan)
//
// Import is destructive: the current entries, analyses, and the id counter
// are replaced with the snapshot's state. Snapshots from newer schema
// versions are refused with 409.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-journal-backend/internal/domain"
	"github.com/tbourn/go-journal-backend/internal/services"
)

// IntegrityResponse reports the result of a consistency scan.
type IntegrityResponse struct {
	Clean  bool                    `json:"clean"`
	Issues []domain.IntegrityIssue `json:"issues"`
}

// ExportSnapshot serializes the full store, analyses and counter included.
func (h *Handlers) ExportSnapshot(c *gin.Context) {
	snap, err := h.entrySvc.ExportSnapshot(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, snap)
}

// ImportSnapshot replaces the entire store state with the posted snapshot.
func (h *Handlers) ImportSnapshot(c *gin.Context) {
	var snap domain.Snapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "snapshot body required")
		return
	}

	if err := h.entrySvc.ImportSnapshot(c.Request.Context(), &snap); err != nil {
		if errors.Is(err, services.ErrSnapshotVersion) {
			fail(c, http.StatusConflict, ErrCodeConflict, "snapshot schema version is newer than this server")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeImportFailed, err.Error())
		return
	}
	noContent(c)
}

// CheckIntegrity runs the read-only diagnostic scan and reports any issues.
func (h *Handlers) CheckIntegrity(c *gin.Context) {
	issues, err := h.entrySvc.CheckIntegrity(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, IntegrityResponse{Clean: len(issues) == 0, Issues: issues})
}
