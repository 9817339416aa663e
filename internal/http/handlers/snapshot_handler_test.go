package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/go-journal-backend/internal/domain"
)

func TestSnapshotExportImportRoundTrip(t *testing.T) {
	src := newHandlerEnv(t)
	src.do(t, http.MethodPost, "/entries", EntryRequest{Content: "first entry to back up"})
	src.do(t, http.MethodPost, "/entries", EntryRequest{Content: "second entry to back up"})
	seedCompletedAnalysis(t, src, 2)

	w := src.do(t, http.MethodGet, "/snapshot", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export -> %d", w.Code)
	}
	snap := decodeJSON[domain.Snapshot](t, w)
	if len(snap.Entries) != 2 || len(snap.Analyses) != 1 || snap.NextID != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}

	dst := newHandlerEnv(t)
	w = dst.do(t, http.MethodPost, "/snapshot", snap)
	if w.Code != http.StatusNoContent {
		t.Fatalf("import -> %d: %s", w.Code, w.Body.String())
	}

	w = dst.do(t, http.MethodGet, "/entries/2/analysis", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("analysis after import -> %d", w.Code)
	}

	// Id numbering continues where the snapshot left off.
	w = dst.do(t, http.MethodPost, "/entries", EntryRequest{Content: "post-restore entry"})
	e := decodeJSON[domain.Entry](t, w)
	if e.ID != 3 {
		t.Fatalf("id after import = %d, want 3", e.ID)
	}
}

func TestImportSnapshot_NewerVersionRefused(t *testing.T) {
	env := newHandlerEnv(t)
	snap := domain.Snapshot{Version: domain.SchemaVersion + 1}

	w := env.do(t, http.MethodPost, "/snapshot", snap)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeJSON[ErrorResponse](t, w)
	if resp.Code != ErrCodeConflict {
		t.Fatalf("code = %q", resp.Code)
	}
}

func TestCheckIntegrity_CleanStore(t *testing.T) {
	env := newHandlerEnv(t)
	env.do(t, http.MethodPost, "/entries", EntryRequest{Content: "a perfectly healthy store"})

	w := env.do(t, http.MethodGet, "/integrity", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeJSON[IntegrityResponse](t, w)
	if !resp.Clean || len(resp.Issues) != 0 {
		t.Fatalf("integrity = %+v", resp)
	}
}
