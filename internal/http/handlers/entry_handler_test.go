package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-journal-backend/internal/domain"
	"github.com/tbourn/go-journal-backend/internal/services"
)

// ---------- test fixture ----------

// recordingScheduler captures scheduling calls instead of running analyses.
type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []int64
	retried   []int64
}

func (s *recordingScheduler) Schedule(ctx context.Context, e *domain.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, e.ID)
}

func (s *recordingScheduler) Retry(ctx context.Context, e *domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retried = append(s.retried, e.ID)
	return nil
}

func (s *recordingScheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scheduled) + len(s.retried)
}

type handlerEnv struct {
	router   *gin.Engine
	entries  *services.EntryService
	analyses *services.AnalysisService
	sched    *recordingScheduler
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), "journal.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Entry{}, &domain.Analysis{}, &domain.Counter{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	entries := services.NewEntryService(db)
	analyses := services.NewAnalysisService(db)
	proj := services.NewProjectionService(db)
	sched := &recordingScheduler{}
	h := New(entries, analyses, proj, sched)

	r := gin.New()
	r.POST("/entries", h.CreateEntry)
	r.GET("/entries", h.ListEntries)
	r.GET("/entries/:id", h.GetEntry)
	r.PUT("/entries/:id", h.UpdateEntry)
	r.DELETE("/entries/:id", h.DeleteEntry)
	r.DELETE("/entries", h.ClearEntries)
	r.GET("/entries/:id/analysis", h.GetAnalysis)
	r.DELETE("/entries/:id/analysis", h.DeleteAnalysis)
	r.POST("/entries/:id/analysis/retry", h.RetryAnalysis)
	r.GET("/journal", h.QueryJournal)
	r.GET("/journal/:id", h.GetJournalEntry)
	r.GET("/snapshot", h.ExportSnapshot)
	r.POST("/snapshot", h.ImportSnapshot)
	r.GET("/integrity", h.CheckIntegrity)

	return &handlerEnv{router: r, entries: entries, analyses: analyses, sched: sched}
}

func (env *handlerEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	return out
}

// ---------- entries ----------

func TestCreateEntry_PersistsAndSchedules(t *testing.T) {
	env := newHandlerEnv(t)

	w := env.do(t, http.MethodPost, "/entries", EntryRequest{Content: "  slept four hours, long day  "})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	e := decodeJSON[domain.Entry](t, w)
	if e.ID != 1 || e.Content != "slept four hours, long day" {
		t.Fatalf("entry = %+v", e)
	}

	// Durable before the response: reread straight from the service.
	got, err := env.entries.Get(context.Background(), e.ID)
	if err != nil || got.Content != e.Content {
		t.Fatalf("read-after-write failed: %v %+v", err, got)
	}

	env.sched.mu.Lock()
	defer env.sched.mu.Unlock()
	if len(env.sched.scheduled) != 1 || env.sched.scheduled[0] != e.ID {
		t.Fatalf("scheduled = %v", env.sched.scheduled)
	}
}

func TestCreateEntry_Validation(t *testing.T) {
	env := newHandlerEnv(t)

	w := env.do(t, http.MethodPost, "/entries", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing content -> %d", w.Code)
	}
	resp := decodeJSON[ErrorResponse](t, w)
	if resp.Code != ErrCodeBadRequest {
		t.Fatalf("code = %q", resp.Code)
	}

	w = env.do(t, http.MethodPost, "/entries", EntryRequest{Content: "   \n\t "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank content -> %d", w.Code)
	}
}

func TestGetEntry_NotFoundAndBadID(t *testing.T) {
	env := newHandlerEnv(t)

	w := env.do(t, http.MethodGet, "/entries/99", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing entry -> %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/entries/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id -> %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/entries/0", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("zero id -> %d", w.Code)
	}
}

func TestListEntries_NewestFirstPaginated(t *testing.T) {
	env := newHandlerEnv(t)
	for i := 1; i <= 5; i++ {
		env.do(t, http.MethodPost, "/entries", EntryRequest{Content: fmt.Sprintf("entry number %d", i)})
	}

	w := env.do(t, http.MethodGet, "/entries?page=1&limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeJSON[ListEntriesResponse](t, w)
	if len(resp.Entries) != 2 || resp.Entries[0].ID != 5 || resp.Entries[1].ID != 4 {
		t.Fatalf("page 1 = %+v", resp.Entries)
	}
	if resp.Pagination.Total != 5 || resp.Pagination.TotalPages != 3 {
		t.Fatalf("pagination = %+v", resp.Pagination)
	}
}

func TestUpdateEntry_TriggersReanalysis(t *testing.T) {
	env := newHandlerEnv(t)
	env.do(t, http.MethodPost, "/entries", EntryRequest{Content: "original text here"})

	w := env.do(t, http.MethodPut, "/entries/1", EntryRequest{Content: "revised text here"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	e := decodeJSON[domain.Entry](t, w)
	if e.Content != "revised text here" {
		t.Fatalf("content = %q", e.Content)
	}

	env.sched.mu.Lock()
	defer env.sched.mu.Unlock()
	if len(env.sched.retried) != 1 || env.sched.retried[0] != 1 {
		t.Fatalf("retried = %v", env.sched.retried)
	}
}

func TestDeleteEntry_RemovesAnalysisToo(t *testing.T) {
	env := newHandlerEnv(t)
	env.do(t, http.MethodPost, "/entries", EntryRequest{Content: "entry with analysis"})
	ctx := context.Background()
	if _, err := env.analyses.MarkInProgress(ctx, 1, time.Now()); err != nil {
		t.Fatalf("seed analysis: %v", err)
	}

	w := env.do(t, http.MethodDelete, "/entries/1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if exists, _ := env.analyses.Exists(ctx, 1); exists {
		t.Fatalf("analysis survived entry delete")
	}

	w = env.do(t, http.MethodDelete, "/entries/1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete -> %d", w.Code)
	}
}

func TestClearEntries(t *testing.T) {
	env := newHandlerEnv(t)
	env.do(t, http.MethodPost, "/entries", EntryRequest{Content: "one of several"})
	env.do(t, http.MethodPost, "/entries", EntryRequest{Content: "two of several"})

	w := env.do(t, http.MethodDelete, "/entries", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}

	// Retired ids stay retired.
	w = env.do(t, http.MethodPost, "/entries", EntryRequest{Content: "fresh start"})
	e := decodeJSON[domain.Entry](t, w)
	if e.ID != 3 {
		t.Fatalf("id after clear = %d, want 3", e.ID)
	}
}
