package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-journal-backend/internal/domain"
)

func setTestStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	t.Setenv("DB_PATH", path)
	return path
}

func TestExportCommand_EmptyStore(t *testing.T) {
	setTestStore(t)
	out := filepath.Join(t.TempDir(), "snapshot.json")
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"export", "--output", out})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("snapshot parse error: %v", err)
	}
	if snap.Version != domain.SchemaVersion || len(snap.Entries) != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestImportCommand_RequiresConfirm(t *testing.T) {
	setTestStore(t)
	defer rootCmd.SetArgs(nil)

	// Without --confirm the store must stay untouched and the command
	// must not fail.
	rootCmd.SetArgs([]string{"import", filepath.Join(t.TempDir(), "missing.json")})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("import without --confirm: %v", err)
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	setTestStore(t)
	dir := t.TempDir()
	defer rootCmd.SetArgs(nil)

	in := filepath.Join(dir, "in.json")
	snap := domain.Snapshot{
		Version:    domain.SchemaVersion,
		ExportedAt: time.Now().UTC(),
		NextID:     1,
		Entries: []domain.Entry{
			{ID: 1, Content: "restored from backup", Version: 1, CreatedAt: time.Now().UTC()},
		},
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(in, data, 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	rootCmd.SetArgs([]string{"import", in, "--confirm"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("import: %v", err)
	}

	out := filepath.Join(dir, "out.json")
	rootCmd.SetArgs([]string{"export", "--output", out})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err = os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var got domain.Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("export parse error: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].Content != "restored from backup" {
		t.Fatalf("exported entries = %+v", got.Entries)
	}
	if got.NextID != 1 {
		t.Fatalf("NextID = %d, want 1", got.NextID)
	}
}

func TestCheckCommand_CleanStore(t *testing.T) {
	setTestStore(t)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"check"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorGreen, "done"); strings.Contains(got, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", got)
	}

	noColor = false
	if got := colorize(colorGreen, "done"); !strings.Contains(got, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", got)
	}
}
