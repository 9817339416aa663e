// Package domain defines the persistence models for journal entries,
// derived AI analyses, and id counters. These types are mapped with GORM
// and form the core data layer of the journal backend.
package domain

import (
	"time"
)

// SchemaVersion tags persisted rows and snapshots so future migrations can
// detect the shape they are reading.
const SchemaVersion = 1

// AnalysisStatus is the lifecycle state of an Analysis record.
type AnalysisStatus string

const (
	// StatusNone marks an entry with no analysis attempt yet. It is the
	// implicit status projected for entries with no Analysis row; it is
	// never stored.
	StatusNone AnalysisStatus = "none"
	// StatusInProgress marks an analysis attempt that has started but not
	// yet completed or failed.
	StatusInProgress AnalysisStatus = "in_progress"
	// StatusCompleted marks a successfully stored analysis result.
	StatusCompleted AnalysisStatus = "completed"
	// StatusFailed marks an analysis that exhausted its retries.
	StatusFailed AnalysisStatus = "failed"
)

// CanTransitionTo reports whether moving from s to next is a legal status
// transition. The machine is none → in_progress → {completed, failed},
// with failed → in_progress allowed for retries. completed → in_progress
// is rejected here; explicit re-analysis bypasses the check deliberately.
func (s AnalysisStatus) CanTransitionTo(next AnalysisStatus) bool {
	switch s {
	case StatusNone:
		return next == StatusInProgress
	case StatusInProgress:
		// The self-transition re-marks the record on a retry attempt.
		return next == StatusInProgress || next == StatusCompleted || next == StatusFailed
	case StatusFailed:
		return next == StatusInProgress
	case StatusCompleted:
		// Idempotent re-save of a completed result is allowed.
		return next == StatusCompleted
	default:
		return false
	}
}

// Entry represents a single user-authored journal record.
//
// Fields:
//   - ID: strictly increasing int64 allocated from the persisted counter;
//     assigned once at creation and never reused, even after deletion.
//   - Content: non-empty trimmed text, 1–10,000 runes.
//   - Version: schema version tag for forward migration.
//   - CreatedAt: immutable creation instant (UTC).
//   - UpdatedAt: bumped when content is edited in place.
//
// The primary key is NOT AUTOINCREMENT: ids come from the counters table so
// that snapshot import can restore the sequence exactly.
type Entry struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement:false"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	Version   int       `json:"version"    gorm:"not null;default:1"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_entries_created"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Entry.
func (Entry) TableName() string { return "entries" }

// Analysis represents the AI-generated annotation derived from one entry.
// The row is keyed by the entry id; there is deliberately no foreign key
// constraint, so an Analysis can outlive its Entry when callers delete out
// of order (lenient by design, no cascading delete).
//
// Result fields (Message, Tags, Observations, Questions, Pathways) are only
// populated when Status is completed; Error only when failed.
type Analysis struct {
	EntryID      int64          `json:"entry_id"     gorm:"primaryKey;autoIncrement:false"`
	Status       AnalysisStatus `json:"status"       gorm:"type:varchar(16);not null;index;check:status IN ('in_progress','completed','failed')"`
	Message      string         `json:"message"      gorm:"type:text"`
	Tags         []string       `json:"tags"         gorm:"serializer:json"`
	Observations []string       `json:"observations" gorm:"serializer:json"`
	Questions    []string       `json:"questions"    gorm:"serializer:json"`
	Pathways     []string       `json:"pathways"     gorm:"serializer:json"`
	Error        string         `json:"error,omitempty" gorm:"type:text"`
	Attempts     int            `json:"attempts"     gorm:"not null;default:0"`
	ScheduledAt  *time.Time     `json:"scheduled_at,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Version      int            `json:"version"      gorm:"not null;default:1"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Analysis.
func (Analysis) TableName() string { return "analyses" }

// Counter is a named monotonic sequence. A single row ("entry_id") backs
// entry id allocation; the value is advanced in the same transaction as the
// insert it serves, so a crash between allocation and write can skip an id
// but never reissue one.
type Counter struct {
	Name  string `gorm:"primaryKey;type:varchar(32)"`
	Value int64  `gorm:"not null"`
}

// TableName returns the database table name for Counter.
func (Counter) TableName() string { return "counters" }

// EntryIDCounter is the counter row name backing entry id allocation.
const EntryIDCounter = "entry_id"

// Snapshot is the full-store serialization used for backup and migration.
// Import replaces the entire store state, including the id counter.
type Snapshot struct {
	Version    int        `json:"version"`
	ExportedAt time.Time  `json:"exported_at"`
	NextID     int64      `json:"next_id"`
	Entries    []Entry    `json:"entries"`
	Analyses   []Analysis `json:"analyses"`
}

// IntegrityIssue describes a single violation found by an integrity scan.
// Issues are diagnostics; the scan never repairs anything.
type IntegrityIssue struct {
	EntryID int64  `json:"entry_id,omitempty"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail"`
}
