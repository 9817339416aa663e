package repo

import (
	"testing"

	"github.com/tbourn/go-journal-backend/internal/domain"
)

func TestNextID_Sequence(t *testing.T) {
	db := newRepoDB(t)

	for want := int64(1); want <= 4; want++ {
		got, err := NextID(db, domain.EntryIDCounter)
		if err != nil {
			t.Fatalf("NextID: %v", err)
		}
		if got != want {
			t.Fatalf("NextID = %d, want %d", got, want)
		}
	}
}

func TestPeekID_MissingCounter(t *testing.T) {
	db := newRepoDB(t)
	got, err := PeekID(db, "nope")
	if err != nil || got != 0 {
		t.Fatalf("PeekID = %d, err = %v", got, err)
	}
}

func TestRestoreID(t *testing.T) {
	db := newRepoDB(t)

	if err := RestoreID(db, domain.EntryIDCounter, 77); err != nil {
		t.Fatalf("RestoreID (create): %v", err)
	}
	next, err := NextID(db, domain.EntryIDCounter)
	if err != nil || next != 78 {
		t.Fatalf("NextID after restore = %d, err = %v", next, err)
	}

	if err := RestoreID(db, domain.EntryIDCounter, 5); err != nil {
		t.Fatalf("RestoreID (update): %v", err)
	}
	got, _ := PeekID(db, domain.EntryIDCounter)
	if got != 5 {
		t.Fatalf("PeekID = %d", got)
	}
}
