package store

import (
	"testing"
	"time"

	"github.com/teranos/concord/errors"
	ctest "github.com/teranos/concord/internal/testing"
)

type resolutionRecord struct {
	SourceModule string  `json:"source_module"`
	TargetModule string  `json:"target_module"`
	Strategy     string  `json:"strategy"`
	Confidence   float64 `json:"confidence"`
}

// TestAppendAndQuery_RoundTrip verifies records decode back to their
// original payloads, newest first.
func TestAppendAndQuery_RoundTrip(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)
	store := New(db, nil)

	payloads := []resolutionRecord{
		{SourceModule: "userProfile", TargetModule: "authRecord", Strategy: "explicit_mapping", Confidence: 1.0},
		{SourceModule: "order", TargetModule: "invoice", Strategy: "pattern_matching", Confidence: 0.91},
		{SourceModule: "sensor", TargetModule: "alert", Strategy: "oracle_fallback", Confidence: 0.7},
	}
	for _, p := range payloads {
		if _, err := store.Append(CategoryResolution, p); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	records, err := store.QueryByCategory(CategoryResolution, 0)
	if err != nil {
		t.Fatalf("QueryByCategory() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	// Reverse insertion order: the last append comes back first.
	for i, rec := range records {
		var got resolutionRecord
		if err := rec.Decode(&got); err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		want := payloads[len(payloads)-1-i]
		if got != want {
			t.Errorf("record %d: got %+v, want %+v", i, got, want)
		}
		if rec.Category != CategoryResolution {
			t.Errorf("record %d: category %q", i, rec.Category)
		}
		if rec.CreatedAt.IsZero() {
			t.Errorf("record %d: zero created_at", i)
		}
	}

	if records[0].ID <= records[1].ID || records[1].ID <= records[2].ID {
		t.Errorf("expected descending ids, got %d, %d, %d",
			records[0].ID, records[1].ID, records[2].ID)
	}
}

// TestAppend_EmptyCategory verifies the category guard.
func TestAppend_EmptyCategory(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)
	store := New(db, nil)

	_, err := store.Append("", resolutionRecord{})
	if err == nil {
		t.Fatal("expected error for empty category")
	}
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
}

// TestAppend_UnmarshalablePayload verifies marshal failures surface.
func TestAppend_UnmarshalablePayload(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)
	store := New(db, nil)

	_, err := store.Append(CategoryResolution, map[string]any{"ch": make(chan int)})
	if err == nil {
		t.Fatal("expected error for unmarshalable payload")
	}
}

// TestQueryByCategory_Limit verifies the limit keeps the newest records.
func TestQueryByCategory_Limit(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)
	store := New(db, nil)

	var lastID int64
	for i := 0; i < 5; i++ {
		id, err := store.Append(CategoryResolution, resolutionRecord{Confidence: float64(i)})
		if err != nil {
			t.Fatalf("Append() error: %v", err)
		}
		lastID = id
	}

	records, err := store.QueryByCategory(CategoryResolution, 2)
	if err != nil {
		t.Fatalf("QueryByCategory() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != lastID {
		t.Errorf("expected newest record first, got id %d want %d", records[0].ID, lastID)
	}
}

// TestQueryByCategory_Isolation verifies categories do not bleed.
func TestQueryByCategory_Isolation(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)
	store := New(db, nil)

	if _, err := store.Append(CategoryResolution, resolutionRecord{}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if _, err := store.Append(CategoryTombstone, map[string]any{"entry_id": "abc"}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	records, err := store.QueryByCategory(CategoryTombstone, 0)
	if err != nil {
		t.Fatalf("QueryByCategory() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 tombstone record, got %d", len(records))
	}
}

// TestQueryByCategory_Empty verifies an unused category returns nothing.
func TestQueryByCategory_Empty(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)
	store := New(db, nil)

	records, err := store.QueryByCategory("nothing_here", 0)
	if err != nil {
		t.Fatalf("QueryByCategory() error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

// TestCountByCategory verifies counting.
func TestCountByCategory(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)
	store := New(db, nil)

	for i := 0; i < 4; i++ {
		if _, err := store.Append(CategoryResolution, resolutionRecord{}); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	count, err := store.CountByCategory(CategoryResolution)
	if err != nil {
		t.Fatalf("CountByCategory() error: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4, got %d", count)
	}
}

// TestRecordDecode_Mismatch verifies decode errors carry context.
func TestRecordDecode_Mismatch(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)
	store := New(db, nil)

	if _, err := store.Append(CategoryResolution, resolutionRecord{Strategy: "x"}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	records, err := store.QueryByCategory(CategoryResolution, 1)
	if err != nil {
		t.Fatalf("QueryByCategory() error: %v", err)
	}

	var wrong []string
	if err := records[0].Decode(&wrong); err == nil {
		t.Error("expected decode error for mismatched shape")
	}
}

// TestAppend_CreatedAtIsRecent sanity-checks the stored timestamp.
func TestAppend_CreatedAtIsRecent(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)
	store := New(db, nil)

	before := time.Now().UTC().Add(-time.Minute)
	if _, err := store.Append(CategoryResolution, resolutionRecord{}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	records, err := store.QueryByCategory(CategoryResolution, 1)
	if err != nil {
		t.Fatalf("QueryByCategory() error: %v", err)
	}
	if records[0].CreatedAt.Before(before) {
		t.Errorf("created_at suspiciously old: %v", records[0].CreatedAt)
	}
}
