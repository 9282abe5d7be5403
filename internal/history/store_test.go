/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package history

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

var base = time.Date(2025, 5, 14, 9, 0, 0, 0, time.UTC)

func TestNewStore(t *testing.T) {
	store := newTestStore(t)

	if _, err := os.Stat(store.Path()); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", store.Path())
	}
}

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)

	entries := []Entry{
		{ID: "q1", Database: "shop", Question: "How many customers?", Intent: "AGGREGATION_COUNT",
			SQL: "SELECT COUNT(*) FROM customers LIMIT 100", RowCount: 1, DurationMS: 12, CreatedAt: base},
		{ID: "q2", Database: "hr", Question: "List employees", Intent: "RETRIEVAL",
			SQL: "SELECT * FROM employees LIMIT 100", RowCount: 20, DurationMS: 30, CreatedAt: base.Add(time.Minute)},
		{ID: "q3", Database: "shop", Question: "delete all orders",
			ErrorKind: "InputRejected", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := store.Record(e); err != nil {
			t.Fatalf("Record(%s) failed: %v", e.ID, err)
		}
	}

	all, err := store.Recent(0, "")
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(all))
	}
	if all[0].ID != "q3" || all[2].ID != "q1" {
		t.Errorf("Expected newest first, got %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}
	if all[0].Succeeded() {
		t.Error("Failed entry should not report success")
	}
	if !all[2].Succeeded() {
		t.Error("Answered entry should report success")
	}
	if all[2].SQL != entries[0].SQL || all[2].RowCount != 1 || all[2].DurationMS != 12 {
		t.Errorf("Entry did not round-trip: %+v", all[2])
	}
	if all[2].Fingerprint != Fingerprint("How many customers?") {
		t.Errorf("Expected fingerprint to be filled in, got %q", all[2].Fingerprint)
	}
	if !all[2].CreatedAt.Equal(base) {
		t.Errorf("Expected created_at %v, got %v", base, all[2].CreatedAt)
	}

	shop, err := store.Recent(10, "shop")
	if err != nil {
		t.Fatalf("Recent(shop) failed: %v", err)
	}
	if len(shop) != 2 {
		t.Fatalf("Expected 2 shop entries, got %d", len(shop))
	}
	for _, e := range shop {
		if e.Database != "shop" {
			t.Errorf("Unexpected database %q in filtered history", e.Database)
		}
	}
}

func TestRecordRequiresID(t *testing.T) {
	store := newTestStore(t)

	if err := store.Record(Entry{Question: "How many customers?"}); err == nil {
		t.Error("Expected error for entry without id")
	}
}

func TestRecentLimitClamp(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 120; i++ {
		err := store.Record(Entry{
			ID:        fmt.Sprintf("q%03d", i),
			Database:  "shop",
			Question:  fmt.Sprintf("question %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	tests := []struct {
		limit    int
		expected int
	}{
		{0, 50},
		{-5, 50},
		{1, 1},
		{75, 75},
		{500, 100},
	}
	for _, tt := range tests {
		entries, err := store.Recent(tt.limit, "")
		if err != nil {
			t.Fatalf("Recent(%d) failed: %v", tt.limit, err)
		}
		if len(entries) != tt.expected {
			t.Errorf("Recent(%d) returned %d entries, want %d", tt.limit, len(entries), tt.expected)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("How many customers?")
	if b := Fingerprint("  how   MANY customers "); a != b {
		t.Errorf("Expected equivalent questions to share a fingerprint: %q vs %q", a, b)
	}
	if c := Fingerprint("How many orders?"); a == c {
		t.Error("Expected different questions to have different fingerprints")
	}
	if len(a) != 32 {
		t.Errorf("Expected 32 hex characters, got %d", len(a))
	}
}

func TestFrequent(t *testing.T) {
	store := newTestStore(t)

	questions := []string{
		"How many customers?",
		"List employees",
		"how many customers",
		"HOW MANY CUSTOMERS?!",
	}
	for i, q := range questions {
		err := store.Record(Entry{
			ID:        fmt.Sprintf("q%d", i),
			Database:  "shop",
			Question:  q,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	frequent, err := store.Frequent(10)
	if err != nil {
		t.Fatalf("Frequent failed: %v", err)
	}
	if len(frequent) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(frequent))
	}
	if frequent[0].Count != 3 {
		t.Errorf("Expected the customer question 3 times, got %d", frequent[0].Count)
	}
	if frequent[0].Question != "HOW MANY CUSTOMERS?!" {
		t.Errorf("Expected the latest wording, got %q", frequent[0].Question)
	}
	if frequent[1].Question != "List employees" || frequent[1].Count != 1 {
		t.Errorf("Unexpected second group: %+v", frequent[1])
	}
}

func TestClear(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 4; i++ {
		if err := store.Record(Entry{ID: fmt.Sprintf("q%d", i), Database: "shop", Question: "q"}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	removed, err := store.Clear()
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 4 {
		t.Errorf("Expected 4 removed, got %d", removed)
	}

	entries, err := store.Recent(0, "")
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty history, got %d entries", len(entries))
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := expandHome("~/.nldb/history.db")
	if err != nil {
		t.Fatalf("expandHome failed: %v", err)
	}
	if want := filepath.Join(home, ".nldb", "history.db"); got != want {
		t.Errorf("expandHome = %q, want %q", got, want)
	}

	if got, _ := expandHome("/tmp/h.db"); got != "/tmp/h.db" {
		t.Errorf("absolute path changed: %q", got)
	}
	if _, err := expandHome(""); err == nil {
		t.Error("Expected error for empty path")
	}
}
