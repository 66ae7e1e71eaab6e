// Package storagetest runs the same behavioural checks against every
// storage.Store implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"expenses/internal/core"
	"expenses/internal/storage"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) storage.Store

// Run executes the contract suite.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"AddAssignsIncreasingIDs", testAddAssignsIncreasingIDs},
		{"IDsNeverReusedAfterDelete", testIDsNeverReused},
		{"GetAllRoundTripsFields", testRoundTrip},
		{"UpdateReplacesRecord", testUpdate},
		{"UpdateMissingReportsNotFound", testUpdateMissing},
		{"DeleteMissingIsNoop", testDeleteMissing},
		{"EmptyStoreListsNothing", testEmpty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

// At is a fixed whole-second timestamp in the local zone, which every
// backend round-trips exactly.
func At(hour, minute int) time.Time {
	return time.Date(2025, time.March, 10, hour, minute, 0, 0, time.Local)
}

// Sample builds an unsaved expense in the "misc" category.
func Sample(amount int64, desc string, ts time.Time) core.Expense {
	return core.NewExpense(decimal.NewFromInt(amount), desc, "misc", ts)
}

func mustAdd(t *testing.T, s storage.Store, e core.Expense) core.Expense {
	t.Helper()
	if err := s.Add(context.Background(), &e); err != nil {
		t.Fatalf("add %q: %v", e.Description, err)
	}
	return e
}

func mustGetAll(t *testing.T, s storage.Store) []core.Expense {
	t.Helper()
	all, err := s.GetAll(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	return all
}

func testAddAssignsIncreasingIDs(t *testing.T, s storage.Store) {
	a := mustAdd(t, s, Sample(10, "a", At(9, 0)))
	b := mustAdd(t, s, Sample(20, "b", At(10, 0)))

	if a.ID <= 0 {
		t.Fatalf("expected positive id, got %d", a.ID)
	}
	if b.ID <= a.ID {
		t.Fatalf("expected id after %d, got %d", a.ID, b.ID)
	}
}

func testIDsNeverReused(t *testing.T, s storage.Store) {
	ctx := context.Background()
	mustAdd(t, s, Sample(1, "first", At(9, 0)))
	second := mustAdd(t, s, Sample(2, "second", At(9, 1)))
	third := mustAdd(t, s, Sample(3, "third", At(9, 2)))

	if err := s.Delete(ctx, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	fourth := mustAdd(t, s, Sample(4, "fourth", At(9, 3)))
	if fourth.ID <= third.ID {
		t.Fatalf("expected id above %d, got %d", third.ID, fourth.ID)
	}

	// Removing the newest record must not free its id either.
	if err := s.Delete(ctx, fourth.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	fifth := mustAdd(t, s, Sample(5, "fifth", At(9, 4)))
	if fifth.ID <= fourth.ID {
		t.Fatalf("expected id above %d, got %d", fourth.ID, fifth.ID)
	}

	if got := len(mustGetAll(t, s)); got != 3 {
		t.Fatalf("expected 3 records, got %d", got)
	}
}

func testRoundTrip(t *testing.T, s storage.Store) {
	in := core.NewExpense(decimal.RequireFromString("12500.50"), "Weekend flight", "travel", At(14, 45))
	added := mustAdd(t, s, in)

	all := mustGetAll(t, s)
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
	AssertSameExpense(t, all[0], added)
	if all[0].Status() != core.StatusLarge {
		t.Fatalf("expected derived large status, got %s", all[0].Status())
	}
}

func testUpdate(t *testing.T, s storage.Store) {
	e := mustAdd(t, s, Sample(500, "coffee", At(8, 0)))
	other := mustAdd(t, s, Sample(700, "lunch", At(12, 0)))

	e.Amount = decimal.NewFromInt(1500)
	e.Description = "coffee beans"
	e.Category = "groceries"
	e.Timestamp = At(8, 30)
	if err := s.Update(context.Background(), e); err != nil {
		t.Fatalf("update: %v", err)
	}

	all := mustGetAll(t, s)
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	AssertSameExpense(t, all[0], e)
	AssertSameExpense(t, all[1], other)
	if all[0].Status() != core.StatusRegular {
		t.Fatalf("expected status to follow new amount, got %s", all[0].Status())
	}
}

// Legacy in-memory storage ignored updates of unknown ids; every backend now
// reports them.
func testUpdateMissing(t *testing.T, s storage.Store) {
	mustAdd(t, s, Sample(1, "exists", At(9, 0)))

	ghost := Sample(2, "ghost", At(9, 0))
	ghost.ID = 9999
	err := s.Update(context.Background(), ghost)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := len(mustGetAll(t, s)); got != 1 {
		t.Fatalf("expected store unchanged, got %d records", got)
	}
}

func testDeleteMissing(t *testing.T, s storage.Store) {
	mustAdd(t, s, Sample(1, "keep", At(9, 0)))
	if err := s.Delete(context.Background(), 4242); err != nil {
		t.Fatalf("expected no error deleting unknown id, got %v", err)
	}
	if got := len(mustGetAll(t, s)); got != 1 {
		t.Fatalf("expected 1 record, got %d", got)
	}
}

func testEmpty(t *testing.T, s storage.Store) {
	if got := mustGetAll(t, s); len(got) != 0 {
		t.Fatalf("expected empty store, got %v", got)
	}
}

// AssertSameExpense compares every persisted field.
func AssertSameExpense(t *testing.T, got, want core.Expense) {
	t.Helper()
	if got.ID != want.ID {
		t.Errorf("id: got %d, want %d", got.ID, want.ID)
	}
	if !got.Amount.Equal(want.Amount) {
		t.Errorf("amount: got %s, want %s", got.Amount, want.Amount)
	}
	if got.Description != want.Description {
		t.Errorf("description: got %q, want %q", got.Description, want.Description)
	}
	if got.Category != want.Category {
		t.Errorf("category: got %q, want %q", got.Category, want.Category)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("timestamp: got %v, want %v", got.Timestamp, want.Timestamp)
	}
}
