package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"expenses/internal/amqp"
	"expenses/internal/categories"
	"expenses/internal/core"
	"expenses/internal/storage/memory"
)

var base = time.Date(2025, time.May, 20, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.ExpenseEvent
	err      error
	closeErr error
	closed   bool
}

func (p *recordingPublisher) PublishExpenseEvent(_ context.Context, ev *amqp.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return p.closeErr
}

func newTestService(opts ...Option) (*ExpenseService, *memory.Store) {
	rules := categories.NewRules(
		categories.Category{Name: "Food", Keywords: []string{"cafe", "coffee"}},
		categories.Category{Name: "Transport", Keywords: []string{"taxi", "cafe"}},
	)
	store := memory.New()
	return NewExpenseService(store, categories.NewMatcher(rules), opts...), store
}

func expense(amount int64, desc, category string, ts time.Time) *core.Expense {
	e := core.NewExpense(decimal.NewFromInt(amount), desc, category, ts)
	return &e
}

func TestAddRejectsDuplicates(t *testing.T) {
	tests := []struct {
		name    string
		second  *core.Expense
		wantDup bool
	}{
		{"same data 45 minutes later", expense(500, "Coffee", "", base.Add(45*time.Minute)), true},
		{"exactly 60 minutes later", expense(500, "COFFEE", "", base.Add(60*time.Minute)), true},
		{"60 minutes earlier", expense(500, "coffee", "", base.Add(-60*time.Minute)), true},
		{"61 minutes later", expense(500, "COFFEE", "", base.Add(61*time.Minute)), false},
		{"different amount", expense(501, "COFFEE", "", base), false},
		{"different description", expense(500, "Coffee beans", "", base), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, store := newTestService()

			if err := svc.Add(ctx, expense(500, "COFFEE", "", base)); err != nil {
				t.Fatalf("first add: %v", err)
			}

			err := svc.Add(ctx, tt.second)
			all, _ := store.GetAll(ctx)

			if tt.wantDup {
				if !errors.Is(err, core.ErrDuplicate) {
					t.Fatalf("expected ErrDuplicate, got %v", err)
				}
				if len(all) != 1 {
					t.Fatalf("duplicate must not be written, store has %d records", len(all))
				}
				if tt.second.ID != 0 {
					t.Fatalf("rejected expense got id %d", tt.second.ID)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected add to succeed, got %v", err)
			}
			if len(all) != 2 {
				t.Fatalf("expected 2 records, got %d", len(all))
			}
		})
	}
}

func TestIsDuplicateCountsWholeMinutes(t *testing.T) {
	a := *expense(10, "bus", "", base)
	b := *expense(10, "bus", "", base.Add(60*time.Minute+59*time.Second))
	if !IsDuplicate(a, b) {
		t.Fatal("60m59s should still count as 60 minutes")
	}
	b.Timestamp = base.Add(61 * time.Minute)
	if IsDuplicate(a, b) {
		t.Fatal("61 minutes is outside the window")
	}
}

func TestAddAutoCategorizes(t *testing.T) {
	tests := []struct {
		name     string
		e        *core.Expense
		category string
	}{
		{"first category wins", expense(20, "cafe taxi", "", base), "Food"},
		{"keyword match ignores case", expense(30, "TAXI to airport", "", base), "Transport"},
		{"large fallback", expense(6000, "new sofa", "", base), categories.FallbackLarge},
		{"other fallback", expense(3000, "new sofa", "", base), categories.FallbackOther},
		{"caller category kept", expense(20, "cafe", "Gifts", base), "Gifts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService()
			if err := svc.Add(context.Background(), tt.e); err != nil {
				t.Fatalf("add: %v", err)
			}
			if tt.e.Category != tt.category {
				t.Errorf("category = %q, want %q", tt.e.Category, tt.category)
			}
			all, _ := store.GetAll(context.Background())
			if all[0].Category != tt.category {
				t.Errorf("stored category = %q, want %q", all[0].Category, tt.category)
			}
			if tt.e.ID == 0 {
				t.Error("expected id to be assigned")
			}
		})
	}
}

func TestUpdateSkipsDuplicateCheck(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	first := expense(500, "Coffee", "Food", base)
	second := expense(800, "Lunch", "Food", base.Add(10*time.Minute))
	for _, e := range []*core.Expense{first, second} {
		if err := svc.Add(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	// turn the second record into an exact copy of the first
	clone := *first
	clone.ID = second.ID
	if err := svc.Update(ctx, clone); err != nil {
		t.Fatalf("update should not run duplicate detection: %v", err)
	}

	all, _ := store.GetAll(ctx)
	if all[1].Description != "Coffee" || !all[1].Amount.Equal(first.Amount) {
		t.Fatalf("update not applied: %+v", all[1])
	}
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	svc, _ := newTestService()
	ghost := expense(1, "ghost", "x", base)
	ghost.ID = 77
	if err := svc.Update(context.Background(), *ghost); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectsAmountsBeyondStoredPrecision(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	tests := []struct {
		name   string
		amount string
	}{
		{"three decimals", "12.345"},
		{"thirteen integer digits", "1234567890123"},
		{"huge", "1234567890123456789.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := core.NewExpense(decimal.RequireFromString(tt.amount), "Laptop", "", base)
			if err := svc.Add(ctx, &e); !errors.Is(err, core.ErrAmountOutOfRange) {
				t.Fatalf("add: expected ErrAmountOutOfRange, got %v", err)
			}
		})
	}

	ok := expense(100, "Laptop", "", base)
	if err := svc.Add(ctx, ok); err != nil {
		t.Fatal(err)
	}
	changed := *ok
	changed.Amount = decimal.RequireFromString("100.001")
	if err := svc.Update(ctx, changed); !errors.Is(err, core.ErrAmountOutOfRange) {
		t.Fatalf("update: expected ErrAmountOutOfRange, got %v", err)
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 1 || !all[0].Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("store changed by rejected calls: %+v", all)
	}
}

func TestDeleteAndGetAll(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	e := expense(100, "book", "", base)
	if err := svc.Add(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, e.ID); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	all, err := svc.GetAll(ctx)
	if err != nil || len(all) != 0 {
		t.Fatalf("expected empty list, got %v (err=%v)", all, err)
	}
}

func TestPublishesEvents(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc, _ := newTestService(WithPublisher(pub))

	e := expense(15000, "Laptop", "", base)
	if err := svc.Add(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.Amount = decimal.NewFromInt(900)
	if err := svc.Update(ctx, *e); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, e.ID); err != nil {
		t.Fatal(err)
	}

	// a rejected duplicate publishes nothing
	if err := svc.Add(ctx, expense(5, "tea", "", base)); err != nil {
		t.Fatal(err)
	}
	if err := svc.Add(ctx, expense(5, "tea", "", base)); !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	want := []amqp.EventType{amqp.EventCreated, amqp.EventUpdated, amqp.EventDeleted, amqp.EventCreated}
	if len(pub.events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(pub.events))
	}
	for i, ev := range pub.events[:3] {
		if ev.Type != want[i] || ev.ExpenseID != e.ID {
			t.Errorf("event %d = %s/%d, want %s/%d", i, ev.Type, ev.ExpenseID, want[i], e.ID)
		}
	}
	if pub.events[0].Status != "LARGE_EXPENSE" || pub.events[1].Status != "SMALL_EXPENSE" {
		t.Errorf("status should follow amount: %s then %s", pub.events[0].Status, pub.events[1].Status)
	}
}

func TestPublishFailureDoesNotFailAdd(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("connection refused")}
	svc, store := newTestService(WithPublisher(pub))

	if err := svc.Add(context.Background(), expense(10, "pen", "", base)); err != nil {
		t.Fatalf("add should succeed when publishing fails: %v", err)
	}
	all, _ := store.GetAll(context.Background())
	if len(all) != 1 {
		t.Fatalf("expected stored record, got %d", len(all))
	}
}

func TestConcurrentAddsOfSameExpense(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Add(ctx, expense(42, "Parking", "", base))
		}()
	}
	wg.Wait()

	all, _ := store.GetAll(ctx)
	if len(all) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(all))
	}
}

func TestCategories(t *testing.T) {
	svc, _ := newTestService()
	got := svc.Categories()
	want := []string{"Food", "Transport", categories.FallbackLarge, categories.FallbackOther}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestClose(t *testing.T) {
	t.Run("store without resources", func(t *testing.T) {
		svc, _ := newTestService()
		if err := svc.Close(); err != nil {
			t.Fatalf("Close should not return error: %v", err)
		}
	})

	t.Run("publisher is closed", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc, _ := newTestService(WithPublisher(pub))
		if err := svc.Close(); err != nil {
			t.Fatal(err)
		}
		if !pub.closed {
			t.Error("expected publisher to be closed")
		}
	})

	t.Run("close errors stay inspectable", func(t *testing.T) {
		errBroken := errors.New("broken channel")
		svc, _ := newTestService(WithPublisher(&recordingPublisher{closeErr: errBroken}))
		if err := svc.Close(); !errors.Is(err, errBroken) {
			t.Fatalf("expected wrapped %v, got %v", errBroken, err)
		}
	})
}
