package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"expenses/internal/amqp"
	"expenses/internal/categories"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/storage"
)

// DuplicateWindow is how far apart two otherwise identical expenses must be
// to both be accepted.
const DuplicateWindow = 60 * time.Minute

type (
	// Categorizer resolves a category for expenses added without one.
	Categorizer interface {
		DetermineCategory(description string, amount decimal.Decimal) string
		AvailableCategories() []string
	}

	// EventPublisher receives an event after every successful mutation.
	EventPublisher interface {
		PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
	}
)

// ExpenseService applies duplicate detection and auto-categorization on top
// of the selected store.
type ExpenseService struct {
	store     storage.Store
	matcher   Categorizer
	publisher EventPublisher
	logger    *applog.Logger

	// serializes Add so the duplicate scan and the insert are one step
	mu sync.Mutex
}

type Option func(*ExpenseService)

// WithPublisher enables change events. A nil publisher leaves them disabled.
func WithPublisher(p EventPublisher) Option {
	return func(s *ExpenseService) {
		s.publisher = p
	}
}

func WithLogger(l *applog.Logger) Option {
	return func(s *ExpenseService) {
		if l != nil {
			s.logger = l.WithComponent(applog.ComponentExpense)
		}
	}
}

func NewExpenseService(store storage.Store, matcher Categorizer, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		store:   store,
		matcher: matcher,
		logger:  applog.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add rejects e with core.ErrDuplicate when a stored record has the same
// amount, the same description ignoring case and a timestamp within
// DuplicateWindow. Otherwise it fills an empty category and stores e,
// setting e.ID.
func (s *ExpenseService) Add(ctx context.Context, e *core.Expense) error {
	if err := core.CheckAmount(e.Amount); err != nil {
		return fmt.Errorf("add expense: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("add expense: %w", err)
	}

	for _, other := range existing {
		if IsDuplicate(other, *e) {
			s.logger.WarnContext(ctx, "Rejected duplicate expense",
				applog.NewFields().
					WithOperation(applog.OpAdd).
					WithExpense(*e).
					ToSlice()...)
			return fmt.Errorf("add expense: %w of expense %d", core.ErrDuplicate, other.ID)
		}
	}

	if e.Category == "" {
		e.Category = s.matcher.DetermineCategory(e.Description, e.Amount)
	}

	if err := s.store.Add(ctx, e); err != nil {
		return fmt.Errorf("add expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense added",
		applog.NewFields().WithOperation(applog.OpAdd).WithExpense(*e).ToSlice()...)

	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventCreated, *e))
	return nil
}

// Update replaces the stored record. No duplicate check is made.
func (s *ExpenseService) Update(ctx context.Context, e core.Expense) error {
	if err := core.CheckAmount(e.Amount); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if err := s.store.Update(ctx, e); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense updated",
		applog.NewFields().WithOperation(applog.OpUpdate).WithExpense(e).ToSlice()...)

	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventUpdated, e))
	return nil
}

func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldExpenseID, id)

	s.publish(ctx, amqp.NewDeletedEvent(id))
	return nil
}

func (s *ExpenseService) GetAll(ctx context.Context) ([]core.Expense, error) {
	expenses, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// Categories lists the names an expense can be assigned to.
func (s *ExpenseService) Categories() []string {
	return s.matcher.AvailableCategories()
}

// publish logs failures instead of returning them; the store is the
// record of truth and the mutation already succeeded.
func (s *ExpenseService) publish(ctx context.Context, ev *amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldOperation, applog.OpPublish,
			applog.FieldEventType, string(ev.Type),
			applog.FieldExpenseID, ev.ExpenseID,
			applog.FieldError, err)
	}
}

// Close releases the store and the publisher when they hold resources.
func (s *ExpenseService) Close() error {
	var errs []error

	if c, ok := s.store.(storage.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(storage.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}

	return nil
}

// IsDuplicate reports whether b would duplicate a. The time difference is
// counted in whole minutes, so 60m59s apart still counts as 60 minutes.
func IsDuplicate(a, b core.Expense) bool {
	if !a.Amount.Equal(b.Amount) {
		return false
	}
	if !categories.EqualFold(a.Description, b.Description) {
		return false
	}
	d := b.Timestamp.Sub(a.Timestamp).Truncate(time.Minute)
	if d < 0 {
		d = -d
	}
	return d <= DuplicateWindow
}
