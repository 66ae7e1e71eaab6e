package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusSmall   Status = "SMALL_EXPENSE"
	StatusRegular Status = "REGULAR_EXPENSE"
	StatusLarge   Status = "LARGE_EXPENSE"
)

type (
	// Status is the size class of an expense. It is derived from the amount
	// and never stored independently of it.
	Status string

	Expense struct {
		ID          int64 // Assigned by the backend on Add
		Amount      decimal.Decimal
		Description string
		Category    string // Empty means "resolve on add"
		Timestamp   time.Time
	}
)

var (
	ErrDuplicate        = errors.New("duplicate expense")
	ErrNotFound         = errors.New("expense not found")
	ErrMalformed        = errors.New("malformed expense data")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrAmountOutOfRange = errors.New("amount out of range")
	ErrZeroTimestamp    = errors.New("timestamp cannot be zero")
)

var (
	smallBelow   = decimal.NewFromInt(1000)
	largeAbove   = decimal.NewFromInt(10000)
	statusLabels = map[Status]string{
		StatusSmall:   "Small expense",
		StatusRegular: "Regular expense",
		StatusLarge:   "Large purchase",
	}
)

// Classify maps an amount to its status: above 10000 is large, below 1000
// is small, everything in between (bounds included) is regular.
func Classify(amount decimal.Decimal) Status {
	switch {
	case amount.GreaterThan(largeAbove):
		return StatusLarge
	case amount.LessThan(smallBelow):
		return StatusSmall
	default:
		return StatusRegular
	}
}

// ParseStatus converts a stored enum name back into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if _, ok := statusLabels[st]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrMalformed, s)
	}
	return st, nil
}

// DisplayName returns a human readable label
func (s Status) DisplayName() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "Unknown"
}

func (s Status) String() string {
	return string(s)
}

// NewExpense builds an expense that has not been persisted yet.
func NewExpense(amount decimal.Decimal, description, category string, ts time.Time) Expense {
	return Expense{
		Amount:      amount,
		Description: description,
		Category:    category,
		Timestamp:   ts,
	}
}

// Status is recomputed from Amount on every call.
func (e Expense) Status() Status {
	return Classify(e.Amount)
}

// Validate checks the fields a caller must supply before handing the
// expense to the service.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if e.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}
