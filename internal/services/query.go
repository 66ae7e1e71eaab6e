package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"expenses/internal/categories"
	"expenses/internal/core"
)

// SortOrder selects how List orders its result.
type SortOrder string

const (
	SortDateDesc   SortOrder = "date_desc"
	SortDateAsc    SortOrder = "date_asc"
	SortAmountAsc  SortOrder = "amount_asc"
	SortAmountDesc SortOrder = "amount_desc"
)

// SortOrders lists the accepted values, default first.
var SortOrders = []SortOrder{SortDateDesc, SortDateAsc, SortAmountAsc, SortAmountDesc}

// ParseSortOrder accepts the names above; empty means SortDateDesc.
func ParseSortOrder(s string) (SortOrder, error) {
	if s == "" {
		return SortDateDesc, nil
	}
	o := SortOrder(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(SortOrders, o) {
		return "", fmt.Errorf("unknown sort order %q", s)
	}
	return o, nil
}

type ListOptions struct {
	// Filter keeps expenses whose description, category or amount text
	// contains it, ignoring case. Empty keeps everything.
	Filter string
	Sort   SortOrder
}

// List returns the filtered and sorted view the expense table shows.
func (s *ExpenseService) List(ctx context.Context, opts ListOptions) ([]core.Expense, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	out := FilterExpenses(all, opts.Filter)
	SortExpenses(out, opts.Sort)
	return out, nil
}

// FilterExpenses keeps expenses whose description or category contains filter
// ignoring case, or whose amount contains it as written or with two decimals.
func FilterExpenses(expenses []core.Expense, filter string) []core.Expense {
	needle := categories.Fold(strings.TrimSpace(filter))
	if needle == "" {
		return slices.Clone(expenses)
	}

	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if strings.Contains(categories.Fold(e.Description), needle) ||
			strings.Contains(categories.Fold(e.Category), needle) ||
			strings.Contains(e.Amount.String(), needle) ||
			strings.Contains(core.FormatAmount(e.Amount), needle) {
			out = append(out, e)
		}
	}
	return out
}

// SortExpenses sorts in place. Ties keep their original order.
func SortExpenses(expenses []core.Expense, order SortOrder) {
	slices.SortStableFunc(expenses, func(a, b core.Expense) int {
		switch order {
		case SortDateAsc:
			return a.Timestamp.Compare(b.Timestamp)
		case SortAmountAsc:
			return a.Amount.Cmp(b.Amount)
		case SortAmountDesc:
			return b.Amount.Cmp(a.Amount)
		default:
			return b.Timestamp.Compare(a.Timestamp)
		}
	})
}
