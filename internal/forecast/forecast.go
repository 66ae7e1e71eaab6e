// Package forecast estimates next month's spending from recent expenses.
package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"expenses/internal/core"
	applog "expenses/internal/log"
)

// WindowMonths is how far back MonthlyAverage looks.
const WindowMonths = 3

var (
	holidayFactor = decimal.RequireFromString("1.30")
	summerFactor  = decimal.RequireFromString("1.20")
	neutralFactor = decimal.NewFromInt(1)
)

// Source is the read side of a store.
type Source interface {
	GetAll(ctx context.Context) ([]core.Expense, error)
}

type Engine struct {
	source Source
	logger *applog.Logger
}

func NewEngine(source Source, logger *applog.Logger) *Engine {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Engine{source: source, logger: logger.WithComponent(applog.ComponentForecast)}
}

// Summary is everything the forecast view shows.
type Summary struct {
	Reference   time.Time
	WindowStart time.Time
	Count       int
	Average     decimal.Decimal
	NextMonth   time.Month
	Factor      decimal.Decimal
	Prediction  decimal.Decimal
}

// MonthlyAverage is the mean amount of the expenses dated between three
// months before ref and ref, both days included. It is zero when there are
// none.
func (e *Engine) MonthlyAverage(ctx context.Context, ref time.Time) (decimal.Decimal, error) {
	s, err := e.Summary(ctx, ref)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Average, nil
}

// PredictNextMonth scales MonthlyAverage by the factor of the month after ref.
func (e *Engine) PredictNextMonth(ctx context.Context, ref time.Time) (decimal.Decimal, error) {
	s, err := e.Summary(ctx, ref)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Prediction, nil
}

func (e *Engine) Summary(ctx context.Context, ref time.Time) (Summary, error) {
	expenses, err := e.source.GetAll(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("forecast: %w", err)
	}

	avg, n := Average(expenses, ref)
	next := NextMonth(ref)
	factor := SeasonalFactor(next)

	s := Summary{
		Reference:   ref,
		WindowStart: WindowStart(ref),
		Count:       n,
		Average:     avg,
		NextMonth:   next,
		Factor:      factor,
		Prediction:  avg.Mul(factor),
	}

	e.logger.DebugContext(ctx, "Forecast computed",
		applog.FieldOperation, applog.OpForecast,
		applog.FieldCount, n,
		"average", s.Average.String(),
		"next_month", next.String(),
		"prediction", s.Prediction.String())

	return s, nil
}

// Average is the mean amount of the expenses inside ref's window and how
// many there were.
func Average(expenses []core.Expense, ref time.Time) (decimal.Decimal, int) {
	from := civil(WindowStart(ref))
	to := civil(ref)

	sum := decimal.Zero
	n := 0
	for _, e := range expenses {
		d := civil(e.Timestamp.In(ref.Location()))
		if d < from || d > to {
			continue
		}
		sum = sum.Add(e.Amount)
		n++
	}
	if n == 0 {
		return decimal.Zero, 0
	}
	return sum.Div(decimal.NewFromInt(int64(n))), n
}

// SeasonalFactor is 1.30 for December and January, 1.20 for July and
// August and 1 otherwise.
func SeasonalFactor(m time.Month) decimal.Decimal {
	switch m {
	case time.December, time.January:
		return holidayFactor
	case time.July, time.August:
		return summerFactor
	default:
		return neutralFactor
	}
}

func NextMonth(ref time.Time) time.Month {
	return ref.Month()%12 + 1
}

// WindowStart is midnight of the day three months before ref. A day that
// does not exist in the target month is clamped to its last day, so May 31
// goes back to February 28 or 29.
func WindowStart(ref time.Time) time.Time {
	y, m, d := ref.Date()
	m -= WindowMonths
	for m < time.January {
		m += 12
		y--
	}
	if last := daysIn(y, m); d > last {
		d = last
	}
	return time.Date(y, m, d, 0, 0, 0, 0, ref.Location())
}

func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// civil packs a calendar date into an ordered integer.
func civil(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
