// Package jsonfile stores expenses as a pretty-printed JSON array. Every
// mutation reads the whole file, changes it in memory and rewrites it.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/storage"
)

// DateTimeLayout is the textual timestamp format of the dateTime field.
// Fractional seconds are written only when present.
const DateTimeLayout = "2006-01-02T15:04:05.999999999"

// Older files may omit seconds or use a space separator.
var readLayouts = []string{DateTimeLayout, "2006-01-02T15:04", "2006-01-02 15:04:05.999999999", "2006-01-02 15:04"}

type record struct {
	ID          int64       `json:"id"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	DateTime    string      `json:"dateTime"`
	Status      string      `json:"status,omitempty"`
}

// Store is a file backed expense store. The mutex covers the whole
// read-modify-write cycle, so one Store value is safe for concurrent use;
// two Store values on the same file are not.
type Store struct {
	mu   sync.Mutex
	path string
	loc  *time.Location

	// highest id issued by this process, so deleting the newest record
	// does not hand its id out again
	lastID int64
}

var _ storage.Store = (*Store)(nil)

type Option func(*Store)

// WithLocation sets the zone used to interpret dateTime values, which carry
// no offset. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		s.loc = loc
	}
}

// New opens the store at path, creating the file with an empty array when it
// is missing or empty.
func New(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create json store directory: %w", err)
		}
	}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err) || (err == nil && info.Size() == 0):
		if err := os.WriteFile(path, []byte("[]\n"), 0o644); err != nil {
			return nil, fmt.Errorf("initialize json store: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("stat json store: %w", err)
	}

	slog.Debug("Opened JSON expense store", applog.FieldComponent, applog.ComponentStorage, applog.FieldPath, path)
	return s, nil
}

func (s *Store) Add(ctx context.Context, e *core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expenses, err := s.load()
	if err != nil {
		return fmt.Errorf("add expense: %w", err)
	}

	s.lastID++
	e.ID = s.lastID
	expenses = append(expenses, *e)

	if err := s.save(expenses); err != nil {
		return fmt.Errorf("add expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense written to JSON file",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldExpenseID, e.ID,
		applog.FieldCount, len(expenses))
	return nil
}

func (s *Store) Update(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expenses, err := s.load()
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	for i := range expenses {
		if expenses[i].ID == e.ID {
			expenses[i] = e
			if err := s.save(expenses); err != nil {
				return fmt.Errorf("update expense: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("update expense %d: %w", e.ID, core.ErrNotFound)
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expenses, err := s.load()
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	kept := expenses[:0]
	for _, e := range expenses {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(expenses) {
		return nil
	}

	if err := s.save(kept); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

func (s *Store) GetAll(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expenses, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// load reads the whole file and raises the id high-water mark to the
// largest id found in it. Callers hold s.mu.
func (s *Store) load() ([]core.Expense, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read json store: %w", err)
	}

	var records []record
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", core.ErrMalformed, s.path, err)
		}
	}

	expenses := make([]core.Expense, 0, len(records))
	for i, r := range records {
		e, err := s.fromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if e.ID > s.lastID {
			s.lastID = e.ID
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

func (s *Store) save(expenses []core.Expense) error {
	records := make([]record, len(expenses))
	for i, e := range expenses {
		records[i] = s.toRecord(e)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json store: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write json store: %w", err)
	}
	return nil
}

func (s *Store) toRecord(e core.Expense) record {
	return record{
		ID:          e.ID,
		Amount:      json.Number(e.Amount.String()),
		Description: e.Description,
		Category:    e.Category,
		DateTime:    e.Timestamp.In(s.loc).Format(DateTimeLayout),
		Status:      e.Status().String(),
	}
}

// fromRecord converts a stored record. Status is always derived from the
// amount; a stored value is only checked to be a known name, and records
// written before status existed simply lack it.
func (s *Store) fromRecord(r record) (core.Expense, error) {
	amount, err := decimal.NewFromString(r.Amount.String())
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: amount %q", core.ErrMalformed, r.Amount)
	}

	ts, err := s.parseDateTime(r.DateTime)
	if err != nil {
		return core.Expense{}, err
	}

	if r.Status != "" {
		if _, err := core.ParseStatus(r.Status); err != nil {
			return core.Expense{}, err
		}
	}

	return core.Expense{
		ID:          r.ID,
		Amount:      amount,
		Description: r.Description,
		Category:    r.Category,
		Timestamp:   ts,
	}, nil
}

func (s *Store) parseDateTime(v string) (time.Time, error) {
	for _, layout := range readLayouts {
		if ts, err := time.ParseInLocation(layout, v, s.loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: dateTime %q", core.ErrMalformed, v)
}
