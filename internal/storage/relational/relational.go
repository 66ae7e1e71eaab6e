// Package relational stores expenses in a SQL table. SQLite (modernc) and
// PostgreSQL (pgx) are supported; the schema is created on first connect.
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/storage"
)

// Dialect selects the SQL driver and migration set.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

var (
	ErrMissingURL         = errors.New("database url is required")
	ErrMissingCredentials = errors.New("database user and password are required")
	ErrUnsupportedURL     = errors.New("unsupported database url")
)

func (d Dialect) String() string {
	return string(d)
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Config describes how to reach the database.
//
// URL forms:
//
//	sqlite://data/expenses.db          relative path
//	sqlite:///var/lib/expenses.db      absolute path
//	postgres://host:5432/expenses      user and password come from User/Password
//	jdbc:postgresql://host/expenses    accepted for old config files
type Config struct {
	URL      string
	User     string
	Password string

	// Location is used to read PostgreSQL TIMESTAMP columns, which carry
	// no zone. Defaults to time.Local.
	Location *time.Location
}

// Resolve returns the dialect and driver DSN. PostgreSQL requires both
// credentials; SQLite ignores them.
func (c Config) Resolve() (Dialect, string, error) {
	raw := strings.TrimSpace(c.URL)
	if raw == "" {
		return "", "", ErrMissingURL
	}
	raw = strings.TrimPrefix(raw, "jdbc:")

	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedURL, c.URL)
	}

	switch strings.ToLower(scheme) {
	case "sqlite", "sqlite3":
		path := strings.TrimPrefix(rest, "//")
		if path == "" {
			return "", "", fmt.Errorf("%w: %q has no path", ErrUnsupportedURL, c.URL)
		}
		return DialectSQLite, path, nil

	case "postgres", "postgresql":
		if c.User == "" || c.Password == "" {
			return "", "", ErrMissingCredentials
		}
		u, err := url.Parse(raw)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
		}
		u.Scheme = "postgres"
		u.User = url.UserPassword(c.User, c.Password)
		return DialectPostgres, u.String(), nil

	default:
		return "", "", fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, scheme)
	}
}

// Store implements storage.Store on a SQL database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	loc     *time.Location
}

var _ storage.Store = (*Store)(nil)

// New connects, verifies the connection and creates the schema if absent.
func New(ctx context.Context, cfg Config) (*Store, error) {
	dialect, dsn, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	if dialect == DialectSQLite {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if dialect == DialectSQLite {
		// one writer at a time, otherwise concurrent inserts hit SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	slog.InfoContext(ctx, "Opened relational expense store",
		applog.FieldComponent, applog.ComponentStorage,
		"dialect", dialect.String())

	return &Store{db: db, dialect: dialect, loc: loc}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Dialect reports which database the store is connected to.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) Add(ctx context.Context, e *core.Expense) error {
	query := s.dialect.rebind(`INSERT INTO expenses (amount, description, category, date_time)
		VALUES (?, ?, ?, ?) RETURNING id`)

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		e.Amount, e.Description, e.Category, s.toColumn(e.Timestamp)).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	e.ID = id

	slog.DebugContext(ctx, "Expense saved to database",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldExpenseID, id,
		applog.FieldAmount, e.Amount.String())
	return nil
}

func (s *Store) Update(ctx context.Context, e core.Expense) error {
	query := s.dialect.rebind(`UPDATE expenses
		SET amount = ?, description = ?, category = ?, date_time = ?
		WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, query,
		e.Amount, e.Description, e.Category, s.toColumn(e.Timestamp), e.ID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update expense rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update expense %d: %w", e.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	query := s.dialect.rebind(`DELETE FROM expenses WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

// GetAll returns all rows ordered by id. Status is not stored and is
// derived from the amount.
func (s *Store) GetAll(ctx context.Context) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount, description, category, date_time FROM expenses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var (
			e        core.Expense
			amount   decimal.NullDecimal
			category sql.NullString
			ts       sql.NullTime
		)
		if err := rows.Scan(&e.ID, &amount, &e.Description, &category, &ts); err != nil {
			return nil, fmt.Errorf("%w: scan expense row: %v", core.ErrMalformed, err)
		}
		if !amount.Valid {
			return nil, fmt.Errorf("%w: expense %d has no amount", core.ErrMalformed, e.ID)
		}
		if !ts.Valid {
			return nil, fmt.Errorf("%w: expense %d has no date_time", core.ErrMalformed, e.ID)
		}
		e.Amount = amount.Decimal
		e.Category = category.String
		e.Timestamp = s.fromColumn(ts.Time)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	return expenses, nil
}

// PostgreSQL TIMESTAMP has no zone: store the wall clock of s.loc and read
// it back in the same zone. SQLite keeps the offset in the stored text.
func (s *Store) toColumn(t time.Time) time.Time {
	if s.dialect != DialectPostgres {
		return t
	}
	w := t.In(s.loc)
	return time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), time.UTC)
}

func (s *Store) fromColumn(t time.Time) time.Time {
	if s.dialect != DialectPostgres {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), s.loc)
}
