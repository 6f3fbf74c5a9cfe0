// Package ledger persists reconciled order/expense pairs in SQLite so a
// pair is never matched twice across reconcile runs.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrAlreadyMatched is returned by Record when the order or expense is
// already part of a recorded pair.
var ErrAlreadyMatched = errors.New("already matched")

// Entry is one reconciled pair.
type Entry struct {
	OrderKey     string          `json:"order_key"`
	Source       string          `json:"source"`
	OrderID      string          `json:"order_id,omitempty"`
	ExpenseID    string          `json:"expense_id"`
	Amount       decimal.Decimal `json:"amount"`
	OrderDate    string          `json:"order_date"`
	UseDate      string          `json:"use_date"`
	Fallback     bool            `json:"fallback"`
	MatchedAt    time.Time       `json:"matched_at"`
	RunID        string          `json:"run_id,omitempty"`
	ReceiptTotal string          `json:"receipt_total,omitempty"`
	ReceiptOK    *bool           `json:"receipt_ok,omitempty"`
}

// Stats summarises the ledger for the dashboard.
type Stats struct {
	Matched     int             `json:"matched"`
	Fallback    int             `json:"fallback"`
	TotalAmount decimal.Decimal `json:"total_amount"` // signed; refunds subtract
	BySource    map[string]int  `json:"by_source"`
	LastMatched *time.Time      `json:"last_matched,omitempty"`
}

// Ledger wraps the SQLite database.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at path and runs pending migrations.
// Pass ":memory:" for an in-memory ledger (used by tests).
func Open(path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging ledger: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and avoids
	// "database is locked" between the dashboard and a CLI run.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return l, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	if _, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := l.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := l.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// Versions returns the applied migration versions in ascending order.
func (l *Ledger) Versions() ([]int, error) {
	rows, err := l.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// Record stores a matched pair. It fails with ErrAlreadyMatched when either
// side is already in the ledger.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.OrderKey == "" || e.ExpenseID == "" {
		return fmt.Errorf("ledger entry needs an order key and an expense id")
	}
	if e.MatchedAt.IsZero() {
		e.MatchedAt = time.Now()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE order_key = ? OR expense_id = ?`,
		e.OrderKey, e.ExpenseID,
	).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("order %s / expense %s: %w", e.OrderKey, e.ExpenseID, ErrAlreadyMatched)
	}

	var receiptOK any
	if e.ReceiptOK != nil {
		receiptOK = boolToInt(*e.ReceiptOK)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO matches (order_key, source, order_id, expense_id, amount, order_date, use_date, fallback, matched_at, run_id, receipt_total, receipt_ok)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.OrderKey, e.Source, e.OrderID, e.ExpenseID, e.Amount.String(), e.OrderDate, e.UseDate,
		boolToInt(e.Fallback), e.MatchedAt.UTC().Format(time.RFC3339), e.RunID, e.ReceiptTotal, receiptOK,
	); err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}
	return tx.Commit()
}

// IsExpenseMatched reports whether the expense is already reconciled.
func (l *Ledger) IsExpenseMatched(ctx context.Context, expenseID string) (bool, error) {
	return l.exists(ctx, "expense_id", expenseID)
}

// IsOrderMatched reports whether the order key is already reconciled.
func (l *Ledger) IsOrderMatched(ctx context.Context, orderKey string) (bool, error) {
	return l.exists(ctx, "order_key", orderKey)
}

func (l *Ledger) exists(ctx context.Context, column, value string) (bool, error) {
	var n int
	// column is one of two constants above, never user input.
	err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM matches WHERE "+column+" = ?", value).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns recorded pairs, newest first. limit <= 0 returns all.
func (l *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT order_key, source, order_id, expense_id, amount, order_date, use_date, fallback, matched_at, run_id, receipt_total, receipt_ok
		FROM matches ORDER BY matched_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			amount    string
			fallback  int
			matchedAt string
			receiptOK sql.NullInt64
		)
		if err := rows.Scan(&e.OrderKey, &e.Source, &e.OrderID, &e.ExpenseID, &amount, &e.OrderDate, &e.UseDate,
			&fallback, &matchedAt, &e.RunID, &e.ReceiptTotal, &receiptOK); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing amount for %s: %w", e.OrderKey, err)
		}
		if e.MatchedAt, err = time.Parse(time.RFC3339, matchedAt); err != nil {
			return nil, fmt.Errorf("parsing matched_at: %w", err)
		}
		e.Fallback = fallback != 0
		if receiptOK.Valid {
			ok := receiptOK.Int64 != 0
			e.ReceiptOK = &ok
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats aggregates the whole ledger.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	entries, err := l.List(ctx, 0)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{TotalAmount: decimal.Zero, BySource: make(map[string]int)}
	for _, e := range entries {
		stats.Matched++
		if e.Fallback {
			stats.Fallback++
		}
		stats.TotalAmount = stats.TotalAmount.Add(e.Amount)
		stats.BySource[e.Source]++
		if stats.LastMatched == nil || e.MatchedAt.After(*stats.LastMatched) {
			t := e.MatchedAt
			stats.LastMatched = &t
		}
	}
	return stats, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
