package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"envelopes/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunSQLiteMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) CreateEnvelope(ctx context.Context, e core.Envelope) (core.Envelope, error) {
	if err := e.Validate(); err != nil {
		return core.Envelope{}, err
	}

	e.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO envelopes (owner, name, icon, allocation_cents, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Owner, e.Name, e.Icon, e.Allocation.Cents, e.CreatedAt)
	if err != nil {
		return core.Envelope{}, core.StorageError("create envelope", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Envelope{}, core.StorageError("create envelope", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Envelope saved to SQLite",
		"id", e.ID,
		"name", e.Name,
		"allocation_cents", e.Allocation.Cents)

	return e, nil
}

func (s *SQLiteStore) GetEnvelope(ctx context.Context, owner string, id int64) (core.Envelope, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner, name, icon, allocation_cents, created_at FROM envelopes WHERE id = ? AND owner = ?`,
		id, owner)

	var e core.Envelope
	err := row.Scan(&e.ID, &e.Owner, &e.Name, &e.Icon, &e.Allocation.Cents, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Envelope{}, core.ErrNotFound
	}
	if err != nil {
		return core.Envelope{}, core.StorageError("get envelope", err)
	}
	return e, nil
}

func (s *SQLiteStore) ListEnvelopes(ctx context.Context, owner string) ([]core.Envelope, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, name, icon, allocation_cents, created_at FROM envelopes WHERE owner = ? ORDER BY id DESC`,
		owner)
	if err != nil {
		return nil, core.StorageError("list envelopes", err)
	}
	defer rows.Close()

	var out []core.Envelope
	for rows.Next() {
		var e core.Envelope
		if err := rows.Scan(&e.ID, &e.Owner, &e.Name, &e.Icon, &e.Allocation.Cents, &e.CreatedAt); err != nil {
			return nil, core.StorageError("scan envelope", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageError("list envelopes", err)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateEnvelope(ctx context.Context, e core.Envelope) (core.Envelope, error) {
	if err := e.Validate(); err != nil {
		return core.Envelope{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE envelopes SET name = ?, icon = ?, allocation_cents = ? WHERE id = ? AND owner = ?`,
		e.Name, e.Icon, e.Allocation.Cents, e.ID, e.Owner)
	if err != nil {
		return core.Envelope{}, core.StorageError("update envelope", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Envelope{}, core.StorageError("update envelope", err)
	}
	if n == 0 {
		return core.Envelope{}, core.ErrNotFound
	}
	return s.GetEnvelope(ctx, e.Owner, e.ID)
}

// DeleteEnvelope removes the envelope and its entries in one transaction so
// a failed step rolls the whole cascade back.
func (s *SQLiteStore) DeleteEnvelope(ctx context.Context, owner string, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.StorageError("begin delete envelope", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM envelopes WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return core.StorageError("delete envelope", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.StorageError("delete envelope", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM income_entries WHERE envelope_id = ?`, id); err != nil {
		return core.StorageError("delete envelope income", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_entries WHERE envelope_id = ?`, id); err != nil {
		return core.StorageError("delete envelope expenses", err)
	}

	if err := tx.Commit(); err != nil {
		return core.StorageError("commit delete envelope", err)
	}

	slog.InfoContext(ctx, "Envelope deleted with cascade", "id", id)
	return nil
}

func (s *SQLiteStore) CreateIncome(ctx context.Context, in core.IncomeEntry) (core.IncomeEntry, error) {
	if err := in.Validate(); err != nil {
		return core.IncomeEntry{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO income_entries (envelope_id, label, amount_cents, entry_date) VALUES (?, ?, ?, ?)`,
		in.EnvelopeID, in.Label, in.Amount.Cents, in.Date.String())
	if err != nil {
		return core.IncomeEntry{}, core.StorageError("create income", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.IncomeEntry{}, core.StorageError("create income", err)
	}
	in.ID = id

	slog.InfoContext(ctx, "Income entry saved to SQLite",
		"id", in.ID,
		"envelope_id", in.EnvelopeID,
		"amount_cents", in.Amount.Cents)

	return in, nil
}

func (s *SQLiteStore) CreateExpense(ctx context.Context, ex core.ExpenseEntry) (core.ExpenseEntry, error) {
	if err := ex.Validate(); err != nil {
		return core.ExpenseEntry{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO expense_entries (envelope_id, label, amount_cents, entry_date) VALUES (?, ?, ?, ?)`,
		ex.EnvelopeID, ex.Label, ex.Amount.Cents, ex.Date.String())
	if err != nil {
		return core.ExpenseEntry{}, core.StorageError("create expense", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.ExpenseEntry{}, core.StorageError("create expense", err)
	}
	ex.ID = id

	slog.InfoContext(ctx, "Expense entry saved to SQLite",
		"id", ex.ID,
		"envelope_id", ex.EnvelopeID,
		"amount_cents", ex.Amount.Cents)

	return ex, nil
}

func (s *SQLiteStore) GetIncome(ctx context.Context, owner string, id int64) (core.IncomeEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT i.id, i.envelope_id, i.label, i.amount_cents, i.entry_date
		 FROM income_entries i JOIN envelopes e ON e.id = i.envelope_id
		 WHERE i.id = ? AND e.owner = ?`, id, owner)
	return scanIncome(row)
}

func (s *SQLiteStore) GetExpense(ctx context.Context, owner string, id int64) (core.ExpenseEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT x.id, x.envelope_id, x.label, x.amount_cents, x.entry_date
		 FROM expense_entries x JOIN envelopes e ON e.id = x.envelope_id
		 WHERE x.id = ? AND e.owner = ?`, id, owner)
	return scanExpense(row)
}

func (s *SQLiteStore) DeleteIncome(ctx context.Context, owner string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM income_entries WHERE id = ? AND envelope_id IN (SELECT id FROM envelopes WHERE owner = ?)`,
		id, owner)
	if err != nil {
		return core.StorageError("delete income", err)
	}
	return affectedOrNotFound(res, "delete income")
}

func (s *SQLiteStore) DeleteExpense(ctx context.Context, owner string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM expense_entries WHERE id = ? AND envelope_id IN (SELECT id FROM envelopes WHERE owner = ?)`,
		id, owner)
	if err != nil {
		return core.StorageError("delete expense", err)
	}
	return affectedOrNotFound(res, "delete expense")
}

func (s *SQLiteStore) ListIncome(ctx context.Context, owner string, envelopeID int64) ([]core.IncomeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.id, i.envelope_id, i.label, i.amount_cents, i.entry_date
		 FROM income_entries i JOIN envelopes e ON e.id = i.envelope_id
		 WHERE i.envelope_id = ? AND e.owner = ? ORDER BY i.id DESC`, envelopeID, owner)
	if err != nil {
		return nil, core.StorageError("list income", err)
	}
	defer rows.Close()

	var out []core.IncomeEntry
	for rows.Next() {
		in, err := scanIncome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageError("list income", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListExpense(ctx context.Context, owner string, envelopeID int64) ([]core.ExpenseEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT x.id, x.envelope_id, x.label, x.amount_cents, x.entry_date
		 FROM expense_entries x JOIN envelopes e ON e.id = x.envelope_id
		 WHERE x.envelope_id = ? AND e.owner = ? ORDER BY x.id DESC`, envelopeID, owner)
	if err != nil {
		return nil, core.StorageError("list expense", err)
	}
	defer rows.Close()

	var out []core.ExpenseEntry
	for rows.Next() {
		ex, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageError("list expense", err)
	}
	return out, nil
}

func (s *SQLiteStore) SumIncome(ctx context.Context, owner string, envelopeID int64) (core.Money, error) {
	return s.sumEntries(ctx, "income_entries", owner, envelopeID)
}

func (s *SQLiteStore) SumExpense(ctx context.Context, owner string, envelopeID int64) (core.Money, error) {
	return s.sumEntries(ctx, "expense_entries", owner, envelopeID)
}

func (s *SQLiteStore) sumEntries(ctx context.Context, table, owner string, envelopeID int64) (core.Money, error) {
	// COALESCE keeps the no-entries case at zero cents instead of NULL.
	q := fmt.Sprintf(
		`SELECT COALESCE(SUM(t.amount_cents), 0)
		 FROM %s t JOIN envelopes e ON e.id = t.envelope_id
		 WHERE t.envelope_id = ? AND e.owner = ?`, table)

	var cents int64
	if err := s.db.QueryRowContext(ctx, q, envelopeID, owner).Scan(&cents); err != nil {
		return core.Money{}, core.StorageError("sum "+table, err)
	}
	return core.Money{Cents: cents}, nil
}

func (s *SQLiteStore) FeedIncome(ctx context.Context, owner string, envelopeID int64) ([]core.TransactionView, error) {
	return s.feedRows(ctx, "income_entries", core.KindIncome, owner, envelopeID)
}

func (s *SQLiteStore) FeedExpense(ctx context.Context, owner string, envelopeID int64) ([]core.TransactionView, error) {
	return s.feedRows(ctx, "expense_entries", core.KindExpense, owner, envelopeID)
}

func (s *SQLiteStore) feedRows(ctx context.Context, table string, kind core.Kind, owner string, envelopeID int64) ([]core.TransactionView, error) {
	q := fmt.Sprintf(
		`SELECT t.id, t.label, t.amount_cents, t.entry_date, e.id, e.name, e.icon
		 FROM %s t JOIN envelopes e ON e.id = t.envelope_id
		 WHERE e.owner = ?`, table)
	args := []any{owner}
	if envelopeID != 0 {
		q += ` AND e.id = ?`
		args = append(args, envelopeID)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, core.StorageError("feed "+table, err)
	}
	defer rows.Close()

	var out []core.TransactionView
	for rows.Next() {
		var (
			v       core.TransactionView
			rawDate string
		)
		if err := rows.Scan(&v.ID, &v.Label, &v.Amount.Cents, &rawDate, &v.EnvelopeID, &v.EnvelopeName, &v.EnvelopeIcon); err != nil {
			return nil, core.StorageError("scan feed row", err)
		}
		v.Kind = kind
		if v.Date, err = core.ParseDate(rawDate); err != nil {
			return nil, core.StorageError("parse feed date", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageError("feed "+table, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncome(row rowScanner) (core.IncomeEntry, error) {
	var (
		in      core.IncomeEntry
		rawDate string
	)
	err := row.Scan(&in.ID, &in.EnvelopeID, &in.Label, &in.Amount.Cents, &rawDate)
	if errors.Is(err, sql.ErrNoRows) {
		return core.IncomeEntry{}, core.ErrNotFound
	}
	if err != nil {
		return core.IncomeEntry{}, core.StorageError("scan income", err)
	}
	if in.Date, err = core.ParseDate(rawDate); err != nil {
		return core.IncomeEntry{}, core.StorageError("parse income date", err)
	}
	return in, nil
}

func scanExpense(row rowScanner) (core.ExpenseEntry, error) {
	var (
		ex      core.ExpenseEntry
		rawDate string
	)
	err := row.Scan(&ex.ID, &ex.EnvelopeID, &ex.Label, &ex.Amount.Cents, &rawDate)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseEntry{}, core.ErrNotFound
	}
	if err != nil {
		return core.ExpenseEntry{}, core.StorageError("scan expense", err)
	}
	if ex.Date, err = core.ParseDate(rawDate); err != nil {
		return core.ExpenseEntry{}, core.StorageError("parse expense date", err)
	}
	return ex, nil
}

func affectedOrNotFound(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return core.StorageError(op, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
