package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"envelopes/internal/core"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store on Postgres. It carries the same contract
// as SQLiteStore; the cascade additionally takes a row lock on the envelope
// so concurrent engine processes sharing one database cannot interleave a
// delete with entry writes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(url string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunPostgresMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *PostgresStore) CreateEnvelope(ctx context.Context, e core.Envelope) (core.Envelope, error) {
	if err := e.Validate(); err != nil {
		return core.Envelope{}, err
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO envelopes (owner, name, icon, allocation_cents)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		e.Owner, e.Name, e.Icon, e.Allocation.Cents).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return core.Envelope{}, core.StorageError("create envelope", err)
	}
	return e, nil
}

func (s *PostgresStore) GetEnvelope(ctx context.Context, owner string, id int64) (core.Envelope, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner, name, icon, allocation_cents, created_at FROM envelopes WHERE id = $1 AND owner = $2`,
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

func (s *PostgresStore) ListEnvelopes(ctx context.Context, owner string) ([]core.Envelope, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, name, icon, allocation_cents, created_at FROM envelopes WHERE owner = $1 ORDER BY id DESC`,
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

func (s *PostgresStore) UpdateEnvelope(ctx context.Context, e core.Envelope) (core.Envelope, error) {
	if err := e.Validate(); err != nil {
		return core.Envelope{}, err
	}

	row := s.db.QueryRowContext(ctx,
		`UPDATE envelopes SET name = $1, icon = $2, allocation_cents = $3
		 WHERE id = $4 AND owner = $5
		 RETURNING id, owner, name, icon, allocation_cents, created_at`,
		e.Name, e.Icon, e.Allocation.Cents, e.ID, e.Owner)

	var out core.Envelope
	err := row.Scan(&out.ID, &out.Owner, &out.Name, &out.Icon, &out.Allocation.Cents, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Envelope{}, core.ErrNotFound
	}
	if err != nil {
		return core.Envelope{}, core.StorageError("update envelope", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteEnvelope(ctx context.Context, owner string, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.StorageError("begin delete envelope", err)
	}
	defer tx.Rollback()

	// Row lock keeps concurrent entry writes out of the cascade.
	var locked int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM envelopes WHERE id = $1 AND owner = $2 FOR UPDATE`, id, owner).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return core.StorageError("lock envelope", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM income_entries WHERE envelope_id = $1`, id); err != nil {
		return core.StorageError("delete envelope income", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_entries WHERE envelope_id = $1`, id); err != nil {
		return core.StorageError("delete envelope expenses", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM envelopes WHERE id = $1`, id); err != nil {
		return core.StorageError("delete envelope", err)
	}

	if err := tx.Commit(); err != nil {
		return core.StorageError("commit delete envelope", err)
	}
	return nil
}

func (s *PostgresStore) CreateIncome(ctx context.Context, in core.IncomeEntry) (core.IncomeEntry, error) {
	if err := in.Validate(); err != nil {
		return core.IncomeEntry{}, err
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO income_entries (envelope_id, label, amount_cents, entry_date)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		in.EnvelopeID, in.Label, in.Amount.Cents, in.Date.String()).Scan(&in.ID)
	if err != nil {
		return core.IncomeEntry{}, core.StorageError("create income", err)
	}
	return in, nil
}

func (s *PostgresStore) CreateExpense(ctx context.Context, ex core.ExpenseEntry) (core.ExpenseEntry, error) {
	if err := ex.Validate(); err != nil {
		return core.ExpenseEntry{}, err
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO expense_entries (envelope_id, label, amount_cents, entry_date)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		ex.EnvelopeID, ex.Label, ex.Amount.Cents, ex.Date.String()).Scan(&ex.ID)
	if err != nil {
		return core.ExpenseEntry{}, core.StorageError("create expense", err)
	}
	return ex, nil
}

func (s *PostgresStore) GetIncome(ctx context.Context, owner string, id int64) (core.IncomeEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT i.id, i.envelope_id, i.label, i.amount_cents, i.entry_date
		 FROM income_entries i JOIN envelopes e ON e.id = i.envelope_id
		 WHERE i.id = $1 AND e.owner = $2`, id, owner)
	return scanIncome(row)
}

func (s *PostgresStore) GetExpense(ctx context.Context, owner string, id int64) (core.ExpenseEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT x.id, x.envelope_id, x.label, x.amount_cents, x.entry_date
		 FROM expense_entries x JOIN envelopes e ON e.id = x.envelope_id
		 WHERE x.id = $1 AND e.owner = $2`, id, owner)
	return scanExpense(row)
}

func (s *PostgresStore) DeleteIncome(ctx context.Context, owner string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM income_entries WHERE id = $1 AND envelope_id IN (SELECT id FROM envelopes WHERE owner = $2)`,
		id, owner)
	if err != nil {
		return core.StorageError("delete income", err)
	}
	return affectedOrNotFound(res, "delete income")
}

func (s *PostgresStore) DeleteExpense(ctx context.Context, owner string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM expense_entries WHERE id = $1 AND envelope_id IN (SELECT id FROM envelopes WHERE owner = $2)`,
		id, owner)
	if err != nil {
		return core.StorageError("delete expense", err)
	}
	return affectedOrNotFound(res, "delete expense")
}

func (s *PostgresStore) ListIncome(ctx context.Context, owner string, envelopeID int64) ([]core.IncomeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.id, i.envelope_id, i.label, i.amount_cents, i.entry_date
		 FROM income_entries i JOIN envelopes e ON e.id = i.envelope_id
		 WHERE i.envelope_id = $1 AND e.owner = $2 ORDER BY i.id DESC`, envelopeID, owner)
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

func (s *PostgresStore) ListExpense(ctx context.Context, owner string, envelopeID int64) ([]core.ExpenseEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT x.id, x.envelope_id, x.label, x.amount_cents, x.entry_date
		 FROM expense_entries x JOIN envelopes e ON e.id = x.envelope_id
		 WHERE x.envelope_id = $1 AND e.owner = $2 ORDER BY x.id DESC`, envelopeID, owner)
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

func (s *PostgresStore) SumIncome(ctx context.Context, owner string, envelopeID int64) (core.Money, error) {
	return s.sumEntries(ctx, "income_entries", owner, envelopeID)
}

func (s *PostgresStore) SumExpense(ctx context.Context, owner string, envelopeID int64) (core.Money, error) {
	return s.sumEntries(ctx, "expense_entries", owner, envelopeID)
}

func (s *PostgresStore) sumEntries(ctx context.Context, table, owner string, envelopeID int64) (core.Money, error) {
	q := fmt.Sprintf(
		`SELECT COALESCE(SUM(t.amount_cents), 0)
		 FROM %s t JOIN envelopes e ON e.id = t.envelope_id
		 WHERE t.envelope_id = $1 AND e.owner = $2`, table)

	var cents int64
	if err := s.db.QueryRowContext(ctx, q, envelopeID, owner).Scan(&cents); err != nil {
		return core.Money{}, core.StorageError("sum "+table, err)
	}
	return core.Money{Cents: cents}, nil
}

func (s *PostgresStore) FeedIncome(ctx context.Context, owner string, envelopeID int64) ([]core.TransactionView, error) {
	return s.feedRows(ctx, "income_entries", core.KindIncome, owner, envelopeID)
}

func (s *PostgresStore) FeedExpense(ctx context.Context, owner string, envelopeID int64) ([]core.TransactionView, error) {
	return s.feedRows(ctx, "expense_entries", core.KindExpense, owner, envelopeID)
}

func (s *PostgresStore) feedRows(ctx context.Context, table string, kind core.Kind, owner string, envelopeID int64) ([]core.TransactionView, error) {
	q := fmt.Sprintf(
		`SELECT t.id, t.label, t.amount_cents, t.entry_date, e.id, e.name, e.icon
		 FROM %s t JOIN envelopes e ON e.id = t.envelope_id
		 WHERE e.owner = $1`, table)
	args := []any{owner}
	if envelopeID != 0 {
		q += ` AND e.id = $2`
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
