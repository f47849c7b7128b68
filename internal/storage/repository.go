package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gestion/internal/core"

	_ "modernc.org/sqlite"
)

// Session owns the database handle. Each store operation acquires its own
// connection from the pool and releases it before returning.
type Session struct {
	db *sql.DB
}

// NewSession opens (or creates) the database at dbPath and migrates it.
func NewSession(dbPath string) (*Session, error) {
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

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Session{db: db}, nil
}

func (s *Session) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Session) Ping(ctx context.Context) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		return conn.PingContext(ctx)
	})
}

func (s *Session) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()
	return fn(conn)
}

// ListAll implements records.Lister
func (s *Session) ListAll(ctx context.Context, kind core.Kind) ([]core.Record, error) {
	var out []core.Record
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		switch kind {
		case core.KindExpense:
			recs, err := listExpenses(ctx, conn)
			out = recs
			return err
		case core.KindProvision:
			recs, err := listProvisions(ctx, conn)
			out = recs
			return err
		}
		return core.ErrInvalidKind
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return out, nil
}

func listExpenses(ctx context.Context, conn *sql.Conn) ([]core.Record, error) {
	rows, err := conn.QueryContext(ctx, `SELECT id, date, product_name, price, photo FROM expenses`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		var (
			id, date, name, price string
			photo                 []byte
		)
		if err := rows.Scan(&id, &date, &name, &price, &photo); err != nil {
			return nil, err
		}
		out = append(out, core.ExpenseRecord(core.Expense{
			ID:          id,
			Date:        core.DateOrZero(date),
			ProductName: name,
			Price:       core.ParseStoredAmount(price),
			Photo:       photo,
		}))
	}
	return out, rows.Err()
}

func listProvisions(ctx context.Context, conn *sql.Conn) ([]core.Record, error) {
	rows, err := conn.QueryContext(ctx, `SELECT id, date, amount FROM provisions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		var id, date, amount string
		if err := rows.Scan(&id, &date, &amount); err != nil {
			return nil, err
		}
		out = append(out, core.ProvisionRecord(core.Provision{
			ID:     id,
			Date:   core.DateOrZero(date),
			Amount: core.ParseStoredAmount(amount),
		}))
	}
	return out, rows.Err()
}

// Upsert implements records.Upserter
func (s *Session) Upsert(ctx context.Context, r core.Record) error {
	if r.ID() == "" {
		return core.ErrEmptyID
	}
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		switch {
		case r.Kind == core.KindExpense && r.Expense != nil:
			e := r.Expense
			_, err := conn.ExecContext(ctx, `
				INSERT INTO expenses (id, date, product_name, price, photo, updated_at)
				VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(id) DO UPDATE SET
					date = excluded.date,
					product_name = excluded.product_name,
					price = excluded.price,
					photo = excluded.photo,
					updated_at = CURRENT_TIMESTAMP`,
				e.ID, e.Date.String(), e.ProductName, e.Price.String(), nullableBlob(e.Photo))
			return err
		case r.Kind == core.KindProvision && r.Provision != nil:
			p := r.Provision
			_, err := conn.ExecContext(ctx, `
				INSERT INTO provisions (id, date, amount, updated_at)
				VALUES (?, ?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(id) DO UPDATE SET
					date = excluded.date,
					amount = excluded.amount,
					updated_at = CURRENT_TIMESTAMP`,
				p.ID, p.Date.String(), p.Amount.String())
			return err
		}
		return core.ErrInvalidKind
	})
	if err != nil {
		return fmt.Errorf("upsert %s %s: %w", r.Kind, r.ID(), err)
	}

	slog.DebugContext(ctx, "Record saved to SQLite", "kind", r.Kind, "id", r.ID())
	return nil
}

// Delete implements records.Deleter
func (s *Session) Delete(ctx context.Context, kind core.Kind, id string) error {
	var table string
	switch kind {
	case core.KindExpense:
		table = "expenses"
	case core.KindProvision:
		table = "provisions"
	default:
		return fmt.Errorf("delete %s %s: %w", kind, id, core.ErrInvalidKind)
	}

	err := s.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}

	slog.DebugContext(ctx, "Record deleted from SQLite", "kind", kind, "id", id)
	return nil
}

func nullableBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
