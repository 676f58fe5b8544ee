// Package storage is the SQLite implementation of store.Store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"expensetracker/internal/core"
	"expensetracker/internal/store"
)

type SQLiteRepository struct {
	db            *sql.DB
	schemaVersion uint
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := upgradeSchema(dsn)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db, schemaVersion: version}, nil
}

// SchemaVersion is the migration version the database was opened at.
func (r *SQLiteRepository) SchemaVersion() uint { return r.schemaVersion }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, is_admin, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.IsAdmin, formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, store.ErrUsernameTaken
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	u.MonthlyExpenses = make(map[core.YearMonth][]string)
	return u, nil
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (core.User, error) {
	return r.loadUser(ctx, `SELECT id, username, password_hash, is_admin, created_at FROM users WHERE id = ?`, id)
}

func (r *SQLiteRepository) UserByName(ctx context.Context, username string) (core.User, error) {
	return r.loadUser(ctx, `SELECT id, username, password_hash, is_admin, created_at FROM users WHERE username = ?`, username)
}

func (r *SQLiteRepository) loadUser(ctx context.Context, query string, arg string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, store.ErrNotFound
		}
		return core.User{}, fmt.Errorf("load user: %w", err)
	}
	idx, err := r.monthlyIndex(ctx, u.ID)
	if err != nil {
		return core.User{}, err
	}
	u.MonthlyExpenses = idx
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, password_hash, is_admin, created_at FROM users ORDER BY created_at, username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	for i := range users {
		idx, err := r.monthlyIndex(ctx, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].MonthlyExpenses = idx
	}
	return users, nil
}

// monthlyIndex rebuilds the yearMonth -> ids map from the expenses table.
func (r *SQLiteRepository) monthlyIndex(ctx context.Context, userID string) (map[core.YearMonth][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT year_month, id FROM expenses WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("load monthly index: %w", err)
	}
	defer rows.Close()

	idx := make(map[core.YearMonth][]string)
	for rows.Next() {
		var ym, id string
		if err := rows.Scan(&ym, &id); err != nil {
			return nil, fmt.Errorf("scan monthly index: %w", err)
		}
		idx[core.YearMonth(ym)] = append(idx[core.YearMonth(ym)], id)
	}
	return idx, rows.Err()
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if _, err := r.userRow(ctx, e.UserID); err != nil {
		return core.Expense{}, err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, user_id, year_month, category, description, amount_cents, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, string(e.YearMonth), string(e.Category), e.Description, e.Amount.Cents, formatTime(e.CreatedAt))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return e, nil
}

// userRow loads the user without rebuilding the monthly index.
func (r *SQLiteRepository) userRow(ctx context.Context, id string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, is_admin, created_at FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, store.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

const expenseColumns = `id, user_id, year_month, category, description, amount_cents, created_at`

func (r *SQLiteRepository) ExpenseByID(ctx context.Context, id string) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, store.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("load expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) ExpensesForMonth(ctx context.Context, userID string, ym core.YearMonth) ([]core.Expense, error) {
	if _, err := r.userRow(ctx, userID); err != nil {
		return nil, err
	}
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? AND year_month = ? ORDER BY seq`,
		userID, string(ym))
}

func (r *SQLiteRepository) ExpensesForUser(ctx context.Context, userID string) ([]core.Expense, error) {
	if _, err := r.userRow(ctx, userID); err != nil {
		return nil, err
	}
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? ORDER BY seq`, userID)
}

func (r *SQLiteRepository) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ClearUserExpenses(ctx context.Context, userID string) error {
	if _, err := r.userRow(ctx, userID); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (core.User, error) {
	var (
		u       core.User
		created string
	)
	if err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &created); err != nil {
		return core.User{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return core.User{}, err
	}
	u.CreatedAt = t
	return u, nil
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                     core.Expense
		ym, category, created string
	)
	if err := s.Scan(&e.ID, &e.UserID, &ym, &category, &e.Description, &e.Amount.Cents, &created); err != nil {
		return core.Expense{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return core.Expense{}, err
	}
	e.YearMonth = core.YearMonth(ym)
	e.Category = core.Category(category)
	e.CreatedAt = t
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
