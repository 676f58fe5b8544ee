// Package store defines the persistence ports shared by every data backend.
package store

import (
	"context"
	"errors"

	"expensetracker/internal/core"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username must be unique")
)

type UserStore interface {
	// CreateUser assigns an id when u.ID is empty and returns the stored user.
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	UserByID(ctx context.Context, id string) (core.User, error)
	UserByName(ctx context.Context, username string) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)
}

type ExpenseStore interface {
	// CreateExpense persists e and appends its id to the owner's monthly index.
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	ExpenseByID(ctx context.Context, id string) (core.Expense, error)
	// ExpensesForMonth returns the user's expenses for ym in index order.
	ExpensesForMonth(ctx context.Context, userID string, ym core.YearMonth) ([]core.Expense, error)
	ExpensesForUser(ctx context.Context, userID string) ([]core.Expense, error)
	// ClearUserExpenses deletes every expense of the user and empties the index.
	ClearUserExpenses(ctx context.Context, userID string) error
}

type Store interface {
	UserStore
	ExpenseStore
	Ping(ctx context.Context) error
	Close() error
}
