package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
	"expensetracker/internal/store"
)

func newExpense(userID string, ym core.YearMonth, c core.Category, cents int64, at time.Time) core.Expense {
	return core.Expense{UserID: userID, Category: c, Amount: core.Money{Cents: cents}, YearMonth: ym, CreatedAt: at}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := New()

	u, err := s.CreateUser(ctx, core.User{Username: "alice", PasswordHash: "h"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NotNil(t, u.MonthlyExpenses)

	_, err = s.CreateUser(ctx, core.User{Username: "alice"})
	assert.ErrorIs(t, err, store.ErrUsernameTaken)

	byName, err := s.UserByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	_, err = s.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestExpensesIndexAndClear(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, err := s.CreateUser(ctx, core.User{Username: "bob"})
	require.NoError(t, err)

	now := time.Now()
	first, err := s.CreateExpense(ctx, newExpense(u.ID, "2024-05", core.Rent, 1000, now))
	require.NoError(t, err)
	second, err := s.CreateExpense(ctx, newExpense(u.ID, "2024-05", core.Gas, 200, now.Add(time.Second)))
	require.NoError(t, err)
	_, err = s.CreateExpense(ctx, newExpense(u.ID, "2024-06", core.Car, 300, now.Add(2*time.Second)))
	require.NoError(t, err)

	reloaded, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, reloaded.MonthlyExpenses["2024-05"])

	may, err := s.ExpensesForMonth(ctx, u.ID, "2024-05")
	require.NoError(t, err)
	require.Len(t, may, 2)
	assert.Equal(t, first.ID, may[0].ID)

	all, err := s.ExpensesForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := s.ExpenseByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Gas, got.Category)

	require.NoError(t, s.ClearUserExpenses(ctx, u.ID))
	all, err = s.ExpensesForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
	reloaded, err = s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.MonthlyExpenses)
}

func TestCreateExpenseRejects(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.CreateExpense(ctx, newExpense("nobody", "2024-05", core.Rent, 1, time.Now()))
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.CreateExpense(ctx, newExpense("u", "2024-05", "Bogus", 1, time.Now()))
	assert.ErrorIs(t, err, core.ErrInvalidCategory)
}

func TestReturnedUsersAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, err := s.CreateUser(ctx, core.User{Username: "carol"})
	require.NoError(t, err)
	u.MonthlyExpenses["2024-01"] = []string{"x"}

	again, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, again.MonthlyExpenses)
}

func TestExpensesForUserKeepsInsertionOrderOnTies(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, err := s.CreateUser(ctx, core.User{Username: "dora"})
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var want []string
	for i := 0; i < 20; i++ {
		e, err := s.CreateExpense(ctx, newExpense(u.ID, "2024-05", core.Gas, int64(i), at))
		require.NoError(t, err)
		want = append(want, e.ID)
	}

	all, err := s.ExpensesForUser(ctx, u.ID)
	require.NoError(t, err)
	got := make([]string, 0, len(all))
	for _, e := range all {
		got = append(got, e.ID)
	}
	assert.Equal(t, want, got)
}
