package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/store/memory"
)

type fakePublisher struct {
	published []core.Expense
	err       error
}

func (f *fakePublisher) PublishExpenseCreated(_ context.Context, e core.Expense) error {
	f.published = append(f.published, e)
	return f.err
}

func newExpenseFixture(t *testing.T) (*ExpenseService, *memory.Store, *fakePublisher, string) {
	t.Helper()
	st := memory.New()
	u, err := st.CreateUser(context.Background(), core.User{Username: "alice"})
	require.NoError(t, err)
	pub := &fakePublisher{}
	svc := NewExpenseService(st, cache.NewSummaryCache(32, time.Minute), pub)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	return svc, st, pub, u.ID
}

func TestExpenseService_Create(t *testing.T) {
	svc, st, pub, userID := newExpenseFixture(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, userID, core.NewExpense{Category: core.Groceries, Description: "milk", Amount: core.Money{Cents: 199}})
	require.NoError(t, err)
	assert.Equal(t, core.YearMonth("2024-03"), e.YearMonth)
	assert.NotEmpty(t, e.ID)
	require.Len(t, pub.published, 1)
	assert.Equal(t, e.ID, pub.published[0].ID)

	u, err := st.UserByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, u.MonthlyExpenses["2024-03"])
}

func TestExpenseService_CreateSurvivesPublishFailure(t *testing.T) {
	svc, _, pub, userID := newExpenseFixture(t)
	pub.err = errors.New("broker down")

	_, err := svc.Create(context.Background(), userID, core.NewExpense{Category: core.Rent, Amount: core.Money{Cents: 1}})
	assert.NoError(t, err)
}

func TestExpenseService_CreateWithoutPublisher(t *testing.T) {
	st := memory.New()
	u, err := st.CreateUser(context.Background(), core.User{Username: "bob"})
	require.NoError(t, err)
	svc := NewExpenseService(st, nil, nil)

	_, err = svc.Create(context.Background(), u.ID, core.NewExpense{Category: core.Car, Amount: core.Money{Cents: 5}})
	assert.NoError(t, err)
}

func TestExpenseService_CreateRejectsInvalid(t *testing.T) {
	svc, _, pub, userID := newExpenseFixture(t)

	_, err := svc.Create(context.Background(), userID, core.NewExpense{Category: "Food", Amount: core.Money{Cents: 1}})
	assert.ErrorIs(t, err, core.ErrInvalidExpenseInput)
	assert.Empty(t, pub.published)
}

func TestExpenseService_MonthSummaryCachesAndInvalidates(t *testing.T) {
	svc, _, _, userID := newExpenseFixture(t)
	ctx := context.Background()

	empty, err := svc.MonthSummary(ctx, userID, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Total.Cents)
	assert.Len(t, empty.Data, len(core.Categories()))

	_, err = svc.Create(ctx, userID, core.NewExpense{Category: core.Travel, Amount: core.Money{Cents: 4200}})
	require.NoError(t, err)

	summary, err := svc.MonthSummary(ctx, userID, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, int64(4200), summary.Total.Cents)
	assert.Equal(t, core.Travel, summary.Data[0].Category)

	cached, ok := svc.summaries.Get(userID, "2024-03")
	require.True(t, ok)
	assert.Equal(t, summary.Total, cached.Total)
}

func TestExpenseService_ResetUser(t *testing.T) {
	svc, _, _, userID := newExpenseFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, userID, core.NewExpense{Category: core.Baby, Amount: core.Money{Cents: 300}})
	require.NoError(t, err)
	_, err = svc.MonthSummary(ctx, userID, "2024-03")
	require.NoError(t, err)

	require.NoError(t, svc.ResetUser(ctx, userID))

	all, err := svc.ListForUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, all)
	summary, err := svc.MonthSummary(ctx, userID, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Total.Cents)
}

// slowMonthStore parks ExpensesForMonth after the load until release is closed.
type slowMonthStore struct {
	*memory.Store
	loaded  chan struct{}
	release chan struct{}
}

func (s *slowMonthStore) ExpensesForMonth(ctx context.Context, userID string, ym core.YearMonth) ([]core.Expense, error) {
	out, err := s.Store.ExpensesForMonth(ctx, userID, ym)
	if s.loaded != nil {
		close(s.loaded)
		<-s.release
		s.loaded = nil
	}
	return out, err
}

func TestExpenseService_MonthSummaryDropsStaleResult(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	u, err := mem.CreateUser(ctx, core.User{Username: "carol"})
	require.NoError(t, err)
	st := &slowMonthStore{Store: mem, loaded: make(chan struct{}), release: make(chan struct{})}
	svc := NewExpenseService(st, cache.NewSummaryCache(32, time.Minute), nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	loaded := st.loaded

	done := make(chan core.MonthSummary)
	go func() {
		s, err := svc.MonthSummary(ctx, u.ID, "2024-03")
		assert.NoError(t, err)
		done <- s
	}()

	<-loaded
	_, err = svc.Create(ctx, u.ID, core.NewExpense{Category: core.Rent, Amount: core.Money{Cents: 1000}})
	require.NoError(t, err)
	close(st.release)
	assert.Equal(t, int64(0), (<-done).Total.Cents)

	summary, err := svc.MonthSummary(ctx, u.ID, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), summary.Total.Cents)
}
