package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/store"
)

// Publisher announces stored expenses to other processes.
type Publisher interface {
	PublishExpenseCreated(ctx context.Context, e core.Expense) error
}

// ExpenseService orchestrates expense storage, summary caching and event publishing.
type ExpenseService struct {
	store     store.ExpenseStore
	summaries *cache.SummaryCache
	publisher Publisher
	now       func() time.Time
}

// ExpenseOption customizes an ExpenseService.
type ExpenseOption func(*ExpenseService)

// WithClock sets the clock that picks the month new expenses are filed under.
func WithClock(now func() time.Time) ExpenseOption {
	return func(s *ExpenseService) { s.now = now }
}

// NewExpenseService accepts a nil cache or publisher; both features are then skipped.
func NewExpenseService(st store.ExpenseStore, summaries *cache.SummaryCache, publisher Publisher, opts ...ExpenseOption) *ExpenseService {
	s := &ExpenseService{
		store:     st,
		summaries: summaries,
		publisher: publisher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores the expense in the current month and publishes it best-effort.
func (s *ExpenseService) Create(ctx context.Context, userID string, in core.NewExpense) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("%w: %v", core.ErrInvalidExpenseInput, err)
	}

	now := s.now()
	e, err := s.store.CreateExpense(ctx, core.Expense{
		UserID:      userID,
		Category:    in.Category,
		Description: in.Description,
		Amount:      in.Amount,
		YearMonth:   core.YearMonthOf(now),
		CreatedAt:   now.UTC(),
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	if s.summaries != nil {
		s.summaries.Invalidate(userID, e.YearMonth)
	}
	metrics.RecordExpenseCreated(string(e.Category))
	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogExpenseCreated(ctx, userID, e.ID, string(e.YearMonth), string(e.Category), e.Amount.Cents)

	if err := s.publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense created message",
			"expense_id", e.ID, "error", err)
	}

	return e, nil
}

func (s *ExpenseService) publish(ctx context.Context, e core.Expense) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping expense message")
		return nil
	}
	err := s.publisher.PublishExpenseCreated(ctx, e)
	metrics.RecordPublish(err == nil)
	return err
}

// MonthSummary returns the categorized summary of ym, served from cache when fresh.
func (s *ExpenseService) MonthSummary(ctx context.Context, userID string, ym core.YearMonth) (core.MonthSummary, error) {
	var gen uint64
	if s.summaries != nil {
		if cached, ok := s.summaries.Get(userID, ym); ok {
			metrics.RecordSummaryLookup(true)
			return cached, nil
		}
		metrics.RecordSummaryLookup(false)
		gen = s.summaries.Generation(userID)
	}

	expenses, err := s.store.ExpensesForMonth(ctx, userID, ym)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("load month expenses: %w", err)
	}
	summary := core.SummarizeMonth(ym, expenses)

	if s.summaries != nil {
		s.summaries.SetIfCurrent(userID, summary, gen)
	}
	return summary, nil
}

func (s *ExpenseService) ListForUser(ctx context.Context, userID string) ([]core.Expense, error) {
	expenses, err := s.store.ExpensesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// ResetUser deletes every expense of the user and drops their cached summaries.
func (s *ExpenseService) ResetUser(ctx context.Context, userID string) error {
	if err := s.store.ClearUserExpenses(ctx, userID); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	if s.summaries != nil {
		s.summaries.InvalidateUser(userID)
	}
	return nil
}

