// Package memory is an in-process Store used for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"expensetracker/internal/core"
	"expensetracker/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]core.User
	byName   map[string]string
	expenses map[string]core.Expense
	seq      map[string]uint64 // insertion order of expenses
	next     uint64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[string]core.User),
		byName:   make(map[string]string),
		expenses: make(map[string]core.Expense),
		seq:      make(map[string]uint64),
	}
}

func (s *Store) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byName[u.Username]; taken {
		return core.User{}, store.ErrUsernameTaken
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, exists := s.users[u.ID]; exists {
		return core.User{}, fmt.Errorf("user id %s already exists", u.ID)
	}
	u.MonthlyExpenses = copyIndex(u.MonthlyExpenses)
	s.users[u.ID] = u
	s.byName[u.Username] = u.ID
	return cloneUser(u), nil
}

func (s *Store) UserByID(ctx context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) UserByName(ctx context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[e.UserID]
	if !ok {
		return core.Expense{}, store.ErrNotFound
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if u.MonthlyExpenses == nil {
		u.MonthlyExpenses = make(map[core.YearMonth][]string)
	}
	u.MonthlyExpenses[e.YearMonth] = append(u.MonthlyExpenses[e.YearMonth], e.ID)
	s.users[u.ID] = u
	if _, exists := s.expenses[e.ID]; !exists {
		s.next++
		s.seq[e.ID] = s.next
	}
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) ExpenseByID(ctx context.Context, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, store.ErrNotFound
	}
	return e, nil
}

func (s *Store) ExpensesForMonth(ctx context.Context, userID string, ym core.YearMonth) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	ids := u.ExpenseIDs(ym)
	out := make([]core.Expense, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.expenses[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ExpensesForUser(ctx context.Context, userID string) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[userID]; !ok {
		return nil, store.ErrNotFound
	}
	out := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})
	return out, nil
}

func (s *Store) ClearUserExpenses(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	for id, e := range s.expenses {
		if e.UserID == userID {
			delete(s.expenses, id)
			delete(s.seq, id)
		}
	}
	u.MonthlyExpenses = make(map[core.YearMonth][]string)
	s.users[userID] = u
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func cloneUser(u core.User) core.User {
	u.MonthlyExpenses = copyIndex(u.MonthlyExpenses)
	return u
}

func copyIndex(in map[core.YearMonth][]string) map[core.YearMonth][]string {
	out := make(map[core.YearMonth][]string, len(in))
	for ym, ids := range in {
		out[ym] = append([]string(nil), ids...)
	}
	return out
}
