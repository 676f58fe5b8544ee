// Package memory records mirrored rows in process, for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"expensetracker/internal/core"
	"expensetracker/internal/sheets"
)

type Mirror struct {
	mu   sync.Mutex
	rows [][]any
}

var _ sheets.ExpenseMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) AppendExpense(_ context.Context, e core.Expense, username string) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, sheets.ExpenseRow(e, username))
	return fmt.Sprintf("mem:%d", len(m.rows)), nil
}

// Rows returns a copy of the appended rows.
func (m *Mirror) Rows() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]any, len(m.rows))
	copy(out, m.rows)
	return out
}
