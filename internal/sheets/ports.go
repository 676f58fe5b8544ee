// Package sheets mirrors stored expenses into a spreadsheet.
package sheets

import (
	"context"
	"strconv"
	"strings"
	"time"

	"expensetracker/internal/core"
)

// ExpenseMirror appends one expense row and returns a reference to it.
type ExpenseMirror interface {
	AppendExpense(ctx context.Context, e core.Expense, username string) (rowRef string, err error)
}

// Header names the columns written by ExpenseRow.
var Header = []string{"Date", "Month", "User", "Category", "Description", "Amount", "ID"}

// ExpenseRow renders an expense in Header order. User-supplied text is escaped
// so the sheet never evaluates it as a formula.
func ExpenseRow(e core.Expense, username string) []any {
	return []any{
		e.CreatedAt.UTC().Format(time.DateOnly),
		string(e.YearMonth),
		escapeText(username),
		string(e.Category),
		escapeText(e.Description),
		strconv.FormatFloat(e.Amount.Amount(), 'f', 2, 64),
		e.ID,
	}
}

// escapeText marks values that start like a formula as plain text.
func escapeText(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
