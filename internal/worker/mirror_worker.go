// Package worker mirrors created expenses into an external sheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/metrics"
	"expensetracker/internal/sheets"
	"expensetracker/internal/store"
)

// Source is the read side of the shared store the API writes to.
type Source interface {
	ExpenseByID(ctx context.Context, id string) (core.Expense, error)
	UserByID(ctx context.Context, id string) (core.User, error)
}

// MirrorWorker appends each announced expense to the sheet.
type MirrorWorker struct {
	source Source
	mirror sheets.ExpenseMirror
}

func NewMirrorWorker(source Source, mirror sheets.ExpenseMirror) *MirrorWorker {
	return &MirrorWorker{source: source, mirror: mirror}
}

// HandleExpenseCreated is an amqp.Handler. Expenses deleted before the message
// arrives (guest resets) are skipped so the message is acked.
func (w *MirrorWorker) HandleExpenseCreated(ctx context.Context, msg *amqp.ExpenseCreatedMessage) error {
	slog.InfoContext(ctx, "Processing expense created message",
		"expense_id", msg.ExpenseID,
		"user_id", msg.UserID)

	e, err := w.source.ExpenseByID(ctx, msg.ExpenseID)
	if errors.Is(err, store.ErrNotFound) {
		slog.WarnContext(ctx, "Expense no longer exists, skipping mirror", "expense_id", msg.ExpenseID)
		return nil
	}
	if err != nil {
		metrics.RecordMirror(false)
		return fmt.Errorf("load expense: %w", err)
	}

	username := e.UserID
	u, err := w.source.UserByID(ctx, e.UserID)
	switch {
	case err == nil:
		username = u.Username
	case errors.Is(err, store.ErrNotFound):
		slog.WarnContext(ctx, "Expense owner missing, mirroring with user id", "user_id", e.UserID)
	default:
		metrics.RecordMirror(false)
		return fmt.Errorf("load owner: %w", err)
	}

	ref, err := w.mirror.AppendExpense(ctx, e, username)
	if err != nil {
		metrics.RecordMirror(false)
		return fmt.Errorf("append to sheet: %w", err)
	}
	metrics.RecordMirror(true)
	slog.InfoContext(ctx, "Expense mirrored", "expense_id", e.ID, "ref", ref)
	return nil
}
