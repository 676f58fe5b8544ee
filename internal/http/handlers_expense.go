package http

import (
	"net/http"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, caller core.User) {
	expenses, err := s.expenses.ListForUser(r.Context(), caller.ID)
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponses(expenses))
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request, caller core.User) {
	raw := r.PathValue("yearMonth")
	if raw == "" || raw == "/" {
		handleUnknownEndpoint(w, r)
		return
	}
	ym, err := core.ParseYearMonth(raw)
	if err != nil {
		writeServiceError(w, r, applog.OpSummary, err)
		return
	}

	summary, err := s.expenses.MonthSummary(r.Context(), caller.ID, ym)
	if err != nil {
		writeServiceError(w, r, applog.OpSummary, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthSummaryResponse(summary))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, caller core.User) {
	in, err := parseNewExpense(w, r)
	if err != nil {
		writeServiceError(w, r, applog.OpCreate, err)
		return
	}

	e, err := s.expenses.Create(r.Context(), caller.ID, in)
	if err != nil {
		writeServiceError(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(e))
}
