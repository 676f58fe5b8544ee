package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/store"
)

const (
	msgUnknownEndpoint = "unknown endpoint"
	msgInternal        = "internal server error"
	msgUsernameTaken   = "username must be unique"
)

type errorResponse struct {
	Error string `json:"error"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type expenseResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
}

type userResponse struct {
	ID              string              `json:"id"`
	Username        string              `json:"username"`
	IsAdmin         bool                `json:"isAdmin"`
	MonthlyExpenses map[string][]string `json:"monthlyExpenses"`
}

type categoryDetailResponse struct {
	Category string            `json:"category"`
	Amount   float64           `json:"amount"`
	Expenses []expenseResponse `json:"expenses"`
}

type monthSummaryResponse struct {
	Data        []categoryDetailResponse `json:"data"`
	TotalAmount float64                  `json:"totalAmount"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		UserID:      e.UserID,
		CreatedAt:   e.CreatedAt,
		Category:    e.Category.String(),
		Description: e.Description,
		Amount:      e.Amount.Amount(),
	}
}

func toExpenseResponses(expenses []core.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	return out
}

// toUserResponse never carries the password hash.
func toUserResponse(u core.User) userResponse {
	monthly := make(map[string][]string, len(u.MonthlyExpenses))
	for ym, ids := range u.MonthlyExpenses {
		if ids == nil {
			ids = []string{}
		}
		monthly[ym.String()] = ids
	}
	return userResponse{
		ID:              u.ID,
		Username:        u.Username,
		IsAdmin:         u.IsAdmin,
		MonthlyExpenses: monthly,
	}
}

func toMonthSummaryResponse(s core.MonthSummary) monthSummaryResponse {
	data := make([]categoryDetailResponse, 0, len(s.Data))
	for _, d := range s.Data {
		data = append(data, categoryDetailResponse{
			Category: d.Category.String(),
			Amount:   d.Amount.Amount(),
			Expenses: toExpenseResponses(d.Expenses),
		})
	}
	return monthSummaryResponse{Data: data, TotalAmount: s.Total.Amount()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps domain errors to a status code and the client-facing message.
// Unknown errors become a 500 with a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidExpenseInput):
		return http.StatusBadRequest, core.ErrInvalidExpenseInput.Error()
	case errors.Is(err, core.ErrInvalidYearMonth):
		return http.StatusBadRequest, core.ErrInvalidYearMonth.Error()
	case errors.Is(err, core.ErrInvalidUserInput):
		return http.StatusBadRequest, core.ErrInvalidUserInput.Error()
	case errors.Is(err, store.ErrUsernameTaken):
		return http.StatusBadRequest, msgUsernameTaken
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, services.ErrInvalidCredentials.Error()
	case errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized, services.ErrUnauthenticated.Error()
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, services.ErrForbidden.Error()
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// writeServiceError logs server-side failures and answers with the mapped status.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		fields := applog.NewFields()
		if u, ok := userFromContext(r.Context()); ok {
			fields = fields.WithUser(u.ID, u.Username)
		}
		applog.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, op, fields)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			applog.FieldOperation, op, applog.FieldError, err.Error(), applog.FieldStatusCode, status)
	}
	writeError(w, status, msg)
}
