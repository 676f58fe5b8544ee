package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"expensetracker/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

var errMalformedBody = errors.New("malformed request body")

// decodeStrict decodes exactly one JSON object into dst. Unknown keys,
// trailing data and an empty body are all errors.
func decodeStrict(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errMalformedBody
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errMalformedBody)
	}
	return nil
}

// Pointer fields tell a missing key or null apart from a zero value.
type expenseRequest struct {
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
	Amount      *float64 `json:"amount"`
}

type credentialsRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// parseNewExpense reads a create-expense body. Any shape or value problem is
// reported as core.ErrInvalidExpenseInput.
func parseNewExpense(w http.ResponseWriter, r *http.Request) (core.NewExpense, error) {
	var req expenseRequest
	if err := decodeStrict(w, r, &req); err != nil {
		return core.NewExpense{}, fmt.Errorf("%w: %v", core.ErrInvalidExpenseInput, err)
	}
	if req.Category == nil || req.Description == nil || req.Amount == nil {
		return core.NewExpense{}, fmt.Errorf("%w: missing field", core.ErrInvalidExpenseInput)
	}

	category, err := core.ParseCategory(*req.Category)
	if err != nil {
		return core.NewExpense{}, fmt.Errorf("%w: %v", core.ErrInvalidExpenseInput, err)
	}
	amount, err := core.MoneyFromAmount(*req.Amount)
	if err != nil {
		return core.NewExpense{}, fmt.Errorf("%w: %v", core.ErrInvalidExpenseInput, err)
	}

	return core.NewExpense{
		Category:    category,
		Description: *req.Description,
		Amount:      amount,
	}, nil
}

// parseCredentials reads a {username,password} body. Both keys must be
// present strings; length rules are left to the caller.
func parseCredentials(w http.ResponseWriter, r *http.Request) (core.Credentials, error) {
	var req credentialsRequest
	if err := decodeStrict(w, r, &req); err != nil {
		return core.Credentials{}, fmt.Errorf("%w: %v", core.ErrInvalidUserInput, err)
	}
	if req.Username == nil || req.Password == nil {
		return core.Credentials{}, core.ErrInvalidUserInput
	}
	return core.Credentials{
		Username: *req.Username,
		Password: *req.Password,
	}, nil
}
