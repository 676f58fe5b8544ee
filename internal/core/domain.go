package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinUsernameLength    = 4
	MinPasswordLength    = 4
	MaxDescriptionLength = 200
	// MaxPasswordBytes is the most bcrypt will hash.
	MaxPasswordBytes = 72
)

type (
	Expense struct {
		ID          string
		UserID      string
		Category    Category
		Description string
		Amount      Money
		YearMonth   YearMonth // month bucket the expense is indexed under
		CreatedAt   time.Time
	}

	// NewExpense is the validated user input for creating an expense.
	NewExpense struct {
		Category    Category
		Description string
		Amount      Money
	}

	User struct {
		ID           string
		Username     string
		PasswordHash string
		IsAdmin      bool
		// MonthlyExpenses indexes the user's expense ids by month, in creation order.
		MonthlyExpenses map[YearMonth][]string
		CreatedAt       time.Time
	}

	Credentials struct {
		Username string
		Password string
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrMissingOwner        = errors.New("expense has no owner")
	ErrInvalidExpenseInput = errors.New("Received Invalid Expense Data")
	ErrInvalidUserInput    = errors.New("Please enter valid username and password.")
)

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (n NewExpense) Validate() error {
	if !n.Category.IsValid() {
		return ErrInvalidCategory
	}
	if utf8.RuneCountInString(n.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return n.Amount.Validate()
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrMissingOwner
	}
	if _, err := ParseYearMonth(string(e.YearMonth)); err != nil {
		return err
	}
	return NewExpense{Category: e.Category, Description: e.Description, Amount: e.Amount}.Validate()
}

func (c Credentials) Validate() error {
	if len(c.Username) < MinUsernameLength || len(c.Password) < MinPasswordLength || len(c.Password) > MaxPasswordBytes {
		return ErrInvalidUserInput
	}
	return nil
}

// ExpenseIDs returns the ids indexed under ym, or nil.
func (u User) ExpenseIDs(ym YearMonth) []string {
	if u.MonthlyExpenses == nil {
		return nil
	}
	return u.MonthlyExpenses[ym]
}
