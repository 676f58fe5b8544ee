package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expensetracker/internal/core"
)

const expenseCreatedVersion = 1

// ExpenseCreatedMessage announces a stored expense. Consumers load the full
// record from the shared store by id.
type ExpenseCreatedMessage struct {
	ExpenseID string    `json:"expense_id"`
	UserID    string    `json:"user_id"`
	YearMonth string    `json:"year_month"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseCreatedMessage(e core.Expense) *ExpenseCreatedMessage {
	return &ExpenseCreatedMessage{
		ExpenseID: e.ID,
		UserID:    e.UserID,
		YearMonth: string(e.YearMonth),
		Version:   expenseCreatedVersion,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseCreatedMessageFromJSON decodes and checks the required ids.
func ExpenseCreatedMessageFromJSON(data []byte) (*ExpenseCreatedMessage, error) {
	var msg ExpenseCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ExpenseID == "" || msg.UserID == "" {
		return nil, fmt.Errorf("message missing expense_id or user_id")
	}
	return &msg, nil
}
