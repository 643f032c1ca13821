package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Message types carried on the jobs queue.
const (
	TypeExpenseCreated = "expense.created"
	TypeExpenseUpdated = "expense.updated"
	TypeExpenseDeleted = "expense.deleted"
	TypeCatchUp        = "recurring.catch_up"
	TypeImport         = "splitwise.import"
)

var ErrUnknownMessageType = errors.New("unknown message type")

// Message is the envelope for every event and job. The worker fetches full
// records from the database, so messages only carry identifiers.
type Message struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	ExpenseID string    `json:"expense_id,omitempty"`
	Through   string    `json:"through,omitempty"` // YYYY-MM, catch-up jobs only
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEvent builds an expense.created|updated|deleted event.
func NewExpenseEvent(typ, userID, expenseID string) *Message {
	return &Message{Type: typ, UserID: userID, ExpenseID: expenseID, Timestamp: time.Now()}
}

// NewCatchUpJob asks the worker to materialize a user's recurring series
// through the given month ("" means the current month).
func NewCatchUpJob(userID, through string) *Message {
	return &Message{Type: TypeCatchUp, UserID: userID, Through: through, Timestamp: time.Now()}
}

func NewImportJob(userID string) *Message {
	return &Message{Type: TypeImport, UserID: userID, Timestamp: time.Now()}
}

func (m *Message) Validate() error {
	switch m.Type {
	case TypeExpenseCreated, TypeExpenseUpdated, TypeExpenseDeleted:
		if m.ExpenseID == "" {
			return fmt.Errorf("%s: missing expense_id", m.Type)
		}
	case TypeCatchUp, TypeImport:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, m.Type)
	}
	if m.UserID == "" {
		return fmt.Errorf("%s: missing user_id", m.Type)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON decodes and validates a message.
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
