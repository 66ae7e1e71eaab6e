package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"expenses/internal/core"
)

// EventType names what happened to an expense.
type EventType string

const (
	EventCreated EventType = "expense.created"
	EventUpdated EventType = "expense.updated"
	EventDeleted EventType = "expense.deleted"
)

// ExpenseEvent is published after a successful mutation. Deleted events only
// carry the id.
type ExpenseEvent struct {
	EventID     string    `json:"event_id"`
	Type        EventType `json:"type"`
	ExpenseID   int64     `json:"expense_id"`
	Amount      string    `json:"amount,omitempty"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Status      string    `json:"status,omitempty"`
	DateTime    time.Time `json:"date_time,omitzero"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewExpenseEvent snapshots e into an event with a fresh id.
func NewExpenseEvent(t EventType, e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		EventID:     uuid.NewString(),
		Type:        t,
		ExpenseID:   e.ID,
		Amount:      e.Amount.String(),
		Description: e.Description,
		Category:    e.Category,
		Status:      e.Status().String(),
		DateTime:    e.Timestamp,
		Timestamp:   time.Now(),
	}
}

// NewDeletedEvent creates an event for a removed expense.
func NewDeletedEvent(id int64) *ExpenseEvent {
	return &ExpenseEvent{
		EventID:   uuid.NewString(),
		Type:      EventDeleted,
		ExpenseID: id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes an event and rejects bodies without an id.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(msg.EventID); err != nil {
		return nil, err
	}
	return &msg, nil
}
