package log

import (
	"expenses/internal/core"
)

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldBackend     = "backend"
	FieldExpenseID   = "expense_id"
	FieldAmount      = "amount"
	FieldDescription = "description"
	FieldCategory    = "category"
	FieldStatus      = "status"
	FieldTimestamp   = "timestamp"
	FieldCount       = "count"
	FieldPath        = "path"
	FieldEventType   = "event_type"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentExpense  = "expense"
	ComponentStorage  = "storage"
	ComponentCategory = "category"
	ComponentForecast = "forecast"
	ComponentAMQP     = "amqp"
	ComponentBackend  = "backend"
	ComponentCLI      = "cli"
)

// Operations defines standard operation names
const (
	OpAdd      = "add"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpForecast = "forecast"
	OpPublish  = "publish"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithExpense adds the fields that identify an expense in logs.
func (f LogFields) WithExpense(e core.Expense) LogFields {
	if e.ID != 0 {
		f[FieldExpenseID] = e.ID
	}
	f[FieldDescription] = e.Description
	f[FieldAmount] = e.Amount.String()
	f[FieldCategory] = e.Category
	f[FieldStatus] = e.Status().String()
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
