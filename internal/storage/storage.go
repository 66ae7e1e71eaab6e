// Package storage defines the contract every expense backend satisfies.
package storage

import (
	"context"

	"expenses/internal/core"
)

type (
	// Store persists expense records. Each implementation is an independent
	// store of record and assigns its own ids.
	Store interface {
		// Add assigns a new id, never reused after deletion, writes it
		// into e and persists the record.
		Add(ctx context.Context, e *core.Expense) error

		// Update replaces the record with e.ID. It returns core.ErrNotFound
		// when no such record exists.
		Update(ctx context.Context, e core.Expense) error

		// Delete removes the record with id. Deleting an absent id is not an error.
		Delete(ctx context.Context, id int64) error

		// GetAll returns every record in the backend's natural order.
		GetAll(ctx context.Context) ([]core.Expense, error)
	}

	// Closer is implemented by stores that hold external resources.
	Closer interface {
		Close() error
	}
)
