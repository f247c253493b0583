// Package store provides the row-oriented record stores that back the trade ledger.
//
// A store knows nothing about trades: it keeps ordered rows of named text
// cells, appends new rows at the end and updates cells of an existing row by
// its position. Positions are indexes into the slice returned by ReadAll.
package store

import (
	"context"
	"errors"
	"fmt"

	"options-paper-ledger/internal/models"
)

var (
	// ErrStoreUnavailable wraps every I/O failure of a backend.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrRowOutOfRange is returned when an update targets a position that does not exist.
	ErrRowOutOfRange = errors.New("row position out of range")
	// ErrUnknownColumn is returned when a row names a column the store does not have.
	ErrUnknownColumn = errors.New("unknown column")
)

// RecordStore is the durable backing of the ledger.
type RecordStore interface {
	// EnsureHeader writes the header if the store is empty and checks it otherwise.
	EnsureHeader(ctx context.Context, header []string) error
	// ReadAll returns every data row in creation order.
	ReadAll(ctx context.Context) ([]models.Row, error)
	// Append adds one row at the end.
	Append(ctx context.Context, row models.Row) error
	// UpdateFields overwrites the named cells of the row at position.
	UpdateFields(ctx context.Context, position int, fields models.Row) error
	Close() error
}

// Sequencer is implemented by stores that can assign the next trade id and
// append the row atomically. build receives the id and returns the row to append.
type Sequencer interface {
	AppendNext(ctx context.Context, build func(nextID int64) models.Row) (int64, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// checkHeader verifies that every wanted column is present in have.
func checkHeader(have, want []string) error {
	seen := make(map[string]bool, len(have))
	for _, col := range have {
		seen[col] = true
	}
	for _, col := range want {
		if !seen[col] {
			return fmt.Errorf("%w: store header misses %q", ErrUnknownColumn, col)
		}
	}
	return nil
}

func copyRow(r models.Row) models.Row {
	out := make(models.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
