package store

import (
	"context"
	"fmt"
	"sync"

	"options-paper-ledger/internal/models"
)

// MemoryStore keeps rows in process memory. It backs the "memory" driver and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	header []string
	rows   []models.Row
}

var _ RecordStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) EnsureHeader(_ context.Context, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.header == nil {
		m.header = append([]string(nil), header...)
		return nil
	}
	return checkHeader(m.header, header)
}

// Header returns the header written by EnsureHeader, if any.
func (m *MemoryStore) Header() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.header...)
}

func (m *MemoryStore) ReadAll(_ context.Context) ([]models.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Row, len(m.rows))
	for i, r := range m.rows {
		out[i] = copyRow(r)
	}
	return out, nil
}

func (m *MemoryStore) Append(_ context.Context, row models.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rows = append(m.rows, copyRow(row))
	return nil
}

func (m *MemoryStore) UpdateFields(_ context.Context, position int, fields models.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if position < 0 || position >= len(m.rows) {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, position)
	}
	for col, v := range fields {
		m.rows[position][col] = v
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
