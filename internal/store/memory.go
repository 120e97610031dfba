package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/pixelframe/imgwatch/internal/csync"
)

// Memory is an in-process Store used by tests and dry runs.
type Memory struct {
	data *csync.Map[uuid.UUID, string]
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: csync.NewMap[uuid.UUID, string]()}
}

// HasDescription implements Store.
func (m *Memory) HasDescription(_ context.Context, assetID uuid.UUID) (bool, error) {
	desc, ok := m.data.Get(assetID)
	return ok && desc != "", nil
}

// UpsertDescription implements Store.
func (m *Memory) UpsertDescription(_ context.Context, assetID uuid.UUID, description string) error {
	m.data.Set(assetID, description)
	return nil
}

// Get returns the stored description, for test assertions.
func (m *Memory) Get(assetID uuid.UUID) (string, bool) {
	return m.data.Get(assetID)
}
