// Package store persists asset descriptions.
//
// The pipeline only needs two operations: an existence probe used for the
// duplicate check and a last-write-wins upsert. Connection bootstrap and
// schema belong to the Immich database this tool sits next to.
package store

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence boundary for asset descriptions.
type Store interface {
	// HasDescription reports whether a non-empty description already
	// exists for the asset.
	HasDescription(ctx context.Context, assetID uuid.UUID) (bool, error)
	// UpsertDescription writes the description for the asset,
	// creating the row if absent and overwriting it if present.
	UpsertDescription(ctx context.Context, assetID uuid.UUID, description string) error
}
