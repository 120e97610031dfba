package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver
)

// Postgres stores descriptions in the Immich database. Descriptions live on
// the exif table, keyed by assetId; Immich surfaces that column in search.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool for the given DSN. The pool is shared
// by every concurrent pipeline run; database/sql handles the pooling.
func NewPostgres(dsn string) (*Postgres, error) {
	if !hasSQLDriver("pgx") {
		return nil, errors.New("pgx SQL driver is not linked")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

func hasSQLDriver(name string) bool {
	for _, d := range sql.Drivers() {
		if d == name {
			return true
		}
	}
	return false
}

// Ping verifies the database is reachable. Called once at startup so a bad
// DSN fails the process instead of every file.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// HasDescription implements Store.
func (p *Postgres) HasDescription(ctx context.Context, assetID uuid.UUID) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM exif WHERE "assetId" = $1 AND description IS NOT NULL AND description <> '')`,
		assetID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query description: %w", err)
	}
	return exists, nil
}

// UpsertDescription implements Store.
func (p *Postgres) UpsertDescription(ctx context.Context, assetID uuid.UUID, description string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO exif ("assetId", description) VALUES ($1, $2)
		 ON CONFLICT ("assetId") DO UPDATE SET description = EXCLUDED.description`,
		assetID, description)
	if err != nil {
		return fmt.Errorf("upsert description: %w", err)
	}
	return nil
}
