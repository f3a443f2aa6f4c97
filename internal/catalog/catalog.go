// Package catalog keeps a Postgres record of every stored image. The content
// store stays the source of truth; the catalog is write-mostly metadata.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"image-drop/internal/gallery"
)

// Catalog records StoredFile rows.
type Catalog struct {
	db *sql.DB
}

// New wraps an open database. Call RunMigrations first.
func New(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// Record inserts f. Recording the same id twice is a no-op.
func (c *Catalog) Record(ctx context.Context, f gallery.StoredFile) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO stored_files (id, original_name, size_bytes, location, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, f.ID, f.OriginalName, f.Size, f.Location, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("record stored file %s: %w", f.ID, err)
	}
	return nil
}

// Get returns the record for id, or sql.ErrNoRows.
func (c *Catalog) Get(ctx context.Context, id string) (gallery.StoredFile, error) {
	var f gallery.StoredFile
	err := c.db.QueryRowContext(ctx, `
		SELECT id, original_name, size_bytes, location, created_at
		FROM stored_files WHERE id = $1
	`, id).Scan(&f.ID, &f.OriginalName, &f.Size, &f.Location, &f.CreatedAt)
	if err != nil {
		return gallery.StoredFile{}, err
	}
	return f, nil
}

// Count returns the number of recorded files.
func (c *Catalog) Count(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stored_files`).Scan(&n)
	return n, err
}

// Ping checks database connectivity.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
