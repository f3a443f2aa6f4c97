// Package store implements the content store: a durable mapping from a
// generated file identifier to raw bytes. It has no logic beyond
// read, write and enumerate.
package store

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Open when no content exists for an id.
	ErrNotFound = errors.New("content not found")

	// ErrExists is returned by Put when the id is already taken.
	ErrExists = errors.New("content already exists")

	// ErrInvalidID is returned for ids that are not filesystem safe.
	ErrInvalidID = errors.New("invalid content id")
)

// Info describes stored content.
type Info struct {
	ID       string
	Size     int64
	ModTime  time.Time
	Location string
}

// ContentStore is implemented by every storage backend.
//
// Implementations must be safe for concurrent use. Writes to distinct ids
// never interfere with each other, and List never returns content whose
// Put has not completed.
type ContentStore interface {
	// Put writes r under id. size is -1 when unknown.
	Put(ctx context.Context, id string, r io.Reader, size int64) (Info, error)

	// Open returns a reader for the content of id. The caller closes it.
	Open(ctx context.Context, id string) (io.ReadSeekCloser, Info, error)

	// List enumerates the ids currently stored, in backend order.
	List(ctx context.Context) ([]string, error)

	// Check reports whether the backend is reachable and usable.
	Check(ctx context.Context) error

	Close() error
}

// ValidateID rejects ids that could escape the store namespace or collide
// with staging entries.
func ValidateID(id string) error {
	if id == "" || len(id) > 255 {
		return ErrInvalidID
	}
	if strings.HasPrefix(id, ".") || strings.ContainsAny(id, "/\\\x00") {
		return ErrInvalidID
	}
	return nil
}
