// Package gallery implements image ingest and listing on top of a content
// store.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"image-drop/internal/logging"
	"image-drop/internal/store"
)

// DefaultMaxBatch is the largest batch a single upload may carry.
const DefaultMaxBatch = 10

// allowedExtensions is matched case-sensitively against filepath.Ext.
// Only the client-supplied name is checked; content is not sniffed.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// StoredFile is the record of one successfully written upload.
type StoredFile struct {
	ID           string
	OriginalName string
	Size         int64
	Location     string
	CreatedAt    time.Time
}

// Entry is one file of an upload batch.
type Entry struct {
	Filename string
	Size     int64 // -1 when unknown
	Open     func() (io.ReadCloser, error)
}

// Recorder receives a StoredFile after each successful write.
type Recorder interface {
	Record(ctx context.Context, f StoredFile) error
}

// Ingester validates upload batches and writes them to the store.
type Ingester struct {
	store    store.ContentStore
	recorder Recorder
	maxBatch int
	newID    func() string
	now      func() time.Time
}

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester)

// WithRecorder records every stored file, e.g. into the catalog.
func WithRecorder(r Recorder) IngesterOption {
	return func(i *Ingester) { i.recorder = r }
}

// WithMaxBatch overrides DefaultMaxBatch.
func WithMaxBatch(n int) IngesterOption {
	return func(i *Ingester) {
		if n > 0 {
			i.maxBatch = n
		}
	}
}

// NewIngester returns an Ingester writing into s.
func NewIngester(s store.ContentStore, opts ...IngesterOption) *Ingester {
	i := &Ingester{
		store:    s,
		maxBatch: DefaultMaxBatch,
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// MaxBatch returns the configured batch limit.
func (i *Ingester) MaxBatch() int {
	return i.maxBatch
}

// ValidateFilename reports whether name carries an accepted image extension.
func ValidateFilename(name string) error {
	ext := filepath.Ext(name)
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: only image files are allowed: %q", ErrInvalidInput, name)
	}
	return nil
}

// ValidateBatch checks the whole batch before anything is written. An empty
// batch is valid.
func (i *Ingester) ValidateBatch(entries []Entry) error {
	if len(entries) > i.maxBatch {
		return fmt.Errorf("%w: too many files: %d (max %d)", ErrInvalidInput, len(entries), i.maxBatch)
	}
	for _, e := range entries {
		if e.Open == nil {
			return fmt.Errorf("%w: missing content for %q", ErrInvalidInput, e.Filename)
		}
		if err := ValidateFilename(e.Filename); err != nil {
			return err
		}
	}
	return nil
}

// Ingest validates the batch, then writes each entry under a fresh id in
// input order. It returns one public address per entry, in the same order,
// so an empty batch yields an empty, non-nil slice.
//
// A validation failure writes nothing. A storage failure stops the batch;
// files written before the failure are kept.
func (i *Ingester) Ingest(ctx context.Context, addr Addresser, entries []Entry) ([]string, error) {
	if err := i.ValidateBatch(entries); err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(entries))
	for idx, e := range entries {
		f, err := i.write(ctx, e)
		if err != nil {
			logging.Error("ingest_write_failed", logging.Fields{
				"index":    idx,
				"filename": e.Filename,
				"written":  len(addresses),
			}, err)
			return nil, err
		}

		if i.recorder != nil {
			if err := i.recorder.Record(ctx, f); err != nil {
				logging.Warn("catalog_record_failed", logging.Fields{"id": f.ID}, err)
			}
		}

		logging.Debug("ingest_stored", logging.Fields{
			"id":       f.ID,
			"filename": f.OriginalName,
			"bytes":    f.Size,
		})
		addresses = append(addresses, addr.Address(f.ID))
	}
	return addresses, nil
}

func (i *Ingester) write(ctx context.Context, e Entry) (StoredFile, error) {
	rc, err := e.Open()
	if err != nil {
		return StoredFile{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() { _ = rc.Close() }()

	id := i.newID()
	info, err := i.store.Put(ctx, id, rc, e.Size)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return StoredFile{}, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		return StoredFile{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	return StoredFile{
		ID:           id,
		OriginalName: e.Filename,
		Size:         info.Size,
		Location:     info.Location,
		CreatedAt:    i.now().UTC(),
	}, nil
}
