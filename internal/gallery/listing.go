package gallery

import (
	"context"
	"fmt"

	"image-drop/internal/store"
)

// Lister enumerates the content store. It keeps no cache: every call reads
// the store again.
type Lister struct {
	store store.ContentStore
}

// NewLister returns a Lister over s.
func NewLister(s store.ContentStore) *Lister {
	return &Lister{store: s}
}

// List returns the public address of every stored file, in whatever order
// the store enumerates them.
func (l *Lister) List(ctx context.Context, addr Addresser) ([]string, error) {
	ids, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return addr.Addresses(ids), nil
}
