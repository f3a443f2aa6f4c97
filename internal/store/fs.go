package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// stagingDir holds partially written files. It is hidden from List so a
// listing never observes an incomplete write.
const stagingDir = ".incoming"

// FSStore stores each file as <dir>/<id> on the local filesystem.
type FSStore struct {
	dir string
}

// NewFSStore creates the store directory (and its staging area) if needed.
func NewFSStore(ctx context.Context, dir string) (*FSStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, errors.New("filesystem store: empty directory")
	}
	if err := os.MkdirAll(filepath.Join(dir, stagingDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

// Dir returns the store root.
func (s *FSStore) Dir() string {
	return s.dir
}

func (s *FSStore) path(id string) string {
	return filepath.Join(s.dir, id)
}

func (s *FSStore) Put(ctx context.Context, id string, r io.Reader, size int64) (Info, error) {
	if err := ValidateID(id); err != nil {
		return Info{}, err
	}
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	final := s.path(id)
	if _, err := os.Lstat(final); err == nil {
		return Info{}, fmt.Errorf("%w: %s", ErrExists, id)
	}

	// A missing root is a storage failure. Only NewFSStore creates it.
	if st, err := os.Stat(s.dir); err != nil {
		return Info{}, fmt.Errorf("store directory unavailable: %w", err)
	} else if !st.IsDir() {
		return Info{}, fmt.Errorf("store directory unavailable: %s is not a directory", s.dir)
	}

	staging := filepath.Join(s.dir, stagingDir)
	if err := os.Mkdir(staging, 0755); err != nil && !errors.Is(err, fs.ErrExist) {
		return Info{}, fmt.Errorf("failed to create staging directory: %w", err)
	}

	tmp, err := os.CreateTemp(staging, id+"-*.part")
	if err != nil {
		return Info{}, fmt.Errorf("failed to create staging file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return Info{}, fmt.Errorf("failed to write content: %w", err)
	}
	if size >= 0 && n != size {
		_ = tmp.Close()
		return Info{}, fmt.Errorf("short write: wrote %d of %d bytes", n, size)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return Info{}, fmt.Errorf("failed to sync content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Info{}, fmt.Errorf("failed to close content: %w", err)
	}

	// Link refuses to replace an existing name, which keeps ids single-use
	// even if two writers race on the same id.
	if err := os.Link(tmpName, final); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Info{}, fmt.Errorf("%w: %s", ErrExists, id)
		}
		return Info{}, fmt.Errorf("failed to commit content: %w", err)
	}

	st, err := os.Stat(final)
	if err != nil {
		return Info{}, fmt.Errorf("failed to stat content: %w", err)
	}
	return Info{ID: id, Size: st.Size(), ModTime: st.ModTime(), Location: final}, nil
}

func (s *FSStore) Open(ctx context.Context, id string) (io.ReadSeekCloser, Info, error) {
	if err := ValidateID(id); err != nil {
		return nil, Info{}, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, Info{}, err
	}

	f, err := os.Open(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, Info{}, fmt.Errorf("failed to open content: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, Info{}, fmt.Errorf("failed to stat content: %w", err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return f, Info{ID: id, Size: st.Size(), ModTime: st.ModTime(), Location: s.path(id)}, nil
}

// List reads the store directory. It does not recreate a missing directory:
// that condition is reported to the caller.
func (s *FSStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}

func (s *FSStore) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func (s *FSStore) Close() error { return nil }
