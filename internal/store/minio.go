package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig describes an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
}

// MinioStore keeps each file as the object <prefix>/<id>.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// No scheme provided, treat as host:port (insecure by default for local MinIO).
	return raw, false, nil
}

// NewMinioStore connects to the endpoint and checks that the bucket exists.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	s := &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
	if err := s.Check(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioStore) key(id string) string {
	if s.prefix == "" {
		return id
	}
	return path.Join(s.prefix, id)
}

func (s *MinioStore) listPrefix() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + "/"
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == minio.NoSuchKey
}

func isPreconditionFailed(err error) bool {
	return minio.ToErrorResponse(err).Code == minio.PreconditionFailed
}

// Put writes the object with If-None-Match: *, so the server refuses it when
// the key already exists, including a key created after the StatObject check.
// The check only saves sending the body for an id that is already taken.
func (s *MinioStore) Put(ctx context.Context, id string, r io.Reader, size int64) (Info, error) {
	if err := ValidateID(id); err != nil {
		return Info{}, err
	}

	key := s.key(id)
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err == nil {
		return Info{}, fmt.Errorf("%w: %s", ErrExists, id)
	} else if !isNoSuchKey(err) {
		return Info{}, fmt.Errorf("failed to stat object: %w", err)
	}

	opts := minio.PutObjectOptions{ContentType: "application/octet-stream"}
	opts.SetMatchETagExcept("*")

	up, err := s.client.PutObject(ctx, s.bucket, key, r, size, opts)
	if err != nil {
		if isPreconditionFailed(err) {
			return Info{}, fmt.Errorf("%w: %s", ErrExists, id)
		}
		return Info{}, fmt.Errorf("failed to put object: %w", err)
	}
	return Info{
		ID:       id,
		Size:     up.Size,
		ModTime:  up.LastModified,
		Location: s.bucket + "/" + key,
	}, nil
}

func (s *MinioStore) Open(ctx context.Context, id string) (io.ReadSeekCloser, Info, error) {
	if err := ValidateID(id); err != nil {
		return nil, Info{}, ErrNotFound
	}

	key := s.key(id)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to get object: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNoSuchKey(err) {
			return nil, Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, Info{}, fmt.Errorf("failed to stat object: %w", err)
	}
	return obj, Info{
		ID:       id,
		Size:     st.Size,
		ModTime:  st.LastModified,
		Location: s.bucket + "/" + key,
	}, nil
}

func (s *MinioStore) List(ctx context.Context) ([]string, error) {
	prefix := s.listPrefix()
	var ids []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		id := strings.TrimPrefix(obj.Key, prefix)
		if id == "" || strings.HasSuffix(id, "/") {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MinioStore) Check(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return errors.New("minio bucket does not exist: " + s.bucket)
	}
	return nil
}

func (s *MinioStore) Close() error { return nil }
