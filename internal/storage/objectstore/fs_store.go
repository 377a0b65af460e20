package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSStore keeps objects on the local filesystem under root/bucket/key. It
// is the default artifact store for local runs.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("fs store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create fs store root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) path(bucket, key string) (string, error) {
	bucket = strings.TrimSpace(bucket)
	key = strings.TrimSpace(key)
	if bucket == "" || key == "" {
		return "", fmt.Errorf("bucket and key are required")
	}
	path := filepath.Join(s.root, bucket, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("key %q escapes the store root", key)
	}
	return path, nil
}

func (s *FSStore) Put(_ context.Context, bucket, key string, body io.Reader, size int64, _ string) error {
	if s == nil {
		return fmt.Errorf("fs store not initialized")
	}
	path, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(&buf, body); err != nil {
		return fmt.Errorf("read object body: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

func (s *FSStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	if s == nil {
		return nil, ObjectInfo{}, fmt.Errorf("fs store not initialized")
	}
	info, err := s.Stat(ctx, bucket, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	path, err := s.path(bucket, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("open object: %w", err)
	}
	return f, info, nil
}

func (s *FSStore) Stat(_ context.Context, bucket, key string) (ObjectInfo, error) {
	if s == nil {
		return ObjectInfo{}, fmt.Errorf("fs store not initialized")
	}
	path, err := s.path(bucket, key)
	if err != nil {
		return ObjectInfo{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat object: %w", err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         fi.Size(),
		LastModified: fi.ModTime(),
	}, nil
}

func (s *FSStore) Delete(_ context.Context, bucket, key string) error {
	if s == nil {
		return fmt.Errorf("fs store not initialized")
	}
	path, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
