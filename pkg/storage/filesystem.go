package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Buckets accepted for uploaded files.
const (
	BucketResumes     = "resumes"
	BucketSignatures  = "signatures"
	BucketAttachments = "attachments"
	BucketDocuments   = "documents"
)

// ErrInvalidPath is returned for object keys escaping their bucket.
var ErrInvalidPath = errors.New("invalid object path")

// ValidBucket reports whether name is a known bucket.
func ValidBucket(name string) bool {
	switch name {
	case BucketResumes, BucketSignatures, BucketAttachments, BucketDocuments:
		return true
	default:
		return false
	}
}

// LocalStorage keeps bucketed objects on disk under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./storage"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Put streams r into bucket/key and returns the stored relative path and size.
func (s *LocalStorage) Put(bucket, key string, r io.Reader) (string, int64, error) {
	rel, err := objectPath(bucket, key)
	if err != nil {
		return "", 0, err
	}
	path := filepath.Join(s.baseDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", 0, fmt.Errorf("prepare bucket directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create object: %w", err)
	}
	defer file.Close() //nolint:errcheck
	n, err := io.Copy(file, r)
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write object: %w", err)
	}
	return rel, n, nil
}

// Open returns a read-only handle for a relative object path returned by Put.
func (s *LocalStorage) Open(rel string) (*os.File, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return file, nil
}

// Delete removes an object if present.
func (s *LocalStorage) Delete(rel string) error {
	path, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *LocalStorage) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.baseDir, clean), nil
}

func objectPath(bucket, key string) (string, error) {
	if !ValidBucket(bucket) {
		return "", fmt.Errorf("unknown bucket %q", bucket)
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", ErrInvalidPath
	}
	return filepath.ToSlash(filepath.Join(bucket, clean)), nil
}
