// Package blobstore stores document content. Metadata lives in Postgres;
// this package only moves bytes.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	ErrNotFound           = errors.New("blob not found")
	ErrTooLarge           = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
)

// MaxSize is the largest accepted document (25 MB).
const MaxSize = 25 << 20

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/heic":      true,
	"text/plain":      true,
}

func AllowedContentType(ct string) bool { return allowedContentTypes[ct] }

// Object describes stored content.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	SHA256      string
}

type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, Object, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// readLimited buffers r, rejecting content over MaxSize, and returns the
// bytes with their hex SHA-256.
func readLimited(r io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read content: %w", err)
	}
	if len(data) > MaxSize {
		return nil, "", ErrTooLarge
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

type memBlob struct {
	obj  Object
	data []byte
}

// MemoryStore keeps blobs in process memory. Used in development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]memBlob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]memBlob)}
}

func (s *MemoryStore) Put(_ context.Context, key, contentType string, r io.Reader) (Object, error) {
	if !AllowedContentType(contentType) {
		return Object{}, ErrInvalidContentType
	}
	data, sum, err := readLimited(r)
	if err != nil {
		return Object{}, err
	}
	obj := Object{Key: key, ContentType: contentType, Size: int64(len(data)), SHA256: sum}

	s.mu.Lock()
	s.blobs[key] = memBlob{obj: obj, data: data}
	s.mu.Unlock()
	return obj, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, Object, error) {
	s.mu.RLock()
	b, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Object{}, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b.data)), b.obj, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return ErrNotFound
	}
	delete(s.blobs, key)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
