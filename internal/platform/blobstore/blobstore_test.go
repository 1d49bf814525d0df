package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemoryStore_PutGetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	obj, err := s.Put(ctx, "patients/p1/doc1", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if obj.Size != 5 {
		t.Errorf("expected size 5, got %d", obj.Size)
	}
	if obj.SHA256 != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("unexpected hash %s", obj.SHA256)
	}

	rc, got, err := s.Get(ctx, "patients/p1/doc1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" || got.ContentType != "text/plain" {
		t.Errorf("unexpected content %q / %+v", data, got)
	}

	if err := s.Delete(ctx, "patients/p1/doc1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := s.Get(ctx, "patients/p1/doc1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "patients/p1/doc1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryStore_RejectsContentType(t *testing.T) {
	_, err := NewMemoryStore().Put(context.Background(), "k", "application/x-msdownload", strings.NewReader("x"))
	if !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}
}

func TestMemoryStore_RejectsOversize(t *testing.T) {
	big := bytes.Repeat([]byte("a"), MaxSize+1)
	_, err := NewMemoryStore().Put(context.Background(), "k", "application/pdf", bytes.NewReader(big))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}
