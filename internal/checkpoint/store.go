// Package checkpoint persists stage state as whole JSON documents. A save
// always replaces the full document; there are no partial writes.
package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
)

// Store is a named, overwritable document.
type Store[T any] interface {
	// Load returns the stored document. ok is false when nothing has been
	// saved yet.
	Load(ctx context.Context) (doc T, ok bool, err error)
	// Save replaces the stored document.
	Save(ctx context.Context, doc T) error
	// Exists reports whether a document has been saved.
	Exists() bool
}

// FileStore keeps the document in a JSON file. Saves go to a temp file in the
// same directory and are renamed over the target, so a crash leaves either
// the previous or the new document, never a torn one.
type FileStore[T any] struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore[T any](path string) *FileStore[T] {
	return &FileStore[T]{path: path}
}

func (s *FileStore[T]) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *FileStore[T]) Load(ctx context.Context) (T, bool, error) {
	var doc T
	if err := ctx.Err(); err != nil {
		return doc, false, err
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return doc, false, nil
	}
	if err != nil {
		return doc, false, eris.Wrapf(err, "checkpoint: read %s", s.path)
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, false, eris.Wrapf(err, "checkpoint: decode %s", s.path)
	}
	return doc, true, nil
}

func (s *FileStore[T]) Save(ctx context.Context, doc T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "checkpoint: encode")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "checkpoint: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return eris.Wrap(err, "checkpoint: create temp file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return eris.Wrap(err, "checkpoint: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return eris.Wrap(err, "checkpoint: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return eris.Wrap(err, "checkpoint: close temp file")
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return eris.Wrap(err, "checkpoint: chmod temp file")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return eris.Wrapf(err, "checkpoint: replace %s", s.path)
	}
	return nil
}

// MemoryStore keeps the document in memory as encoded JSON, so loads return
// an independent copy exactly as a file round trip would.
type MemoryStore[T any] struct {
	mu    sync.Mutex
	data  []byte
	saves int
	// FailOn makes the nth Save (1-based) fail. Zero never fails.
	FailOn int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{}
}

// ErrInjected is returned by MemoryStore when FailOn triggers.
var ErrInjected = eris.New("checkpoint: injected save failure")

func (s *MemoryStore[T]) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data != nil
}

func (s *MemoryStore[T]) Load(_ context.Context) (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc T
	if s.data == nil {
		return doc, false, nil
	}
	if err := json.Unmarshal(s.data, &doc); err != nil {
		return doc, false, eris.Wrap(err, "checkpoint: decode")
	}
	return doc, true, nil
}

func (s *MemoryStore[T]) Save(_ context.Context, doc T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++
	if s.FailOn > 0 && s.saves == s.FailOn {
		return ErrInjected
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "checkpoint: encode")
	}
	s.data = data
	return nil
}

// Saves returns how many times Save has been called.
func (s *MemoryStore[T]) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
