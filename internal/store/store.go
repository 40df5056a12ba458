// Package store provides directory-backed JSON document storage for the
// Icarus bus. Every entity lives in its own file keyed by id, so a failure
// on one entity can never corrupt another, and cooperating processes
// coordinate through the shared directory tree alone.
//
// A [Store] maps one directory to one entity collection. Writes are atomic
// (temp file then rename); reads of individual documents report missing
// files as a benign miss; directory scans skip malformed files so one
// corrupt record cannot break a listing. [FileLock] supplies the
// non-blocking advisory lock used to serialize read-modify-write cycles
// on a single document across processes.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mirabel-ai/icarus/internal/logging"
)

const (
	docSuffix = ".json"
	tmpSuffix = ".tmp"
)

// Store is a directory of JSON documents, one file per key.
// All methods are safe for concurrent use across processes; within a
// process, concurrent writers to the same key race under last-write-wins,
// which callers avoid by construction (write-once keys or lock-guarded
// read-modify-write).
type Store struct {
	dir    string
	logger *logging.Logger
}

// New creates a Store rooted at dir. The directory is created lazily on
// first write. The logger may be nil-equivalent (logging.Nop()).
func New(dir string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the directory this store is rooted at.
func (s *Store) Dir() string { return s.dir }

// Path returns the document path for the given key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+docSuffix)
}

// Put serializes v as indented JSON and writes it under key. The write is
// atomic: data goes to a temp file first, then is renamed into place, so a
// concurrent reader sees either the old document or the new one, never a
// partial write.
func (s *Store) Put(key string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", key, err)
	}

	target := s.Path(key)
	tmp := target + tmpSuffix

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Get reads the document under key into out. Returns (false, nil) if the
// document does not exist. A document that exists but cannot be parsed is
// an error: individual reads are assumed to target ids the caller obtained
// from a listing, so corruption here is worth surfacing.
func (s *Store) Get(key string, out any) (bool, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read document %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("unmarshal document %s: %w", key, err)
	}
	return true, nil
}

// Exists reports whether a document is present under key.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

// Delete removes the document under key. Deleting a missing document is
// not an error.
func (s *Store) Delete(key string) error {
	if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	return nil
}

// Keys returns the sorted keys of all documents in the store. A missing
// directory yields an empty result. Temp files left by interrupted writes
// are ignored.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, docSuffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, docSuffix))
	}
	sort.Strings(keys)
	return keys, nil
}

// Count returns the number of documents in the store.
func (s *Store) Count() (int, error) {
	keys, err := s.Keys()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Clear removes every document in the store. The directory itself is kept.
func (s *Store) Clear() error {
	keys, err := s.Keys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll reads every document in the store via decode, skipping files
// that cannot be parsed. Malformed documents are logged and do not fail
// the scan; a vanished file (deleted between listing and read) is silently
// skipped. The decode callback receives each document's key and raw bytes.
func (s *Store) LoadAll(decode func(key string, data []byte) error) error {
	keys, err := s.Keys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		data, err := os.ReadFile(s.Path(key))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read document %s: %w", key, err)
		}
		if err := decode(key, data); err != nil {
			s.logger.Warn("skipping malformed document",
				"key", key,
				"dir", s.dir,
				"error", err.Error(),
			)
		}
	}
	return nil
}
