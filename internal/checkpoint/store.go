package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/atlasdir/placepipe/internal/metrics"
)

const (
	activeDir  = "active"
	archiveDir = "archive"
	tmpPrefix  = "placepipe-tmp-"
)

// PersistenceError wraps a checkpoint write failure. Callers must treat it
// as fatal: continuing without a recorded checkpoint makes further progress
// unrecoverable on crash.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkpoint %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store keeps one JSON document per checkpoint scope under <dir>/active and
// moves finished documents to <dir>/archive instead of deleting them.
type Store struct {
	dir string
}

// NewStore prepares the checkpoint directory layout and verifies it is
// writable before any stage starts mutating counters it cannot re-derive.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("checkpoint directory is required")
	}
	for _, sub := range []string{activeDir, archiveDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return nil, fmt.Errorf("create checkpoint directory: %w", err)
		}
	}
	probe := filepath.Join(dir, activeDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("checkpoint directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) activePath(key string) string {
	return filepath.Join(s.dir, activeDir, key+".json")
}

// Load reads the live document for a scope key (see Key). Absence is not an
// error: it signals "start fresh" and returns (nil, nil).
func (s *Store) Load(key string) (*Document, error) {
	path := s.activePath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &PersistenceError{Op: "load", Path: path, Err: err}
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &PersistenceError{Op: "decode", Path: path, Err: err}
	}
	return &doc, nil
}

// Save writes the document atomically (temp file + rename in the same
// directory) and stamps UpdatedAt. A reader never observes a partial write.
func (s *Store) Save(doc *Document) error {
	doc.UpdatedAt = time.Now().UTC()
	path := s.activePath(doc.Key())

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Path: path, Err: err}
	}
	if err := writeFileAtomic(path, data, 0o600); err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}
	metrics.ObserveCheckpointWrite()
	return nil
}

// Archive moves the live document out of the active namespace, preserving
// its content under a completion-timestamped name. History is never deleted.
func (s *Store) Archive(stage Stage, country, category string) error {
	key := Key(stage, country, category)
	src := s.activePath(key)
	if _, err := os.Stat(src); err != nil {
		return &PersistenceError{Op: "archive", Path: src, Err: err}
	}
	stamp := time.Now().UTC().Format("20060102T150405Z")
	dst := filepath.Join(s.dir, archiveDir, fmt.Sprintf("%s_%s.json", key, stamp))
	if err := os.Rename(src, dst); err != nil {
		return &PersistenceError{Op: "archive", Path: src, Err: err}
	}
	return nil
}

// ListActive returns the key of every live progress document, sorted for
// stable status output. Documents are fetched individually with Load.
func (s *Store) ListActive() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, activeDir))
	if err != nil {
		return nil, &PersistenceError{Op: "list", Path: s.dir, Err: err}
	}
	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over the destination, so crashes leave either the old document
// or the new one, never a torn file.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
