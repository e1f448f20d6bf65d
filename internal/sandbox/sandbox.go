// Package sandbox is the local-filesystem ports.ArtifactStore adapter. It
// confines every execution's writes to a root directory and registers
// each write as an Artifact atomically: either both the file write and
// the registration land, or neither does. The staging-file-then-rename
// discipline generalizes the teacher's cache-persistence idiom
// (runtime/registry/cache.go) to on-disk artifact writes. §4.7.
package sandbox

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"context"

	"github.com/google/uuid"

	"github.com/mindscape-ai/core/internal/ports"
)

// ErrOutsideSandbox is returned when a requested path would escape the
// execution's sandbox root.
var ErrOutsideSandbox = errors.New("sandbox: path escapes sandbox root")

// Store implements ports.ArtifactStore rooted at a configured base path,
// with one subdirectory per (workspaceID, executionID).
type Store struct {
	base string

	mu       sync.Mutex
	staged   map[string]stagedWrite
	registry map[string][]ports.ArtifactRecord // key: workspaceID+"/"+executionID
}

type stagedWrite struct {
	absPath     string
	sizeBytes   int64
	contentHash string
}

// New constructs a Store rooted at base, creating the directory if it
// does not already exist.
func New(base string) (*Store, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("sandbox: create root: %w", err)
	}
	return &Store{
		base:     abs,
		staged:   make(map[string]stagedWrite),
		registry: make(map[string][]ports.ArtifactRecord),
	}, nil
}

// Write stages content under the execution's sandbox directory and
// returns an opaque staging path identifying the pending write. The file
// is not visible at its final name until Register commits it.
func (s *Store) Write(_ context.Context, workspaceID, executionID, name string, content []byte) (string, error) {
	dir, err := s.executionDir(workspaceID, executionID)
	if err != nil {
		return "", err
	}
	dest, err := s.resolve(dir, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("sandbox: create directory: %w", err)
	}

	stagingPath := dest + ".staging-" + uuid.NewString()
	if err := os.WriteFile(stagingPath, content, 0o644); err != nil {
		return "", fmt.Errorf("sandbox: write staging file: %w", err)
	}

	sum := sha256.Sum256(content)
	s.mu.Lock()
	s.staged[stagingPath] = stagedWrite{
		absPath:     dest,
		sizeBytes:   int64(len(content)),
		contentHash: hex.EncodeToString(sum[:]),
	}
	s.mu.Unlock()
	return stagingPath, nil
}

// Register commits a prior Write by atomically renaming its staging file
// to finalName and recording an ArtifactRecord. If the rename fails, the
// staging file is left in place uncommitted rather than the Artifact
// being registered against a file that doesn't exist.
func (s *Store) Register(_ context.Context, workspaceID, executionID, stagingPath, finalName string) (string, error) {
	s.mu.Lock()
	staged, ok := s.staged[stagingPath]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("sandbox: unknown staging path %q", stagingPath)
	}

	dir, err := s.executionDir(workspaceID, executionID)
	if err != nil {
		return "", err
	}
	dest, err := s.resolve(dir, finalName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("sandbox: create directory: %w", err)
	}
	if err := os.Rename(stagingPath, dest); err != nil {
		return "", fmt.Errorf("sandbox: commit write: %w", err)
	}

	record := ports.ArtifactRecord{
		ID:          uuid.NewString(),
		Name:        finalName,
		Path:        dest,
		SizeBytes:   staged.sizeBytes,
		ContentHash: staged.contentHash,
		CreatedAt:   time.Now().UTC(),
	}

	key := workspaceID + "/" + executionID
	s.mu.Lock()
	delete(s.staged, stagingPath)
	s.registry[key] = append(s.registry[key], record)
	s.mu.Unlock()
	return record.ID, nil
}

// List returns every Artifact registered for (workspaceID, executionID).
func (s *Store) List(_ context.Context, workspaceID, executionID string) ([]ports.ArtifactRecord, error) {
	key := workspaceID + "/" + executionID
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.ArtifactRecord, len(s.registry[key]))
	copy(out, s.registry[key])
	return out, nil
}

func (s *Store) executionDir(workspaceID, executionID string) (string, error) {
	if workspaceID == "" || executionID == "" {
		return "", fmt.Errorf("sandbox: workspace and execution id are required")
	}
	return filepath.Join(s.base, workspaceID, executionID), nil
}

// resolve joins name onto dir and rejects any result that escapes dir
// (via "..", absolute paths, or other lexical tricks), satisfying the
// invariant that every registered path lies strictly under the owning
// project's sandbox root.
func (s *Store) resolve(dir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", ErrOutsideSandbox
	}
	abs := filepath.Join(dir, name)
	if abs != dir && !strings.HasPrefix(abs, dir+string(filepath.Separator)) {
		return "", ErrOutsideSandbox
	}
	return abs, nil
}
