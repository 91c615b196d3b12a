package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// NewTaskID generates a fresh version-4 UUID for a task directory name.
func NewTaskID() string {
	return uuid.NewString()
}

// TaskDir is a handle on a task directory: a UUID-named directory that
// carries exactly one payload entry, a provenance.json, and optionally an
// error.txt once the task has been parked.
type TaskDir struct {
	Path string
}

// Create makes a fresh task directory under workingDir, named with a new
// UUID, and returns a handle on it.
func Create(workingDir string) (TaskDir, error) {
	id := NewTaskID()
	dir := filepath.Join(workingDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return TaskDir{}, fmt.Errorf("create task directory: %w", err)
	}
	return TaskDir{Path: dir}, nil
}

// ID returns the task's UUID, derived from its directory's basename.
func (t TaskDir) ID() string {
	return filepath.Base(t.Path)
}

// ProvenancePath returns the path to this task's provenance.json.
func (t TaskDir) ProvenancePath() string {
	return filepath.Join(t.Path, ProvenanceFileName)
}

// ErrorPath returns the path to this task's error.txt.
func (t TaskDir) ErrorPath() string {
	return filepath.Join(t.Path, ErrorFileName)
}

// Payload locates the single payload entry inside the task directory: the
// one entry that is neither provenance.json nor error.txt. Returns the
// entry's full path and whether it is a directory.
//
// A task directory is malformed if it contains zero or more than one
// payload entry; callers treat that as a provenance/structural error.
func (t TaskDir) Payload() (path string, isDir bool, err error) {
	entries, err := os.ReadDir(t.Path)
	if err != nil {
		return "", false, fmt.Errorf("read task directory: %w", err)
	}

	found := ""
	foundIsDir := false
	count := 0
	for _, e := range entries {
		if e.Name() == ProvenanceFileName || e.Name() == ErrorFileName {
			continue
		}
		count++
		found = e.Name()
		foundIsDir = e.IsDir()
	}

	if count != 1 {
		return "", false, fmt.Errorf("task directory %s has %d payload entries, expected exactly 1", t.Path, count)
	}

	return filepath.Join(t.Path, found), foundIsDir, nil
}

// WriteError writes reason into this task's error.txt, creating or
// truncating it.
func (t TaskDir) WriteError(reason string) error {
	return os.WriteFile(t.ErrorPath(), []byte(reason+"\n"), 0o644)
}
