package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Source supplies the task list for a sprint. Called once at session start.
type Source interface {
	Fetch(ctx context.Context, sprintID string) ([]Spec, error)
}

// FileSource loads sprint task lists from JSON files: <dir>/<sprintID>.json,
// containing either a bare array of specs or {"tasks": [...]}.
type FileSource struct {
	dir string
}

// NewFileSource creates a file-backed work source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Fetch reads and parses the sprint file.
func (s *FileSource) Fetch(_ context.Context, sprintID string) ([]Spec, error) {
	path := filepath.Join(s.dir, sprintID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sprint file: %w", err)
	}

	var specs []Spec
	if err := json.Unmarshal(data, &specs); err == nil {
		return specs, nil
	}

	var wrapped struct {
		Tasks []Spec `json:"tasks"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parsing sprint file %s: %w", path, err)
	}
	return wrapped.Tasks, nil
}

// StaticSource serves a fixed task list, keyed by sprint id. Useful for
// embedding and for tests.
type StaticSource map[string][]Spec

// Fetch returns the stored list for sprintID.
func (s StaticSource) Fetch(_ context.Context, sprintID string) ([]Spec, error) {
	specs, ok := s[sprintID]
	if !ok {
		return nil, fmt.Errorf("unknown sprint %q", sprintID)
	}
	return specs, nil
}
