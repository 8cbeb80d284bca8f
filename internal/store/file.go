package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var safeName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileStore writes one JSON document per trial under <dir>/<run>/<trial>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store needs a directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// RunDir returns the directory holding a run's trials.
func (fs *FileStore) RunDir(runID string) string {
	return filepath.Join(fs.dir, runID)
}

// SaveTrial writes the trial atomically.
func (fs *FileStore) SaveTrial(ctx context.Context, t *Trial) error {
	if !safeName.MatchString(t.RunID) || !safeName.MatchString(t.TrialID) {
		return fmt.Errorf("invalid run or trial id %q/%q", t.RunID, t.TrialID)
	}
	runDir := fs.RunDir(t.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode trial %s: %w", t.TrialID, err)
	}

	path := filepath.Join(runDir, t.TrialID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write trial %s: %w", t.TrialID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit trial %s: %w", t.TrialID, err)
	}
	return nil
}

// LoadTrials reads every trial of a run in index order.
func (fs *FileStore) LoadTrials(ctx context.Context, runID string) ([]*Trial, error) {
	if !safeName.MatchString(runID) {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	paths, err := filepath.Glob(filepath.Join(fs.RunDir(runID), "*.json"))
	if err != nil {
		return nil, err
	}

	trials := make([]*Trial, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		var t Trial
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		trials = append(trials, &t)
	}
	return sortedByIndex(trials), nil
}

// Close implements Store.
func (fs *FileStore) Close() error {
	return nil
}
