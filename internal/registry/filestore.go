package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/slidecast/api/internal/model"
)

// FileStore persists one JSON file per job under a directory. Writes go
// through a temp file and rename, so readers never observe a torn record.
// Suitable for single-process deployments and tests.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}

func (s *FileStore) Save(_ context.Context, job *model.Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}

	tmp := s.path(job.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write job %s: %w", job.ID, err)
	}
	if err := os.Rename(tmp, s.path(job.ID)); err != nil {
		return fmt.Errorf("commit job %s: %w", job.ID, err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, jobID string) error {
	err := os.Remove(s.path(jobID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	return nil
}

func (s *FileStore) LoadAll(_ context.Context) ([]model.Job, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read job store dir: %w", err)
	}

	var jobs []model.Job
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read job file %s: %w", entry.Name(), err)
		}
		var job model.Job
		if err := json.Unmarshal(data, &job); err != nil {
			// Skip unreadable records rather than refusing to start.
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
