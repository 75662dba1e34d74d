package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/slidecast/api/internal/model"
)

// ScriptStore persists page dialogue scripts as
// <root>/<project>/scripts/script_NNN.json.
type ScriptStore struct {
	root string
}

func NewScriptStore(root string) (*ScriptStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &ScriptStore{root: root}, nil
}

func (s *ScriptStore) scriptPath(projectID string, page int) string {
	return filepath.Join(s.root, projectID, "scripts", fmt.Sprintf("script_%03d.json", page))
}

// Script reads the dialogue script for one page, or ErrNotFound.
func (s *ScriptStore) Script(projectID string, page int) (*model.Script, error) {
	data, err := os.ReadFile(s.scriptPath(projectID, page))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var script model.Script
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse script for page %d: %w", page, err)
	}
	if script.Page == 0 {
		script.Page = page
	}
	return &script, nil
}

// SaveScript writes (or overwrites) one page script.
func (s *ScriptStore) SaveScript(projectID string, script *model.Script) error {
	path := s.scriptPath(projectID, script.Page)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create scripts dir: %w", err)
	}
	data, err := json.MarshalIndent(script, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal script for page %d: %w", script.Page, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit script: %w", err)
	}
	return nil
}

// Pages lists all page numbers that have a script, in ascending order.
func (s *ScriptStore) Pages(projectID string) ([]int, error) {
	dir := filepath.Join(s.root, projectID, "scripts")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var pages []int
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "script_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		num := strings.TrimSuffix(strings.TrimPrefix(name, "script_"), ".json")
		page, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		pages = append(pages, page)
	}
	sort.Ints(pages)
	return pages, nil
}
