// Package storage owns the on-disk project layout: page scripts, per-line
// audio artifacts and merged page audio.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when a requested blob or script does not exist.
var ErrNotFound = errors.New("not found")

// ArtifactStore is addressable binary storage for audio artifacts.
// Per-line audio lives at <root>/<project>/audio/page_NNN/<dialogueID>.mp3,
// merged page audio at <root>/<project>/audio/page_NNN.mp3.
type ArtifactStore struct {
	root string
}

func NewArtifactStore(root string) (*ArtifactStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &ArtifactStore{root: root}, nil
}

func pageDirName(page int) string {
	return fmt.Sprintf("page_%03d", page)
}

// ProjectExists reports whether a project directory is present.
func (s *ArtifactStore) ProjectExists(projectID string) bool {
	info, err := os.Stat(filepath.Join(s.root, projectID))
	return err == nil && info.IsDir()
}

// DialoguePath returns the on-disk location of a per-line artifact whether or
// not it exists yet.
func (s *ArtifactStore) DialoguePath(projectID string, page int, dialogueID string) string {
	return filepath.Join(s.root, projectID, "audio", pageDirName(page), dialogueID+".mp3")
}

// PagePath returns the on-disk location of a merged page artifact.
func (s *ArtifactStore) PagePath(projectID string, page int) string {
	return filepath.Join(s.root, projectID, "audio", pageDirName(page)+".mp3")
}

// SaveDialogueAudio writes (or overwrites) a per-line artifact and returns
// its path.
func (s *ArtifactStore) SaveDialogueAudio(projectID string, page int, dialogueID string, data []byte) (string, error) {
	path := s.DialoguePath(projectID, page, dialogueID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create page audio dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write dialogue audio: %w", err)
	}
	return path, nil
}

// DialogueAudio returns the bytes of a per-line artifact, or ErrNotFound.
func (s *ArtifactStore) DialogueAudio(projectID string, page int, dialogueID string) ([]byte, error) {
	data, err := os.ReadFile(s.DialoguePath(projectID, page, dialogueID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// HasDialogueAudio reports whether a per-line artifact exists.
func (s *ArtifactStore) HasDialogueAudio(projectID string, page int, dialogueID string) bool {
	_, err := os.Stat(s.DialoguePath(projectID, page, dialogueID))
	return err == nil
}

// DeleteDialogueAudio removes a per-line artifact. Missing artifacts are not
// an error; deletion of a never-synthesized line is a no-op.
func (s *ArtifactStore) DeleteDialogueAudio(projectID string, page int, dialogueID string) error {
	err := os.Remove(s.DialoguePath(projectID, page, dialogueID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete dialogue audio: %w", err)
	}
	return nil
}

// SavePageAudio writes (or overwrites) a merged page artifact and returns its
// path. The write is staged through a temp file so concurrent readers never
// see a partial merge.
func (s *ArtifactStore) SavePageAudio(projectID string, page int, data []byte) (string, error) {
	path := s.PagePath(projectID, page)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write page audio: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("commit page audio: %w", err)
	}
	return path, nil
}

// PageAudio returns the bytes of a merged page artifact, or ErrNotFound.
func (s *ArtifactStore) PageAudio(projectID string, page int) ([]byte, error) {
	data, err := os.ReadFile(s.PagePath(projectID, page))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}
