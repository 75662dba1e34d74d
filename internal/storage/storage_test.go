package storage

import (
	"errors"
	"testing"

	"github.com/slidecast/api/internal/model"
)

func TestArtifactStoreLifecycle(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if store.ProjectExists("p1") {
		t.Error("project should not exist yet")
	}
	if _, err := store.DialogueAudio("p1", 1, "d1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if _, err := store.SaveDialogueAudio("p1", 1, "d1", []byte("bytes")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !store.ProjectExists("p1") {
		t.Error("saving an artifact should create the project directory")
	}
	if !store.HasDialogueAudio("p1", 1, "d1") {
		t.Error("artifact should exist after save")
	}

	data, err := store.DialogueAudio("p1", 1, "d1")
	if err != nil || string(data) != "bytes" {
		t.Errorf("read back %q, %v", data, err)
	}

	// Overwrite replaces, never appends.
	if _, err := store.SaveDialogueAudio("p1", 1, "d1", []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, _ = store.DialogueAudio("p1", 1, "d1")
	if string(data) != "v2" {
		t.Errorf("after overwrite got %q, want v2", data)
	}

	if err := store.DeleteDialogueAudio("p1", 1, "d1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Deleting a missing artifact is a no-op.
	if err := store.DeleteDialogueAudio("p1", 1, "d1"); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}

func TestPageAudioRoundTrip(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.PageAudio("p1", 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := store.SavePageAudio("p1", 2, []byte("merged")); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := store.PageAudio("p1", 2)
	if err != nil || string(data) != "merged" {
		t.Errorf("read back %q, %v", data, err)
	}
}

func TestScriptStorePages(t *testing.T) {
	store, err := NewScriptStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Pages("p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for unknown project", err)
	}

	for _, page := range []int{3, 1, 10} {
		script := &model.Script{Page: page, Dialogues: []model.Dialogue{
			{ID: "a", Role: "teacher", Content: "hi"},
		}}
		if err := store.SaveScript("p1", script); err != nil {
			t.Fatalf("save page %d: %v", page, err)
		}
	}

	pages, err := store.Pages("p1")
	if err != nil {
		t.Fatalf("pages: %v", err)
	}
	want := []int{1, 3, 10}
	if len(pages) != len(want) {
		t.Fatalf("pages = %v, want %v", pages, want)
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Fatalf("pages = %v, want %v (ascending)", pages, want)
		}
	}

	got, err := store.Script("p1", 3)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	if got.Page != 3 || len(got.Dialogues) != 1 {
		t.Errorf("unexpected script: %+v", got)
	}
}
