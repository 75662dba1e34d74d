package service

import (
	"testing"

	"github.com/slidecast/api/internal/model"
)

func TestParseDialoguesPlainJSON(t *testing.T) {
	raw := `[{"role":"teacher","content":"Hello class."},{"role":"student","content":"Hi!","emotion":"happy","speed":"fast"}]`

	dialogues, err := parseDialogues(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(dialogues) != 2 {
		t.Fatalf("got %d dialogues, want 2", len(dialogues))
	}

	first := dialogues[0]
	if first.ID == "" {
		t.Error("missing id should be filled in")
	}
	if first.Emotion != model.EmotionAuto {
		t.Errorf("emotion = %s, want default auto", first.Emotion)
	}
	if first.Speed != model.SpeedNormal {
		t.Errorf("speed = %s, want default normal", first.Speed)
	}

	second := dialogues[1]
	if second.Emotion != model.EmotionHappy || second.Speed != model.SpeedFast {
		t.Errorf("explicit tags lost: emotion=%s speed=%s", second.Emotion, second.Speed)
	}
}

func TestParseDialoguesStripsCodeFence(t *testing.T) {
	raw := "```json\n[{\"role\":\"teacher\",\"content\":\"Fenced.\"}]\n```"

	dialogues, err := parseDialogues(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(dialogues) != 1 || dialogues[0].Content != "Fenced." {
		t.Errorf("unexpected result: %+v", dialogues)
	}
}

func TestParseDialoguesRejectsGarbage(t *testing.T) {
	if _, err := parseDialogues("the model refused to answer"); err == nil {
		t.Error("expected error for non-JSON response")
	}
	if _, err := parseDialogues("[]"); err == nil {
		t.Error("expected error for empty dialogue list")
	}
}
