package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/slidecast/api/internal/client"
	"github.com/slidecast/api/internal/model"
	"github.com/slidecast/api/internal/registry"
	"github.com/slidecast/api/internal/storage"
)

const scriptSystemPrompt = `You write short teaching dialogues for lecture slides. ` +
	`Given the text of one slide, respond with a JSON array of dialogue lines, ` +
	`each an object with "role", "content", "emotion" and "speed" fields. ` +
	`Respond with the JSON array only.`

// ScriptService manages page dialogue scripts: reading, LLM generation, and
// the edit operations that must keep page audio consistent.
type ScriptService struct {
	llm      *client.LLMClient
	scripts  *storage.ScriptStore
	audio    *AudioService
	registry *registry.Registry
	queue    Enqueuer
}

func NewScriptService(
	llm *client.LLMClient,
	scripts *storage.ScriptStore,
	audioSvc *AudioService,
	reg *registry.Registry,
	queue Enqueuer,
) *ScriptService {
	return &ScriptService{
		llm:      llm,
		scripts:  scripts,
		audio:    audioSvc,
		registry: reg,
		queue:    queue,
	}
}

// Script returns one page's dialogue script.
func (s *ScriptService) Script(projectID string, page int) (*model.Script, error) {
	script, err := s.scripts.Script(projectID, page)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrScriptNotFound
		}
		return nil, err
	}
	return script, nil
}

// StartScriptGeneration creates a script job for one page and queues it.
// The project directory is created on first save, so a fresh project can
// start here.
func (s *ScriptService) StartScriptGeneration(ctx context.Context, projectID string, page int, slideText string) (model.Job, error) {
	job, err := s.registry.Create(ctx, model.JobTypeScriptGeneration, 1)
	if err != nil {
		return model.Job{}, err
	}

	task, err := newTask(TaskTypeScript, job.ID, model.ScriptJobPayload{
		ProjectID: projectID,
		Page:      page,
		SlideText: slideText,
	})
	if err != nil {
		return model.Job{}, err
	}
	if _, err := s.queue.Enqueue(task, asynq.Queue("script"), asynq.MaxRetry(0), asynq.Retention(24*time.Hour)); err != nil {
		return model.Job{}, fmt.Errorf("enqueue script task: %w", err)
	}
	return job, nil
}

// GenerateScript asks the LLM for a page dialogue and persists the result.
// Called from the script worker.
func (s *ScriptService) GenerateScript(ctx context.Context, projectID string, page int, slideText string) (*model.Script, error) {
	if !s.llm.IsConfigured() {
		return nil, errors.New("LLM credentials not configured")
	}

	raw, err := s.llm.ChatCompletion(ctx, scriptSystemPrompt, slideText)
	if err != nil {
		return nil, fmt.Errorf("script generation: %w", err)
	}

	dialogues, err := parseDialogues(raw)
	if err != nil {
		return nil, fmt.Errorf("parse generated script: %w", err)
	}

	script := &model.Script{Page: page, Dialogues: dialogues}
	if err := s.scripts.SaveScript(projectID, script); err != nil {
		return nil, err
	}
	return script, nil
}

// parseDialogues decodes an LLM response into dialogue lines, tolerating
// markdown code fences and filling in ids and tag defaults.
func parseDialogues(raw string) ([]model.Dialogue, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var dialogues []model.Dialogue
	if err := json.Unmarshal([]byte(trimmed), &dialogues); err != nil {
		return nil, err
	}
	if len(dialogues) == 0 {
		return nil, errors.New("empty dialogue list")
	}

	for i := range dialogues {
		if dialogues[i].ID == "" {
			dialogues[i].ID = uuid.New().String()
		}
		if dialogues[i].Emotion == "" {
			dialogues[i].Emotion = model.EmotionAuto
		}
		if dialogues[i].Speed == "" {
			dialogues[i].Speed = model.SpeedNormal
		}
	}
	return dialogues, nil
}

// DeleteDialogue removes one line from a page script and drops its audio,
// reassembling the page from what remains.
func (s *ScriptService) DeleteDialogue(ctx context.Context, projectID string, page int, dialogueID string) error {
	script, err := s.Script(projectID, page)
	if err != nil {
		return err
	}

	kept := script.Dialogues[:0]
	found := false
	for _, d := range script.Dialogues {
		if d.ID == dialogueID {
			found = true
			continue
		}
		kept = append(kept, d)
	}
	if !found {
		return ErrDialogueNotFound
	}
	script.Dialogues = kept

	if err := s.scripts.SaveScript(projectID, script); err != nil {
		return err
	}
	return s.audio.DeleteDialogueAudio(ctx, projectID, page, dialogueID)
}

// ReorderDialogues rewrites a page's dialogue order. ids must be a
// permutation of the current ids. The merged page audio is reassembled in
// the new order without re-synthesizing any line.
func (s *ScriptService) ReorderDialogues(ctx context.Context, projectID string, page int, ids []string) (*model.Script, error) {
	script, err := s.Script(projectID, page)
	if err != nil {
		return nil, err
	}
	if len(ids) != len(script.Dialogues) {
		return nil, fmt.Errorf("%w: got %d ids, script has %d dialogues", ErrInvalidOrdering, len(ids), len(script.Dialogues))
	}

	byID := make(map[string]model.Dialogue, len(script.Dialogues))
	for _, d := range script.Dialogues {
		byID[d.ID] = d
	}

	reordered := make([]model.Dialogue, 0, len(ids))
	for _, id := range ids {
		d, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown dialogue id %q", ErrInvalidOrdering, id)
		}
		delete(byID, id)
		reordered = append(reordered, d)
	}
	script.Dialogues = reordered

	if err := s.scripts.SaveScript(projectID, script); err != nil {
		return nil, err
	}
	if _, err := s.audio.AssemblePage(ctx, projectID, page); err != nil {
		return nil, err
	}
	return script, nil
}
