package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/slidecast/api/internal/audio"
	"github.com/slidecast/api/internal/client"
	"github.com/slidecast/api/internal/config"
	"github.com/slidecast/api/internal/model"
	"github.com/slidecast/api/internal/registry"
	"github.com/slidecast/api/internal/storage"
)

// Domain errors surfaced to the API layer.
var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrScriptNotFound   = errors.New("script not found")
	ErrDialogueNotFound = errors.New("dialogue not found")
	ErrInvalidOrdering  = errors.New("invalid ordering")
	ErrMirrorDisabled   = errors.New("storage mirror not configured")
)

const openingPage = 1

// AudioService drives dialogue synthesis: per line, per page, and per
// project. It owns the consistency of merged page audio; every artifact
// mutation funnels through AssemblePage.
type AudioService struct {
	tts       client.Synthesizer
	voices    client.VoiceResolver
	artifacts *storage.ArtifactStore
	scripts   *storage.ScriptStore
	registry  *registry.Registry
	queue     Enqueuer
	mirror    client.StorageClient // optional
	assets    config.AssetConfig
}

// NewAudioService wires the generation pipeline. mirror may be nil.
func NewAudioService(
	tts client.Synthesizer,
	voices client.VoiceResolver,
	artifacts *storage.ArtifactStore,
	scripts *storage.ScriptStore,
	reg *registry.Registry,
	queue Enqueuer,
	mirror client.StorageClient,
	assets config.AssetConfig,
) *AudioService {
	return &AudioService{
		tts:       tts,
		voices:    voices,
		artifacts: artifacts,
		scripts:   scripts,
		registry:  reg,
		queue:     queue,
		mirror:    mirror,
		assets:    assets,
	}
}

// StartPageGeneration creates an audio job for one page and queues it. Total
// steps equal the page's dialogue count so per-line increments land on a
// meaningful fraction.
func (s *AudioService) StartPageGeneration(ctx context.Context, projectID string, page int) (model.Job, error) {
	script, err := s.scripts.Script(projectID, page)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Job{}, ErrScriptNotFound
		}
		return model.Job{}, err
	}

	job, err := s.registry.Create(ctx, model.JobTypeAudioGeneration, len(script.Dialogues))
	if err != nil {
		return model.Job{}, err
	}

	task, err := newTask(TaskTypePageAudio, job.ID, model.PageAudioJobPayload{ProjectID: projectID, Page: page})
	if err != nil {
		return model.Job{}, err
	}
	if _, err := s.queue.Enqueue(task, asynq.Queue("audio"), asynq.MaxRetry(0), asynq.Retention(24*time.Hour)); err != nil {
		return model.Job{}, fmt.Errorf("enqueue page audio task: %w", err)
	}
	return job, nil
}

// StartBatchGeneration creates an audio job spanning every scripted page of
// the project and queues it. Total steps equal the page count.
func (s *AudioService) StartBatchGeneration(ctx context.Context, projectID string) (model.Job, error) {
	if !s.artifacts.ProjectExists(projectID) {
		return model.Job{}, ErrProjectNotFound
	}
	pages, err := s.scripts.Pages(projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Job{}, ErrScriptNotFound
		}
		return model.Job{}, err
	}
	if len(pages) == 0 {
		return model.Job{}, ErrScriptNotFound
	}

	job, err := s.registry.Create(ctx, model.JobTypeAudioGeneration, len(pages))
	if err != nil {
		return model.Job{}, err
	}

	task, err := newTask(TaskTypeBatchAudio, job.ID, model.BatchAudioJobPayload{ProjectID: projectID})
	if err != nil {
		return model.Job{}, err
	}
	if _, err := s.queue.Enqueue(task, asynq.Queue("audio"), asynq.MaxRetry(0), asynq.Retention(24*time.Hour)); err != nil {
		return model.Job{}, fmt.Errorf("enqueue batch audio task: %w", err)
	}
	return job, nil
}

// SynthesizeDialogue is the synchronous single-line path: synthesize one
// dialogue, persist its artifact, and immediately reassemble the page so the
// caller sees a consistent merged track after an edit.
func (s *AudioService) SynthesizeDialogue(ctx context.Context, projectID string, page int, dialogueID string) (string, error) {
	script, err := s.scripts.Script(projectID, page)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrScriptNotFound
		}
		return "", err
	}
	dialogue := script.Find(dialogueID)
	if dialogue == nil {
		return "", ErrDialogueNotFound
	}

	path, err := s.synthesizeLine(ctx, projectID, page, dialogue)
	if err != nil {
		return "", err
	}

	if _, err := s.AssemblePage(ctx, projectID, page); err != nil {
		return "", fmt.Errorf("reassemble page %d: %w", page, err)
	}
	return path, nil
}

// synthesizeLine produces and persists one per-line artifact. Prop-role
// lines under the special group get the gadget sound clip prepended.
func (s *AudioService) synthesizeLine(ctx context.Context, projectID string, page int, d *model.Dialogue) (string, error) {
	audioBytes, err := s.tts.Synthesize(ctx, d.Content, d.Role, d.Emotion, d.Speed)
	if err != nil {
		return "", err
	}

	if s.voices.IsPropRole(d.Role) && s.voices.IsSpecialGroup() {
		if clip, err := os.ReadFile(s.assets.PropClip); err == nil {
			audioBytes = audio.Join([][]byte{clip, audioBytes})
		} else {
			log.Printf("[Audio] prop clip unreadable, keeping plain line audio: %v", err)
		}
	}

	path, err := s.artifacts.SaveDialogueAudio(projectID, page, d.ID, audioBytes)
	if err != nil {
		return "", err
	}
	log.Printf("[Audio] synthesized dialogue %s (project %s, page %d)", d.ID, projectID, page)
	return path, nil
}

// AssemblePage rebuilds the merged page audio from the artifacts that exist
// right now, in current script order. Missing line artifacts are skipped.
// Page 1 gets the cold-open clip when enabled and present. An empty result
// leaves any previous page artifact untouched and returns "".
func (s *AudioService) AssemblePage(ctx context.Context, projectID string, page int) (string, error) {
	script, err := s.scripts.Script(projectID, page)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrScriptNotFound
		}
		return "", err
	}
	return s.assembleOrdered(ctx, projectID, page, script.DialogueIDs())
}

// assembleOrdered is AssemblePage with an explicit ordering, used directly
// after reorders before the script write is observable.
func (s *AudioService) assembleOrdered(ctx context.Context, projectID string, page int, orderedIDs []string) (string, error) {
	var segments [][]byte

	if page == openingPage && s.assets.ColdOpen {
		if clip, err := os.ReadFile(s.assets.ColdOpenClip); err == nil {
			segments = append(segments, clip)
		}
	}

	for _, id := range orderedIDs {
		data, err := s.artifacts.DialogueAudio(projectID, page, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return "", err
		}
		segments = append(segments, data)
	}

	if len(segments) == 0 {
		log.Printf("[Audio] page %d of project %s has no line audio yet, keeping previous merge", page, projectID)
		return "", nil
	}

	merged := audio.Join(segments)
	path, err := s.artifacts.SavePageAudio(projectID, page, merged)
	if err != nil {
		return "", err
	}
	log.Printf("[Audio] assembled page %d of project %s (%d segments, %d bytes)", page, projectID, len(segments), len(merged))

	s.mirrorPage(ctx, projectID, page, merged)
	return path, nil
}

func pageMirrorKey(projectID string, page int) string {
	return fmt.Sprintf("audio/%s/page_%03d.mp3", projectID, page)
}

// mirrorPage uploads the merged page audio to object storage when a mirror
// is configured. Mirror failures never fail the pipeline.
func (s *AudioService) mirrorPage(ctx context.Context, projectID string, page int, merged []byte) {
	if s.mirror == nil {
		return
	}
	key := pageMirrorKey(projectID, page)
	if _, err := s.mirror.Upload(ctx, key, bytes.NewReader(merged), "audio/mpeg"); err != nil {
		log.Printf("[Audio] mirror upload failed for %s: %v", key, err)
	}
}

// PageAudioURL returns a time-limited download URL for the mirrored page
// artifact. The page must have been assembled locally first.
func (s *AudioService) PageAudioURL(ctx context.Context, projectID string, page int, expiry time.Duration) (string, error) {
	if s.mirror == nil {
		return "", ErrMirrorDisabled
	}
	if _, err := s.artifacts.PageAudio(projectID, page); err != nil {
		return "", err
	}
	return s.mirror.GetSignedURL(ctx, pageMirrorKey(projectID, page), expiry)
}

// DeleteDialogueAudio removes one line's artifact after its dialogue was
// deleted from the script, then reassembles the page from the remaining
// ordering. This and ReorderDialogues are the only places order changes
// become durable in the merged track.
func (s *AudioService) DeleteDialogueAudio(ctx context.Context, projectID string, page int, dialogueID string) error {
	if err := s.artifacts.DeleteDialogueAudio(projectID, page, dialogueID); err != nil {
		return err
	}
	_, err := s.AssemblePage(ctx, projectID, page)
	if err != nil && !errors.Is(err, ErrScriptNotFound) {
		return err
	}
	return nil
}

// GenerateForPage synthesizes every dialogue on a page sequentially, then
// assembles the merged track. A single line's failure is logged and skipped;
// configuration failures abort immediately since no later line can succeed.
// When jobID is set, each successful line increments the job and
// cancellation is honored between lines.
func (s *AudioService) GenerateForPage(ctx context.Context, projectID string, page int, jobID string) (string, error) {
	script, err := s.scripts.Script(projectID, page)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrScriptNotFound
		}
		return "", err
	}

	generated := 0
	for i := range script.Dialogues {
		if s.jobCancelled(jobID) {
			log.Printf("[Audio] job %s cancelled, stopping before next line", jobID)
			break
		}

		d := &script.Dialogues[i]
		if _, err := s.synthesizeLine(ctx, projectID, page, d); err != nil {
			if client.FailureKindOf(err) == client.FailureConfig {
				return "", err
			}
			log.Printf("[Audio] dialogue %s failed, skipping: %v", d.ID, err)
			continue
		}
		generated++
		if jobID != "" {
			s.registry.Increment(ctx, jobID)
		}
	}

	path, err := s.assembleOrdered(ctx, projectID, page, script.DialogueIDs())
	if err != nil {
		return "", err
	}
	if path == "" && generated == 0 {
		return "", fmt.Errorf("page %d produced no line audio", page)
	}
	return path, nil
}

// GenerateForProject synthesizes every scripted page in order. A page error
// aborts the batch. When jobID is set it counts pages, not lines, and
// cancellation is honored between pages.
func (s *AudioService) GenerateForProject(ctx context.Context, projectID string, jobID string) ([]string, error) {
	if !s.artifacts.ProjectExists(projectID) {
		return nil, ErrProjectNotFound
	}
	pages, err := s.scripts.Pages(projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrScriptNotFound
		}
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrScriptNotFound
	}

	var paths []string
	for _, page := range pages {
		if s.jobCancelled(jobID) {
			log.Printf("[Audio] job %s cancelled, stopping before page %d", jobID, page)
			break
		}

		path, err := s.GenerateForPage(ctx, projectID, page, "")
		if err != nil {
			return nil, fmt.Errorf("generate page %d: %w", page, err)
		}
		paths = append(paths, path)
		if jobID != "" {
			s.registry.Increment(ctx, jobID)
		}
	}
	return paths, nil
}

// jobCancelled reports whether the tracked job reached a terminal state out
// from under the orchestrator, which only cancel can cause.
func (s *AudioService) jobCancelled(jobID string) bool {
	if jobID == "" {
		return false
	}
	job, ok := s.registry.Get(jobID)
	return ok && job.Status.IsTerminal()
}
