package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/slidecast/api/internal/model"
	"github.com/slidecast/api/internal/registry"
	"github.com/slidecast/api/internal/service"
)

// AudioWorker processes page and batch audio generation tasks.
type AudioWorker struct {
	audioService *service.AudioService
	registry     *registry.Registry
}

func NewAudioWorker(audioService *service.AudioService, reg *registry.Registry) *AudioWorker {
	return &AudioWorker{
		audioService: audioService,
		registry:     reg,
	}
}

// ProcessPageTask handles one page's audio generation end to end.
func (w *AudioWorker) ProcessPageTask(ctx context.Context, t *asynq.Task) error {
	var payload model.PageAudioJobPayload
	jobID, err := service.DecodeTask(t.Payload(), &payload)
	if err != nil {
		return fmt.Errorf("decode page audio task: %w", err)
	}

	log.Printf("[Worker] starting page audio job %s (project %s, page %d)", jobID, payload.ProjectID, payload.Page)
	if !w.markRunning(ctx, jobID) {
		// Cancelled before the worker picked it up.
		log.Printf("[Worker] job %s no longer runnable, skipping", jobID)
		return nil
	}

	path, err := w.audioService.GenerateForPage(ctx, payload.ProjectID, payload.Page, jobID)
	if err != nil {
		w.failJob(ctx, jobID, err.Error())
		return err
	}

	w.completeJob(ctx, jobID)
	log.Printf("[Worker] page audio job %s completed: %s", jobID, path)
	return nil
}

// ProcessBatchTask handles audio generation across every scripted page of a
// project.
func (w *AudioWorker) ProcessBatchTask(ctx context.Context, t *asynq.Task) error {
	var payload model.BatchAudioJobPayload
	jobID, err := service.DecodeTask(t.Payload(), &payload)
	if err != nil {
		return fmt.Errorf("decode batch audio task: %w", err)
	}

	log.Printf("[Worker] starting batch audio job %s (project %s)", jobID, payload.ProjectID)
	if !w.markRunning(ctx, jobID) {
		log.Printf("[Worker] job %s no longer runnable, skipping", jobID)
		return nil
	}

	paths, err := w.audioService.GenerateForProject(ctx, payload.ProjectID, jobID)
	if err != nil {
		w.failJob(ctx, jobID, err.Error())
		return err
	}

	w.completeJob(ctx, jobID)
	log.Printf("[Worker] batch audio job %s completed (%d pages)", jobID, len(paths))
	return nil
}

func (w *AudioWorker) markRunning(ctx context.Context, jobID string) bool {
	return w.registry.SetStatus(ctx, jobID, model.JobStatusRunning, registry.StatusUpdate{})
}

func (w *AudioWorker) completeJob(ctx context.Context, jobID string) {
	if !w.registry.SetStatus(ctx, jobID, model.JobStatusCompleted, registry.StatusUpdate{}) {
		log.Printf("[Worker] job %s reached a terminal state before completion", jobID)
	}
}

func (w *AudioWorker) failJob(ctx context.Context, jobID, errMsg string) {
	if !w.registry.SetStatus(ctx, jobID, model.JobStatusFailed, registry.StatusUpdate{ErrorMessage: &errMsg}) {
		log.Printf("[Worker] job %s reached a terminal state before failure could be recorded", jobID)
	}
}
