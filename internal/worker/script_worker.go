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

// ScriptWorker processes LLM script generation tasks.
type ScriptWorker struct {
	scriptService *service.ScriptService
	registry      *registry.Registry
}

func NewScriptWorker(scriptService *service.ScriptService, reg *registry.Registry) *ScriptWorker {
	return &ScriptWorker{
		scriptService: scriptService,
		registry:      reg,
	}
}

// ProcessTask generates one page's dialogue script from slide text.
func (w *ScriptWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.ScriptJobPayload
	jobID, err := service.DecodeTask(t.Payload(), &payload)
	if err != nil {
		return fmt.Errorf("decode script task: %w", err)
	}

	log.Printf("[Worker] starting script job %s (project %s, page %d)", jobID, payload.ProjectID, payload.Page)
	if !w.registry.SetStatus(ctx, jobID, model.JobStatusRunning, registry.StatusUpdate{}) {
		log.Printf("[Worker] job %s no longer runnable, skipping", jobID)
		return nil
	}

	script, err := w.scriptService.GenerateScript(ctx, payload.ProjectID, payload.Page, payload.SlideText)
	if err != nil {
		errMsg := err.Error()
		if !w.registry.SetStatus(ctx, jobID, model.JobStatusFailed, registry.StatusUpdate{ErrorMessage: &errMsg}) {
			log.Printf("[Worker] job %s reached a terminal state before failure could be recorded", jobID)
		}
		return err
	}

	w.registry.Increment(ctx, jobID)
	w.registry.SetStatus(ctx, jobID, model.JobStatusCompleted, registry.StatusUpdate{})
	log.Printf("[Worker] script job %s completed (%d dialogues)", jobID, len(script.Dialogues))
	return nil
}
