package handler

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/slidecast/api/internal/client"
	"github.com/slidecast/api/internal/model"
	"github.com/slidecast/api/internal/service"
	"github.com/slidecast/api/internal/storage"
	"github.com/slidecast/api/pkg/response"
)

type AudioHandler struct {
	service   *service.AudioService
	artifacts *storage.ArtifactStore
	validator *validator.Validate
}

func NewAudioHandler(svc *service.AudioService, artifacts *storage.ArtifactStore, v *validator.Validate) *AudioHandler {
	return &AudioHandler{
		service:   svc,
		artifacts: artifacts,
		validator: v,
	}
}

// SynthesizeDialogue handles POST /api/projects/:projectId/pages/:page/dialogues/:dialogueId/audio
// This is the synchronous single-line path: the response carries the artifact
// path once synthesis and page reassembly are done.
func (h *AudioHandler) SynthesizeDialogue(c *fiber.Ctx) error {
	page, ok := parsePage(c)
	if !ok {
		return response.ValidationError(c, "Invalid page number", nil)
	}
	projectID := c.Params("projectId")
	dialogueID := c.Params("dialogueId")

	path, err := h.service.SynthesizeDialogue(c.Context(), projectID, page, dialogueID)
	if err != nil {
		return h.mapError(c, err)
	}
	return response.OK(c, model.SynthesizeDialogueResponse{
		DialogueID: dialogueID,
		Page:       page,
		AudioPath:  path,
	})
}

// StartPageGeneration handles POST /api/projects/:projectId/pages/:page/audio
func (h *AudioHandler) StartPageGeneration(c *fiber.Ctx) error {
	page, ok := parsePage(c)
	if !ok {
		return response.ValidationError(c, "Invalid page number", nil)
	}

	job, err := h.service.StartPageGeneration(c.Context(), c.Params("projectId"), page)
	if err != nil {
		return h.mapError(c, err)
	}
	return response.Accepted(c, model.StartJobResponse{JobID: job.ID, Status: job.Status})
}

// StartBatchGeneration handles POST /api/projects/:projectId/audio
func (h *AudioHandler) StartBatchGeneration(c *fiber.Ctx) error {
	job, err := h.service.StartBatchGeneration(c.Context(), c.Params("projectId"))
	if err != nil {
		return h.mapError(c, err)
	}
	return response.Accepted(c, model.StartJobResponse{JobID: job.ID, Status: job.Status})
}

// GetPageAudio handles GET /api/projects/:projectId/pages/:page/audio
func (h *AudioHandler) GetPageAudio(c *fiber.Ctx) error {
	page, ok := parsePage(c)
	if !ok {
		return response.ValidationError(c, "Invalid page number", nil)
	}

	data, err := h.artifacts.PageAudio(c.Params("projectId"), page)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return response.NotFound(c, "Page audio not found")
		}
		return response.ServiceError(c, err.Error())
	}
	c.Set(fiber.HeaderContentType, "audio/mpeg")
	return c.Send(data)
}

// GetPageAudioURL handles GET /api/projects/:projectId/pages/:page/audio/url
// It hands out a time-limited link to the mirrored copy for CDN delivery.
func (h *AudioHandler) GetPageAudioURL(c *fiber.Ctx) error {
	page, ok := parsePage(c)
	if !ok {
		return response.ValidationError(c, "Invalid page number", nil)
	}

	url, err := h.service.PageAudioURL(c.Context(), c.Params("projectId"), page, 15*time.Minute)
	if err != nil {
		if errors.Is(err, service.ErrMirrorDisabled) {
			return response.NotFound(c, "Page audio is not mirrored")
		}
		if errors.Is(err, storage.ErrNotFound) {
			return response.NotFound(c, "Page audio not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, fiber.Map{"url": url})
}

// GetDialogueAudio handles GET /api/projects/:projectId/pages/:page/dialogues/:dialogueId/audio
func (h *AudioHandler) GetDialogueAudio(c *fiber.Ctx) error {
	page, ok := parsePage(c)
	if !ok {
		return response.ValidationError(c, "Invalid page number", nil)
	}

	data, err := h.artifacts.DialogueAudio(c.Params("projectId"), page, c.Params("dialogueId"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return response.NotFound(c, "Dialogue audio not found")
		}
		return response.ServiceError(c, err.Error())
	}
	c.Set(fiber.HeaderContentType, "audio/mpeg")
	return c.Send(data)
}

func (h *AudioHandler) mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		return response.NotFound(c, "Project not found")
	case errors.Is(err, service.ErrScriptNotFound):
		return response.NotFound(c, "Script not found")
	case errors.Is(err, service.ErrDialogueNotFound):
		return response.NotFound(c, "Dialogue not found")
	}

	var synthErr *client.SynthesisError
	if errors.As(err, &synthErr) {
		return response.SynthesisError(c, synthErr.Error())
	}
	return response.ServiceError(c, err.Error())
}
