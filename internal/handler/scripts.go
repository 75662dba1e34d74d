package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/slidecast/api/internal/model"
	"github.com/slidecast/api/internal/service"
	"github.com/slidecast/api/pkg/response"
)

type ScriptHandler struct {
	service   *service.ScriptService
	validator *validator.Validate
}

func NewScriptHandler(svc *service.ScriptService, v *validator.Validate) *ScriptHandler {
	return &ScriptHandler{
		service:   svc,
		validator: v,
	}
}

// Get handles GET /api/projects/:projectId/pages/:page/script
func (h *ScriptHandler) Get(c *fiber.Ctx) error {
	page, ok := parsePage(c)
	if !ok {
		return response.ValidationError(c, "Invalid page number", nil)
	}

	script, err := h.service.Script(c.Params("projectId"), page)
	if err != nil {
		return h.mapError(c, err)
	}
	return response.OK(c, script)
}

// Generate handles POST /api/projects/:projectId/pages/:page/script
func (h *ScriptHandler) Generate(c *fiber.Ctx) error {
	page, ok := parsePage(c)
	if !ok {
		return response.ValidationError(c, "Invalid page number", nil)
	}

	var req model.GenerateScriptRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.service.StartScriptGeneration(c.Context(), c.Params("projectId"), page, req.SlideText)
	if err != nil {
		return h.mapError(c, err)
	}
	return response.Accepted(c, model.StartJobResponse{JobID: job.ID, Status: job.Status})
}

// Reorder handles PUT /api/projects/:projectId/pages/:page/dialogues/order
func (h *ScriptHandler) Reorder(c *fiber.Ctx) error {
	page, ok := parsePage(c)
	if !ok {
		return response.ValidationError(c, "Invalid page number", nil)
	}

	var req model.ReorderDialoguesRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	script, err := h.service.ReorderDialogues(c.Context(), c.Params("projectId"), page, req.DialogueIDs)
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrdering) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return h.mapError(c, err)
	}
	return response.OK(c, script)
}

// DeleteDialogue handles DELETE /api/projects/:projectId/pages/:page/dialogues/:dialogueId
func (h *ScriptHandler) DeleteDialogue(c *fiber.Ctx) error {
	page, ok := parsePage(c)
	if !ok {
		return response.ValidationError(c, "Invalid page number", nil)
	}

	err := h.service.DeleteDialogue(c.Context(), c.Params("projectId"), page, c.Params("dialogueId"))
	if err != nil {
		return h.mapError(c, err)
	}
	return response.NoContent(c)
}

func (h *ScriptHandler) mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		return response.NotFound(c, "Project not found")
	case errors.Is(err, service.ErrScriptNotFound):
		return response.NotFound(c, "Script not found")
	case errors.Is(err, service.ErrDialogueNotFound):
		return response.NotFound(c, "Dialogue not found")
	}
	return response.ServiceError(c, err.Error())
}
