package handler

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/slidecast/api/internal/model"
	"github.com/slidecast/api/internal/registry"
	"github.com/slidecast/api/pkg/response"
)

type JobHandler struct {
	registry  *registry.Registry
	validator *validator.Validate
}

func NewJobHandler(reg *registry.Registry, v *validator.Validate) *JobHandler {
	return &JobHandler{
		registry:  reg,
		validator: v,
	}
}

// Create handles POST /api/jobs
func (h *JobHandler) Create(c *fiber.Ctx) error {
	var req model.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	if !model.IsValidJobType(req.Type) {
		return response.ValidationError(c, "Unknown job type", nil)
	}

	job, err := h.registry.Create(c.Context(), req.Type, req.TotalSteps)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.Created(c, job)
}

// List handles GET /api/jobs
func (h *JobHandler) List(c *fiber.Ctx) error {
	jobType := model.JobType(c.Query("type"))
	if jobType != "" && !model.IsValidJobType(jobType) {
		return response.ValidationError(c, "Unknown job type", nil)
	}
	return response.OK(c, h.registry.List(jobType))
}

// ListRunning handles GET /api/jobs/running
func (h *JobHandler) ListRunning(c *fiber.Ctx) error {
	return response.OK(c, h.registry.ListRunning())
}

// Get handles GET /api/jobs/:jobId
func (h *JobHandler) Get(c *fiber.Ctx) error {
	job, ok := h.registry.Get(c.Params("jobId"))
	if !ok {
		return response.NotFound(c, "Job not found")
	}
	return response.OK(c, job)
}

// Cancel handles POST /api/jobs/:jobId/cancel
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	job, ok := h.registry.Get(jobID)
	if !ok {
		return response.NotFound(c, "Job not found")
	}
	if job.Status.IsTerminal() {
		return response.Conflict(c, "Job already finished")
	}

	h.registry.Cancel(c.Context(), jobID)
	job, _ = h.registry.Get(jobID)
	return response.OK(c, job)
}

// Delete handles DELETE /api/jobs/:jobId
func (h *JobHandler) Delete(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	job, ok := h.registry.Get(jobID)
	if !ok {
		return response.NotFound(c, "Job not found")
	}
	if !job.Status.IsTerminal() {
		return response.Conflict(c, "Job still in progress")
	}

	h.registry.Delete(c.Context(), jobID)
	return response.NoContent(c)
}

func parsePage(c *fiber.Ctx) (int, bool) {
	page, err := strconv.Atoi(c.Params("page"))
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
