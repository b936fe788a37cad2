package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/finledger/api/internal/middleware"
	"github.com/finledger/api/internal/model"
	"github.com/finledger/api/internal/service"
	"github.com/finledger/api/internal/store"
	"github.com/finledger/api/pkg/response"
)

type ReportHandler struct {
	service   *service.ReportService
	validator *validator.Validate
}

func NewReportHandler(svc *service.ReportService, v *validator.Validate) *ReportHandler {
	return &ReportHandler{
		service:   svc,
		validator: v,
	}
}

// Submit handles POST /api/reports
func (h *ReportHandler) Submit(c *fiber.Ctx) error {
	var req model.ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	for _, section := range req.Sections {
		if !section.Valid() {
			return response.ValidationError(c, fmt.Sprintf("Unknown report section %q", section), nil)
		}
	}

	result, err := h.service.Submit(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPeriod) {
			return response.ValidationError(c, "Start date must not be after end date", nil)
		}
		return response.ServiceError(c, "Failed to submit report job")
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/reports/:jobId/status
func (h *ReportHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.Context(), middleware.GetUserID(c), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Report job not found")
		}
		return response.ServiceError(c, "Failed to load report job")
	}

	return response.OK(c, result)
}

// Download handles GET /api/reports/:jobId/download
func (h *ReportHandler) Download(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.Download(c.Context(), middleware.GetUserID(c), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Report job not found")
		}
		if errors.Is(err, service.ErrNotReady) {
			return response.NotReady(c, "Report is not ready for download")
		}
		return response.ServiceError(c, "Failed to download report")
	}

	c.Set(fiber.HeaderContentType, result.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", result.FileName))
	return c.Send(result.Content)
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
