package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/applytrack-api/internal/dto"
	"github.com/noah-isme/applytrack-api/internal/middleware"
	"github.com/noah-isme/applytrack-api/internal/models"
	appErrors "github.com/noah-isme/applytrack-api/pkg/errors"
	"github.com/noah-isme/applytrack-api/pkg/response"
)

type automationService interface {
	Preview(ctx context.Context, userID string) (*dto.PreviewResponse, error)
	Inactivity(ctx context.Context, userID, applicationID string) (*dto.InactivityResponse, error)
	Evaluate(ctx context.Context, userID string, req dto.EvaluateRequest) (*dto.EvaluateResponse, error)
	ListRuns(ctx context.Context, userID string, query dto.ListRunsQuery) ([]models.AutomationRun, *models.Pagination, error)
	GetRun(ctx context.Context, userID, runID string) (*dto.RunDetail, error)
	ExportRun(ctx context.Context, userID, runID, format string) (*dto.ExportFile, error)
}

type runEnqueuer interface {
	EnqueueRun(userID string) (*dto.RunAcceptedResponse, error)
}

// AutomationHandler exposes rule engine endpoints.
type AutomationHandler struct {
	service automationService
	queue   runEnqueuer
}

// NewAutomationHandler constructs the handler.
func NewAutomationHandler(service automationService, queue runEnqueuer) *AutomationHandler {
	return &AutomationHandler{service: service, queue: queue}
}

// Preview godoc
// @Summary Rule match counts
// @Description Number of applications each rule currently matches. Nothing is changed.
// @Tags Automation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /automation/preview [get]
func (h *AutomationHandler) Preview(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	preview, err := h.service.Preview(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "cache_hit", preview.Cached)
	response.JSON(c, http.StatusOK, preview, nil, middleware.Meta(c))
}

// Run godoc
// @Summary Trigger an automation run
// @Description Queues a run for the caller. Returns immediately.
// @Tags Automation
// @Produce json
// @Security BearerAuth
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /automation/run [post]
func (h *AutomationHandler) Run(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.queue == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "automation is disabled"))
		return
	}
	accepted, err := h.queue.EnqueueRun(userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, accepted)
}

// Evaluate godoc
// @Summary Dry-run the rule engine
// @Description Evaluates a supplied snapshot. The stored configuration is used when none is supplied.
// @Tags Automation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.EvaluateRequest true "Snapshot"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /automation/evaluate [post]
func (h *AutomationHandler) Evaluate(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	result, err := h.service.Evaluate(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Inactivity godoc
// @Summary Follow-up reminder state
// @Tags Automation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /automation/applications/{id}/inactivity [get]
func (h *AutomationHandler) Inactivity(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Inactivity(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListRuns godoc
// @Summary Automation run history
// @Tags Automation
// @Produce json
// @Security BearerAuth
// @Param status query []string false "Run status filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /automation/runs [get]
func (h *AutomationHandler) ListRuns(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.ListRunsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query"))
		return
	}
	runs, pagination, err := h.service.ListRuns(c.Request.Context(), userID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// GetRun godoc
// @Summary Automation run detail
// @Tags Automation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /automation/runs/{id} [get]
func (h *AutomationHandler) GetRun(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.service.GetRun(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// ExportRun godoc
// @Summary Download an automation run log
// @Tags Automation
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /automation/runs/{id}/export [get]
func (h *AutomationHandler) ExportRun(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.ExportRun(c.Request.Context(), userID, c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
