package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/applytrack-api/internal/dto"
	"github.com/noah-isme/applytrack-api/internal/models"
	appErrors "github.com/noah-isme/applytrack-api/pkg/errors"
	"github.com/noah-isme/applytrack-api/pkg/response"
)

type ruleConfigService interface {
	Get(ctx context.Context, userID string) (*models.StoredRuleConfig, error)
	Update(ctx context.Context, userID string, req dto.UpdateRuleConfigRequest) (*models.StoredRuleConfig, error)
}

// RuleConfigHandler exposes the caller's automation rule configuration.
type RuleConfigHandler struct {
	service ruleConfigService
}

// NewRuleConfigHandler constructs the handler.
func NewRuleConfigHandler(service ruleConfigService) *RuleConfigHandler {
	return &RuleConfigHandler{service: service}
}

// Get godoc
// @Summary Get automation rules
// @Tags Automation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /automation/rules [get]
func (h *RuleConfigHandler) Get(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stored, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, toRuleConfigResponse(stored), nil)
}

// Update godoc
// @Summary Update automation rules
// @Description Omitted sections keep their current values.
// @Tags Automation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.RuleConfig true "Rule configuration"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /automation/rules [put]
func (h *RuleConfigHandler) Update(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	current, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	req := dto.UpdateRuleConfigRequest{RuleConfig: current.Config}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	stored, err := h.service.Update(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, toRuleConfigResponse(stored), nil)
}

func toRuleConfigResponse(stored *models.StoredRuleConfig) dto.RuleConfigResponse {
	resp := dto.RuleConfigResponse{
		Version:   stored.Version,
		IsDefault: stored.Version == 0,
		Config:    stored.Config,
	}
	if !stored.UpdatedAt.IsZero() {
		updated := stored.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}
