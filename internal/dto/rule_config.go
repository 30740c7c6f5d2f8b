package dto

import (
	"time"

	"github.com/noah-isme/applytrack-api/internal/models"
)

// RuleConfigResponse is the rule configuration as exposed via API.
type RuleConfigResponse struct {
	Version   int               `json:"version"`
	IsDefault bool              `json:"isDefault"`
	Config    models.RuleConfig `json:"config"`
	UpdatedAt *time.Time        `json:"updatedAt,omitempty"`
}

// UpdateRuleConfigRequest replaces a user's rule configuration. Handlers decode it
// over the current configuration so omitted sections keep their values.
type UpdateRuleConfigRequest struct {
	models.RuleConfig
}
