package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/applytrack-api/internal/models"
)

// RuleConfigRepository persists per-user automation rule configuration.
type RuleConfigRepository struct {
	db *sqlx.DB
}

// NewRuleConfigRepository constructs the repository.
func NewRuleConfigRepository(db *sqlx.DB) *RuleConfigRepository {
	return &RuleConfigRepository{db: db}
}

// Get returns the stored configuration for the user or sql.ErrNoRows.
func (r *RuleConfigRepository) Get(ctx context.Context, userID string) (*models.StoredRuleConfig, error) {
	const query = `SELECT user_id, version, config, updated_at FROM automation_rule_configs WHERE user_id = $1`
	var stored models.StoredRuleConfig
	if err := r.db.GetContext(ctx, &stored, query, userID); err != nil {
		return nil, err
	}
	return &stored, nil
}

// Upsert saves the configuration, bumping the version on every write.
func (r *RuleConfigRepository) Upsert(ctx context.Context, userID string, cfg models.RuleConfig) (*models.StoredRuleConfig, error) {
	const query = `INSERT INTO automation_rule_configs (user_id, version, config, updated_at)
VALUES ($1, 1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET config = EXCLUDED.config, version = automation_rule_configs.version + 1, updated_at = EXCLUDED.updated_at
RETURNING user_id, version, config, updated_at`
	var stored models.StoredRuleConfig
	if err := r.db.QueryRowxContext(ctx, query, userID, cfg, time.Now().UTC()).StructScan(&stored); err != nil {
		return nil, fmt.Errorf("upsert rule config: %w", err)
	}
	return &stored, nil
}
