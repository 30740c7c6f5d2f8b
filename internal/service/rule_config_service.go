package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/applytrack-api/internal/dto"
	"github.com/noah-isme/applytrack-api/internal/models"
	appErrors "github.com/noah-isme/applytrack-api/pkg/errors"
)

type ruleConfigRepository interface {
	Get(ctx context.Context, userID string) (*models.StoredRuleConfig, error)
	Upsert(ctx context.Context, userID string, cfg models.RuleConfig) (*models.StoredRuleConfig, error)
}

// RuleConfigService validates and stores per-user automation rules.
type RuleConfigService struct {
	repo      ruleConfigRepository
	cache     *CacheService
	validator *validator.Validate
	defaults  models.RuleConfig
	logger    *zap.Logger
}

// RuleConfigServiceOption customises the service.
type RuleConfigServiceOption func(*RuleConfigService)

// WithDefaultRules overrides the configuration served to users without a saved one.
func WithDefaultRules(cfg models.RuleConfig) RuleConfigServiceOption {
	return func(s *RuleConfigService) {
		s.defaults = cfg
	}
}

// NewRuleConfigService constructs the service.
func NewRuleConfigService(repo ruleConfigRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, opts ...RuleConfigServiceOption) *RuleConfigService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	registerRuleValidations(validate)
	svc := &RuleConfigService{
		repo:      repo,
		cache:     cache,
		validator: validate,
		defaults:  models.DefaultRuleConfig(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func registerRuleValidations(validate *validator.Validate) {
	_ = validate.RegisterValidation("pipeline_status", func(fl validator.FieldLevel) bool {
		return models.ApplicationStatus(fl.Field().String()).Valid()
	})
}

// Defaults returns the configuration used for users without a saved one.
func (s *RuleConfigService) Defaults() models.RuleConfig {
	return s.defaults
}

// Get returns the stored configuration, or the defaults at version 0.
func (s *RuleConfigService) Get(ctx context.Context, userID string) (*models.StoredRuleConfig, error) {
	stored, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.StoredRuleConfig{UserID: userID, Config: s.defaults}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load automation rules")
	}
	return stored, nil
}

// Update validates and saves the configuration, bumping its version.
func (s *RuleConfigService) Update(ctx context.Context, userID string, req dto.UpdateRuleConfigRequest) (*models.StoredRuleConfig, error) {
	if err := s.Validate(req.RuleConfig); err != nil {
		return nil, err
	}
	stored, err := s.repo.Upsert(ctx, userID, req.RuleConfig)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save automation rules")
	}
	s.cache.Invalidate(ctx, previewCachePattern(userID))
	s.logger.Info("automation rules updated", zap.String("user_id", userID), zap.Int("version", stored.Version))
	return stored, nil
}

// Validate checks thresholds and status lists.
func (s *RuleConfigService) Validate(cfg models.RuleConfig) error {
	if err := s.validator.Struct(cfg); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid automation rules")
	}
	return nil
}

// LoadDefaultRules reads a YAML rules file layered over the built-in defaults.
// An empty path returns the built-in defaults.
func LoadDefaultRules(path string) (models.RuleConfig, error) {
	cfg := models.DefaultRuleConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	validate := validator.New()
	registerRuleValidations(validate)
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate rules file %s: %w", path, err)
	}
	return cfg, nil
}

func previewCachePattern(userID string) string {
	return fmt.Sprintf("automation:preview:%s:*", userID)
}

func previewCacheKey(userID string, version int) string {
	return fmt.Sprintf("automation:preview:%s:v%d", userID, version)
}
