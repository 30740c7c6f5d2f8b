package main

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/applytrack-api/internal/automation"
	"github.com/noah-isme/applytrack-api/internal/handler"
	"github.com/noah-isme/applytrack-api/internal/repository"
	"github.com/noah-isme/applytrack-api/internal/service"
	"github.com/noah-isme/applytrack-api/pkg/cache"
	"github.com/noah-isme/applytrack-api/pkg/config"
	"github.com/noah-isme/applytrack-api/pkg/database"
	"github.com/noah-isme/applytrack-api/pkg/jobs"
	"github.com/noah-isme/applytrack-api/pkg/logger"
)

// app holds the wired dependency graph shared by every command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	redis  *redis.Client

	metrics    *service.MetricsService
	rules      *service.RuleConfigService
	automation *service.AutomationService
	scheduler  *service.AutomationScheduler
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	defaults, err := service.LoadDefaultRules(cfg.Automation.RulesFile)
	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Automation.PreviewCacheTTL, logr, cacheRepo.Enabled())

	var locker jobs.Locker = jobs.NewMemoryLocker()
	if cacheRepo.Enabled() {
		locker = cacheRepo
	}

	appRepo := repository.NewApplicationRepository(db)
	rules := service.NewRuleConfigService(repository.NewRuleConfigRepository(db), cacheSvc, validator.New(), logr,
		service.WithDefaultRules(defaults))
	automationSvc := service.NewAutomationService(service.AutomationServiceParams{
		Applications: appRepo,
		Runs:         repository.NewAutomationRunRepository(db),
		Rules:        rules,
		Engine:       automation.NewEngine(automation.WithLogger(logr)),
		Locker:       locker,
		Cache:        cacheSvc,
		Metrics:      metrics,
		Logger:       logr,
		Config: service.AutomationServiceConfig{
			LockTTL:         cfg.Automation.LockTTL,
			PersistTimeout:  cfg.Automation.PersistTimeout,
			PreviewCacheTTL: cfg.Automation.PreviewCacheTTL,
		},
	})
	scheduler := service.NewAutomationScheduler(automationSvc, appRepo, service.AutomationSchedulerConfig{
		InitialDelay: cfg.Automation.InitialDelay,
		Interval:     cfg.Automation.Interval,
		RunTimeout:   cfg.Automation.RunTimeout,
		QueueWorkers: cfg.Automation.QueueWorkers,
		QueueRetries: cfg.Automation.QueueRetries,
	}, logr)

	return &app{
		cfg:        cfg,
		logger:     logr,
		db:         db,
		redis:      redisClient,
		metrics:    metrics,
		rules:      rules,
		automation: automationSvc,
		scheduler:  scheduler,
	}, nil
}

func (a *app) readinessChecks() map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": a.db.PingContext,
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	return checks
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close postgres", zap.Error(err))
	}
	_ = a.logger.Sync()
}
