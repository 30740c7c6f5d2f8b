package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/applytrack-api/internal/automation"
	"github.com/noah-isme/applytrack-api/internal/dto"
	"github.com/noah-isme/applytrack-api/internal/models"
	"github.com/noah-isme/applytrack-api/internal/repository"
	appErrors "github.com/noah-isme/applytrack-api/pkg/errors"
	"github.com/noah-isme/applytrack-api/pkg/export"
	"github.com/noah-isme/applytrack-api/pkg/jobs"
)

type applicationStore interface {
	ListSnapshot(ctx context.Context, userID string) ([]models.Application, error)
	Get(ctx context.Context, userID, id string) (*models.Application, error)
	ApplyStatusChange(ctx context.Context, params repository.StatusChangeParams) (bool, error)
}

type automationRunStore interface {
	Create(ctx context.Context, run *models.AutomationRun) error
	Finish(ctx context.Context, run *models.AutomationRun) error
	AddItems(ctx context.Context, items []models.AutomationRunItem) error
	GetByID(ctx context.Context, userID, id string) (*models.AutomationRun, error)
	ListByUser(ctx context.Context, filter models.AutomationRunFilter) ([]models.AutomationRun, int, error)
	ListItems(ctx context.Context, runID string) ([]models.AutomationRunItem, error)
}

type ruleConfigProvider interface {
	Get(ctx context.Context, userID string) (*models.StoredRuleConfig, error)
	Validate(cfg models.RuleConfig) error
}

// AutomationServiceConfig tunes run orchestration.
type AutomationServiceConfig struct {
	LockTTL         time.Duration
	PersistTimeout  time.Duration
	PreviewCacheTTL time.Duration
}

// AutomationServiceParams groups the service dependencies.
type AutomationServiceParams struct {
	Applications applicationStore
	Runs         automationRunStore
	Rules        ruleConfigProvider
	Engine       *automation.Engine
	Locker       jobs.Locker
	Cache        *CacheService
	Metrics      *MetricsService
	Logger       *zap.Logger
	Config       AutomationServiceConfig
	Now          func() time.Time
}

// AutomationService runs the rule engine against stored applications and keeps the run log.
type AutomationService struct {
	apps    applicationStore
	runs    automationRunStore
	rules   ruleConfigProvider
	engine  *automation.Engine
	locker  jobs.Locker
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	cfg     AutomationServiceConfig
	now     func() time.Time
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
}

// NewAutomationService wires the service.
func NewAutomationService(params AutomationServiceParams) *AutomationService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Engine == nil {
		params.Engine = automation.NewEngine(automation.WithLogger(params.Logger))
	}
	if params.Locker == nil {
		params.Locker = jobs.NewMemoryLocker()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.Config.LockTTL <= 0 {
		params.Config.LockTTL = 10 * time.Minute
	}
	if params.Config.PersistTimeout <= 0 {
		params.Config.PersistTimeout = 10 * time.Second
	}
	return &AutomationService{
		apps:    params.Applications,
		runs:    params.Runs,
		rules:   params.Rules,
		engine:  params.Engine,
		locker:  params.Locker,
		cache:   params.Cache,
		metrics: params.Metrics,
		logger:  params.Logger,
		cfg:     params.Config,
		now:     params.Now,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
	}
}

func runLockKey(userID string) string {
	return "automation:lock:" + userID
}

// RunForUser evaluates the user's applications and persists every proposed
// transition. Only one run per user executes at a time; a concurrent call
// returns a skipped result. Cancelling ctx stops the run between transitions
// but never interrupts a write that has started.
func (s *AutomationService) RunForUser(ctx context.Context, userID string, trigger models.RunTrigger) (*dto.RunResult, error) {
	start := s.now()
	log := s.logger.With(zap.String("user_id", userID), zap.String("trigger", string(trigger)))

	release, ok, err := s.locker.TryLock(ctx, runLockKey(userID), s.cfg.LockTTL)
	if err != nil {
		s.metrics.ObserveAutomationRun(trigger, RunOutcomeFailed, 0)
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to acquire automation lock")
	}
	if !ok {
		s.metrics.ObserveAutomationRun(trigger, RunOutcomeSkipped, 0)
		log.Info("automation run skipped, another run in progress")
		return &dto.RunResult{Skipped: true}, nil
	}
	defer release()

	run := &models.AutomationRun{UserID: userID, Trigger: trigger, Status: models.RunStatusRunning, StartedAt: start.UTC()}
	if err := s.runs.Create(ctx, run); err != nil {
		s.metrics.ObserveAutomationRun(trigger, RunOutcomeFailed, s.now().Sub(start))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record automation run")
	}
	log = log.With(zap.String("run_id", run.ID))

	stored, apps, err := s.loadSnapshot(ctx, userID)
	if err != nil {
		s.finish(ctx, run, nil, err)
		s.metrics.ObserveAutomationRun(trigger, RunOutcomeFailed, s.now().Sub(start))
		log.Error("automation run failed to load snapshot", zap.Error(err))
		return nil, err
	}

	current := make(map[string]models.ApplicationStatus, len(apps))
	for _, app := range apps {
		if _, seen := current[app.ID]; !seen {
			current[app.ID] = app.Status
		}
	}

	updates := s.engine.EvaluateAll(apps, stored.Config)
	run.Evaluated = len(current)
	run.Proposed = len(updates)

	items := make([]models.AutomationRunItem, 0, len(updates))
	cancelled := false
	for _, update := range updates {
		s.metrics.RecordProposedUpdate(update.Rule)
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		item := models.AutomationRunItem{
			RunID:         run.ID,
			ApplicationID: update.ApplicationID,
			FromStatus:    current[update.ApplicationID],
			ToStatus:      update.NewStatus,
			Rule:          update.Rule,
			Reason:        update.Reason,
		}
		applied, err := s.persist(ctx, userID, item)
		s.metrics.RecordPersistResult(update.Rule, err)
		switch {
		case err != nil:
			run.Failed++
			msg := err.Error()
			item.ErrorMessage = &msg
			log.Warn("automation transition failed",
				zap.String("application_id", update.ApplicationID),
				zap.String("rule", string(update.Rule)),
				zap.Error(err))
		case applied:
			run.Applied++
			log.Info("automation transition applied",
				zap.String("application_id", update.ApplicationID),
				zap.String("from", string(item.FromStatus)),
				zap.String("to", string(item.ToStatus)),
				zap.String("rule", string(update.Rule)),
				zap.String("reason", update.Reason))
		}
		items = append(items, item)
	}

	var runErr error
	if cancelled {
		runErr = ctx.Err()
	}
	s.finish(ctx, run, items, runErr)
	s.cache.Invalidate(context.WithoutCancel(ctx), previewCachePattern(userID))

	outcome := RunOutcomeCompleted
	switch run.Status {
	case models.RunStatusPartial:
		outcome = RunOutcomePartial
	case models.RunStatusCancelled:
		outcome = RunOutcomeCancelled
	}
	duration := s.now().Sub(start)
	s.metrics.ObserveAutomationRun(trigger, outcome, duration)
	log.Info("automation run finished",
		zap.String("status", string(run.Status)),
		zap.Int("evaluated", run.Evaluated),
		zap.Int("proposed", run.Proposed),
		zap.Int("applied", run.Applied),
		zap.Int("failed", run.Failed),
		zap.Duration("duration", duration))

	return &dto.RunResult{Run: run, Items: items}, nil
}

func (s *AutomationService) loadSnapshot(ctx context.Context, userID string) (*models.StoredRuleConfig, []models.Application, error) {
	stored, err := s.rules.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	apps, err := s.apps.ListSnapshot(ctx, userID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applications")
	}
	return stored, apps, nil
}

// persist writes one transition on a context detached from the run so a
// shutdown cannot cut a transaction in half. PersistTimeout bounds it instead.
func (s *AutomationService) persist(ctx context.Context, userID string, item models.AutomationRunItem) (bool, error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PersistTimeout)
	defer cancel()
	applied, err := s.apps.ApplyStatusChange(writeCtx, repository.StatusChangeParams{
		UserID:        userID,
		ApplicationID: item.ApplicationID,
		FromStatus:    item.FromStatus,
		ToStatus:      item.ToStatus,
		Notes:         item.Reason,
		ChangedAt:     s.now().UTC(),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("application %s no longer exists", item.ApplicationID)
	}
	return applied, err
}

func (s *AutomationService) finish(ctx context.Context, run *models.AutomationRun, items []models.AutomationRunItem, runErr error) {
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		run.Status = models.RunStatusCancelled
	case runErr != nil:
		run.Status = models.RunStatusFailed
	case run.Failed > 0:
		run.Status = models.RunStatusPartial
	default:
		run.Status = models.RunStatusCompleted
	}
	if runErr != nil {
		msg := runErr.Error()
		run.ErrorMessage = &msg
	} else if run.Failed > 0 {
		msg := fmt.Sprintf("%d of %d updates failed", run.Failed, len(items))
		run.ErrorMessage = &msg
	}
	finished := s.now().UTC()
	run.FinishedAt = &finished

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PersistTimeout)
	defer cancel()
	if err := s.runs.AddItems(writeCtx, items); err != nil {
		s.logger.Error("failed to record automation run items", zap.String("run_id", run.ID), zap.Error(err))
	}
	if err := s.runs.Finish(writeCtx, run); err != nil {
		s.logger.Error("failed to finish automation run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// Preview counts the applications each rule matches for the user. Results are
// cached per configuration version.
func (s *AutomationService) Preview(ctx context.Context, userID string) (*dto.PreviewResponse, error) {
	stored, err := s.rules.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	key := previewCacheKey(userID, stored.Version)
	var cached dto.PreviewResponse
	if s.cache.Get(ctx, key, &cached) {
		cached.Cached = true
		return &cached, nil
	}

	apps, err := s.apps.ListSnapshot(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applications")
	}
	resp := &dto.PreviewResponse{
		Counts:        s.engine.Preview(apps, stored.Config),
		Applications:  len(apps),
		ConfigVersion: stored.Version,
		GeneratedAt:   s.engine.Now().UTC(),
	}
	s.cache.Set(ctx, key, resp, s.cfg.PreviewCacheTTL)
	return resp, nil
}

// Inactivity reports whether one application is due for a follow-up reminder.
func (s *AutomationService) Inactivity(ctx context.Context, userID, applicationID string) (*dto.InactivityResponse, error) {
	stored, err := s.rules.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.Get(ctx, userID, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return &dto.InactivityResponse{
		ApplicationID:   app.ID,
		Inactive:        s.engine.IsInactive(*app, stored.Config),
		InactiveDays:    s.engine.InactiveDays(*app),
		ThresholdDays:   stored.Config.InactiveReminder.Days,
		ReminderEnabled: stored.Config.InactiveReminder.Enabled,
	}, nil
}

// MaxEvaluateApplications bounds the snapshot accepted by Evaluate.
const MaxEvaluateApplications = 5000

// Evaluate runs the engine over a caller supplied snapshot without touching storage.
func (s *AutomationService) Evaluate(ctx context.Context, userID string, req dto.EvaluateRequest) (*dto.EvaluateResponse, error) {
	if len(req.Applications) > MaxEvaluateApplications {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d applications per request", MaxEvaluateApplications))
	}
	var cfg models.RuleConfig
	if req.Config != nil {
		if err := s.rules.Validate(*req.Config); err != nil {
			return nil, err
		}
		cfg = *req.Config
	} else {
		stored, err := s.rules.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		cfg = stored.Config
	}

	engine := s.engine
	if req.Now != nil {
		at := req.Now.UTC()
		engine = automation.NewEngine(automation.WithClock(func() time.Time { return at }), automation.WithLogger(s.logger))
	}
	updates := engine.EvaluateAll(req.Applications, cfg)
	if updates == nil {
		updates = []models.ProposedUpdate{}
	}
	return &dto.EvaluateResponse{
		Updates:     updates,
		Preview:     engine.Preview(req.Applications, cfg),
		EvaluatedAt: engine.Now().UTC(),
	}, nil
}

// ListRuns returns the user's run history, newest first.
func (s *AutomationService) ListRuns(ctx context.Context, userID string, query dto.ListRunsQuery) ([]models.AutomationRun, *models.Pagination, error) {
	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	runs, total, err := s.runs.ListByUser(ctx, models.AutomationRunFilter{
		UserID: userID,
		Status: query.Status,
		Limit:  size,
		Offset: (page - 1) * size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list automation runs")
	}
	if runs == nil {
		runs = []models.AutomationRun{}
	}
	return runs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetRun returns a run and its items.
func (s *AutomationService) GetRun(ctx context.Context, userID, runID string) (*dto.RunDetail, error) {
	run, err := s.runs.GetByID(ctx, userID, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "automation run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load automation run")
	}
	items, err := s.runs.ListItems(ctx, run.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load automation run items")
	}
	if items == nil {
		items = []models.AutomationRunItem{}
	}
	return &dto.RunDetail{Run: *run, Items: items}, nil
}

var runExportHeaders = []string{"application_id", "from_status", "to_status", "rule", "reason", "error", "recorded_at"}

// ExportRun renders a run log as csv or pdf.
func (s *AutomationService) ExportRun(ctx context.Context, userID, runID, format string) (*dto.ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	detail, err := s.GetRun(ctx, userID, runID)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{Headers: runExportHeaders, Rows: make([]map[string]string, 0, len(detail.Items))}
	for _, item := range detail.Items {
		row := map[string]string{
			"application_id": item.ApplicationID,
			"from_status":    string(item.FromStatus),
			"to_status":      string(item.ToStatus),
			"rule":           string(item.Rule),
			"reason":         item.Reason,
			"recorded_at":    item.CreatedAt.UTC().Format(time.RFC3339),
		}
		if item.ErrorMessage != nil {
			row["error"] = *item.ErrorMessage
		}
		data.Rows = append(data.Rows, row)
	}

	filename := fmt.Sprintf("automation-run-%s.%s", detail.Run.ID, format)
	if format == "csv" {
		body, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
		}
		return &dto.ExportFile{Filename: filename, ContentType: "text/csv", Body: body}, nil
	}

	run := detail.Run
	summary := []string{
		"Trigger: " + string(run.Trigger),
		"Status: " + string(run.Status),
		"Started: " + run.StartedAt.UTC().Format(time.RFC3339),
		"Evaluated: " + strconv.Itoa(run.Evaluated) + "  Proposed: " + strconv.Itoa(run.Proposed) +
			"  Applied: " + strconv.Itoa(run.Applied) + "  Failed: " + strconv.Itoa(run.Failed),
	}
	body, err := s.pdf.Render(export.Document{Title: "Automation run " + run.ID, Summary: summary, Data: data})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &dto.ExportFile{Filename: filename, ContentType: "application/pdf", Body: body}, nil
}
