package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/applytrack-api/internal/automation"
	"github.com/noah-isme/applytrack-api/internal/dto"
	"github.com/noah-isme/applytrack-api/internal/models"
	"github.com/noah-isme/applytrack-api/internal/repository"
	appErrors "github.com/noah-isme/applytrack-api/pkg/errors"
	"github.com/noah-isme/applytrack-api/pkg/jobs"
)

var serviceNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func ago(days int) string {
	return serviceNow.AddDate(0, 0, -days).Format(time.RFC3339)
}

type applicationStoreStub struct {
	mu        sync.Mutex
	apps      []models.Application
	applyErr  map[string]error
	applied   []repository.StatusChangeParams
	listCalls int
	onList    func()
}

func (s *applicationStoreStub) ListSnapshot(ctx context.Context, userID string) ([]models.Application, error) {
	s.mu.Lock()
	s.listCalls++
	out := make([]models.Application, len(s.apps))
	copy(out, s.apps)
	hook := s.onList
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func (s *applicationStoreStub) Get(ctx context.Context, userID, id string) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, app := range s.apps {
		if app.ID == id {
			cp := app
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *applicationStoreStub) ApplyStatusChange(ctx context.Context, params repository.StatusChangeParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := s.applyErr[params.ApplicationID]; err != nil {
		return false, err
	}
	for i := range s.apps {
		if s.apps[i].ID != params.ApplicationID {
			continue
		}
		if s.apps[i].Status == params.ToStatus {
			return false, nil
		}
		s.apps[i].Status = params.ToStatus
		s.apps[i].UpdatedAt = params.ChangedAt.Format(time.RFC3339)
		s.applied = append(s.applied, params)
		return true, nil
	}
	return false, sql.ErrNoRows
}

type runStoreStub struct {
	mu           sync.Mutex
	runs         map[string]models.AutomationRun
	items        map[string][]models.AutomationRunItem
	created      int
	finishCtxErr error
	lastFilter   models.AutomationRunFilter
}

func newRunStoreStub() *runStoreStub {
	return &runStoreStub{runs: map[string]models.AutomationRun{}, items: map[string][]models.AutomationRunItem{}}
}

func (s *runStoreStub) Create(ctx context.Context, run *models.AutomationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created++
	if run.ID == "" {
		run.ID = "run-" + string(rune('0'+s.created))
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *runStoreStub) Finish(ctx context.Context, run *models.AutomationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishCtxErr = ctx.Err()
	s.runs[run.ID] = *run
	return nil
}

func (s *runStoreStub) AddItems(ctx context.Context, items []models.AutomationRunItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		item.CreatedAt = serviceNow
		s.items[item.RunID] = append(s.items[item.RunID], item)
	}
	return nil
}

func (s *runStoreStub) GetByID(ctx context.Context, userID, id string) (*models.AutomationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok || run.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return &run, nil
}

func (s *runStoreStub) ListByUser(ctx context.Context, filter models.AutomationRunFilter) ([]models.AutomationRun, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	var out []models.AutomationRun
	for _, run := range s.runs {
		if run.UserID == filter.UserID {
			out = append(out, run)
		}
	}
	return out, len(out), nil
}

func (s *runStoreStub) ListItems(ctx context.Context, runID string) ([]models.AutomationRunItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[runID], nil
}

type ruleRepoStub struct {
	stored    *models.StoredRuleConfig
	upserts   int
	upsertErr error
}

func (s *ruleRepoStub) Get(ctx context.Context, userID string) (*models.StoredRuleConfig, error) {
	if s.stored == nil {
		return nil, sql.ErrNoRows
	}
	cp := *s.stored
	return &cp, nil
}

func (s *ruleRepoStub) Upsert(ctx context.Context, userID string, cfg models.RuleConfig) (*models.StoredRuleConfig, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	s.upserts++
	version := 1
	if s.stored != nil {
		version = s.stored.Version + 1
	}
	s.stored = &models.StoredRuleConfig{UserID: userID, Version: version, Config: cfg, UpdatedAt: serviceNow}
	return s.stored, nil
}

type cacheRepoStub struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{data: map[string][]byte{}}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

type automationFixture struct {
	svc    *AutomationService
	apps   *applicationStoreStub
	runs   *runStoreStub
	rules  *ruleRepoStub
	cache  *cacheRepoStub
	locker *jobs.MemoryLocker
}

func newAutomationFixture(apps []models.Application, cfg models.RuleConfig) *automationFixture {
	f := &automationFixture{
		apps:   &applicationStoreStub{apps: apps, applyErr: map[string]error{}},
		runs:   newRunStoreStub(),
		rules:  &ruleRepoStub{stored: &models.StoredRuleConfig{UserID: "user-1", Version: 4, Config: cfg}},
		cache:  newCacheRepoStub(),
		locker: jobs.NewMemoryLocker(),
	}
	cache := NewCacheService(f.cache, nil, time.Minute, nil, true)
	clock := func() time.Time { return serviceNow }
	f.svc = NewAutomationService(AutomationServiceParams{
		Applications: f.apps,
		Runs:         f.runs,
		Rules:        NewRuleConfigService(f.rules, cache, nil, nil),
		Engine:       automation.NewEngine(automation.WithClock(clock)),
		Locker:       f.locker,
		Cache:        cache,
		Config:       AutomationServiceConfig{PersistTimeout: time.Second, PreviewCacheTTL: time.Minute},
		Now:          clock,
	})
	return f
}

func rejectAfter30() models.RuleConfig {
	cfg := models.DefaultRuleConfig()
	cfg.AutoRejectDays.Enabled = true
	return cfg
}

func TestRunForUserPersistsProposals(t *testing.T) {
	f := newAutomationFixture([]models.Application{
		{ID: "app-1", UserID: "user-1", Status: models.StatusApplied, UpdatedAt: ago(40)},
		{ID: "app-2", UserID: "user-1", Status: models.StatusWishlist, UpdatedAt: ago(90)},
	}, rejectAfter30())

	res, err := f.svc.RunForUser(context.Background(), "user-1", models.RunTriggerManual)
	require.NoError(t, err)
	require.False(t, res.Skipped)
	require.NotNil(t, res.Run)

	assert.Equal(t, models.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, 2, res.Run.Evaluated)
	assert.Equal(t, 1, res.Run.Proposed)
	assert.Equal(t, 1, res.Run.Applied)
	require.Len(t, res.Items, 1)
	assert.Equal(t, models.StatusApplied, res.Items[0].FromStatus)
	assert.Equal(t, models.StatusRejected, res.Items[0].ToStatus)
	assert.Contains(t, res.Items[0].Reason, "40")

	require.Len(t, f.apps.applied, 1)
	assert.Equal(t, models.StatusApplied, f.apps.applied[0].FromStatus)
	assert.Equal(t, res.Items[0].Reason, f.apps.applied[0].Notes)

	stored := f.runs.runs[res.Run.ID]
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	assert.NotNil(t, stored.FinishedAt)
	assert.Len(t, f.runs.items[res.Run.ID], 1)
	assert.Contains(t, f.cache.invalidated, "automation:preview:user-1:*")
}

func TestRunForUserIsIdempotent(t *testing.T) {
	f := newAutomationFixture([]models.Application{
		{ID: "app-1", UserID: "user-1", Status: models.StatusApplied, UpdatedAt: ago(40)},
	}, rejectAfter30())

	_, err := f.svc.RunForUser(context.Background(), "user-1", models.RunTriggerScheduled)
	require.NoError(t, err)
	second, err := f.svc.RunForUser(context.Background(), "user-1", models.RunTriggerScheduled)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Run.Proposed)
	assert.Equal(t, 0, second.Run.Applied)
	assert.Len(t, f.apps.applied, 1)
}

func TestRunForUserIsolatesPersistenceFailures(t *testing.T) {
	f := newAutomationFixture([]models.Application{
		{ID: "app-1", UserID: "user-1", Status: models.StatusApplied, UpdatedAt: ago(40)},
		{ID: "app-2", UserID: "user-1", Status: models.StatusApplied, UpdatedAt: ago(50)},
	}, rejectAfter30())
	f.apps.applyErr["app-1"] = errors.New("deadlock detected")

	res, err := f.svc.RunForUser(context.Background(), "user-1", models.RunTriggerManual)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusPartial, res.Run.Status)
	assert.Equal(t, 1, res.Run.Applied)
	assert.Equal(t, 1, res.Run.Failed)
	require.Len(t, res.Items, 2)
	require.NotNil(t, res.Items[0].ErrorMessage)
	assert.Contains(t, *res.Items[0].ErrorMessage, "deadlock")
	assert.Nil(t, res.Items[1].ErrorMessage)
	require.NotNil(t, res.Run.ErrorMessage)
}

func TestRunForUserSkipsWhenLocked(t *testing.T) {
	f := newAutomationFixture(nil, rejectAfter30())
	release, ok, err := f.locker.TryLock(context.Background(), runLockKey("user-1"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	res, err := f.svc.RunForUser(context.Background(), "user-1", models.RunTriggerScheduled)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, f.runs.created)
}

func TestRunForUserStopsOnCancellationButRecordsRun(t *testing.T) {
	f := newAutomationFixture([]models.Application{
		{ID: "app-1", UserID: "user-1", Status: models.StatusApplied, UpdatedAt: ago(40)},
	}, rejectAfter30())
	ctx, cancel := context.WithCancel(context.Background())
	f.apps.onList = cancel

	res, err := f.svc.RunForUser(ctx, "user-1", models.RunTriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, res.Run.Status)
	assert.Empty(t, f.apps.applied)
	assert.NoError(t, f.runs.finishCtxErr, "run record written on a detached context")
	assert.Equal(t, models.RunStatusCancelled, f.runs.runs[res.Run.ID].Status)

	again, ok, _ := f.locker.TryLock(context.Background(), runLockKey("user-1"), time.Minute)
	assert.True(t, ok, "lock released after cancelled run")
	again()
}

func TestPreviewUsesCache(t *testing.T) {
	f := newAutomationFixture([]models.Application{
		{ID: "app-1", Status: models.StatusApplied, UpdatedAt: ago(40)},
		{ID: "app-2", Status: models.StatusApplied, UpdatedAt: ago(2)},
	}, rejectAfter30())

	first, err := f.svc.Preview(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, first.Counts, len(models.RuleNames))
	assert.Equal(t, 1, first.Counts[models.RuleAutoRejectDays])
	assert.Equal(t, 1, first.Counts[models.RuleInactiveReminder])
	assert.Equal(t, 4, first.ConfigVersion)
	assert.False(t, first.Cached)

	second, err := f.svc.Preview(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.Counts, second.Counts)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, f.apps.listCalls)
}

func TestInactivity(t *testing.T) {
	f := newAutomationFixture([]models.Application{
		{ID: "app-1", Status: models.StatusApplied, UpdatedAt: ago(20)},
	}, models.DefaultRuleConfig())

	resp, err := f.svc.Inactivity(context.Background(), "user-1", "app-1")
	require.NoError(t, err)
	assert.True(t, resp.Inactive)
	assert.Equal(t, 20, resp.InactiveDays)
	assert.Equal(t, 14, resp.ThresholdDays)

	_, err = f.svc.Inactivity(context.Background(), "user-1", "missing")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEvaluateIsStateless(t *testing.T) {
	f := newAutomationFixture(nil, models.DefaultRuleConfig())
	cfg := rejectAfter30()
	at := serviceNow.AddDate(0, 0, 10)

	resp, err := f.svc.Evaluate(context.Background(), "user-1", dto.EvaluateRequest{
		Applications: []models.Application{{ID: "x", Status: models.StatusApplied, UpdatedAt: ago(25)}},
		Config:       &cfg,
		Now:          &at,
	})
	require.NoError(t, err)
	require.Len(t, resp.Updates, 1)
	assert.Equal(t, models.StatusRejected, resp.Updates[0].NewStatus)
	assert.Equal(t, 1, resp.Preview[models.RuleAutoRejectDays])
	assert.Equal(t, at, resp.EvaluatedAt)
	assert.Zero(t, f.runs.created)

	bad := rejectAfter30()
	bad.AutoRejectDays.ApplyTo = []models.ApplicationStatus{"ghosted"}
	_, err = f.svc.Evaluate(context.Background(), "user-1", dto.EvaluateRequest{Config: &bad})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEvaluateFallsBackToStoredConfig(t *testing.T) {
	f := newAutomationFixture(nil, rejectAfter30())
	resp, err := f.svc.Evaluate(context.Background(), "user-1", dto.EvaluateRequest{
		Applications: []models.Application{{ID: "x", Status: models.StatusApplied, UpdatedAt: ago(31)}},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Updates, 1)
	assert.Equal(t, serviceNow, resp.EvaluatedAt)
}

func TestRunHistoryAndExport(t *testing.T) {
	f := newAutomationFixture([]models.Application{
		{ID: "app-1", UserID: "user-1", Status: models.StatusApplied, UpdatedAt: ago(40)},
	}, rejectAfter30())
	res, err := f.svc.RunForUser(context.Background(), "user-1", models.RunTriggerManual)
	require.NoError(t, err)

	runs, page, err := f.svc.ListRuns(context.Background(), "user-1", dto.ListRunsQuery{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 100, f.runs.lastFilter.Limit)

	detail, err := f.svc.GetRun(context.Background(), "user-1", res.Run.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Items, 1)

	_, err = f.svc.GetRun(context.Background(), "user-2", res.Run.ID)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)

	csvFile, err := f.svc.ExportRun(context.Background(), "user-1", res.Run.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", csvFile.ContentType)
	assert.True(t, strings.HasSuffix(csvFile.Filename, ".csv"))
	assert.Contains(t, string(csvFile.Body), "app-1,applied,rejected,autoRejectDays")

	pdfFile, err := f.svc.ExportRun(context.Background(), "user-1", res.Run.ID, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdfFile.ContentType)
	assert.True(t, strings.HasPrefix(string(pdfFile.Body), "%PDF"))

	_, err = f.svc.ExportRun(context.Background(), "user-1", res.Run.ID, "xlsx")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
