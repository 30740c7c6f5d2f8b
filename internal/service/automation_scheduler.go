package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/applytrack-api/internal/dto"
	"github.com/noah-isme/applytrack-api/internal/models"
	appErrors "github.com/noah-isme/applytrack-api/pkg/errors"
	"github.com/noah-isme/applytrack-api/pkg/jobs"
)

// JobTypeAutomationRun identifies queued manual runs.
const JobTypeAutomationRun = "automation.run"

type automationRunner interface {
	RunForUser(ctx context.Context, userID string, trigger models.RunTrigger) (*dto.RunResult, error)
}

type automationUserLister interface {
	ListAutomationUsers(ctx context.Context) ([]string, error)
}

// AutomationSchedulerConfig controls the periodic sweep and the manual run queue.
type AutomationSchedulerConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
	RunTimeout   time.Duration
	QueueWorkers int
	QueueRetries int
	RetryDelay   time.Duration
}

// AutomationScheduler sweeps every tenant on an interval and serves queued manual runs.
type AutomationScheduler struct {
	runner   automationRunner
	users    automationUserLister
	cfg      AutomationSchedulerConfig
	logger   *zap.Logger
	periodic *jobs.Periodic
	queue    *jobs.Queue
	swept    atomic.Bool
}

// NewAutomationScheduler wires the periodic sweep and the run queue.
func NewAutomationScheduler(runner automationRunner, users automationUserLister, cfg AutomationSchedulerConfig, logger *zap.Logger) *AutomationScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	s := &AutomationScheduler{runner: runner, users: users, cfg: cfg, logger: logger}
	s.periodic = jobs.NewPeriodic("automation-sweep", s.tick, jobs.PeriodicConfig{
		InitialDelay: cfg.InitialDelay,
		Interval:     cfg.Interval,
		Logger:       logger,
	})
	s.queue = jobs.NewQueue("automation-runs", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.QueueWorkers,
		MaxRetries: cfg.QueueRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the queue workers and the periodic sweep.
func (s *AutomationScheduler) Start(ctx context.Context) {
	s.queue.Start(ctx)
	s.periodic.Start(ctx)
}

// Stop halts new sweeps, waits for an in-flight sweep, then drains the workers.
func (s *AutomationScheduler) Stop() {
	s.periodic.Stop()
	s.queue.Stop()
}

// StartQueue launches only the manual run workers.
func (s *AutomationScheduler) StartQueue(ctx context.Context) {
	s.queue.Start(ctx)
}

func (s *AutomationScheduler) tick(ctx context.Context) error {
	trigger := models.RunTriggerScheduled
	if s.swept.CompareAndSwap(false, true) {
		trigger = models.RunTriggerStartup
	}
	_, err := s.RunAll(ctx, trigger)
	return err
}

// RunAll runs automation for every tenant in turn. A failing tenant is logged
// and does not stop the sweep; cancellation does.
func (s *AutomationScheduler) RunAll(ctx context.Context, trigger models.RunTrigger) (*dto.SweepResult, error) {
	users, err := s.users.ListAutomationUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list automation users: %w", err)
	}

	result := &dto.SweepResult{Users: len(users)}
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			s.logger.Info("automation sweep interrupted", zap.Int("remaining", len(users)-result.Runs-result.Skipped-result.Failed))
			return result, err
		}
		res, err := s.runOne(ctx, userID, trigger)
		switch {
		case err != nil:
			result.Failed++
			s.logger.Error("automation run failed", zap.String("user_id", userID), zap.Error(err))
		case res.Skipped:
			result.Skipped++
		default:
			result.Runs++
			if res.Run != nil {
				result.Applied += res.Run.Applied
			}
		}
	}
	s.logger.Info("automation sweep finished",
		zap.String("trigger", string(trigger)),
		zap.Int("users", result.Users),
		zap.Int("runs", result.Runs),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int("applied", result.Applied))
	return result, nil
}

func (s *AutomationScheduler) runOne(ctx context.Context, userID string, trigger models.RunTrigger) (*dto.RunResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()
	return s.runner.RunForUser(runCtx, userID, trigger)
}

// EnqueueRun schedules a manual run for the user.
func (s *AutomationScheduler) EnqueueRun(userID string) (*dto.RunAcceptedResponse, error) {
	job := jobs.Job{ID: uuid.NewString(), Type: JobTypeAutomationRun, Payload: userID, Enqueued: time.Now().UTC()}
	if err := s.queue.Enqueue(job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "automation queue unavailable")
	}
	return &dto.RunAcceptedResponse{JobID: job.ID, UserID: userID, Enqueued: job.Enqueued}, nil
}

func (s *AutomationScheduler) handleJob(ctx context.Context, job jobs.Job) error {
	userID, ok := job.Payload.(string)
	if !ok || userID == "" {
		return jobs.Permanent(fmt.Errorf("job %s: invalid payload %T", job.ID, job.Payload))
	}
	res, err := s.runOne(ctx, userID, models.RunTriggerManual)
	if err != nil {
		return err
	}
	if res.Skipped {
		return jobs.Permanent(appErrors.ErrLocked)
	}
	return nil
}
