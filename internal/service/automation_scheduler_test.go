package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/applytrack-api/internal/dto"
	"github.com/noah-isme/applytrack-api/internal/models"
)

type runnerStub struct {
	mu       sync.Mutex
	calls    []string
	triggers []models.RunTrigger
	results  map[string]*dto.RunResult
	errs     map[string]error
}

func (r *runnerStub) RunForUser(ctx context.Context, userID string, trigger models.RunTrigger) (*dto.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, userID)
	r.triggers = append(r.triggers, trigger)
	if err := r.errs[userID]; err != nil {
		return nil, err
	}
	if res, ok := r.results[userID]; ok {
		return res, nil
	}
	return &dto.RunResult{Run: &models.AutomationRun{UserID: userID, Applied: 1}}, nil
}

func (r *runnerStub) snapshot() ([]string, []models.RunTrigger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...), append([]models.RunTrigger(nil), r.triggers...)
}

type userListerStub struct {
	users []string
	err   error
}

func (u userListerStub) ListAutomationUsers(ctx context.Context) ([]string, error) {
	return u.users, u.err
}

func TestSchedulerRunAllContinuesPastFailures(t *testing.T) {
	runner := &runnerStub{
		errs:    map[string]error{"u2": errors.New("boom")},
		results: map[string]*dto.RunResult{"u3": {Skipped: true}},
	}
	s := NewAutomationScheduler(runner, userListerStub{users: []string{"u1", "u2", "u3", "u4"}}, AutomationSchedulerConfig{Interval: time.Hour}, nil)

	res, err := s.RunAll(context.Background(), models.RunTriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, dto.SweepResult{Users: 4, Runs: 2, Skipped: 1, Failed: 1, Applied: 2}, *res)
	calls, _ := runner.snapshot()
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, calls)
}

func TestSchedulerRunAllStopsWhenCancelled(t *testing.T) {
	runner := &runnerStub{}
	s := NewAutomationScheduler(runner, userListerStub{users: []string{"u1", "u2"}}, AutomationSchedulerConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RunAll(ctx, models.RunTriggerScheduled)
	assert.ErrorIs(t, err, context.Canceled)
	calls, _ := runner.snapshot()
	assert.Empty(t, calls)

	_, err = NewAutomationScheduler(runner, userListerStub{err: errors.New("db")}, AutomationSchedulerConfig{}, nil).
		RunAll(context.Background(), models.RunTriggerScheduled)
	assert.Error(t, err)
}

func TestSchedulerFirstTickIsStartup(t *testing.T) {
	runner := &runnerStub{}
	s := NewAutomationScheduler(runner, userListerStub{users: []string{"u1"}},
		AutomationSchedulerConfig{InitialDelay: time.Millisecond, Interval: 10 * time.Millisecond}, nil)
	s.Start(context.Background())
	require.Eventually(t, func() bool {
		calls, _ := runner.snapshot()
		return len(calls) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	_, triggers := runner.snapshot()
	assert.Equal(t, models.RunTriggerStartup, triggers[0])
	assert.Equal(t, models.RunTriggerScheduled, triggers[1])
}

func TestSchedulerEnqueueRun(t *testing.T) {
	runner := &runnerStub{results: map[string]*dto.RunResult{"busy": {Skipped: true}}}
	s := NewAutomationScheduler(runner, userListerStub{}, AutomationSchedulerConfig{QueueWorkers: 1, QueueRetries: 3, RetryDelay: time.Millisecond}, nil)

	_, err := s.EnqueueRun("u1")
	assert.Error(t, err, "queue not started")

	s.StartQueue(context.Background())
	defer s.Stop()

	accepted, err := s.EnqueueRun("u1")
	require.NoError(t, err)
	assert.NotEmpty(t, accepted.JobID)
	assert.Equal(t, "u1", accepted.UserID)

	_, err = s.EnqueueRun("busy")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		calls, _ := runner.snapshot()
		return len(calls) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	calls, triggers := runner.snapshot()
	assert.ElementsMatch(t, []string{"u1", "busy"}, calls, "skipped run is not retried")
	for _, trigger := range triggers {
		assert.Equal(t, models.RunTriggerManual, trigger)
	}
}
