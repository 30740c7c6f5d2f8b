package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/applytrack-api/internal/models"
)

const runColumns = `id, user_id, trigger, status, evaluated, proposed, applied, failed, started_at, finished_at, error_message`

// AutomationRunRepository stores the audit trail of automation runs.
type AutomationRunRepository struct {
	db *sqlx.DB
}

// NewAutomationRunRepository constructs the repository.
func NewAutomationRunRepository(db *sqlx.DB) *AutomationRunRepository {
	return &AutomationRunRepository{db: db}
}

// Create inserts a run row with generated defaults.
func (r *AutomationRunRepository) Create(ctx context.Context, run *models.AutomationRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	const query = `INSERT INTO automation_runs (` + runColumns + `)
VALUES (:id, :user_id, :trigger, :status, :evaluated, :proposed, :applied, :failed, :started_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create automation run: %w", err)
	}
	return nil
}

// Finish records the terminal status and counters of a run.
func (r *AutomationRunRepository) Finish(ctx context.Context, run *models.AutomationRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	const query = `UPDATE automation_runs SET status = :status, evaluated = :evaluated, proposed = :proposed, applied = :applied,
failed = :failed, finished_at = :finished_at, error_message = :error_message WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, run)
	if err != nil {
		return fmt.Errorf("finish automation run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish automation run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddItems bulk inserts per-application outcomes in a single transaction.
func (r *AutomationRunRepository) AddItems(ctx context.Context, items []models.AutomationRunItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run items tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `INSERT INTO automation_run_items (id, run_id, application_id, from_status, to_status, rule, reason, error_message, created_at)
VALUES (:id, :run_id, :application_id, :from_status, :to_status, :rule, :reason, :error_message, :created_at)`
	now := time.Now().UTC()
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, items[i]); err != nil {
			return fmt.Errorf("insert run item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run items: %w", err)
	}
	return nil
}

// GetByID returns a run owned by the user.
func (r *AutomationRunRepository) GetByID(ctx context.Context, userID, id string) (*models.AutomationRun, error) {
	query := `SELECT ` + runColumns + ` FROM automation_runs WHERE id = $1 AND user_id = $2`
	var run models.AutomationRun
	if err := r.db.GetContext(ctx, &run, query, id, userID); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListByUser returns runs matching the filter, newest first, and the total count.
func (r *AutomationRunRepository) ListByUser(ctx context.Context, filter models.AutomationRunFilter) ([]models.AutomationRun, int, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{filter.UserID}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			statuses[i] = string(status)
		}
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}
	clause := "WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM automation_runs "+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count automation runs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf("SELECT %s FROM automation_runs %s ORDER BY started_at DESC LIMIT $%d OFFSET $%d",
		runColumns, clause, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var runs []models.AutomationRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list automation runs: %w", err)
	}
	return runs, total, nil
}

// ListItems returns the items recorded for a run in insertion order.
func (r *AutomationRunRepository) ListItems(ctx context.Context, runID string) ([]models.AutomationRunItem, error) {
	const query = `SELECT id, run_id, application_id, from_status, to_status, rule, reason, error_message, created_at
FROM automation_run_items WHERE run_id = $1 ORDER BY created_at ASC, id ASC`
	var items []models.AutomationRunItem
	if err := r.db.SelectContext(ctx, &items, query, runID); err != nil {
		return nil, fmt.Errorf("list run items: %w", err)
	}
	return items, nil
}
