package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/applytrack-api/internal/models"
)

// ErrStatusChanged reports that an application left the status a proposal was derived from.
var ErrStatusChanged = errors.New("application status changed since snapshot")

// ApplicationRepository reads application snapshots and persists automated status changes.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

type applicationRow struct {
	ID          string                   `db:"id"`
	UserID      string                   `db:"user_id"`
	Company     sql.NullString           `db:"company"`
	Role        sql.NullString           `db:"role"`
	Status      models.ApplicationStatus `db:"status"`
	CreatedAt   *time.Time               `db:"created_at"`
	AppliedDate *time.Time               `db:"applied_date"`
	UpdatedAt   *time.Time               `db:"updated_at"`
}

type historyRow struct {
	ApplicationID string                   `db:"application_id"`
	Status        models.ApplicationStatus `db:"status"`
	ChangedAt     *time.Time               `db:"changed_at"`
	Notes         sql.NullString           `db:"notes"`
}

type interviewRow struct {
	ID            string                 `db:"id"`
	ApplicationID string                 `db:"application_id"`
	Status        models.InterviewStatus `db:"status"`
	Type          sql.NullString         `db:"type"`
	ScheduledAt   *time.Time             `db:"scheduled_at"`
}

const applicationColumns = `a.id, a.user_id, a.company, a.role, a.status, a.created_at, a.applied_date, a.updated_at`

// ListSnapshot loads every application owned by the user together with its
// status history (oldest first) and interviews.
func (r *ApplicationRepository) ListSnapshot(ctx context.Context, userID string) ([]models.Application, error) {
	return r.load(ctx, userID, "")
}

// Get loads a single application snapshot scoped to its owner.
func (r *ApplicationRepository) Get(ctx context.Context, userID, id string) (*models.Application, error) {
	apps, err := r.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, sql.ErrNoRows
	}
	return &apps[0], nil
}

func (r *ApplicationRepository) load(ctx context.Context, userID, id string) ([]models.Application, error) {
	where := "a.user_id = $1"
	args := []interface{}{userID}
	if id != "" {
		where += " AND a.id = $2"
		args = append(args, id)
	}

	var rows []applicationRow
	query := fmt.Sprintf(`SELECT %s FROM applications a WHERE %s ORDER BY a.created_at ASC, a.id ASC`, applicationColumns, where)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	if len(rows) == 0 {
		return []models.Application{}, nil
	}

	var history []historyRow
	historyQuery := fmt.Sprintf(`SELECT h.application_id, h.status, h.changed_at, h.notes
FROM application_status_history h JOIN applications a ON a.id = h.application_id
WHERE %s ORDER BY h.application_id, h.changed_at ASC, h.id ASC`, where)
	if err := r.db.SelectContext(ctx, &history, historyQuery, args...); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}

	var interviews []interviewRow
	interviewQuery := fmt.Sprintf(`SELECT i.id, i.application_id, i.status, i.type, i.scheduled_at
FROM application_interviews i JOIN applications a ON a.id = i.application_id
WHERE %s ORDER BY i.application_id, i.scheduled_at ASC`, where)
	if err := r.db.SelectContext(ctx, &interviews, interviewQuery, args...); err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}

	historyByApp := make(map[string][]models.StatusHistoryEntry, len(rows))
	for _, h := range history {
		historyByApp[h.ApplicationID] = append(historyByApp[h.ApplicationID], models.StatusHistoryEntry{
			Status: h.Status,
			Date:   formatTime(h.ChangedAt),
			Notes:  h.Notes.String,
		})
	}
	interviewsByApp := make(map[string][]models.Interview, len(rows))
	for _, i := range interviews {
		interviewsByApp[i.ApplicationID] = append(interviewsByApp[i.ApplicationID], models.Interview{
			ID:     i.ID,
			Status: i.Status,
			Type:   i.Type.String,
			Date:   formatTime(i.ScheduledAt),
		})
	}

	apps := make([]models.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, models.Application{
			ID:            row.ID,
			UserID:        row.UserID,
			Company:       row.Company.String,
			Role:          row.Role.String,
			Status:        row.Status,
			StatusHistory: historyByApp[row.ID],
			Interviews:    interviewsByApp[row.ID],
			CreatedAt:     formatTime(row.CreatedAt),
			AppliedDate:   formatTime(row.AppliedDate),
			UpdatedAt:     formatTime(row.UpdatedAt),
		})
	}
	return apps, nil
}

// StatusChangeParams describes one automated transition.
type StatusChangeParams struct {
	UserID        string
	ApplicationID string
	FromStatus    models.ApplicationStatus
	ToStatus      models.ApplicationStatus
	Notes         string
	ChangedAt     time.Time
}

// ApplyStatusChange sets the new status and appends a history entry in one
// transaction. It returns applied=false without error when the application is
// already in the target status, so retries are harmless. ErrStatusChanged is
// returned when the row moved to some other status after the snapshot.
func (r *ApplicationRepository) ApplyStatusChange(ctx context.Context, params StatusChangeParams) (bool, error) {
	if params.ChangedAt.IsZero() {
		params.ChangedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin status change tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current models.ApplicationStatus
	if err := tx.GetContext(ctx, &current, `SELECT status FROM applications WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		params.ApplicationID, params.UserID); err != nil {
		return false, err
	}
	if current == params.ToStatus {
		return false, nil
	}
	if params.FromStatus != "" && current != params.FromStatus {
		return false, ErrStatusChanged
	}

	if _, err := tx.ExecContext(ctx, `UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3`,
		params.ToStatus, params.ChangedAt, params.ApplicationID); err != nil {
		return false, fmt.Errorf("update application status: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO application_status_history (id, application_id, status, changed_at, notes)
VALUES ($1, $2, $3, $4, $5)`, uuid.NewString(), params.ApplicationID, params.ToStatus, params.ChangedAt, nullString(params.Notes)); err != nil {
		return false, fmt.Errorf("insert status history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit status change: %w", err)
	}
	return true, nil
}

// ListAutomationUsers returns owners with at least one application that is not archived.
func (r *ApplicationRepository) ListAutomationUsers(ctx context.Context) ([]string, error) {
	var users []string
	if err := r.db.SelectContext(ctx, &users,
		`SELECT DISTINCT user_id FROM applications WHERE status <> $1 ORDER BY user_id`, models.StatusArchived); err != nil {
		return nil, fmt.Errorf("list automation users: %w", err)
	}
	return users, nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}
