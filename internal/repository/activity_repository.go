package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clientflow/internal/models"
)

type ActivityRepository interface {
	Insert(ctx context.Context, activity *models.ProjectActivity) error
	ListByProject(ctx context.Context, projectID string, limit int, offset int) ([]*models.ProjectActivity, error)
	CountByProject(ctx context.Context, projectID string) (int, error)
}

type activityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) ActivityRepository {
	return &activityRepository{db: db}
}

// execer lets activity inserts run on either *sql.DB or *sql.Tx, so
// lifecycle transitions can log inside their own transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertActivity(ctx context.Context, q execer, a *models.ProjectActivity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var metaJSON []byte
	if a.Metadata != nil {
		var err error
		metaJSON, err = json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("marshal activity metadata: %w", err)
		}
	}

	query := `
		INSERT INTO project_activities (id, project_id, milestone_id, activity_type, description, performed_by, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.ExecContext(ctx, query,
		a.ID, a.ProjectID, a.MilestoneID, a.ActivityType, a.Description,
		a.PerformedBy, metaJSON, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r *activityRepository) Insert(ctx context.Context, activity *models.ProjectActivity) error {
	return insertActivity(ctx, r.db, activity)
}

func (r *activityRepository) ListByProject(ctx context.Context, projectID string, limit int, offset int) ([]*models.ProjectActivity, error) {
	query := `
		SELECT id, project_id, milestone_id, activity_type, description, performed_by, metadata, created_at
		FROM project_activities
		WHERE project_id = $1
		ORDER BY created_at DESC
	`

	args := []any{projectID}
	argPos := 2
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, limit)
		argPos++
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []*models.ProjectActivity
	for rows.Next() {
		var a models.ProjectActivity
		var milestoneID sql.NullString
		var metaJSON []byte
		if err := rows.Scan(&a.ID, &a.ProjectID, &milestoneID, &a.ActivityType, &a.Description, &a.PerformedBy, &metaJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if milestoneID.Valid {
			a.MilestoneID = &milestoneID.String
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &a.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal activity metadata: %w", err)
			}
		}
		activities = append(activities, &a)
	}

	return activities, rows.Err()
}

func (r *activityRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM project_activities WHERE project_id = $1", projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return count, nil
}
