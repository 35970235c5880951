package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clientflow/internal/interfaces"
	"clientflow/internal/models"
)

type ProjectRepository interface {
	Create(ctx context.Context, ident interfaces.Identity, req *models.CreateProjectRequest) (*models.Project, error)
	GetByID(ctx context.Context, id string) (*models.Project, error)
	ListByAgency(ctx context.Context, agencyID string, limit int, offset int) ([]*models.Project, error)
	CountByAgency(ctx context.Context, agencyID string) (int, error)
	Summary(ctx context.Context, agencyID string) (*models.ProjectSummary, error)
	Delete(ctx context.Context, ident interfaces.Identity, id string) error
}

type projectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) ProjectRepository {
	return &projectRepository{db: db}
}

// Create inserts the project and all its milestones in one transaction;
// milestone due dates derive from duration_days at creation time.
func (r *projectRepository) Create(ctx context.Context, ident interfaces.Identity, req *models.CreateProjectRequest) (*models.Project, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create project: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	project := &models.Project{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Description:  req.Description,
		Type:         req.Type,
		Status:       models.ProjectStatusPending,
		ClientName:   req.ClientName,
		ClientEmail:  req.ClientEmail,
		ProjectPrice: req.ProjectPrice,
		AgencyID:     ident.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, type, status, client_name, client_email, project_price, agency_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, project.ID, project.Name, project.Description, project.Type, project.Status,
		project.ClientName, project.ClientEmail, project.ProjectPrice, project.AgencyID,
		project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	for _, mreq := range req.Milestones {
		m := &models.Milestone{
			ID:             uuid.NewString(),
			ProjectID:      project.ID,
			Title:          mreq.Title,
			Description:    mreq.Description,
			Status:         models.MilestoneStatusNotStarted,
			MilestonePrice: mreq.MilestonePrice,
			DurationDays:   mreq.DurationDays,
			DueDate:        now.AddDate(0, 0, mreq.DurationDays),
			FreeRevisions:  mreq.FreeRevisions,
			RevisionRate:   mreq.RevisionRate,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		m.HasFreeRevisionsLeft = m.FreeRevisionsLeft()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO milestones (id, project_id, title, description, status, milestone_price, duration_days, due_date, free_revisions, used_revisions, revision_rate, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11, $12)
		`, m.ID, m.ProjectID, m.Title, m.Description, m.Status, m.MilestonePrice,
			m.DurationDays, m.DueDate, m.FreeRevisions, m.RevisionRate, m.CreatedAt, m.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert milestone: %w", err)
		}

		project.Milestones = append(project.Milestones, m)
	}

	if err := insertActivity(ctx, tx, &models.ProjectActivity{
		ProjectID:    project.ID,
		ActivityType: models.ActivityProjectCreated,
		Description:  fmt.Sprintf("Project %q created with %d milestone(s)", project.Name, len(req.Milestones)),
		PerformedBy:  ident.UserID,
		Metadata: map[string]any{
			"milestone_count": len(req.Milestones),
			"project_price":   project.ProjectPrice,
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create project: %w", err)
	}

	return project, nil
}

func (r *projectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `
		SELECT id, name, description, type, status, client_name, client_email, project_price, agency_id, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	var p models.Project
	var description sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &description, &p.Type, &p.Status, &p.ClientName,
		&p.ClientEmail, &p.ProjectPrice, &p.AgencyID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	if description.Valid {
		p.Description = &description.String
	}

	return &p, nil
}

func (r *projectRepository) ListByAgency(ctx context.Context, agencyID string, limit int, offset int) ([]*models.Project, error) {
	query := `
		SELECT id, name, description, type, status, client_name, client_email, project_price, agency_id, created_at, updated_at
		FROM projects
		WHERE agency_id = $1
		ORDER BY created_at DESC
	`

	args := []any{agencyID}
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
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		var description sql.NullString
		if err := rows.Scan(
			&p.ID, &p.Name, &description, &p.Type, &p.Status, &p.ClientName,
			&p.ClientEmail, &p.ProjectPrice, &p.AgencyID, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if description.Valid {
			p.Description = &description.String
		}
		projects = append(projects, &p)
	}

	return projects, rows.Err()
}

func (r *projectRepository) CountByAgency(ctx context.Context, agencyID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE agency_id = $1", agencyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return count, nil
}

func (r *projectRepository) Summary(ctx context.Context, agencyID string) (*models.ProjectSummary, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COALESCE(SUM(project_price), 0)
		FROM projects
		WHERE agency_id = $1
	`

	var s models.ProjectSummary
	err := r.db.QueryRowContext(ctx, query, agencyID).Scan(
		&s.TotalProjects, &s.PendingProjects, &s.InProgressProjects,
		&s.CompletedProjects, &s.TotalValue,
	)
	if err != nil {
		return nil, fmt.Errorf("project summary: %w", err)
	}
	return &s, nil
}

// Delete removes the project and every dependent row, but only when no
// milestone has recorded deliverables. Submitted work blocks deletion.
func (r *projectRepository) Delete(ctx context.Context, ident interfaces.Identity, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete project: %w", err)
	}
	defer tx.Rollback()

	p, err := lockProject(ctx, tx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock project: %w", err)
	}

	if p.AgencyID != ident.UserID {
		return interfaces.ErrUnauthorized
	}

	var withDeliverables int64
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM media_attachments
		WHERE project_id = $1 AND COALESCE(array_length(public_ids, 1), 0) > 0
	`, id).Scan(&withDeliverables)
	if err != nil {
		return fmt.Errorf("check project deliverables: %w", err)
	}
	if withDeliverables > 0 {
		return &interfaces.DeletionBlockedError{
			Resource: "project",
			References: map[string]int64{
				"milestones_with_deliverables": withDeliverables,
			},
		}
	}

	for _, stmt := range []string{
		`DELETE FROM project_activities WHERE project_id = $1`,
		`DELETE FROM reviews WHERE project_id = $1`,
		`DELETE FROM media_attachments WHERE project_id = $1`,
		`DELETE FROM milestones WHERE project_id = $1`,
		`DELETE FROM projects WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete project rows: %w", err)
		}
	}

	return tx.Commit()
}
