package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"clientflow/internal/interfaces"
	"clientflow/internal/models"
)

const milestoneColumns = `id, project_id, title, description, status, milestone_price, duration_days, due_date,
	free_revisions, used_revisions, revision_rate, started_at, submitted_at, approved_at,
	starting_notes, submission_notes, created_at, updated_at`

type milestoneRepository struct {
	db *sql.DB
}

func NewMilestoneRepository(db *sql.DB) interfaces.MilestoneRepository {
	return &milestoneRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMilestone(row rowScanner) (*models.Milestone, error) {
	var m models.Milestone
	var description, startingNotes, submissionNotes sql.NullString
	var startedAt, submittedAt, approvedAt sql.NullTime

	err := row.Scan(
		&m.ID, &m.ProjectID, &m.Title, &description, &m.Status, &m.MilestonePrice,
		&m.DurationDays, &m.DueDate, &m.FreeRevisions, &m.UsedRevisions, &m.RevisionRate,
		&startedAt, &submittedAt, &approvedAt, &startingNotes, &submissionNotes,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		m.Description = &description.String
	}
	if startingNotes.Valid {
		m.StartingNotes = &startingNotes.String
	}
	if submissionNotes.Valid {
		m.SubmissionNotes = &submissionNotes.String
	}
	if startedAt.Valid {
		m.StartedAt = &startedAt.Time
	}
	if submittedAt.Valid {
		m.SubmittedAt = &submittedAt.Time
	}
	if approvedAt.Valid {
		m.ApprovedAt = &approvedAt.Time
	}
	m.HasFreeRevisionsLeft = m.FreeRevisionsLeft()

	return &m, nil
}

func (r *milestoneRepository) GetByID(ctx context.Context, id string) (*models.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE id = $1`
	m, err := scanMilestone(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get milestone: %w", err)
	}
	return m, nil
}

func (r *milestoneRepository) GetWithProject(ctx context.Context, id string) (*models.Milestone, *models.Project, error) {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	query := `
		SELECT id, name, description, type, status, client_name, client_email, project_price, agency_id, created_at, updated_at
		FROM projects
		WHERE id = $1
	`
	var p models.Project
	var description sql.NullString
	err = r.db.QueryRowContext(ctx, query, m.ProjectID).Scan(
		&p.ID, &p.Name, &description, &p.Type, &p.Status, &p.ClientName,
		&p.ClientEmail, &p.ProjectPrice, &p.AgencyID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, sql.ErrNoRows
		}
		return nil, nil, fmt.Errorf("get milestone project: %w", err)
	}
	if description.Valid {
		p.Description = &description.String
	}

	return m, &p, nil
}

func (r *milestoneRepository) ListByProject(ctx context.Context, projectID string) ([]*models.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE project_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	var milestones []*models.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		milestones = append(milestones, m)
	}

	return milestones, rows.Err()
}

// lockMilestone reads the milestone row FOR UPDATE inside tx so concurrent
// lifecycle calls on the same milestone serialize.
func lockMilestone(ctx context.Context, tx *sql.Tx, id string) (*models.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE id = $1 FOR UPDATE`
	return scanMilestone(tx.QueryRowContext(ctx, query, id))
}

type lockedProject struct {
	ID          string
	Status      models.ProjectStatus
	Name        string
	AgencyID    string
	ClientEmail string
}

func lockProject(ctx context.Context, tx *sql.Tx, id string) (*lockedProject, error) {
	var p lockedProject
	err := tx.QueryRowContext(ctx,
		`SELECT id, status, name, agency_id, client_email FROM projects WHERE id = $1 FOR UPDATE`, id,
	).Scan(&p.ID, &p.Status, &p.Name, &p.AgencyID, &p.ClientEmail)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *milestoneRepository) Start(ctx context.Context, ident interfaces.Identity, milestoneID string, notes *string) (*models.StartMilestoneResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin start milestone: %w", err)
	}
	defer tx.Rollback()

	// Lock order is milestone then project in every lifecycle method.
	m, err := lockMilestone(ctx, tx, milestoneID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock milestone: %w", err)
	}

	p, err := lockProject(ctx, tx, m.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("lock project: %w", err)
	}

	if p.AgencyID != ident.UserID {
		return nil, interfaces.ErrUnauthorized
	}

	if p.Status != models.ProjectStatusPending && p.Status != models.ProjectStatusInProgress {
		return nil, &interfaces.StateConflictError{
			Reason:  interfaces.ReasonInvalidProjectStatus,
			Message: fmt.Sprintf("cannot start milestone while project is %s", p.Status),
			Current: map[string]string{"project_status": string(p.Status)},
		}
	}

	// not_started is the canonical initial state; rejected restarts are the
	// explicit rework transition.
	wasRejected := m.Status == models.MilestoneStatusRejected
	if m.Status != models.MilestoneStatusNotStarted && !wasRejected {
		return nil, &interfaces.StateConflictError{
			Reason:  interfaces.ReasonInvalidMilestoneStatus,
			Message: fmt.Sprintf("milestone cannot start from status %s", m.Status),
			Current: map[string]string{"milestone_status": string(m.Status)},
		}
	}

	var siblings int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM milestones WHERE project_id = $1 AND status = 'in_progress' AND id <> $2`,
		m.ProjectID, m.ID,
	).Scan(&siblings)
	if err != nil {
		return nil, fmt.Errorf("check sibling milestones: %w", err)
	}
	if siblings > 0 {
		return nil, &interfaces.StateConflictError{
			Reason:  interfaces.ReasonSiblingInProgress,
			Message: "another milestone in this project is already in progress",
			Current: map[string]string{"project_id": m.ProjectID},
		}
	}

	now := time.Now().UTC()
	previousStatus := m.Status
	_, err = tx.ExecContext(ctx,
		`UPDATE milestones SET status = 'in_progress', started_at = $1, starting_notes = $2, updated_at = $1 WHERE id = $3`,
		now, notes, m.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("start milestone: %w", err)
	}

	projectUpdated := false
	if p.Status == models.ProjectStatusPending {
		if _, err := tx.ExecContext(ctx,
			`UPDATE projects SET status = 'in_progress', updated_at = $1 WHERE id = $2`, now, p.ID,
		); err != nil {
			return nil, fmt.Errorf("cascade project status: %w", err)
		}
		projectUpdated = true
	}

	msID := m.ID
	if err := insertActivity(ctx, tx, &models.ProjectActivity{
		ProjectID:    m.ProjectID,
		MilestoneID:  &msID,
		ActivityType: models.ActivityMilestoneStarted,
		Description:  fmt.Sprintf("Milestone %q started", m.Title),
		PerformedBy:  ident.UserID,
		Metadata: map[string]any{
			"previous_status": string(previousStatus),
			"rework":          wasRejected,
			"project_updated": projectUpdated,
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit start milestone: %w", err)
	}

	m.Status = models.MilestoneStatusInProgress
	m.StartedAt = &now
	m.StartingNotes = notes
	m.UpdatedAt = now
	m.HasFreeRevisionsLeft = m.FreeRevisionsLeft()

	return &models.StartMilestoneResult{
		Milestone:      m,
		ProjectUpdated: projectUpdated,
		ActivityLogged: true,
	}, nil
}

func (r *milestoneRepository) Approve(ctx context.Context, ident interfaces.Identity, milestoneID string) (*models.ApproveMilestoneResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approve milestone: %w", err)
	}
	defer tx.Rollback()

	m, err := lockMilestone(ctx, tx, milestoneID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock milestone: %w", err)
	}

	p, err := lockProject(ctx, tx, m.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("lock project: %w", err)
	}

	if !strings.EqualFold(p.ClientEmail, ident.Email) {
		return nil, interfaces.ErrUnauthorized
	}

	if m.Status != models.MilestoneStatusSubmitted {
		return nil, &interfaces.StateConflictError{
			Reason:  interfaces.ReasonInvalidMilestoneStatus,
			Message: fmt.Sprintf("only submitted milestones can be approved, current status is %s", m.Status),
			Current: map[string]string{"milestone_status": string(m.Status)},
		}
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE milestones SET status = 'approved', approved_at = $1, updated_at = $1 WHERE id = $2`,
		now, m.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("approve milestone: %w", err)
	}

	var remaining int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM milestones WHERE project_id = $1 AND status <> 'approved' AND id <> $2`,
		m.ProjectID, m.ID,
	).Scan(&remaining)
	if err != nil {
		return nil, fmt.Errorf("count unapproved milestones: %w", err)
	}

	projectCompleted := false
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE projects SET status = 'completed', updated_at = $1 WHERE id = $2`, now, p.ID,
		); err != nil {
			return nil, fmt.Errorf("complete project: %w", err)
		}
		projectCompleted = true
	}

	msID := m.ID
	if err := insertActivity(ctx, tx, &models.ProjectActivity{
		ProjectID:    m.ProjectID,
		MilestoneID:  &msID,
		ActivityType: models.ActivityMilestoneApproved,
		Description:  fmt.Sprintf("Milestone %q approved by client", m.Title),
		PerformedBy:  ident.UserID,
		Metadata: map[string]any{
			"project_completed": projectCompleted,
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approve milestone: %w", err)
	}

	m.Status = models.MilestoneStatusApproved
	m.ApprovedAt = &now
	m.UpdatedAt = now

	return &models.ApproveMilestoneResult{
		Milestone:        m,
		ProjectCompleted: projectCompleted,
	}, nil
}

func (r *milestoneRepository) Reject(ctx context.Context, ident interfaces.Identity, milestoneID string, revisionNotes string) (*models.RejectMilestoneResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reject milestone: %w", err)
	}
	defer tx.Rollback()

	m, err := lockMilestone(ctx, tx, milestoneID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock milestone: %w", err)
	}

	p, err := lockProject(ctx, tx, m.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("lock project: %w", err)
	}

	if !strings.EqualFold(p.ClientEmail, ident.Email) {
		return nil, interfaces.ErrUnauthorized
	}

	if m.Status != models.MilestoneStatusSubmitted {
		return nil, &interfaces.StateConflictError{
			Reason:  interfaces.ReasonInvalidMilestoneStatus,
			Message: fmt.Sprintf("only submitted milestones can be rejected, current status is %s", m.Status),
			Current: map[string]string{"milestone_status": string(m.Status)},
		}
	}

	now := time.Now().UTC()
	newUsed := m.UsedRevisions + 1
	// Billable iff this rejection exceeds the free quota (1-indexed rule).
	billable := newUsed > m.FreeRevisions

	_, err = tx.ExecContext(ctx,
		`UPDATE milestones SET status = 'rejected', used_revisions = $1, updated_at = $2 WHERE id = $3`,
		newUsed, now, m.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("reject milestone: %w", err)
	}

	msID := m.ID
	if err := insertActivity(ctx, tx, &models.ProjectActivity{
		ProjectID:    m.ProjectID,
		MilestoneID:  &msID,
		ActivityType: models.ActivityMilestoneRejected,
		Description:  fmt.Sprintf("Milestone %q rejected by client, revision requested", m.Title),
		PerformedBy:  ident.UserID,
		Metadata: map[string]any{
			"revision_notes": revisionNotes,
			"used_revisions": newUsed,
			"free_revisions": m.FreeRevisions,
			"billable":       billable,
			"revision_rate":  m.RevisionRate,
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reject milestone: %w", err)
	}

	m.Status = models.MilestoneStatusRejected
	m.UsedRevisions = newUsed
	m.UpdatedAt = now
	m.HasFreeRevisionsLeft = m.FreeRevisionsLeft()

	return &models.RejectMilestoneResult{
		Milestone:            m,
		UsedRevisions:        newUsed,
		FreeRevisions:        m.FreeRevisions,
		Billable:             billable,
		RevisionRate:         m.RevisionRate,
		HasFreeRevisionsLeft: m.HasFreeRevisionsLeft,
	}, nil
}
