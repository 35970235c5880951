package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"clientflow/internal/interfaces"
	"clientflow/internal/models"
)

var milestoneCols = []string{
	"id", "project_id", "title", "description", "status", "milestone_price",
	"duration_days", "due_date", "free_revisions", "used_revisions", "revision_rate",
	"started_at", "submitted_at", "approved_at", "starting_notes", "submission_notes",
	"created_at", "updated_at",
}

func milestoneRow(id string, projectID string, status models.MilestoneStatus, freeRevisions int, usedRevisions int) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(milestoneCols).AddRow(
		id, projectID, "Logo design", nil, string(status), 2000.0,
		7, now.AddDate(0, 0, 7), freeRevisions, usedRevisions, 50.0,
		nil, nil, nil, nil, nil,
		now, now,
	)
}

func projectLockRow(id string, status models.ProjectStatus, agencyID string, clientEmail string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "status", "name", "agency_id", "client_email"}).
		AddRow(id, string(status), "Brand refresh", agencyID, clientEmail)
}

func TestStartMilestoneCascadesProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM milestones WHERE id = \$1 FOR UPDATE`).
		WithArgs("m1").
		WillReturnRows(milestoneRow("m1", "p1", models.MilestoneStatusNotStarted, 2, 0))
	mock.ExpectQuery(`FROM projects WHERE id = \$1 FOR UPDATE`).
		WithArgs("p1").
		WillReturnRows(projectLockRow("p1", models.ProjectStatusPending, "agency-1", "client@acme.test"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM milestones WHERE project_id = $1 AND status = 'in_progress' AND id <> $2`)).
		WithArgs("p1", "m1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE milestones SET status = 'in_progress'`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE projects SET status = 'in_progress'`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO project_activities`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewMilestoneRepository(db)
	ident := interfaces.Identity{UserID: "agency-1", Email: "agency@example.com", Role: models.UserRoleAgency}

	result, err := repo.Start(context.Background(), ident, "m1", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !result.ProjectUpdated {
		t.Fatalf("expected project cascade, got %+v", result)
	}
	if result.Milestone.Status != models.MilestoneStatusInProgress {
		t.Fatalf("expected in_progress, got %s", result.Milestone.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStartMilestoneSiblingInProgressConflicts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM milestones WHERE id = \$1 FOR UPDATE`).
		WithArgs("m1").
		WillReturnRows(milestoneRow("m1", "p1", models.MilestoneStatusNotStarted, 2, 0))
	mock.ExpectQuery(`FROM projects WHERE id = \$1 FOR UPDATE`).
		WithArgs("p1").
		WillReturnRows(projectLockRow("p1", models.ProjectStatusInProgress, "agency-1", "client@acme.test"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM milestones WHERE project_id = $1 AND status = 'in_progress' AND id <> $2`)).
		WithArgs("p1", "m1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	repo := NewMilestoneRepository(db)
	ident := interfaces.Identity{UserID: "agency-1", Role: models.UserRoleAgency}

	_, err = repo.Start(context.Background(), ident, "m1", nil)
	var conflict *interfaces.StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StateConflictError, got %v", err)
	}
	if conflict.Reason != interfaces.ReasonSiblingInProgress {
		t.Fatalf("expected %s, got %s", interfaces.ReasonSiblingInProgress, conflict.Reason)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStartMilestoneWrongAgencyUnauthorized(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM milestones WHERE id = \$1 FOR UPDATE`).
		WithArgs("m1").
		WillReturnRows(milestoneRow("m1", "p1", models.MilestoneStatusNotStarted, 2, 0))
	mock.ExpectQuery(`FROM projects WHERE id = \$1 FOR UPDATE`).
		WithArgs("p1").
		WillReturnRows(projectLockRow("p1", models.ProjectStatusPending, "agency-1", "client@acme.test"))
	mock.ExpectRollback()

	repo := NewMilestoneRepository(db)
	ident := interfaces.Identity{UserID: "other-agency", Role: models.UserRoleAgency}

	_, err = repo.Start(context.Background(), ident, "m1", nil)
	if !errors.Is(err, interfaces.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStartMilestoneFromSubmittedConflicts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM milestones WHERE id = \$1 FOR UPDATE`).
		WithArgs("m1").
		WillReturnRows(milestoneRow("m1", "p1", models.MilestoneStatusSubmitted, 2, 0))
	mock.ExpectQuery(`FROM projects WHERE id = \$1 FOR UPDATE`).
		WithArgs("p1").
		WillReturnRows(projectLockRow("p1", models.ProjectStatusInProgress, "agency-1", "client@acme.test"))
	mock.ExpectRollback()

	repo := NewMilestoneRepository(db)
	ident := interfaces.Identity{UserID: "agency-1", Role: models.UserRoleAgency}

	_, err = repo.Start(context.Background(), ident, "m1", nil)
	var conflict *interfaces.StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StateConflictError, got %v", err)
	}
	if conflict.Reason != interfaces.ReasonInvalidMilestoneStatus {
		t.Fatalf("expected %s, got %s", interfaces.ReasonInvalidMilestoneStatus, conflict.Reason)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRejectMilestoneIncrementsLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM milestones WHERE id = \$1 FOR UPDATE`).
		WithArgs("m1").
		WillReturnRows(milestoneRow("m1", "p1", models.MilestoneStatusSubmitted, 1, 0))
	mock.ExpectQuery(`FROM projects WHERE id = \$1 FOR UPDATE`).
		WithArgs("p1").
		WillReturnRows(projectLockRow("p1", models.ProjectStatusInProgress, "agency-1", "client@acme.test"))
	mock.ExpectExec(`UPDATE milestones SET status = 'rejected', used_revisions = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO project_activities`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewMilestoneRepository(db)
	ident := interfaces.Identity{UserID: "client-1", Email: "client@acme.test", Role: models.UserRoleClient}

	result, err := repo.Reject(context.Background(), ident, "m1", "logo needs rework")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if result.UsedRevisions != 1 {
		t.Fatalf("expected used_revisions 1, got %d", result.UsedRevisions)
	}
	// First rejection consumed the single free revision.
	if result.Billable {
		t.Fatalf("expected free revision, got billable")
	}
	if result.HasFreeRevisionsLeft {
		t.Fatalf("expected no free revisions left")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRejectMilestoneBeyondQuotaIsBillable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM milestones WHERE id = \$1 FOR UPDATE`).
		WithArgs("m1").
		WillReturnRows(milestoneRow("m1", "p1", models.MilestoneStatusSubmitted, 1, 1))
	mock.ExpectQuery(`FROM projects WHERE id = \$1 FOR UPDATE`).
		WithArgs("p1").
		WillReturnRows(projectLockRow("p1", models.ProjectStatusInProgress, "agency-1", "client@acme.test"))
	mock.ExpectExec(`UPDATE milestones SET status = 'rejected', used_revisions = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO project_activities`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewMilestoneRepository(db)
	ident := interfaces.Identity{UserID: "client-1", Email: "client@acme.test", Role: models.UserRoleClient}

	result, err := repo.Reject(context.Background(), ident, "m1", "still not right")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if result.UsedRevisions != 2 {
		t.Fatalf("expected used_revisions 2, got %d", result.UsedRevisions)
	}
	if !result.Billable {
		t.Fatalf("expected billable rejection")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApproveLastMilestoneCompletesProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM milestones WHERE id = \$1 FOR UPDATE`).
		WithArgs("m1").
		WillReturnRows(milestoneRow("m1", "p1", models.MilestoneStatusSubmitted, 2, 0))
	mock.ExpectQuery(`FROM projects WHERE id = \$1 FOR UPDATE`).
		WithArgs("p1").
		WillReturnRows(projectLockRow("p1", models.ProjectStatusInProgress, "agency-1", "client@acme.test"))
	mock.ExpectExec(`UPDATE milestones SET status = 'approved'`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM milestones WHERE project_id = $1 AND status <> 'approved' AND id <> $2`)).
		WithArgs("p1", "m1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE projects SET status = 'completed'`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO project_activities`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewMilestoneRepository(db)
	ident := interfaces.Identity{UserID: "client-1", Email: "Client@Acme.Test", Role: models.UserRoleClient}

	result, err := repo.Approve(context.Background(), ident, "m1")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !result.ProjectCompleted {
		t.Fatalf("expected project completion, got %+v", result)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetMilestoneNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM milestones WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	repo := NewMilestoneRepository(db)
	_, err = repo.GetByID(context.Background(), "missing")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
