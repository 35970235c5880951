package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"clientflow/internal/interfaces"
	"clientflow/internal/models"
)

func TestDeleteProjectBlockedByDeliverables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM projects WHERE id = \$1 FOR UPDATE`).
		WithArgs("p1").
		WillReturnRows(projectLockRow("p1", models.ProjectStatusInProgress, "agency-1", "client@acme.test"))
	mock.ExpectQuery(`FROM media_attachments`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	repo := NewProjectRepository(db)
	ident := interfaces.Identity{UserID: "agency-1", Role: models.UserRoleAgency}

	err = repo.Delete(context.Background(), ident, "p1")
	var blocked *interfaces.DeletionBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected DeletionBlockedError, got %v", err)
	}
	if blocked.References["milestones_with_deliverables"] != 2 {
		t.Fatalf("expected 2 blocking milestones, got %+v", blocked)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteProjectRemovesDependentsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM projects WHERE id = \$1 FOR UPDATE`).
		WithArgs("p1").
		WillReturnRows(projectLockRow("p1", models.ProjectStatusPending, "agency-1", "client@acme.test"))
	mock.ExpectQuery(`FROM media_attachments`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM project_activities WHERE project_id = $1`)).
		WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM reviews WHERE project_id = $1`)).
		WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM media_attachments WHERE project_id = $1`)).
		WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM milestones WHERE project_id = $1`)).
		WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM projects WHERE id = $1`)).
		WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewProjectRepository(db)
	ident := interfaces.Identity{UserID: "agency-1", Role: models.UserRoleAgency}

	if err := repo.Delete(context.Background(), ident, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProjectSummaryScansCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM projects\s+WHERE agency_id = \$1`).
		WithArgs("agency-1").
		WillReturnRows(sqlmock.NewRows([]string{"count", "pending", "in_progress", "completed", "sum"}).
			AddRow(4, 1, 2, 1, 15000.0))

	repo := NewProjectRepository(db)
	s, err := repo.Summary(context.Background(), "agency-1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.TotalProjects != 4 || s.InProgressProjects != 2 || s.TotalValue != 15000 {
		t.Fatalf("unexpected summary %+v", s)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateProjectInsertsMilestones(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO projects`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO milestones`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO milestones`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO project_activities`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewProjectRepository(db)
	ident := interfaces.Identity{UserID: "agency-1", Role: models.UserRoleAgency}
	req := &models.CreateProjectRequest{
		Name:         "Brand refresh",
		Type:         "design",
		ClientName:   "Acme",
		ClientEmail:  "client@acme.test",
		ProjectPrice: 5000,
		Milestones: []models.CreateMilestoneRequest{
			{Title: "Logo", MilestonePrice: 2000, DurationDays: 7, FreeRevisions: 2, RevisionRate: 50},
			{Title: "Guidelines", MilestonePrice: 3000, DurationDays: 14, FreeRevisions: 1, RevisionRate: 75},
		},
	}

	p, err := repo.Create(context.Background(), ident, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Status != models.ProjectStatusPending {
		t.Fatalf("expected pending project, got %s", p.Status)
	}
	if len(p.Milestones) != 2 {
		t.Fatalf("expected 2 milestones, got %d", len(p.Milestones))
	}
	if p.Milestones[0].Status != models.MilestoneStatusNotStarted {
		t.Fatalf("expected not_started, got %s", p.Milestones[0].Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
