package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"clientflow/internal/interfaces"
	"clientflow/internal/models"
)

func TestCreateReviewRequiresApprovedMilestone(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT client_email FROM projects WHERE id = $1`)).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"client_email"}).AddRow("client@acme.test"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM milestones WHERE id = $1 AND project_id = $2`)).
		WithArgs("m1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("submitted"))

	repo := NewReviewRepository(db)
	ident := interfaces.Identity{UserID: "client-1", Email: "client@acme.test", Role: models.UserRoleClient}
	milestoneID := "m1"

	_, err = repo.Create(context.Background(), ident, &models.CreateReviewRequest{
		ProjectID:   "p1",
		MilestoneID: &milestoneID,
		Rating:      4,
		Review:      "great work so far",
	})
	var conflict *interfaces.StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StateConflictError, got %v", err)
	}
	if conflict.Reason != interfaces.ReasonMilestoneNotApproved {
		t.Fatalf("expected %s, got %s", interfaces.ReasonMilestoneNotApproved, conflict.Reason)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateReviewDuplicateMapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT client_email FROM projects WHERE id = $1`)).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"client_email"}).AddRow("client@acme.test"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM milestones WHERE id = $1 AND project_id = $2`)).
		WithArgs("m1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("approved"))
	mock.ExpectExec(`INSERT INTO reviews`).
		WillReturnError(&pq.Error{Code: "23505"})

	repo := NewReviewRepository(db)
	ident := interfaces.Identity{UserID: "client-1", Email: "client@acme.test", Role: models.UserRoleClient}
	milestoneID := "m1"

	_, err = repo.Create(context.Background(), ident, &models.CreateReviewRequest{
		ProjectID:   "p1",
		MilestoneID: &milestoneID,
		Rating:      5,
		Review:      "excellent delivery",
	})
	var conflict *interfaces.StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StateConflictError, got %v", err)
	}
	if conflict.Reason != interfaces.ReasonDuplicateReview {
		t.Fatalf("expected %s, got %s", interfaces.ReasonDuplicateReview, conflict.Reason)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateReviewNonClientUnauthorized(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT client_email FROM projects WHERE id = $1`)).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"client_email"}).AddRow("client@acme.test"))

	repo := NewReviewRepository(db)
	ident := interfaces.Identity{UserID: "agency-1", Email: "agency@example.com", Role: models.UserRoleAgency}

	_, err = repo.Create(context.Background(), ident, &models.CreateReviewRequest{
		ProjectID: "p1",
		Rating:    5,
		Review:    "reviewing my own work",
	})
	if !errors.Is(err, interfaces.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
