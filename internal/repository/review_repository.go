package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"clientflow/internal/interfaces"
	"clientflow/internal/models"
)

type ReviewRepository interface {
	Create(ctx context.Context, ident interfaces.Identity, req *models.CreateReviewRequest) (*models.Review, error)
	ListByProject(ctx context.Context, projectID string) ([]*models.Review, error)
}

type reviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, ident interfaces.Identity, req *models.CreateReviewRequest) (*models.Review, error) {
	var clientEmail string
	err := r.db.QueryRowContext(ctx,
		`SELECT client_email FROM projects WHERE id = $1`, req.ProjectID,
	).Scan(&clientEmail)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get project for review: %w", err)
	}

	if !strings.EqualFold(clientEmail, ident.Email) {
		return nil, interfaces.ErrUnauthorized
	}

	// Milestone-level feedback only makes sense once the work is accepted.
	if req.MilestoneID != nil {
		var status models.MilestoneStatus
		err := r.db.QueryRowContext(ctx,
			`SELECT status FROM milestones WHERE id = $1 AND project_id = $2`,
			*req.MilestoneID, req.ProjectID,
		).Scan(&status)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, sql.ErrNoRows
			}
			return nil, fmt.Errorf("get milestone for review: %w", err)
		}
		if status != models.MilestoneStatusApproved {
			return nil, &interfaces.StateConflictError{
				Reason:  interfaces.ReasonMilestoneNotApproved,
				Message: "milestone reviews require an approved milestone",
				Current: map[string]string{"milestone_status": string(status)},
			}
		}
	}

	review := &models.Review{
		ID:          uuid.NewString(),
		ProjectID:   req.ProjectID,
		MilestoneID: req.MilestoneID,
		Rating:      req.Rating,
		Review:      req.Review,
		ClientEmail: ident.Email,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO reviews (id, project_id, milestone_id, rating, review, client_email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, review.ID, review.ProjectID, review.MilestoneID, review.Rating, review.Review, review.ClientEmail, review.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, &interfaces.StateConflictError{
				Reason:  interfaces.ReasonDuplicateReview,
				Message: "this milestone already has a review",
			}
		}
		return nil, fmt.Errorf("insert review: %w", err)
	}

	return review, nil
}

func (r *reviewRepository) ListByProject(ctx context.Context, projectID string) ([]*models.Review, error) {
	query := `
		SELECT id, project_id, milestone_id, rating, review, client_email, created_at
		FROM reviews
		WHERE project_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		var rv models.Review
		var milestoneID sql.NullString
		if err := rows.Scan(&rv.ID, &rv.ProjectID, &milestoneID, &rv.Rating, &rv.Review, &rv.ClientEmail, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		if milestoneID.Valid {
			rv.MilestoneID = &milestoneID.String
		}
		reviews = append(reviews, &rv)
	}

	return reviews, rows.Err()
}
