package interfaces

import (
	"context"

	"clientflow/internal/models"
)

// Identity is the verified caller, threaded explicitly into every
// lifecycle operation instead of read from ambient session state.
type Identity struct {
	UserID string
	Email  string
	Role   models.UserRole
}

type MilestoneRepository interface {
	GetByID(ctx context.Context, id string) (*models.Milestone, error)
	// GetWithProject resolves a milestone together with its parent project
	// for authorization checks.
	GetWithProject(ctx context.Context, id string) (*models.Milestone, *models.Project, error)
	ListByProject(ctx context.Context, projectID string) ([]*models.Milestone, error)

	// Start moves a milestone into in_progress. Runs as one transaction
	// with the sibling-in-progress check; cascades the project to
	// in_progress when it was pending.
	Start(ctx context.Context, ident Identity, milestoneID string, notes *string) (*models.StartMilestoneResult, error)

	// Approve moves a submitted milestone to approved; completes the
	// project when it was the last one.
	Approve(ctx context.Context, ident Identity, milestoneID string) (*models.ApproveMilestoneResult, error)

	// Reject moves a submitted milestone to rejected and increments
	// used_revisions by exactly one.
	Reject(ctx context.Context, ident Identity, milestoneID string, revisionNotes string) (*models.RejectMilestoneResult, error)
}
