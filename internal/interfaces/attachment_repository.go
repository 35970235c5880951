package interfaces

import (
	"context"

	"clientflow/internal/models"
)

type AttachmentRepository interface {
	GetByMilestone(ctx context.Context, milestoneID string) (*models.MediaAttachment, error)

	// RecordFiles appends an upload batch to the milestone's deliverable
	// bundle (creating it on the first batch), moves an in_progress
	// milestone to submitted, and writes the audit row in the same
	// transaction. An empty batch is a notes-only submission.
	RecordFiles(ctx context.Context, ident Identity, milestoneID string, files []models.UploadedFile, submissionNotes string) (*models.RecordFilesResult, error)

	// DeleteFiles removes the named keys from the bundle, keeping the
	// public_ids/file_names arrays index-aligned.
	DeleteFiles(ctx context.Context, ident Identity, milestoneID string, keys []string) (int, error)
}
