package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"clientflow/internal/interfaces"
	"clientflow/internal/models"
)

const defaultSubmissionNotes = "No submission notes provided"

type attachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) interfaces.AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) GetByMilestone(ctx context.Context, milestoneID string) (*models.MediaAttachment, error) {
	query := `
		SELECT id, milestone_id, project_id, uploaded_by, public_ids, file_names, submission_notes, uploaded_at, updated_at
		FROM media_attachments
		WHERE milestone_id = $1
	`

	var a models.MediaAttachment
	var notes sql.NullString
	err := r.db.QueryRowContext(ctx, query, milestoneID).Scan(
		&a.ID, &a.MilestoneID, &a.ProjectID, &a.UploadedBy,
		pq.Array(&a.PublicIDs), pq.Array(&a.FileNames),
		&notes, &a.UploadedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	if notes.Valid {
		a.SubmissionNotes = &notes.String
	}
	return &a, nil
}

// RecordFiles is the submit-via-upload command: bundle write, status
// cascade and audit row commit or roll back together.
func (r *attachmentRepository) RecordFiles(ctx context.Context, ident interfaces.Identity, milestoneID string, files []models.UploadedFile, submissionNotes string) (*models.RecordFilesResult, error) {
	notes := submissionNotes
	if notes == "" {
		notes = defaultSubmissionNotes
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin record files: %w", err)
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

	if p.AgencyID != ident.UserID && !strings.EqualFold(p.ClientEmail, ident.Email) {
		return nil, interfaces.ErrUnauthorized
	}

	keys := make([]string, 0, len(files))
	names := make([]string, 0, len(files))
	for _, f := range files {
		keys = append(keys, f.Key)
		names = append(names, f.Name)
	}

	now := time.Now().UTC()

	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM media_attachments WHERE milestone_id = $1 FOR UPDATE`, m.ID,
	).Scan(&existingID)
	isUpdate := err == nil
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("check existing attachment: %w", err)
	}

	var totalFiles int
	switch {
	case isUpdate:
		// Append keeps the parallel arrays index-aligned; array_cat grows
		// them in submission order even under concurrent batches.
		// submission_notes only changes when the caller sent notes, so a
		// files-only follow-up batch leaves the stored notes alone.
		if submissionNotes != "" {
			err = tx.QueryRowContext(ctx, `
				UPDATE media_attachments
				SET public_ids = array_cat(public_ids, $1),
					file_names = array_cat(file_names, $2),
					submission_notes = $3,
					updated_at = $4
				WHERE id = $5
				RETURNING COALESCE(array_length(public_ids, 1), 0)
			`, pq.Array(keys), pq.Array(names), notes, now, existingID).Scan(&totalFiles)
		} else {
			err = tx.QueryRowContext(ctx, `
				UPDATE media_attachments
				SET public_ids = array_cat(public_ids, $1),
					file_names = array_cat(file_names, $2),
					updated_at = $3
				WHERE id = $4
				RETURNING COALESCE(array_length(public_ids, 1), 0)
			`, pq.Array(keys), pq.Array(names), now, existingID).Scan(&totalFiles)
		}
		if err != nil {
			return nil, fmt.Errorf("append to attachment: %w", err)
		}
	case len(files) > 0:
		err = tx.QueryRowContext(ctx, `
			INSERT INTO media_attachments (id, milestone_id, project_id, uploaded_by, public_ids, file_names, submission_notes, uploaded_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			RETURNING COALESCE(array_length(public_ids, 1), 0)
		`, uuid.NewString(), m.ID, m.ProjectID, ident.UserID, pq.Array(keys), pq.Array(names), notes, now).Scan(&totalFiles)
		if err != nil {
			return nil, fmt.Errorf("create attachment: %w", err)
		}
	default:
		// Notes-only submission with no bundle yet: nothing to store in
		// media_attachments, the notes land on the milestone below.
		totalFiles = 0
	}

	previousStatus := m.Status
	newStatus := m.Status
	statusUpdated := false
	if m.Status == models.MilestoneStatusInProgress {
		_, err = tx.ExecContext(ctx,
			`UPDATE milestones SET status = 'submitted', submitted_at = $1, submission_notes = $2, updated_at = $1 WHERE id = $3`,
			now, notes, m.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("submit milestone: %w", err)
		}
		newStatus = models.MilestoneStatusSubmitted
		statusUpdated = true
	} else if submissionNotes != "" {
		_, err = tx.ExecContext(ctx,
			`UPDATE milestones SET submission_notes = $1, updated_at = $2 WHERE id = $3`,
			notes, now, m.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("update submission notes: %w", err)
		}
	}

	activityType := models.ActivityFileUploaded
	description := fmt.Sprintf("%d file(s) uploaded for milestone %q", len(files), m.Title)
	if statusUpdated {
		activityType = models.ActivityMilestoneSubmitted
		description = fmt.Sprintf("%d file(s) uploaded and milestone %q submitted for review", len(files), m.Title)
	} else if isUpdate && len(files) > 0 {
		description = fmt.Sprintf("%d file(s) appended to existing deliverables of milestone %q", len(files), m.Title)
	}

	msID := m.ID
	if err := insertActivity(ctx, tx, &models.ProjectActivity{
		ProjectID:    m.ProjectID,
		MilestoneID:  &msID,
		ActivityType: activityType,
		Description:  description,
		PerformedBy:  ident.UserID,
		Metadata: map[string]any{
			"batch_keys":       keys,
			"batch_file_names": names,
			"total_files":      totalFiles,
			"is_update":        isUpdate,
			"previous_status":  string(previousStatus),
			"new_status":       string(newStatus),
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit record files: %w", err)
	}

	return &models.RecordFilesResult{
		FilesProcessed:          len(files),
		TotalFiles:              totalFiles,
		IsUpdate:                isUpdate,
		MilestoneStatusUpdated:  statusUpdated,
		PreviousMilestoneStatus: previousStatus,
		NewMilestoneStatus:      newStatus,
	}, nil
}

func (r *attachmentRepository) DeleteFiles(ctx context.Context, ident interfaces.Identity, milestoneID string, deleteKeys []string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete files: %w", err)
	}
	defer tx.Rollback()

	m, err := lockMilestone(ctx, tx, milestoneID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("lock milestone: %w", err)
	}

	p, err := lockProject(ctx, tx, m.ProjectID)
	if err != nil {
		return 0, fmt.Errorf("lock project: %w", err)
	}

	// Only the owning agency can remove deliverables.
	if p.AgencyID != ident.UserID {
		return 0, interfaces.ErrUnauthorized
	}

	var attachmentID string
	var publicIDs, fileNames []string
	err = tx.QueryRowContext(ctx,
		`SELECT id, public_ids, file_names FROM media_attachments WHERE milestone_id = $1 FOR UPDATE`, m.ID,
	).Scan(&attachmentID, pq.Array(&publicIDs), pq.Array(&fileNames))
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("lock attachment: %w", err)
	}

	drop := make(map[string]bool, len(deleteKeys))
	for _, k := range deleteKeys {
		drop[k] = true
	}

	keptIDs := make([]string, 0, len(publicIDs))
	keptNames := make([]string, 0, len(fileNames))
	removed := 0
	for i, id := range publicIDs {
		if drop[id] {
			removed++
			continue
		}
		keptIDs = append(keptIDs, id)
		if i < len(fileNames) {
			keptNames = append(keptNames, fileNames[i])
		}
	}

	if removed == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE media_attachments SET public_ids = $1, file_names = $2, updated_at = $3 WHERE id = $4`,
		pq.Array(keptIDs), pq.Array(keptNames), now, attachmentID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete files: %w", err)
	}

	msID := m.ID
	if err := insertActivity(ctx, tx, &models.ProjectActivity{
		ProjectID:    m.ProjectID,
		MilestoneID:  &msID,
		ActivityType: models.ActivityFileDeleted,
		Description:  fmt.Sprintf("%d file(s) deleted from milestone %q", removed, m.Title),
		PerformedBy:  ident.UserID,
		Metadata: map[string]any{
			"deleted_keys":    deleteKeys,
			"remaining_files": len(keptIDs),
		},
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete files: %w", err)
	}

	return removed, nil
}
