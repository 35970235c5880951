package models

import "time"

// MediaAttachment is the single growing deliverable bundle for a milestone.
// PublicIDs and FileNames are parallel arrays: PublicIDs[i] is the storage
// key of the file named FileNames[i].
type MediaAttachment struct {
	ID              string    `json:"id"`
	MilestoneID     string    `json:"milestone_id"`
	ProjectID       string    `json:"project_id"`
	UploadedBy      string    `json:"uploaded_by"`
	PublicIDs       []string  `json:"public_ids"`
	FileNames       []string  `json:"file_names"`
	SubmissionNotes *string   `json:"submission_notes,omitempty"`
	UploadedAt      time.Time `json:"uploaded_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type UploadedFile struct {
	Key          string `json:"key" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Size         int64  `json:"size" validate:"required,gt=0"`
	Type         string `json:"type"`
	LastModified int64  `json:"last_modified,omitempty"`
}

type RecordFilesRequest struct {
	Files           []UploadedFile `json:"files" validate:"dive"`
	SubmissionNotes string         `json:"submission_notes,omitempty" validate:"omitempty,min=5,max=500"`
}

type RecordFilesResult struct {
	FilesProcessed          int             `json:"files_processed"`
	TotalFiles              int             `json:"total_files"`
	IsUpdate                bool            `json:"is_update"`
	MilestoneStatusUpdated  bool            `json:"milestone_status_updated"`
	PreviousMilestoneStatus MilestoneStatus `json:"previous_milestone_status"`
	NewMilestoneStatus      MilestoneStatus `json:"new_milestone_status"`
}

type DeleteFilesRequest struct {
	Keys []string `json:"keys" validate:"required,min=1"`
}

// FileUploadOutcome is the per-file result of a server-side relay upload.
// A batch may end mixed: uploaded files are recorded, failed ones reported.
type FileUploadOutcome struct {
	Name  string `json:"name"`
	Key   string `json:"key,omitempty"`
	Size  int64  `json:"size"`
	Error string `json:"error,omitempty"`
}
