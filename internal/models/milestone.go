package models

import "time"

type MilestoneStatus string

const (
	MilestoneStatusNotStarted MilestoneStatus = "not_started"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusSubmitted  MilestoneStatus = "submitted"
	MilestoneStatusApproved   MilestoneStatus = "approved"
	MilestoneStatusRejected   MilestoneStatus = "rejected"
)

type Milestone struct {
	ID              string          `json:"id"`
	ProjectID       string          `json:"project_id"`
	Title           string          `json:"title"`
	Description     *string         `json:"description,omitempty"`
	Status          MilestoneStatus `json:"status"`
	MilestonePrice  float64         `json:"milestone_price"`
	DurationDays    int             `json:"duration_days"`
	DueDate         time.Time       `json:"due_date"`
	FreeRevisions   int             `json:"free_revisions"`
	UsedRevisions   int             `json:"used_revisions"`
	RevisionRate    float64         `json:"revision_rate"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	StartingNotes   *string         `json:"starting_notes,omitempty"`
	SubmissionNotes *string         `json:"submission_notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	HasFreeRevisionsLeft bool `json:"has_free_revisions_left"`
}

// FreeRevisionsLeft reports whether the next rejection would be free of
// charge. Kept on the entity so reads and the reject path derive it the
// same way.
func (m *Milestone) FreeRevisionsLeft() bool {
	return m.UsedRevisions < m.FreeRevisions
}

type CreateMilestoneRequest struct {
	Title          string  `json:"title" validate:"required,min=2,max=120"`
	Description    *string `json:"description,omitempty"`
	MilestonePrice float64 `json:"milestone_price" validate:"required,gt=0"`
	DurationDays   int     `json:"duration_days" validate:"required,gt=0"`
	FreeRevisions  int     `json:"free_revisions" validate:"gte=0"`
	RevisionRate   float64 `json:"revision_rate" validate:"gte=0"`
}

type StartMilestoneRequest struct {
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type RejectMilestoneRequest struct {
	RevisionNotes string `json:"revision_notes" validate:"required,min=5,max=500"`
}

// StartMilestoneResult reports what a start transition changed.
type StartMilestoneResult struct {
	Milestone      *Milestone `json:"milestone"`
	ProjectUpdated bool       `json:"project_updated"`
	ActivityLogged bool       `json:"activity_logged"`
}

// RejectMilestoneResult reports the revision-ledger outcome of a rejection.
type RejectMilestoneResult struct {
	Milestone            *Milestone `json:"milestone"`
	UsedRevisions        int        `json:"used_revisions"`
	FreeRevisions        int        `json:"free_revisions"`
	Billable             bool       `json:"billable"`
	RevisionRate         float64    `json:"revision_rate"`
	HasFreeRevisionsLeft bool       `json:"has_free_revisions_left"`
}

// ApproveMilestoneResult reports whether the approval completed the project.
type ApproveMilestoneResult struct {
	Milestone        *Milestone `json:"milestone"`
	ProjectCompleted bool       `json:"project_completed"`
}
