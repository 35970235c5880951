package models

import "time"

type ActivityType string

const (
	ActivityMilestoneStarted   ActivityType = "milestone_started"
	ActivityMilestoneSubmitted ActivityType = "milestone_submitted"
	ActivityMilestoneApproved  ActivityType = "milestone_approved"
	ActivityMilestoneRejected  ActivityType = "milestone_rejected"
	ActivityFileUploaded       ActivityType = "file_uploaded"
	ActivityFileDeleted        ActivityType = "file_deleted"
	ActivityProjectCreated     ActivityType = "project_created"
)

// ProjectActivity is an append-only audit row. Rows are never updated or
// deleted except as part of whole-project deletion.
type ProjectActivity struct {
	ID           string         `json:"id"`
	ProjectID    string         `json:"project_id"`
	MilestoneID  *string        `json:"milestone_id,omitempty"`
	ActivityType ActivityType   `json:"activity_type"`
	Description  string         `json:"description"`
	PerformedBy  string         `json:"performed_by"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
