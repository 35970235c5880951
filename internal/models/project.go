package models

import "time"

type ProjectStatus string

const (
	ProjectStatusPending    ProjectStatus = "pending"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

type Project struct {
	ID           string        `json:"id"`
	Name         string        `json:"name" validate:"required"`
	Description  *string       `json:"description,omitempty"`
	Type         string        `json:"type"`
	Status       ProjectStatus `json:"status"`
	ClientName   string        `json:"client_name"`
	ClientEmail  string        `json:"client_email"`
	ProjectPrice float64       `json:"project_price"`
	AgencyID     string        `json:"agency_id"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`

	// Populated on detail reads only.
	Milestones []*Milestone `json:"milestones,omitempty"`
}

type CreateProjectRequest struct {
	Name         string                   `json:"name" validate:"required,min=2,max=120"`
	Description  *string                  `json:"description,omitempty"`
	Type         string                   `json:"type" validate:"required"`
	ClientName   string                   `json:"client_name" validate:"required"`
	ClientEmail  string                   `json:"client_email" validate:"required,email"`
	ProjectPrice float64                  `json:"project_price" validate:"required,gt=0"`
	Milestones   []CreateMilestoneRequest `json:"milestones" validate:"required,min=1,dive"`
}

// ProjectSummary backs the agency dashboard.
type ProjectSummary struct {
	TotalProjects      int     `json:"total_projects"`
	PendingProjects    int     `json:"pending_projects"`
	InProgressProjects int     `json:"in_progress_projects"`
	CompletedProjects  int     `json:"completed_projects"`
	TotalValue         float64 `json:"total_value"`
}
