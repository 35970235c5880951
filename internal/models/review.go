package models

import "time"

type Review struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	MilestoneID *string   `json:"milestone_id,omitempty"` // nil = project-level review
	Rating      int       `json:"rating"`
	Review      string    `json:"review"`
	ClientEmail string    `json:"client_email"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateReviewRequest struct {
	ProjectID   string  `json:"project_id" validate:"required,uuid4"`
	MilestoneID *string `json:"milestone_id,omitempty" validate:"omitempty,uuid4"`
	Rating      int     `json:"rating" validate:"required,gte=1,lte=5"`
	Review      string  `json:"review" validate:"required,min=5,max=1000"`
}
