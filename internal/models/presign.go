package models

import "time"

const (
	PresignModeWrite = "write"
	PresignModeRead  = "read"
)

// MaxUploadSizeBytes is advisory: clients enforce it before requesting a
// presigned URL, the server rejects obviously oversized descriptors.
const MaxUploadSizeBytes = 20 << 20

type PresignRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	Type        string `json:"type" validate:"required"`
	Size        int64  `json:"size" validate:"required,gt=0"`
	MilestoneID string `json:"milestone_id" validate:"required,uuid4"`
	Mode        string `json:"mode" validate:"required,oneof=write read"`
	// Key is required for read mode: the stored object to sign a GET for.
	Key string `json:"key,omitempty"`
}

type PresignResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int64     `json:"expires_in"`
}
