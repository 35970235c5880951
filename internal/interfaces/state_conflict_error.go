package interfaces

// StateConflictError is returned when a lifecycle transition is illegal
// given the current status of the milestone or its project. Reason is a
// machine-readable code; Current carries the conflicting state.
type StateConflictError struct {
	Reason  string
	Message string
	Current map[string]string
}

func (e *StateConflictError) Error() string {
	return e.Message
}

const (
	ReasonInvalidProjectStatus   = "invalid_project_status"
	ReasonInvalidMilestoneStatus = "invalid_milestone_status"
	ReasonSiblingInProgress      = "milestone_already_in_progress"
	ReasonMilestoneNotApproved   = "milestone_not_approved"
	ReasonDuplicateReview        = "duplicate_review"
)
