package interfaces

// DeletionBlockedError is returned when deleting a resource would orphan
// or destroy referenced work, e.g. a project whose milestones already have
// recorded deliverables.
type DeletionBlockedError struct {
	Resource   string
	References map[string]int64
}

func (e *DeletionBlockedError) Error() string {
	return "deletion blocked"
}
