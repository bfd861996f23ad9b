package domain

import "time"

// IssueState is derived from the completion flag and acknowledgement stamp.
type IssueState string

const (
	IssueStateOpen         IssueState = "OPEN"
	IssueStateAcknowledged IssueState = "ACKNOWLEDGED"
	IssueStateCompleted    IssueState = "COMPLETED"
)

// Issue is a reported problem routed to a department.
type Issue struct {
	ID                   string
	Title                string
	Description          string
	Address              string
	OwnerUserID          string
	RequiredDepartmentID string
	Complete             bool
	AcknowledgedAt       *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// State returns the lifecycle state. Completed is terminal.
func (i *Issue) State() IssueState {
	switch {
	case i.Complete:
		return IssueStateCompleted
	case i.AcknowledgedAt != nil:
		return IssueStateAcknowledged
	default:
		return IssueStateOpen
	}
}
