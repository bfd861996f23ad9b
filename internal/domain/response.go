package domain

import "time"

// Response is the department's working record against one issue.
type Response struct {
	ID             string
	IssueID        string
	Description    string
	Requirements   string
	ActionTaken    string
	Complete       bool
	AcknowledgedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
