package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueCreated      EventType = "issue_created"
	EventIssueAcknowledged EventType = "issue_acknowledged"
	EventIssueCompleted    EventType = "issue_completed"
	EventResponsesUpdated  EventType = "responses_updated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	IssueID   string    `json:"issue_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// IssueCreatedPayload carries what the assignment notice needs.
type IssueCreatedPayload struct {
	DepartmentID string `json:"department_id"`
	AssigneeID   string `json:"assignee_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Address      string `json:"address"`
}

// IssueCompletedPayload payload.
type IssueCompletedPayload struct {
	DepartmentID      string `json:"department_id"`
	ResponsesAffected int    `json:"responses_affected"`
}

// ResponsesUpdatedPayload payload.
type ResponsesUpdatedPayload struct {
	DepartmentID string   `json:"department_id"`
	ResponseIDs  []string `json:"response_ids"`
	Complete     bool     `json:"complete"`
}
