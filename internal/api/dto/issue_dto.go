package dto

import (
	"github.com/spec-kit/issue-tracker/internal/domain"
)

// CreateIssueRequest payload.
type CreateIssueRequest struct {
	Issue             string `json:"issue" validate:"required,max=200"`
	Description       string `json:"description" validate:"required,max=5000"`
	Address           string `json:"address" validate:"required,max=500"`
	RequireDepartment string `json:"require_department" validate:"required"`
}

// UpdateResponsesRequest is a department-wide status update.
type UpdateResponsesRequest struct {
	Description  string `json:"description" validate:"max=5000"`
	Requirements string `json:"requirements" validate:"max=5000"`
	ActionTaken  string `json:"action_taken" validate:"max=5000"`
	Complete     bool   `json:"complete"`
}

// IssueRefRequest names one issue.
type IssueRefRequest struct {
	IssueID string `json:"issue_id" validate:"required"`
}

// IssueResponse is the issue view. Timestamps use DD/MM/YYYY HH:MM:SS.
type IssueResponse struct {
	ID                   string            `json:"id"`
	Issue                string            `json:"issue"`
	Description          string            `json:"description"`
	Address              string            `json:"address"`
	OwnerUserID          string            `json:"user_id"`
	RequiredDepartmentID string            `json:"require_department"`
	Complete             bool              `json:"complete"`
	State                domain.IssueState `json:"state"`
	AcknowledgedAt       string            `json:"acknowledge_at"`
	CreatedAt            string            `json:"created_at"`
	UpdatedAt            string            `json:"updated_at"`
}

// ResponseView is a department response.
type ResponseView struct {
	ID             string `json:"id"`
	IssueID        string `json:"issue_id"`
	Description    string `json:"description"`
	Requirements   string `json:"requirements"`
	ActionTaken    string `json:"action_taken"`
	Complete       bool   `json:"complete"`
	AcknowledgedAt string `json:"acknowledge_at"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// IssueDetailResponse is an issue with its responses.
type IssueDetailResponse struct {
	Issue     IssueResponse  `json:"issue"`
	Responses []ResponseView `json:"responses"`
}

// IssueSummaryResponse lists a reporter's issues and their responses.
type IssueSummaryResponse struct {
	Issues    []IssueResponse `json:"issues"`
	Responses []ResponseView  `json:"responses"`
}

// NewIssueResponse maps an issue.
func NewIssueResponse(issue *domain.Issue) IssueResponse {
	return IssueResponse{
		ID:                   issue.ID,
		Issue:                issue.Title,
		Description:          issue.Description,
		Address:              issue.Address,
		OwnerUserID:          issue.OwnerUserID,
		RequiredDepartmentID: issue.RequiredDepartmentID,
		Complete:             issue.Complete,
		State:                issue.State(),
		AcknowledgedAt:       domain.FormatOptionalTimestamp(issue.AcknowledgedAt),
		CreatedAt:            domain.FormatTimestamp(issue.CreatedAt),
		UpdatedAt:            domain.FormatTimestamp(issue.UpdatedAt),
	}
}

// NewIssueResponses maps a slice of issues.
func NewIssueResponses(issues []domain.Issue) []IssueResponse {
	out := make([]IssueResponse, 0, len(issues))
	for i := range issues {
		out = append(out, NewIssueResponse(&issues[i]))
	}
	return out
}

// NewResponseView maps a response.
func NewResponseView(response *domain.Response) ResponseView {
	return ResponseView{
		ID:             response.ID,
		IssueID:        response.IssueID,
		Description:    response.Description,
		Requirements:   response.Requirements,
		ActionTaken:    response.ActionTaken,
		Complete:       response.Complete,
		AcknowledgedAt: domain.FormatOptionalTimestamp(response.AcknowledgedAt),
		CreatedAt:      domain.FormatTimestamp(response.CreatedAt),
		UpdatedAt:      domain.FormatTimestamp(response.UpdatedAt),
	}
}

// NewResponseViews maps a slice of responses.
func NewResponseViews(responses []domain.Response) []ResponseView {
	out := make([]ResponseView, 0, len(responses))
	for i := range responses {
		out = append(out, NewResponseView(&responses[i]))
	}
	return out
}
