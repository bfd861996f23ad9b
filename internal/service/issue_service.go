package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/clock"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/observability"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// Caller identifies the authenticated user acting on the ledger.
type Caller struct {
	UserID       string
	DepartmentID string
}

// IssueService coordinates the issue lifecycle.
type IssueService struct {
	issues     repository.IssueRepository
	responses  repository.ResponseRepository
	tx         repository.Transactor
	routing    *RoutingService
	dispatcher events.Dispatcher
	clock      clock.Clock
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	IssueRepo    repository.IssueRepository
	ResponseRepo repository.ResponseRepository
	Transactor   repository.Transactor
	Routing      *RoutingService
	Dispatcher   events.Dispatcher
	Clock        clock.Clock
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// CreateIssueInput describes an issue report.
type CreateIssueInput struct {
	Title                string
	Description          string
	Address              string
	RequiredDepartmentID string
	OwnerUserID          string
}

// IssueDetail is an issue with its responses.
type IssueDetail struct {
	Issue     *domain.Issue
	Responses []domain.Response
}

// IssueSummary lists a user's issues with every response they received.
type IssueSummary struct {
	Issues    []domain.Issue
	Responses []domain.Response
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &IssueService{
		issues:     deps.IssueRepo,
		responses:  deps.ResponseRepo,
		tx:         deps.Transactor,
		routing:    deps.Routing,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// CreateIssue routes, persists and seeds a response for a new issue, then
// notifies the assignee. Issue and response commit together before any
// notification is attempted; notification failures are not returned.
func (s *IssueService) CreateIssue(ctx context.Context, input CreateIssueInput) (*domain.Issue, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Address = strings.TrimSpace(input.Address)
	input.RequiredDepartmentID = strings.TrimSpace(input.RequiredDepartmentID)
	if missing := missingFields(map[string]string{
		"issue":                  input.Title,
		"description":            input.Description,
		"address":                input.Address,
		"required_department_id": input.RequiredDepartmentID,
	}); len(missing) > 0 {
		return nil, apperrors.NewValidationError("All fields are required", map[string]any{"missing": missing})
	}
	if input.OwnerUserID == "" {
		return nil, apperrors.NewUnauthorized("caller not identified")
	}

	assignee, err := s.routing.ResolveAssignee(ctx, input.RequiredDepartmentID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	issue := &domain.Issue{
		Title:                input.Title,
		Description:          input.Description,
		Address:              input.Address,
		OwnerUserID:          input.OwnerUserID,
		RequiredDepartmentID: input.RequiredDepartmentID,
		CreatedAt:            now,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.issues.Create(ctx, issue); err != nil {
			return err
		}
		return s.responses.Create(ctx, &domain.Response{IssueID: issue.ID, CreatedAt: now})
	})
	if err != nil {
		return nil, apperrors.NewDependencyError("create issue", err)
	}
	s.metrics.IssueCreated()

	s.publish(ctx, events.Event{
		Type:      events.EventIssueCreated,
		IssueID:   issue.ID,
		ActorID:   input.OwnerUserID,
		Timestamp: now,
		Payload: events.IssueCreatedPayload{
			DepartmentID: issue.RequiredDepartmentID,
			AssigneeID:   assignee.ID,
			Title:        issue.Title,
			Description:  issue.Description,
			Address:      issue.Address,
		},
	})
	return issue, nil
}

// ListOpenForDepartment returns incomplete issues routed to the department.
func (s *IssueService) ListOpenForDepartment(ctx context.Context, departmentID string) ([]domain.Issue, error) {
	open := false
	return s.list(ctx, repository.IssueFilter{DepartmentID: departmentID, Complete: &open})
}

// ListOwnOpen returns incomplete issues reported by the user.
func (s *IssueService) ListOwnOpen(ctx context.Context, userID string) ([]domain.Issue, error) {
	open := false
	return s.list(ctx, repository.IssueFilter{OwnerUserID: userID, Complete: &open})
}

// ListAll returns every issue.
func (s *IssueService) ListAll(ctx context.Context) ([]domain.Issue, error) {
	return s.list(ctx, repository.IssueFilter{})
}

func (s *IssueService) list(ctx context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	issues, err := s.issues.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewDependencyError("list issues", err)
	}
	if issues == nil {
		issues = []domain.Issue{}
	}
	return issues, nil
}

// Get returns one issue with its responses.
func (s *IssueService) Get(ctx context.Context, issueID string) (*IssueDetail, error) {
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, issue)
}

// Acknowledge stamps the issue and its responses with the current time.
// Repeated calls move the stamp forward. A completed issue is returned
// unchanged since acknowledgement only applies to open work.
func (s *IssueService) Acknowledge(ctx context.Context, issueID string) (*IssueDetail, error) {
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.Complete {
		return s.detail(ctx, issue)
	}

	now := s.clock.Now()
	acknowledged := true
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		updated, err := s.issues.SetAcknowledged(ctx, issueID, now)
		if err != nil {
			if apperrors.IsNotFound(err) {
				// completed or removed since it was loaded
				acknowledged = false
				return nil
			}
			return err
		}
		issue = updated
		return s.responses.SetAcknowledgedByIssue(ctx, issueID, now)
	})
	if err != nil {
		return nil, apperrors.NewDependencyError("acknowledge issue", err)
	}
	if !acknowledged {
		return s.Get(ctx, issueID)
	}

	s.publish(ctx, events.Event{Type: events.EventIssueAcknowledged, IssueID: issueID, Timestamp: now})
	return s.detail(ctx, issue)
}

// CompleteForCaller completes the issue when the caller reported it or
// belongs to its required department. Anyone else sees NotFound.
func (s *IssueService) CompleteForCaller(ctx context.Context, caller Caller, issueID string) (*IssueDetail, error) {
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	isOwner := issue.OwnerUserID == caller.UserID
	isStaff := caller.DepartmentID != "" && issue.RequiredDepartmentID == caller.DepartmentID
	if !isOwner && !isStaff {
		return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
	}
	return s.complete(ctx, issue)
}

// Complete marks the issue and all of its responses complete in one
// transaction. Completing a completed issue changes nothing.
func (s *IssueService) Complete(ctx context.Context, issueID string) (*IssueDetail, error) {
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, issue)
}

func (s *IssueService) complete(ctx context.Context, issue *domain.Issue) (*IssueDetail, error) {
	if issue.Complete {
		return s.detail(ctx, issue)
	}

	now := s.clock.Now()
	transitioned := true
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		updated, err := s.issues.MarkComplete(ctx, issue.ID, now)
		if err != nil {
			if apperrors.IsNotFound(err) {
				// completed concurrently
				transitioned = false
				return nil
			}
			return err
		}
		issue = updated
		return s.responses.MarkCompleteByIssue(ctx, issue.ID, now)
	})
	if err != nil {
		return nil, apperrors.NewDependencyError("complete issue", err)
	}
	if !transitioned {
		return s.Get(ctx, issue.ID)
	}

	detail, err := s.detail(ctx, issue)
	if err != nil {
		return nil, err
	}
	s.metrics.IssueCompleted()
	s.publish(ctx, events.Event{
		Type:      events.EventIssueCompleted,
		IssueID:   issue.ID,
		Timestamp: now,
		Payload: events.IssueCompletedPayload{
			DepartmentID:      issue.RequiredDepartmentID,
			ResponsesAffected: len(detail.Responses),
		},
	})
	return detail, nil
}

// SummaryForOwner returns every issue the user reported, open or not, and
// all of their responses.
func (s *IssueService) SummaryForOwner(ctx context.Context, userID string) (*IssueSummary, error) {
	issues, err := s.list(ctx, repository.IssueFilter{OwnerUserID: userID})
	if err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		return nil, apperrors.NewNotFound("issues for user", map[string]any{"user_id": userID})
	}
	ids := make([]string, 0, len(issues))
	for _, issue := range issues {
		ids = append(ids, issue.ID)
	}
	responses, err := s.responses.ListByIssueIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.NewDependencyError("list responses", err)
	}
	if responses == nil {
		responses = []domain.Response{}
	}
	return &IssueSummary{Issues: issues, Responses: responses}, nil
}

func (s *IssueService) loadIssue(ctx context.Context, issueID string) (*domain.Issue, error) {
	if strings.TrimSpace(issueID) == "" {
		return nil, apperrors.NewValidationError("issue id is required", nil)
	}
	if !isID(issueID) {
		return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
	}
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return nil, apperrors.NewDependencyError("load issue", err)
	}
	return issue, nil
}

func (s *IssueService) detail(ctx context.Context, issue *domain.Issue) (*IssueDetail, error) {
	responses, err := s.responses.ListByIssue(ctx, issue.ID)
	if err != nil {
		return nil, apperrors.NewDependencyError("list responses", err)
	}
	if responses == nil {
		responses = []domain.Response{}
	}
	return &IssueDetail{Issue: issue, Responses: responses}, nil
}

func (s *IssueService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func missingFields(fields map[string]string) []string {
	var missing []string
	for _, name := range sortedKeys(fields) {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
