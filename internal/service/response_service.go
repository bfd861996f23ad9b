package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/clock"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// ResponseService applies department status updates to responses.
type ResponseService struct {
	issues     repository.IssueRepository
	responses  repository.ResponseRepository
	tx         repository.Transactor
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// ResponseDependencies bundles collaborators for the response service.
type ResponseDependencies struct {
	IssueRepo    repository.IssueRepository
	ResponseRepo repository.ResponseRepository
	Transactor   repository.Transactor
	Dispatcher   events.Dispatcher
	Clock        clock.Clock
	Logger       *zap.Logger
}

// ResponseUpdateInput is the status update filed by department staff.
type ResponseUpdateInput struct {
	Description  string
	Requirements string
	ActionTaken  string
	Complete     bool
}

// NewResponseService constructs the service.
func NewResponseService(deps ResponseDependencies) *ResponseService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &ResponseService{
		issues:     deps.IssueRepo,
		responses:  deps.ResponseRepo,
		tx:         deps.Transactor,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
}

var errNoResponsesMatched = errors.New("no responses matched")

// UpdateDepartmentResponses fans one update out to the open response of
// every open issue routed to the department. With Complete set, each
// targeted issue is completed along with all of its responses so a
// completed response never has an open parent. All writes share one
// transaction.
func (s *ResponseService) UpdateDepartmentResponses(ctx context.Context, departmentID string, input ResponseUpdateInput) ([]domain.Response, error) {
	if departmentID == "" {
		return nil, apperrors.NewValidationError("department is required", nil)
	}

	now := s.clock.Now()
	var updated []domain.Response
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		open := false
		issues, err := s.issues.List(ctx, repository.IssueFilter{DepartmentID: departmentID, Complete: &open})
		if err != nil {
			return err
		}
		if len(issues) == 0 {
			return apperrors.NewNoIssuesFound(departmentID)
		}

		for _, issue := range issues {
			response, err := s.responses.FindOpenByIssue(ctx, issue.ID)
			if err != nil {
				if apperrors.IsNotFound(err) {
					continue
				}
				return err
			}
			if input.Complete {
				if _, err := s.issues.MarkComplete(ctx, issue.ID, now); err != nil {
					if apperrors.IsNotFound(err) {
						// completed since the listing
						continue
					}
					return err
				}
			}
			response.Description = input.Description
			response.Requirements = input.Requirements
			response.ActionTaken = input.ActionTaken
			response.UpdatedAt = now
			if err := s.responses.Update(ctx, response); err != nil {
				return err
			}
			if input.Complete {
				if err := s.responses.MarkCompleteByIssue(ctx, issue.ID, now); err != nil {
					return err
				}
				response.Complete = true
			}
			updated = append(updated, *response)
		}
		if len(updated) == 0 {
			return errNoResponsesMatched
		}
		return nil
	})
	switch {
	case errors.Is(err, errNoResponsesMatched):
		return nil, apperrors.NewNoResponsesUpdated(departmentID)
	case err != nil:
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, apperrors.NewDependencyError("update responses", err)
	}

	ids := make([]string, 0, len(updated))
	for _, response := range updated {
		ids = append(ids, response.ID)
	}
	s.publish(ctx, events.Event{
		Type:      events.EventResponsesUpdated,
		Timestamp: now,
		Payload: events.ResponsesUpdatedPayload{
			DepartmentID: departmentID,
			ResponseIDs:  ids,
			Complete:     input.Complete,
		},
	})
	s.logger.Info("department responses updated",
		zap.String("department_id", departmentID),
		zap.Int("responses", len(updated)),
		zap.Bool("complete", input.Complete))
	return updated, nil
}

func (s *ResponseService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// FindByIssue returns the first response of an issue.
func (s *ResponseService) FindByIssue(ctx context.Context, issueID string) (*domain.Response, error) {
	response, err := s.responses.FindByIssue(ctx, issueID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("response", map[string]any{"issue_id": issueID})
		}
		return nil, apperrors.NewDependencyError("load response", err)
	}
	return response, nil
}

// FindAllByIssueIDs returns the responses of every listed issue.
func (s *ResponseService) FindAllByIssueIDs(ctx context.Context, issueIDs []string) ([]domain.Response, error) {
	responses, err := s.responses.ListByIssueIDs(ctx, issueIDs)
	if err != nil {
		return nil, apperrors.NewDependencyError("list responses", err)
	}
	if responses == nil {
		responses = []domain.Response{}
	}
	return responses, nil
}
