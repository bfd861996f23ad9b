package memory

import (
	"context"
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
)

type issueRepo struct{ s *Store }

func (r *issueRepo) Create(ctx context.Context, issue *domain.Issue) error {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	issue.ID = r.s.newID()
	issue.Complete = false
	issue.CreatedAt = stamp(issue.CreatedAt)
	issue.UpdatedAt = issue.CreatedAt
	r.s.data.issues[issue.ID] = *issue
	return nil
}

func (r *issueRepo) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	defer r.s.guard(ctx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	issue, ok := r.s.data.issues[id]
	if !ok {
		return nil, errNoRows
	}
	return &issue, nil
}

func (r *issueRepo) List(ctx context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	defer r.s.guard(ctx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Issue
	for _, issue := range r.s.data.issues {
		if filter.OwnerUserID != "" && issue.OwnerUserID != filter.OwnerUserID {
			continue
		}
		if filter.DepartmentID != "" && issue.RequiredDepartmentID != filter.DepartmentID {
			continue
		}
		if filter.Complete != nil && issue.Complete != *filter.Complete {
			continue
		}
		result = append(result, issue)
	}
	sortByCreated(r.s, result, func(i domain.Issue) (string, time.Time) { return i.ID, i.CreatedAt })
	return result, nil
}

func (r *issueRepo) SetAcknowledged(ctx context.Context, id string, at time.Time) (*domain.Issue, error) {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	issue, ok := r.s.data.issues[id]
	if !ok || issue.Complete {
		return nil, errNoRows
	}
	stamped := at
	issue.AcknowledgedAt = &stamped
	issue.UpdatedAt = at
	r.s.data.issues[id] = issue
	return &issue, nil
}

func (r *issueRepo) MarkComplete(ctx context.Context, id string, at time.Time) (*domain.Issue, error) {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	issue, ok := r.s.data.issues[id]
	if !ok || issue.Complete {
		return nil, errNoRows
	}
	issue.Complete = true
	issue.UpdatedAt = at
	r.s.data.issues[id] = issue
	return &issue, nil
}

type responseRepo struct{ s *Store }

func (r *responseRepo) Create(ctx context.Context, response *domain.Response) error {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	response.ID = r.s.newID()
	response.CreatedAt = stamp(response.CreatedAt)
	response.UpdatedAt = response.CreatedAt
	r.s.data.responses[response.ID] = *response
	return nil
}

func (r *responseRepo) FindOpenByIssue(ctx context.Context, issueID string) (*domain.Response, error) {
	responses, err := r.ListByIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	for _, response := range responses {
		if !response.Complete {
			return &response, nil
		}
	}
	return nil, errNoRows
}

func (r *responseRepo) FindByIssue(ctx context.Context, issueID string) (*domain.Response, error) {
	responses, err := r.ListByIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return nil, errNoRows
	}
	return &responses[0], nil
}

func (r *responseRepo) ListByIssue(ctx context.Context, issueID string) ([]domain.Response, error) {
	return r.ListByIssueIDs(ctx, []string{issueID})
}

func (r *responseRepo) ListByIssueIDs(ctx context.Context, issueIDs []string) ([]domain.Response, error) {
	wanted := make(map[string]struct{}, len(issueIDs))
	for _, id := range issueIDs {
		wanted[id] = struct{}{}
	}
	defer r.s.guard(ctx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Response
	for _, response := range r.s.data.responses {
		if _, ok := wanted[response.IssueID]; ok {
			result = append(result, response)
		}
	}
	sortByCreated(r.s, result, func(resp domain.Response) (string, time.Time) { return resp.ID, resp.CreatedAt })
	return result, nil
}

func (r *responseRepo) Update(ctx context.Context, response *domain.Response) error {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.responses[response.ID]
	if !ok {
		return errNoRows
	}
	current.Description = response.Description
	current.Requirements = response.Requirements
	current.ActionTaken = response.ActionTaken
	current.Complete = response.Complete
	current.UpdatedAt = stamp(response.UpdatedAt)
	r.s.data.responses[response.ID] = current
	response.UpdatedAt = current.UpdatedAt
	return nil
}

func (r *responseRepo) SetAcknowledgedByIssue(ctx context.Context, issueID string, at time.Time) error {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, response := range r.s.data.responses {
		if response.IssueID != issueID {
			continue
		}
		stamped := at
		response.AcknowledgedAt = &stamped
		response.UpdatedAt = at
		r.s.data.responses[id] = response
	}
	return nil
}

func (r *responseRepo) MarkCompleteByIssue(ctx context.Context, issueID string, at time.Time) error {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, response := range r.s.data.responses {
		if response.IssueID != issueID || response.Complete {
			continue
		}
		response.Complete = true
		response.UpdatedAt = at
		r.s.data.responses[id] = response
	}
	return nil
}
