package service

import (
	"context"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// RoutingService resolves which department staff receive work and notices.
type RoutingService struct {
	users       repository.UserRepository
	departments repository.DepartmentRepository
}

// RoutingDependencies bundles repositories for routing.
type RoutingDependencies struct {
	UserRepo       repository.UserRepository
	DepartmentRepo repository.DepartmentRepository
}

// NewRoutingService constructs the service.
func NewRoutingService(deps RoutingDependencies) *RoutingService {
	return &RoutingService{users: deps.UserRepo, departments: deps.DepartmentRepo}
}

// ResolveAssignee returns any user assigned to the department. There is no
// load balancing; every member is an acceptable recipient.
func (s *RoutingService) ResolveAssignee(ctx context.Context, departmentID string) (*domain.User, error) {
	if !isID(departmentID) {
		return nil, apperrors.NewDepartmentUnstaffed(departmentID)
	}
	user, err := s.users.FindAnyByDepartment(ctx, departmentID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewDepartmentUnstaffed(departmentID)
		}
		return nil, apperrors.NewDependencyError("resolve assignee", err)
	}
	return user, nil
}

// Recipients lists every user assigned to the department.
func (s *RoutingService) Recipients(ctx context.Context, departmentID string) ([]domain.User, error) {
	if !isID(departmentID) {
		return nil, nil
	}
	users, err := s.users.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, apperrors.NewDependencyError("list department users", err)
	}
	return users, nil
}

// DepartmentName returns the display name, falling back to the id when the
// department record no longer exists.
func (s *RoutingService) DepartmentName(ctx context.Context, departmentID string) (string, error) {
	if !isID(departmentID) {
		return departmentID, nil
	}
	dept, err := s.departments.GetByID(ctx, departmentID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return departmentID, nil
		}
		return "", apperrors.NewDependencyError("load department", err)
	}
	return dept.Name, nil
}
