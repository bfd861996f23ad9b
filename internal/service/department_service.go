package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

const pgUniqueViolation = "23505"

// DepartmentService manages the department directory.
type DepartmentService struct {
	departments repository.DepartmentRepository
}

// NewDepartmentService constructs the service.
func NewDepartmentService(departments repository.DepartmentRepository) *DepartmentService {
	return &DepartmentService{departments: departments}
}

// DepartmentInput describes a department to create or update.
type DepartmentInput struct {
	Name string
	Type domain.DepartmentType
}

// List returns departments ordered by name.
func (s *DepartmentService) List(ctx context.Context) ([]domain.Department, error) {
	depts, err := s.departments.List(ctx)
	if err != nil {
		return nil, apperrors.NewDependencyError("list departments", err)
	}
	if depts == nil {
		depts = []domain.Department{}
	}
	return depts, nil
}

// Get returns one department.
func (s *DepartmentService) Get(ctx context.Context, id string) (*domain.Department, error) {
	if !isID(id) {
		return nil, apperrors.NewNotFound("department", map[string]any{"department_id": id})
	}
	dept, err := s.departments.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("department", map[string]any{"department_id": id})
		}
		return nil, apperrors.NewDependencyError("load department", err)
	}
	return dept, nil
}

// Create adds a department. Names are unique ignoring case.
func (s *DepartmentService) Create(ctx context.Context, input DepartmentInput) (*domain.Department, error) {
	dept, err := normalizeDepartment(input)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, dept.Name, ""); err != nil {
		return nil, err
	}
	if err := s.departments.Create(ctx, dept); err != nil {
		return nil, mapDepartmentWriteError(dept.Name, err)
	}
	return dept, nil
}

// Update renames or retypes a department.
func (s *DepartmentService) Update(ctx context.Context, id string, input DepartmentInput) (*domain.Department, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dept, err := normalizeDepartment(input)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, dept.Name, id); err != nil {
		return nil, err
	}
	current.Name = dept.Name
	current.Type = dept.Type
	if err := s.departments.Update(ctx, current); err != nil {
		return nil, mapDepartmentWriteError(dept.Name, err)
	}
	return current, nil
}

// Delete removes a department. Licenses keep their department id.
func (s *DepartmentService) Delete(ctx context.Context, id string) error {
	if !isID(id) {
		return apperrors.NewNotFound("department", map[string]any{"department_id": id})
	}
	if err := s.departments.Delete(ctx, id); err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewNotFound("department", map[string]any{"department_id": id})
		}
		return apperrors.NewDependencyError("delete department", err)
	}
	return nil
}

func (s *DepartmentService) ensureNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.departments.GetByNameFold(ctx, name)
	switch {
	case err == nil && existing.ID != selfID:
		return apperrors.NewConflict("Department already exists", map[string]any{"name": name})
	case err != nil && !apperrors.IsNotFound(err):
		return apperrors.NewDependencyError("check department name", err)
	}
	return nil
}

func normalizeDepartment(input DepartmentInput) (*domain.Department, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("Department name is required", nil)
	}
	deptType := input.Type
	if deptType == "" {
		deptType = domain.DepartmentTypeRegular
	}
	if !deptType.Valid() {
		return nil, apperrors.NewValidationError("Invalid department type", map[string]any{"type": deptType})
	}
	return &domain.Department{Name: name, Type: deptType}, nil
}

func mapDepartmentWriteError(name string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return apperrors.NewConflict("Department already exists", map[string]any{"name": name})
	}
	if apperrors.IsNotFound(err) {
		return apperrors.NewNotFound("department", nil)
	}
	return apperrors.NewDependencyError("save department", err)
}
