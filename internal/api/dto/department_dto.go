package dto

import (
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// DepartmentRequest creates or updates a department.
type DepartmentRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Type string `json:"type" validate:"omitempty,oneof=Maintenance Regular"`
}

// DepartmentResponse is the department view.
type DepartmentResponse struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Type      domain.DepartmentType `json:"type"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// NewDepartmentResponse maps a department.
func NewDepartmentResponse(dept *domain.Department) DepartmentResponse {
	return DepartmentResponse{
		ID:        dept.ID,
		Name:      dept.Name,
		Type:      dept.Type,
		CreatedAt: dept.CreatedAt,
		UpdatedAt: dept.UpdatedAt,
	}
}
