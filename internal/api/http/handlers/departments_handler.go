package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-tracker/internal/api/dto"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/service"
)

// DepartmentsHandler manages departments.
type DepartmentsHandler struct {
	departments *service.DepartmentService
}

// NewDepartmentsHandler constructs handler.
func NewDepartmentsHandler(departments *service.DepartmentService) *DepartmentsHandler {
	return &DepartmentsHandler{departments: departments}
}

// List GET /departments.
func (h *DepartmentsHandler) List(c *fiber.Ctx) error {
	depts, err := h.departments.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]dto.DepartmentResponse, 0, len(depts))
	for i := range depts {
		out = append(out, dto.NewDepartmentResponse(&depts[i]))
	}
	return c.JSON(dto.OK("", out))
}

// Create POST /departments.
func (h *DepartmentsHandler) Create(c *fiber.Ctx) error {
	var req dto.DepartmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	dept, err := h.departments.Create(c.UserContext(), departmentInput(req))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.OK("Department created successfully", dto.NewDepartmentResponse(dept)))
}

// Update PUT /departments/:departmentId.
func (h *DepartmentsHandler) Update(c *fiber.Ctx) error {
	var req dto.DepartmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	dept, err := h.departments.Update(c.UserContext(), c.Params("departmentId"), departmentInput(req))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Department updated successfully", dto.NewDepartmentResponse(dept)))
}

// Delete DELETE /departments/:departmentId.
func (h *DepartmentsHandler) Delete(c *fiber.Ctx) error {
	if err := h.departments.Delete(c.UserContext(), c.Params("departmentId")); err != nil {
		return err
	}
	return c.JSON(dto.OK("Department deleted successfully", nil))
}

func departmentInput(req dto.DepartmentRequest) service.DepartmentInput {
	return service.DepartmentInput{Name: req.Name, Type: domain.DepartmentType(req.Type)}
}
