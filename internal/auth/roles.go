package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// RequireAuthenticated ensures a principal was loaded.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireDepartment ensures the caller belongs to a department. Department
// scoped routes cannot act for an unassigned user.
func RequireDepartment() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.DepartmentID() == "" {
			return apperrors.NewUnauthorized("user is not assigned to a department")
		}
		return c.Next()
	}
}
