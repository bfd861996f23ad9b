package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/issue-tracker/internal/api/http/handlers"
	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	APIPrefix      string
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Issues         *handlers.IssuesHandler
	Licenses       *handlers.LicensesHandler
	Departments    *handlers.DepartmentsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	api := app.Group(cfg.APIPrefix)
	protect := cfg.AuthMiddleware.Handle

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Get("/current-user", protect, auth.RequireAuthenticated(), cfg.Users.CurrentUser)

	issues := api.Group("/issues", protect, auth.RequireAuthenticated())
	issues.Post("/raise", cfg.Issues.Raise)
	issues.Get("/get-issue", auth.RequireDepartment(), cfg.Issues.DepartmentQueue)
	issues.Get("/get-issue-for-user", cfg.Issues.OwnIssues)
	issues.Put("/update-response", auth.RequireDepartment(), cfg.Issues.UpdateResponses)
	issues.Post("/acknowledge", cfg.Issues.Acknowledge)
	issues.Post("/complete-report", cfg.Issues.Complete)
	issues.Get("/summary", cfg.Issues.Summary)
	issues.Get("/fetch-report", cfg.Issues.Report)
	issues.Get("/get-admin", auth.RequireDepartment(), cfg.Issues.Admin)

	licenses := api.Group("/licenses", protect, auth.RequireAuthenticated())
	licenses.Post("/upload", cfg.Licenses.Upload)
	licenses.Get("/", cfg.Licenses.List)
	licenses.Get("/all", cfg.Licenses.List)
	licenses.Get("/expiring", cfg.Licenses.Expiring)
	licenses.Get("/department", auth.RequireDepartment(), cfg.Licenses.Department)
	licenses.Get("/stats", cfg.Licenses.Stats)
	licenses.Post("/check-expiry", cfg.Licenses.CheckExpiry)
	licenses.Get("/:id", cfg.Licenses.File)
	licenses.Get("/:id/download", cfg.Licenses.Download)
	licenses.Put("/:id", cfg.Licenses.Update)
	licenses.Delete("/:id", cfg.Licenses.Delete)

	registerDepartments(api.Group("/departments", protect, auth.RequireAuthenticated()), cfg.Departments)
	registerDepartments(api.Group("/users/departments", protect, auth.RequireAuthenticated()), cfg.Departments)

	admin := api.Group("/admin", protect, auth.RequireAuthenticated())
	admin.Post("/register", cfg.Users.Register)
	registerDepartments(admin.Group("/departments"), cfg.Departments)
}

func registerDepartments(group fiber.Router, h *handlers.DepartmentsHandler) {
	group.Get("/", h.List)
	group.Post("/", h.Create)
	group.Put("/:departmentId", h.Update)
	group.Delete("/:departmentId", h.Delete)
}
