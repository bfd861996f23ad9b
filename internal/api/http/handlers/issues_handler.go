package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-tracker/internal/api/dto"
	"github.com/spec-kit/issue-tracker/internal/service"
)

// IssuesHandler serves the issue ledger.
type IssuesHandler struct {
	issues    *service.IssueService
	responses *service.ResponseService
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issues *service.IssueService, responses *service.ResponseService) *IssuesHandler {
	return &IssuesHandler{issues: issues, responses: responses}
}

// Raise POST /issues/raise.
func (h *IssuesHandler) Raise(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateIssueRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	issue, err := h.issues.CreateIssue(c.UserContext(), service.CreateIssueInput{
		Title:                req.Issue,
		Description:          req.Description,
		Address:              req.Address,
		RequiredDepartmentID: req.RequireDepartment,
		OwnerUserID:          p.UserID(),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.OK("Issue created successfully", dto.NewIssueResponse(issue)))
}

// DepartmentQueue GET /issues/get-issue.
func (h *IssuesHandler) DepartmentQueue(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	issues, err := h.issues.ListOpenForDepartment(c.UserContext(), p.DepartmentID())
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", dto.NewIssueResponses(issues)))
}

// OwnIssues GET /issues/get-issue-for-user.
func (h *IssuesHandler) OwnIssues(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	issues, err := h.issues.ListOwnOpen(c.UserContext(), p.UserID())
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", dto.NewIssueResponses(issues)))
}

// UpdateResponses PUT /issues/update-response.
func (h *IssuesHandler) UpdateResponses(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateResponsesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	updated, err := h.responses.UpdateDepartmentResponses(c.UserContext(), p.DepartmentID(), service.ResponseUpdateInput{
		Description:  req.Description,
		Requirements: req.Requirements,
		ActionTaken:  req.ActionTaken,
		Complete:     req.Complete,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Responses updated successfully", dto.NewResponseViews(updated)))
}

// Acknowledge POST /issues/acknowledge.
func (h *IssuesHandler) Acknowledge(c *fiber.Ctx) error {
	if _, err := principal(c); err != nil {
		return err
	}
	var req dto.IssueRefRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	detail, err := h.issues.Acknowledge(c.UserContext(), req.IssueID)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Response acknowledged successfully", issueDetail(detail)))
}

// Complete POST /issues/complete-report.
func (h *IssuesHandler) Complete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.IssueRefRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	detail, err := h.issues.CompleteForCaller(c.UserContext(), service.Caller{
		UserID:       p.UserID(),
		DepartmentID: p.DepartmentID(),
	}, req.IssueID)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Issue and corresponding responses marked as complete", issueDetail(detail)))
}

// Summary GET /issues/summary.
func (h *IssuesHandler) Summary(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	summary, err := h.issues.SummaryForOwner(c.UserContext(), p.UserID())
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", dto.IssueSummaryResponse{
		Issues:    dto.NewIssueResponses(summary.Issues),
		Responses: dto.NewResponseViews(summary.Responses),
	}))
}

// Report GET /issues/fetch-report.
func (h *IssuesHandler) Report(c *fiber.Ctx) error {
	issues, err := h.issues.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", dto.NewIssueResponses(issues)))
}

// Admin GET /issues/get-admin returns the caller's department.
func (h *IssuesHandler) Admin(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", fiber.Map{"department_id": p.DepartmentID()}))
}

func issueDetail(detail *service.IssueDetail) dto.IssueDetailResponse {
	return dto.IssueDetailResponse{
		Issue:     dto.NewIssueResponse(detail.Issue),
		Responses: dto.NewResponseViews(detail.Responses),
	}
}
