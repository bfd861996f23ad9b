package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes surfaced to clients.
const (
	CodeValidation          = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeNoIssuesFound       = "NO_ISSUES_FOUND"
	CodeNoResponsesUpdated  = "NO_RESPONSES_UPDATED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeConflict            = "CONFLICT"
	CodeUnsupportedMedia    = "UNSUPPORTED_MEDIA_TYPE"
	CodeInvalidDepartment   = "INVALID_DEPARTMENT"
	CodeDepartmentUnstaffed = "DEPARTMENT_UNSTAFFED"
	CodeDependency          = "DEPENDENCY_FAILED"
	CodeInternal            = "INTERNAL_ERROR"
)

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewNoIssuesFound reports a department without issues to act on.
func NewNoIssuesFound(departmentID string) error {
	return NewDomainError(CodeNoIssuesFound, "No issues found for this department", http.StatusNotFound,
		map[string]any{"department_id": departmentID})
}

// NewNoResponsesUpdated reports a broadcast update that matched no response rows.
func NewNoResponsesUpdated(departmentID string) error {
	return NewDomainError(CodeNoResponsesUpdated, "No responses found to update", http.StatusNotFound,
		map[string]any{"department_id": departmentID})
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewUnsupportedMediaType(message string, details map[string]any) error {
	return NewDomainError(CodeUnsupportedMedia, message, http.StatusBadRequest, details)
}

func NewInvalidDepartment(departmentID string) error {
	return NewDomainError(CodeInvalidDepartment, "Invalid department", http.StatusBadRequest,
		map[string]any{"department_id": departmentID})
}

// NewDepartmentUnstaffed is the routing failure raised when no user can receive an issue.
// The 401 status is kept for compatibility with existing clients.
func NewDepartmentUnstaffed(departmentID string) error {
	return NewDomainError(CodeDepartmentUnstaffed, "Required Department is not available", http.StatusUnauthorized,
		map[string]any{"department_id": departmentID})
}

// NewDependencyError wraps storage or transport failures.
func NewDependencyError(message string, err error) error {
	return &DomainError{
		Code:       CodeDependency,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &DomainError{
			Code:       CodeNotFound,
			Message:    "resource not found",
			HTTPStatus: http.StatusNotFound,
			Err:        err,
		}
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := CodeInternal
		switch fiberErr.Code {
		case http.StatusNotFound:
			code = CodeNotFound
		case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
			code = CodeValidation
		case http.StatusUnauthorized:
			code = CodeUnauthorized
		case http.StatusForbidden:
			code = CodeForbidden
		case http.StatusMethodNotAllowed:
			code = "METHOD_NOT_ALLOWED"
		}
		return &DomainError{Code: code, Message: fiberErr.Message, HTTPStatus: fiberErr.Code}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// IsNotFound reports whether err is a pgx miss or a NOT_FOUND domain error.
func IsNotFound(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.HTTPStatus == http.StatusNotFound
}
