package handlers

import (
	"context"
	"encoding/base64"
	"mime"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-tracker/internal/api/dto"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/service"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// ExpiryTrigger runs the license expiry check on demand.
type ExpiryTrigger interface {
	RunNow(ctx context.Context) (*domain.ExpiryRunResult, error)
}

// LicensesHandler serves the license registry.
type LicensesHandler struct {
	licenses   *service.LicenseService
	trigger    ExpiryTrigger
	windowDays int
}

// NewLicensesHandler constructs handler. windowDays bounds the expiring listing and stats.
func NewLicensesHandler(licenses *service.LicenseService, trigger ExpiryTrigger, windowDays int) *LicensesHandler {
	return &LicensesHandler{licenses: licenses, trigger: trigger, windowDays: windowDays}
}

// Upload POST /licenses/upload.
func (h *LicensesHandler) Upload(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UploadLicenseRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	file, err := decodeFile(req.File)
	if err != nil {
		return err
	}
	expiry, err := parseExpiryDate(req.ExpiryDate)
	if err != nil {
		return err
	}
	license, err := h.licenses.Upload(c.UserContext(), service.UploadLicenseInput{
		File:         *file,
		ExpiryDate:   expiry,
		DepartmentID: req.DepartmentID,
		UploaderID:   p.UserID(),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.OK("License uploaded successfully", dto.NewLicenseResponse(license)))
}

// List GET /licenses and /licenses/all.
func (h *LicensesHandler) List(c *fiber.Ctx) error {
	licenses, err := h.licenses.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", dto.NewLicenseResponses(licenses, time.Time{})))
}

// Expiring GET /licenses/expiring.
func (h *LicensesHandler) Expiring(c *fiber.Ctx) error {
	licenses, err := h.licenses.ListExpiringOrExpired(c.UserContext(), h.windowDays)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", dto.NewLicenseResponses(licenses, h.licenses.Now())))
}

// Department GET /licenses/department lists the caller's department.
func (h *LicensesHandler) Department(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	licenses, err := h.licenses.ListByDepartment(c.UserContext(), p.DepartmentID())
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", dto.NewLicenseResponses(licenses, time.Time{})))
}

// Stats GET /licenses/stats.
func (h *LicensesHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.licenses.ComputeStats(c.UserContext(), h.windowDays)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", stats))
}

// File GET /licenses/:id serves the document inline.
func (h *LicensesHandler) File(c *fiber.Ctx) error {
	return h.serveFile(c, "inline")
}

// Download GET /licenses/:id/download serves the document as an attachment.
func (h *LicensesHandler) Download(c *fiber.Ctx) error {
	return h.serveFile(c, "attachment")
}

func (h *LicensesHandler) serveFile(c *fiber.Ctx, disposition string) error {
	_, file, err := h.licenses.GetFile(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, file.MimeType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType(disposition, map[string]string{"filename": file.FileName}))
	return c.Send(file.Data)
}

// Update PUT /licenses/:id.
func (h *LicensesHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateLicenseRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	input := service.UpdateLicenseInput{DepartmentID: req.DepartmentID}
	if req.File != nil {
		file, err := decodeFile(req.File)
		if err != nil {
			return err
		}
		input.File = file
	}
	if req.ExpiryDate != nil {
		expiry, err := parseExpiryDate(*req.ExpiryDate)
		if err != nil {
			return err
		}
		input.ExpiryDate = &expiry
	}
	license, err := h.licenses.Update(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("License updated successfully", dto.NewLicenseResponse(license)))
}

// Delete DELETE /licenses/:id.
func (h *LicensesHandler) Delete(c *fiber.Ctx) error {
	if err := h.licenses.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.OK("License deleted successfully", nil))
}

// CheckExpiry POST /licenses/check-expiry runs the expiry job now.
func (h *LicensesHandler) CheckExpiry(c *fiber.Ctx) error {
	result, err := h.trigger.RunNow(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("License expiry check completed", result))
}

func decodeFile(payload *dto.LicenseFilePayload) (*service.LicenseFileInput, error) {
	data := payload.Data
	// data URLs carry a "data:<type>;base64," prefix
	if i := strings.Index(data, ";base64,"); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid file data", map[string]any{"fields": map[string]any{"file.data": "base64"}})
	}
	return &service.LicenseFileInput{Name: payload.Name, MimeType: payload.Type, Data: raw}, nil
}

func parseExpiryDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation(domain.ISODateLayout, value, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperrors.NewValidationError("invalid expiry date", map[string]any{"fields": map[string]any{"expiry_date": "date"}})
}
