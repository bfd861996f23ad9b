package dto

import (
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// LicenseFilePayload carries a base64 encoded document.
type LicenseFilePayload struct {
	Name string `json:"name" validate:"required,max=255"`
	Type string `json:"type" validate:"required"`
	Data string `json:"data" validate:"required"`
}

// UploadLicenseRequest payload.
type UploadLicenseRequest struct {
	File         *LicenseFilePayload `json:"file" validate:"required"`
	ExpiryDate   string              `json:"expiry_date" validate:"required"`
	DepartmentID string              `json:"department_id" validate:"required"`
}

// UpdateLicenseRequest changes selected license fields.
type UpdateLicenseRequest struct {
	File         *LicenseFilePayload `json:"file" validate:"omitempty"`
	ExpiryDate   *string             `json:"expiry_date" validate:"omitempty"`
	DepartmentID *string             `json:"department_id" validate:"omitempty"`
}

// LicenseResponse is the license view. The document body is never included.
type LicenseResponse struct {
	ID               string    `json:"id"`
	FileName         string    `json:"file_name"`
	MimeType         string    `json:"file_type"`
	ExpiryDate       string    `json:"expiry_date"`
	DepartmentID     string    `json:"department_id"`
	UploadedBy       string    `json:"uploaded_by"`
	NotificationSent bool      `json:"notification_sent"`
	DaysUntilExpiry  *int      `json:"days_until_expiry,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewLicenseResponse maps a license.
func NewLicenseResponse(license *domain.License) LicenseResponse {
	return LicenseResponse{
		ID:               license.ID,
		FileName:         license.FileName,
		MimeType:         license.MimeType,
		ExpiryDate:       license.ExpiryDate.UTC().Format(domain.ISODateLayout),
		DepartmentID:     license.DepartmentID,
		UploadedBy:       license.UploadedByUserID,
		NotificationSent: license.NotificationSent,
		CreatedAt:        license.CreatedAt,
		UpdatedAt:        license.UpdatedAt,
	}
}

// NewLicenseResponses maps licenses. A non-zero now adds days_until_expiry.
func NewLicenseResponses(licenses []domain.License, now time.Time) []LicenseResponse {
	out := make([]LicenseResponse, 0, len(licenses))
	for i := range licenses {
		view := NewLicenseResponse(&licenses[i])
		if !now.IsZero() {
			days := licenses[i].DaysUntilExpiry(now)
			view.DaysUntilExpiry = &days
		}
		out = append(out, view)
	}
	return out
}
