package domain

import (
	"math"
	"time"
)

// Supported license document types.
const (
	MimeTypePDF = "application/pdf"
	MimeTypePNG = "image/png"
)

// IsSupportedMimeType reports whether a license document may be stored with this type.
func IsSupportedMimeType(mimeType string) bool {
	return mimeType == MimeTypePDF || mimeType == MimeTypePNG
}

// License is a regulatory document tracked per department.
type License struct {
	ID               string
	FileName         string
	FileBlobRef      string
	MimeType         string
	ExpiryDate       time.Time
	DepartmentID     string
	UploadedByUserID string
	NotificationSent bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DaysUntilExpiry rounds the remaining time up to whole days. Expired
// licenses yield zero or negative values.
func (l *License) DaysUntilExpiry(now time.Time) int {
	return int(math.Ceil(l.ExpiryDate.Sub(now).Hours() / 24))
}

// LicenseFile is the stored document body.
type LicenseFile struct {
	FileName string
	MimeType string
	Data     []byte
}

// DepartmentLicenseStats aggregates licenses for one department.
type DepartmentLicenseStats struct {
	DepartmentID string `json:"department_id"`
	Count        int    `json:"count"`
	Expiring     int    `json:"expiring"`
}

// LicenseStats summarizes the registry. ExpiringCount and ExpiredCount are
// computed independently of the expiring listing and need not sum to its length.
type LicenseStats struct {
	Total         int                      `json:"total_licenses"`
	ExpiringCount int                      `json:"expiring_licenses"`
	ExpiredCount  int                      `json:"expired_licenses"`
	PerDepartment []DepartmentLicenseStats `json:"department_stats"`
}

// ExpiryRunResult reports what one expiry check did.
type ExpiryRunResult struct {
	StartedAt           time.Time `json:"started_at"`
	LicensesFound       int       `json:"licenses_found"`
	DepartmentsNotified int       `json:"departments_notified"`
	SkippedDepartments  int       `json:"skipped_departments"`
	LicensesMarked      int       `json:"licenses_marked"`
	EmailsSent          int       `json:"emails_sent"`
	EmailsFailed        int       `json:"emails_failed"`
}
