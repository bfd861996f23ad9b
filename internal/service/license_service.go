package service

import (
	"context"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/clock"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// LicenseService manages the license registry.
type LicenseService struct {
	licenses    repository.LicenseRepository
	departments repository.DepartmentRepository
	tx          repository.Transactor
	clock       clock.Clock
	logger      *zap.Logger
	maxBytes    int
}

// LicenseDependencies bundles collaborators for the license service.
type LicenseDependencies struct {
	LicenseRepo    repository.LicenseRepository
	DepartmentRepo repository.DepartmentRepository
	Transactor     repository.Transactor
	Clock          clock.Clock
	Logger         *zap.Logger
	MaxUploadBytes int
}

// LicenseFileInput is an uploaded document.
type LicenseFileInput struct {
	Name     string
	MimeType string
	Data     []byte
}

// UploadLicenseInput describes a new license.
type UploadLicenseInput struct {
	File         LicenseFileInput
	ExpiryDate   time.Time
	DepartmentID string
	UploaderID   string
}

// UpdateLicenseInput changes selected fields. Nil fields are kept.
type UpdateLicenseInput struct {
	File         *LicenseFileInput
	ExpiryDate   *time.Time
	DepartmentID *string
}

// NewLicenseService constructs the service.
func NewLicenseService(deps LicenseDependencies) *LicenseService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &LicenseService{
		licenses:    deps.LicenseRepo,
		departments: deps.DepartmentRepo,
		tx:          deps.Transactor,
		clock:       deps.Clock,
		logger:      deps.Logger,
		maxBytes:    deps.MaxUploadBytes,
	}
}

// Now exposes the service clock for views that compute days remaining.
func (s *LicenseService) Now() time.Time { return s.clock.Now() }

// Upload validates and stores a license and its document.
func (s *LicenseService) Upload(ctx context.Context, input UploadLicenseInput) (*domain.License, error) {
	if input.ExpiryDate.IsZero() || strings.TrimSpace(input.DepartmentID) == "" {
		return nil, apperrors.NewValidationError("File, expiry date and department are required", nil)
	}
	if err := s.validateFile(input.File); err != nil {
		return nil, err
	}
	if err := s.ensureDepartment(ctx, input.DepartmentID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	license := &domain.License{
		FileName:         strings.TrimSpace(input.File.Name),
		FileBlobRef:      uuid.NewString(),
		MimeType:         input.File.MimeType,
		ExpiryDate:       input.ExpiryDate,
		DepartmentID:     input.DepartmentID,
		UploadedByUserID: input.UploaderID,
		CreatedAt:        now,
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.licenses.SaveBlob(ctx, license.FileBlobRef, input.File.Data); err != nil {
			return err
		}
		return s.licenses.Create(ctx, license)
	})
	if err != nil {
		return nil, apperrors.NewDependencyError("store license", err)
	}
	s.logger.Info("license uploaded",
		zap.String("license_id", license.ID),
		zap.String("department_id", license.DepartmentID),
		zap.Time("expiry_date", license.ExpiryDate))
	return license, nil
}

// ListAll returns every license by expiry date ascending.
func (s *LicenseService) ListAll(ctx context.Context) ([]domain.License, error) {
	return s.list(ctx, repository.LicenseFilter{})
}

// ListByDepartment returns a department's licenses by expiry date ascending.
func (s *LicenseService) ListByDepartment(ctx context.Context, departmentID string) ([]domain.License, error) {
	return s.list(ctx, repository.LicenseFilter{DepartmentID: departmentID})
}

// ListExpiringOrExpired returns licenses expiring within windowDays,
// including those already expired.
func (s *LicenseService) ListExpiringOrExpired(ctx context.Context, windowDays int) ([]domain.License, error) {
	now := s.clock.Now()
	return s.list(ctx, repository.LicenseFilter{ExpiryTo: windowEnd(now, windowDays)})
}

// PendingNotifications returns unnotified licenses whose expiry falls
// between now and the end of the window. Expired licenses are excluded.
func (s *LicenseService) PendingNotifications(ctx context.Context, windowDays int) ([]domain.License, error) {
	now := s.clock.Now()
	pending := false
	return s.list(ctx, repository.LicenseFilter{
		ExpiryFrom:       now,
		ExpiryTo:         windowEnd(now, windowDays),
		NotificationSent: &pending,
	})
}

// MarkNotified flags the licenses as notified.
func (s *LicenseService) MarkNotified(ctx context.Context, ids []string) (int, error) {
	marked, err := s.licenses.MarkNotified(ctx, ids, s.clock.Now())
	if err != nil {
		return 0, apperrors.NewDependencyError("mark licenses notified", err)
	}
	return marked, nil
}

// ComputeStats counts licenses. Expiring covers [now, now+window] and
// expired covers expiry < now, so the two need not add up to the
// ListExpiringOrExpired length.
func (s *LicenseService) ComputeStats(ctx context.Context, windowDays int) (*domain.LicenseStats, error) {
	now := s.clock.Now()
	end := windowEnd(now, windowDays)

	total, err := s.licenses.Count(ctx, repository.LicenseFilter{})
	if err != nil {
		return nil, apperrors.NewDependencyError("count licenses", err)
	}
	expiring, err := s.licenses.Count(ctx, repository.LicenseFilter{ExpiryFrom: now, ExpiryTo: end})
	if err != nil {
		return nil, apperrors.NewDependencyError("count expiring licenses", err)
	}
	expired, err := s.licenses.Count(ctx, repository.LicenseFilter{ExpiredBefore: now})
	if err != nil {
		return nil, apperrors.NewDependencyError("count expired licenses", err)
	}
	perDept, err := s.licenses.StatsByDepartment(ctx, now, end)
	if err != nil {
		return nil, apperrors.NewDependencyError("license stats by department", err)
	}
	if perDept == nil {
		perDept = []domain.DepartmentLicenseStats{}
	}
	return &domain.LicenseStats{
		Total:         total,
		ExpiringCount: expiring,
		ExpiredCount:  expired,
		PerDepartment: perDept,
	}, nil
}

// GetFile returns a license and its document.
func (s *LicenseService) GetFile(ctx context.Context, id string) (*domain.License, *domain.LicenseFile, error) {
	license, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.licenses.GetBlob(ctx, license.FileBlobRef)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil, apperrors.NewNotFound("license file", map[string]any{"license_id": id})
		}
		return nil, nil, apperrors.NewDependencyError("load license file", err)
	}
	return license, &domain.LicenseFile{FileName: license.FileName, MimeType: license.MimeType, Data: data}, nil
}

// Update changes the document, expiry date or department of a license.
// The notification flag is left as is.
func (s *LicenseService) Update(ctx context.Context, id string, input UpdateLicenseInput) (*domain.License, error) {
	license, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.File != nil {
		if err := s.validateFile(*input.File); err != nil {
			return nil, err
		}
	}
	if input.DepartmentID != nil {
		if err := s.ensureDepartment(ctx, *input.DepartmentID); err != nil {
			return nil, err
		}
		license.DepartmentID = *input.DepartmentID
	}
	if input.ExpiryDate != nil {
		if input.ExpiryDate.IsZero() {
			return nil, apperrors.NewValidationError("expiry date is invalid", nil)
		}
		license.ExpiryDate = *input.ExpiryDate
	}

	oldRef := license.FileBlobRef
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if input.File != nil {
			license.FileBlobRef = uuid.NewString()
			license.FileName = strings.TrimSpace(input.File.Name)
			license.MimeType = input.File.MimeType
			if err := s.licenses.SaveBlob(ctx, license.FileBlobRef, input.File.Data); err != nil {
				return err
			}
			if err := s.licenses.DeleteBlob(ctx, oldRef); err != nil {
				return err
			}
		}
		license.UpdatedAt = s.clock.Now()
		return s.licenses.Update(ctx, license)
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("license", map[string]any{"license_id": id})
		}
		return nil, apperrors.NewDependencyError("update license", err)
	}
	return license, nil
}

// Delete removes a license and its document.
func (s *LicenseService) Delete(ctx context.Context, id string) error {
	license, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.licenses.Delete(ctx, id); err != nil {
			return err
		}
		return s.licenses.DeleteBlob(ctx, license.FileBlobRef)
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewNotFound("license", map[string]any{"license_id": id})
		}
		return apperrors.NewDependencyError("delete license", err)
	}
	return nil
}

func (s *LicenseService) list(ctx context.Context, filter repository.LicenseFilter) ([]domain.License, error) {
	licenses, err := s.licenses.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewDependencyError("list licenses", err)
	}
	if licenses == nil {
		licenses = []domain.License{}
	}
	return licenses, nil
}

func (s *LicenseService) load(ctx context.Context, id string) (*domain.License, error) {
	if !isID(id) {
		return nil, apperrors.NewNotFound("license", map[string]any{"license_id": id})
	}
	license, err := s.licenses.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("license", map[string]any{"license_id": id})
		}
		return nil, apperrors.NewDependencyError("load license", err)
	}
	return license, nil
}

// validateFile checks the declared type and that the content matches it.
func (s *LicenseService) validateFile(file LicenseFileInput) error {
	if strings.TrimSpace(file.Name) == "" || len(file.Data) == 0 {
		return apperrors.NewValidationError("file name and content are required", nil)
	}
	if s.maxBytes > 0 && len(file.Data) > s.maxBytes {
		return apperrors.NewValidationError("file too large", map[string]any{"max_bytes": s.maxBytes})
	}
	if !domain.IsSupportedMimeType(file.MimeType) {
		return apperrors.NewUnsupportedMediaType("Only PDF and PNG files are allowed",
			map[string]any{"declared": file.MimeType})
	}
	detected := mimetype.Detect(file.Data)
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(file.MimeType) {
			return nil
		}
	}
	return apperrors.NewUnsupportedMediaType("file content does not match its declared type",
		map[string]any{"declared": file.MimeType, "detected": detected.String()})
}

func (s *LicenseService) ensureDepartment(ctx context.Context, departmentID string) error {
	if !isID(departmentID) {
		return apperrors.NewInvalidDepartment(departmentID)
	}
	if _, err := s.departments.GetByID(ctx, departmentID); err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewInvalidDepartment(departmentID)
		}
		return apperrors.NewDependencyError("load department", err)
	}
	return nil
}

func windowEnd(now time.Time, windowDays int) time.Time {
	return now.Add(time.Duration(windowDays) * 24 * time.Hour)
}
