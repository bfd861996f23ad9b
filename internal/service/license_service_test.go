package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-tracker/internal/domain"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
)

func (f *fixture) upload(t *testing.T, departmentID, name string, expiry time.Time) *domain.License {
	t.Helper()
	license, err := f.licenses.Upload(context.Background(), UploadLicenseInput{
		File:         LicenseFileInput{Name: name, MimeType: domain.MimeTypePDF, Data: pdfBytes},
		ExpiryDate:   expiry,
		DepartmentID: departmentID,
		UploaderID:   "admin",
	})
	require.NoError(t, err)
	return license
}

func TestUploadStoresLicenseAndDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dept := f.department(t, "Facilities")
	expiry := fixtureStart.AddDate(0, 1, 0)

	license, err := f.licenses.Upload(ctx, UploadLicenseInput{
		File:         LicenseFileInput{Name: " fire-cert.png ", MimeType: domain.MimeTypePNG, Data: pngBytes},
		ExpiryDate:   expiry,
		DepartmentID: dept.ID,
		UploaderID:   "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, "fire-cert.png", license.FileName)
	assert.False(t, license.NotificationSent)
	assert.NotEmpty(t, license.FileBlobRef)

	got, file, err := f.licenses.GetFile(ctx, license.ID)
	require.NoError(t, err)
	assert.Equal(t, license.ID, got.ID)
	assert.Equal(t, domain.MimeTypePNG, file.MimeType)
	assert.Equal(t, pngBytes, file.Data)
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t)
	dept := f.department(t, "Facilities")
	expiry := fixtureStart.AddDate(0, 1, 0)

	cases := []struct {
		name  string
		input UploadLicenseInput
		code  string
	}{
		{
			name:  "missing expiry",
			input: UploadLicenseInput{File: LicenseFileInput{Name: "a.pdf", MimeType: domain.MimeTypePDF, Data: pdfBytes}, DepartmentID: dept.ID},
			code:  apperrors.CodeValidation,
		},
		{
			name:  "unsupported type",
			input: UploadLicenseInput{File: LicenseFileInput{Name: "a.jpg", MimeType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}, ExpiryDate: expiry, DepartmentID: dept.ID},
			code:  apperrors.CodeUnsupportedMedia,
		},
		{
			name:  "content does not match declared type",
			input: UploadLicenseInput{File: LicenseFileInput{Name: "a.pdf", MimeType: domain.MimeTypePDF, Data: pngBytes}, ExpiryDate: expiry, DepartmentID: dept.ID},
			code:  apperrors.CodeUnsupportedMedia,
		},
		{
			name:  "too large",
			input: UploadLicenseInput{File: LicenseFileInput{Name: "a.pdf", MimeType: domain.MimeTypePDF, Data: append(append([]byte{}, pdfBytes...), make([]byte, 2048)...)}, ExpiryDate: expiry, DepartmentID: dept.ID},
			code:  apperrors.CodeValidation,
		},
		{
			name:  "unknown department",
			input: UploadLicenseInput{File: LicenseFileInput{Name: "a.pdf", MimeType: domain.MimeTypePDF, Data: pdfBytes}, ExpiryDate: expiry, DepartmentID: uuid.NewString()},
			code:  apperrors.CodeInvalidDepartment,
		},
		{
			name:  "malformed department",
			input: UploadLicenseInput{File: LicenseFileInput{Name: "a.pdf", MimeType: domain.MimeTypePDF, Data: pdfBytes}, ExpiryDate: expiry, DepartmentID: "facilities"},
			code:  apperrors.CodeInvalidDepartment,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.licenses.Upload(context.Background(), tc.input)
			requireCode(t, err, tc.code)
		})
	}

	all, err := f.licenses.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestListingsSortByExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.department(t, "A")
	b := f.department(t, "B")

	late := f.upload(t, a.ID, "late.pdf", fixtureStart.AddDate(0, 3, 0))
	expired := f.upload(t, b.ID, "expired.pdf", fixtureStart.AddDate(0, 0, -1))
	soon := f.upload(t, a.ID, "soon.pdf", fixtureStart.AddDate(0, 0, 10))

	all, err := f.licenses.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{expired.ID, soon.ID, late.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	byDept, err := f.licenses.ListByDepartment(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, byDept, 2)
	assert.Equal(t, soon.ID, byDept[0].ID)

	expiring, err := f.licenses.ListExpiringOrExpired(ctx, 15)
	require.NoError(t, err)
	require.Len(t, expiring, 2)
	assert.Equal(t, expired.ID, expiring[0].ID)
	assert.Equal(t, soon.ID, expiring[1].ID)
	assert.Equal(t, 10, expiring[1].DaysUntilExpiry(fixtureStart))
}

func TestComputeStatsKeepsExpiringAndExpiredSeparate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.department(t, "A")
	b := f.department(t, "B")

	f.upload(t, a.ID, "expired.pdf", fixtureStart.AddDate(0, 0, -2))
	f.upload(t, a.ID, "soon.pdf", fixtureStart.AddDate(0, 0, 5))
	f.upload(t, a.ID, "later.pdf", fixtureStart.AddDate(0, 2, 0))
	f.upload(t, b.ID, "edge.pdf", fixtureStart.AddDate(0, 0, 15))

	stats, err := f.licenses.ComputeStats(ctx, 15)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.ExpiringCount)
	assert.Equal(t, 1, stats.ExpiredCount)

	listed, err := f.licenses.ListExpiringOrExpired(ctx, 15)
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	require.Len(t, stats.PerDepartment, 2)
	assert.Equal(t, domain.DepartmentLicenseStats{DepartmentID: a.ID, Count: 3, Expiring: 1}, stats.PerDepartment[0])
	assert.Equal(t, domain.DepartmentLicenseStats{DepartmentID: b.ID, Count: 1, Expiring: 1}, stats.PerDepartment[1])
}

func TestPendingNotificationsWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dept := f.department(t, "A")

	inside := f.upload(t, dept.ID, "15d.pdf", fixtureStart.AddDate(0, 0, 15))
	f.upload(t, dept.ID, "16d.pdf", fixtureStart.AddDate(0, 0, 16))
	f.upload(t, dept.ID, "expired.pdf", fixtureStart.AddDate(0, 0, -1))

	pending, err := f.licenses.PendingNotifications(ctx, 15)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, inside.ID, pending[0].ID)

	marked, err := f.licenses.MarkNotified(ctx, []string{inside.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	pending, err = f.licenses.PendingNotifications(ctx, 15)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestUpdateLicenseReplacesDocumentAndKeepsFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.department(t, "A")
	b := f.department(t, "B")
	license := f.upload(t, a.ID, "cert.pdf", fixtureStart.AddDate(0, 0, 5))
	_, err := f.licenses.MarkNotified(ctx, []string{license.ID})
	require.NoError(t, err)
	oldRef := license.FileBlobRef

	later := fixtureStart.AddDate(1, 0, 0)
	updated, err := f.licenses.Update(ctx, license.ID, UpdateLicenseInput{
		File:         &LicenseFileInput{Name: "cert.png", MimeType: domain.MimeTypePNG, Data: pngBytes},
		ExpiryDate:   &later,
		DepartmentID: &b.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "cert.png", updated.FileName)
	assert.Equal(t, later, updated.ExpiryDate)
	assert.Equal(t, b.ID, updated.DepartmentID)
	assert.NotEqual(t, oldRef, updated.FileBlobRef)

	stored, err := f.store.Licenses().GetByID(ctx, license.ID)
	require.NoError(t, err)
	assert.True(t, stored.NotificationSent)

	_, err = f.store.Licenses().GetBlob(ctx, oldRef)
	assert.True(t, apperrors.IsNotFound(err))

	bogus := "nope"
	_, err = f.licenses.Update(ctx, license.ID, UpdateLicenseInput{DepartmentID: &bogus})
	requireCode(t, err, apperrors.CodeInvalidDepartment)
}

func TestDeleteLicense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dept := f.department(t, "A")
	license := f.upload(t, dept.ID, "cert.pdf", fixtureStart.AddDate(0, 0, 5))

	require.NoError(t, f.licenses.Delete(ctx, license.ID))
	_, _, err := f.licenses.GetFile(ctx, license.ID)
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = f.store.Licenses().GetBlob(ctx, license.FileBlobRef)
	assert.True(t, apperrors.IsNotFound(err))

	requireCode(t, f.licenses.Delete(ctx, license.ID), apperrors.CodeNotFound)
}
