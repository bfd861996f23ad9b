package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/persistence"
)

// openTestPool connects to TEST_POSTGRES_DSN and applies the migrations.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, persistence.RunMigrations(ctx, pool, "../../migrations", zaptest.NewLogger(t)))
	return pool
}

func seedDepartment(t *testing.T, repo DepartmentRepository) domain.Department {
	t.Helper()
	dept := domain.Department{Name: "dept-" + uuid.NewString(), Type: domain.DepartmentTypeMaintenance}
	require.NoError(t, repo.Create(context.Background(), &dept))
	return dept
}

func TestPostgresIssueLedger(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	departments := NewDepartmentRepository(pool)
	users := NewUserRepository(pool)
	issues := NewIssueRepository(pool)
	responses := NewResponseRepository(pool)
	tx := NewTransactor(pool)

	dept := seedDepartment(t, departments)
	owner := domain.User{FullName: "Owner", Email: uuid.NewString() + "@example.com", PasswordHash: "x"}
	require.NoError(t, users.Create(ctx, &owner))
	staff := domain.User{FullName: "Staff", Email: uuid.NewString() + "@example.com", PasswordHash: "x", DepartmentID: dept.ID}
	require.NoError(t, users.Create(ctx, &staff))

	found, err := users.FindAnyByDepartment(ctx, dept.ID)
	require.NoError(t, err)
	assert.Equal(t, staff.ID, found.ID)

	now := time.Now().UTC().Truncate(time.Microsecond)
	issue := domain.Issue{
		Title:                "Broken door",
		Description:          "Hinge snapped",
		Address:              "Block C",
		OwnerUserID:          owner.ID,
		RequiredDepartmentID: dept.ID,
		CreatedAt:            now,
	}
	require.NoError(t, tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := issues.Create(ctx, &issue); err != nil {
			return err
		}
		return responses.Create(ctx, &domain.Response{IssueID: issue.ID, CreatedAt: now})
	}))

	open := false
	listed, err := issues.List(ctx, IssueFilter{DepartmentID: dept.ID, Complete: &open})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, issue.ID, listed[0].ID)

	acked, err := issues.SetAcknowledged(ctx, issue.ID, now)
	require.NoError(t, err)
	require.NotNil(t, acked.AcknowledgedAt)

	completed, err := issues.MarkComplete(ctx, issue.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, completed.Complete)

	_, err = issues.MarkComplete(ctx, issue.ID, now.Add(2*time.Minute))
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
	_, err = issues.SetAcknowledged(ctx, issue.ID, now.Add(2*time.Minute))
	assert.True(t, errors.Is(err, pgx.ErrNoRows))

	require.NoError(t, responses.MarkCompleteByIssue(ctx, issue.ID, now.Add(time.Minute)))
	_, err = responses.FindOpenByIssue(ctx, issue.ID)
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
}

func TestPostgresTransactorRollsBack(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	departments := NewDepartmentRepository(pool)
	tx := NewTransactor(pool)

	name := "rollback-" + uuid.NewString()
	boom := errors.New("boom")
	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := departments.Create(ctx, &domain.Department{Name: name, Type: domain.DepartmentTypeRegular}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = departments.GetByNameFold(ctx, name)
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
}

func TestPostgresLicenseRegistry(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	licenses := NewLicenseRepository(pool)
	dept := seedDepartment(t, NewDepartmentRepository(pool))

	now := time.Now().UTC().Truncate(time.Second)
	soon := domain.License{
		FileName:         "soon.pdf",
		FileBlobRef:      uuid.NewString(),
		MimeType:         domain.MimeTypePDF,
		ExpiryDate:       now.Add(5 * 24 * time.Hour),
		DepartmentID:     dept.ID,
		UploadedByUserID: uuid.NewString(),
		CreatedAt:        now,
	}
	later := soon
	later.FileName = "later.pdf"
	later.FileBlobRef = uuid.NewString()
	later.ExpiryDate = now.Add(40 * 24 * time.Hour)

	for _, l := range []*domain.License{&later, &soon} {
		require.NoError(t, licenses.SaveBlob(ctx, l.FileBlobRef, []byte("%PDF-1.4")))
		require.NoError(t, licenses.Create(ctx, l))
	}

	byDept, err := licenses.List(ctx, LicenseFilter{DepartmentID: dept.ID})
	require.NoError(t, err)
	require.Len(t, byDept, 2)
	assert.Equal(t, "soon.pdf", byDept[0].FileName)

	pending := false
	window, err := licenses.List(ctx, LicenseFilter{
		DepartmentID:     dept.ID,
		ExpiryFrom:       now,
		ExpiryTo:         now.Add(15 * 24 * time.Hour),
		NotificationSent: &pending,
	})
	require.NoError(t, err)
	require.Len(t, window, 1)

	marked, err := licenses.MarkNotified(ctx, []string{soon.ID}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	window, err = licenses.List(ctx, LicenseFilter{
		DepartmentID:     dept.ID,
		ExpiryFrom:       now,
		ExpiryTo:         now.Add(15 * 24 * time.Hour),
		NotificationSent: &pending,
	})
	require.NoError(t, err)
	assert.Empty(t, window)

	blob, err := licenses.GetBlob(ctx, soon.FileBlobRef)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), blob)

	require.NoError(t, licenses.Delete(ctx, later.ID))
	require.NoError(t, licenses.DeleteBlob(ctx, later.FileBlobRef))
	_, err = licenses.GetByID(ctx, later.ID)
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
}
