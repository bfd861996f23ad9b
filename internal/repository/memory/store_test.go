package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
)

func TestTransactorRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	issues := store.Issues()

	kept := domain.Issue{Title: "kept"}
	require.NoError(t, issues.Create(ctx, &kept))

	boom := errors.New("boom")
	err := store.Transactor().WithinTx(ctx, func(ctx context.Context) error {
		discarded := domain.Issue{Title: "discarded"}
		require.NoError(t, issues.Create(ctx, &discarded))
		_, err := issues.MarkComplete(ctx, kept.ID, time.Now())
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	all, err := issues.List(ctx, repository.IssueFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "kept", all[0].Title)
	assert.False(t, all[0].Complete)
}

func TestTransactorNestsInOuterTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tx := store.Transactor()

	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		return tx.WithinTx(ctx, func(ctx context.Context) error {
			dept := domain.Department{Name: "inner"}
			return store.Departments().Create(ctx, &dept)
		})
	})
	require.NoError(t, err)

	depts, err := store.Departments().List(ctx)
	require.NoError(t, err)
	assert.Len(t, depts, 1)
}

func TestRollbackKeepsWritesMadeOutsideTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	licenses := store.Licenses()
	license := domain.License{FileName: "fire.pdf", DepartmentID: "a", ExpiryDate: time.Now().Add(48 * time.Hour)}
	require.NoError(t, licenses.Create(ctx, &license))

	opened := make(chan struct{})
	marked := make(chan int, 1)
	go func() {
		<-opened
		n, err := licenses.MarkNotified(ctx, []string{license.ID}, time.Now())
		assert.NoError(t, err)
		marked <- n
	}()

	boom := errors.New("boom")
	err := store.Transactor().WithinTx(ctx, func(ctx context.Context) error {
		discarded := domain.Department{Name: "discarded"}
		require.NoError(t, store.Departments().Create(ctx, &discarded))
		close(opened)
		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, marked, "write outside the transaction ran while it was open")
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, <-marked)

	stored, err := licenses.GetByID(ctx, license.ID)
	require.NoError(t, err)
	assert.True(t, stored.NotificationSent)
	depts, err := store.Departments().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, depts)
}

func TestReadsWaitForOpenTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	issue := domain.Issue{Title: "Leaky pipe"}
	require.NoError(t, store.Issues().Create(ctx, &issue))
	require.NoError(t, store.Responses().Create(ctx, &domain.Response{IssueID: issue.ID}))

	type view struct {
		issue     *domain.Issue
		responses []domain.Response
	}
	opened := make(chan struct{})
	seen := make(chan view, 1)
	go func() {
		<-opened
		got, err := store.Issues().GetByID(ctx, issue.ID)
		assert.NoError(t, err)
		responses, err := store.Responses().ListByIssue(ctx, issue.ID)
		assert.NoError(t, err)
		seen <- view{issue: got, responses: responses}
	}()

	err := store.Transactor().WithinTx(ctx, func(ctx context.Context) error {
		if _, err := store.Issues().MarkComplete(ctx, issue.ID, time.Now()); err != nil {
			return err
		}
		close(opened)
		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, seen, "read outside the transaction ran while it was open")
		return store.Responses().MarkCompleteByIssue(ctx, issue.ID, time.Now())
	})
	require.NoError(t, err)

	v := <-seen
	assert.True(t, v.issue.Complete)
	require.Len(t, v.responses, 1)
	assert.True(t, v.responses[0].Complete)
}

func TestSetAcknowledgedSkipsCompletedIssue(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	issue := domain.Issue{Title: "Leaky pipe"}
	require.NoError(t, store.Issues().Create(ctx, &issue))

	_, err := store.Issues().SetAcknowledged(ctx, issue.ID, time.Now())
	require.NoError(t, err)
	_, err = store.Issues().MarkComplete(ctx, issue.ID, time.Now())
	require.NoError(t, err)
	_, err = store.Issues().SetAcknowledged(ctx, issue.ID, time.Now())
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestMissesReportErrNoRows(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_, err := store.Issues().GetByID(ctx, "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = store.Users().FindAnyByDepartment(ctx, "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = store.Responses().FindOpenByIssue(ctx, "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = store.Licenses().GetBlob(ctx, "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.ErrorIs(t, store.Departments().Delete(ctx, "missing"), pgx.ErrNoRows)
}

func TestIssueListingIsStableUnderFrozenClock(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for _, title := range []string{"a", "b", "c", "d"} {
		issue := domain.Issue{Title: title, RequiredDepartmentID: "dept", CreatedAt: at}
		require.NoError(t, store.Issues().Create(ctx, &issue))
		ids = append(ids, issue.ID)
	}

	for i := 0; i < 5; i++ {
		listed, err := store.Issues().List(ctx, repository.IssueFilter{DepartmentID: "dept"})
		require.NoError(t, err)
		require.Len(t, listed, 4)
		for j, issue := range listed {
			assert.Equal(t, ids[j], issue.ID)
		}
	}
}

func TestMarkCompleteOnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	issue := domain.Issue{Title: "x"}
	require.NoError(t, store.Issues().Create(ctx, &issue))

	_, err := store.Issues().MarkComplete(ctx, issue.ID, time.Now())
	require.NoError(t, err)
	_, err = store.Issues().MarkComplete(ctx, issue.ID, time.Now())
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestLicenseFilterAndNotificationFlag(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	licenses := store.Licenses()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mk := func(dept string, expiry time.Time) domain.License {
		license := domain.License{FileName: "f", DepartmentID: dept, ExpiryDate: expiry, NotificationSent: true}
		require.NoError(t, licenses.Create(ctx, &license))
		return license
	}
	expired := mk("a", now.Add(-time.Hour))
	soon := mk("a", now.Add(24*time.Hour))
	mk("b", now.Add(30*24*time.Hour))
	assert.False(t, soon.NotificationSent)

	unsent := false
	pending, err := licenses.List(ctx, repository.LicenseFilter{ExpiryFrom: now, ExpiryTo: now.Add(15 * 24 * time.Hour), NotificationSent: &unsent})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, soon.ID, pending[0].ID)

	count, err := licenses.Count(ctx, repository.LicenseFilter{ExpiredBefore: now})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	marked, err := licenses.MarkNotified(ctx, []string{soon.ID, expired.ID, "ghost"}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	soon.FileName = "renamed"
	require.NoError(t, licenses.Update(ctx, &soon))
	stored, err := licenses.GetByID(ctx, soon.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.FileName)
	assert.True(t, stored.NotificationSent)
}

func TestRunLock(t *testing.T) {
	ctx := context.Background()
	lock := NewRunLock()
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lock.clock = func() time.Time { return current }

	release, ok, err := lock.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	current = current.Add(2 * time.Minute)
	second, ok, err := lock.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// The expired holder must not release the new lease.
	require.NoError(t, release(ctx))
	_, ok, _ = lock.Acquire(ctx, "job", time.Minute)
	assert.False(t, ok)

	require.NoError(t, second(ctx))
	_, ok, _ = lock.Acquire(ctx, "job", time.Minute)
	assert.True(t, ok)
}
