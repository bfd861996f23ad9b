package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/issue-tracker/internal/clock"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/mail"
	"github.com/spec-kit/issue-tracker/internal/repository"
	"github.com/spec-kit/issue-tracker/internal/repository/memory"
)

var fixtureStart = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store         *memory.Store
	clock         *clock.FixedClock
	mailer        *mail.Recorder
	dispatcher    events.Dispatcher
	routing       *RoutingService
	issues        *IssueService
	responses     *ResponseService
	licenses      *LicenseService
	notifications *NotificationService
}

type fixtureOption func(*fixtureRepos)

type fixtureRepos struct {
	issues    repository.IssueRepository
	responses repository.ResponseRepository
}

func withIssueRepo(wrap func(repository.IssueRepository) repository.IssueRepository) fixtureOption {
	return func(r *fixtureRepos) { r.issues = wrap(r.issues) }
}

func withResponseRepo(wrap func(repository.ResponseRepository) repository.ResponseRepository) fixtureOption {
	return func(r *fixtureRepos) { r.responses = wrap(r.responses) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	repos := &fixtureRepos{issues: store.Issues(), responses: store.Responses()}
	for _, opt := range opts {
		opt(repos)
	}

	f := &fixture{
		store:      store,
		clock:      clock.Fixed(fixtureStart),
		mailer:     &mail.Recorder{},
		dispatcher: events.NewInMemoryDispatcher(logger),
	}
	f.routing = NewRoutingService(RoutingDependencies{
		UserRepo:       store.Users(),
		DepartmentRepo: store.Departments(),
	})
	f.issues = NewIssueService(IssueDependencies{
		IssueRepo:    repos.issues,
		ResponseRepo: repos.responses,
		Transactor:   store.Transactor(),
		Routing:      f.routing,
		Dispatcher:   f.dispatcher,
		Clock:        f.clock,
		Logger:       logger,
	})
	f.responses = NewResponseService(ResponseDependencies{
		IssueRepo:    repos.issues,
		ResponseRepo: repos.responses,
		Transactor:   store.Transactor(),
		Dispatcher:   f.dispatcher,
		Clock:        f.clock,
		Logger:       logger,
	})
	f.licenses = NewLicenseService(LicenseDependencies{
		LicenseRepo:    store.Licenses(),
		DepartmentRepo: store.Departments(),
		Transactor:     store.Transactor(),
		Clock:          f.clock,
		Logger:         logger,
		MaxUploadBytes: 1024,
	})
	f.notifications = NewNotificationService(NotificationDependencies{
		Dispatcher: f.dispatcher,
		UserRepo:   store.Users(),
		Mailer:     f.mailer,
		Logger:     logger,
	})
	f.notifications.RegisterHandlers()
	return f
}

func (f *fixture) department(t *testing.T, name string) domain.Department {
	t.Helper()
	dept := domain.Department{Name: name, Type: domain.DepartmentTypeMaintenance}
	require.NoError(t, f.store.Departments().Create(context.Background(), &dept))
	return dept
}

func (f *fixture) user(t *testing.T, name, departmentID string) domain.User {
	t.Helper()
	user := domain.User{FullName: name, Email: name + "@example.com", DepartmentID: departmentID}
	require.NoError(t, f.store.Users().Create(context.Background(), &user))
	return user
}

func (f *fixture) raise(t *testing.T, owner, departmentID, title string) *domain.Issue {
	t.Helper()
	issue, err := f.issues.CreateIssue(context.Background(), CreateIssueInput{
		Title:                title,
		Description:          title + " description",
		Address:              "Block A",
		RequiredDepartmentID: departmentID,
		OwnerUserID:          owner,
	})
	require.NoError(t, err)
	return issue
}
