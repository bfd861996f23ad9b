package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/service"
)

func TestStartRegistersNotificationHandlers(t *testing.T) {
	h := newHarness(t, nil)
	logger := zaptest.NewLogger(t)
	dispatcher := events.NewInMemoryDispatcher(logger)
	dept := h.department(t, "Facilities", "f1")
	assignee, err := h.store.Users().FindAnyByDepartment(context.Background(), dept.ID)
	require.NoError(t, err)

	notifications := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		UserRepo:   h.store.Users(),
		Mailer:     h.mailer,
		Logger:     logger,
	})
	w, err := Start(WorkersConfig{Notifications: notifications, Scheduler: h.scheduler, Logger: logger})
	require.NoError(t, err)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventIssueCreated,
		IssueID: "issue-1",
		Payload: events.IssueCreatedPayload{
			DepartmentID: dept.ID,
			AssigneeID:   assignee.ID,
			Title:        "Broken lift",
			Description:  "Stuck on 3",
			Address:      "Tower B",
		},
	}))
	require.Len(t, h.mailer.Messages(), 1)
	assert.Equal(t, "f1@example.com", h.mailer.Messages()[0].To)

	// the scheduler was not armed, so Stop has nothing to wait for
	assert.NoError(t, w.Stop(context.Background()))
}

func TestStartArmsScheduler(t *testing.T) {
	h := newHarness(t, nil)
	w, err := Start(WorkersConfig{Scheduler: h.scheduler, ScheduleExpiry: true})
	require.NoError(t, err)
	assert.NotNil(t, h.scheduler.cron)
	assert.NoError(t, w.Stop(context.Background()))

	bad := newHarness(t, nil)
	bad.scheduler.cfg.DailySpec = "not a spec"
	_, err = Start(WorkersConfig{Scheduler: bad.scheduler, ScheduleExpiry: true})
	assert.Error(t, err)
}

func TestNilWorkersStop(t *testing.T) {
	var w *Workers
	assert.NoError(t, w.Stop(context.Background()))
}
