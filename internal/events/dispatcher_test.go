package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublishRunsEveryHandlerDespiteFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	dispatcher := NewInMemoryDispatcher(zap.New(core))

	var calls []string
	dispatcher.Subscribe(EventIssueCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("smtp down")
	})
	dispatcher.Subscribe(EventIssueCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "second")
		assert.NotEmpty(t, e.ID)
		return nil
	})
	dispatcher.Subscribe(EventIssueCompleted, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := dispatcher.Publish(context.Background(), Event{Type: EventIssueCreated, IssueID: "issue-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "event handler failed", logs.All()[0].Message)
}
