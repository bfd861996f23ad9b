package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/mail"
	"github.com/spec-kit/issue-tracker/internal/observability"
	"github.com/spec-kit/issue-tracker/internal/repository"
)

const (
	assignmentSubject = "New Issue Assigned"
	signature         = "Issue Tracker System"
)

// NotificationService turns domain events and expiry digests into email.
// Delivery is best effort: failures are logged and counted, never returned
// to the ledger operation that caused them.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	mailer     mail.Mailer
	metrics    *observability.Metrics
	logger     *zap.Logger
	location   *time.Location
}

// NotificationDependencies bundles collaborators for notifications.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	UserRepo   repository.UserRepository
	Mailer     mail.Mailer
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// Location renders dates in digests. Defaults to UTC.
	Location *time.Location
}

// DigestResult counts the deliveries of one department digest.
type DigestResult struct {
	Sent   int
	Failed int
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		users:      deps.UserRepo,
		mailer:     deps.Mailer,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		location:   deps.Location,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventIssueCreated, n.handleIssueCreated)
	n.dispatcher.Subscribe(events.EventIssueCompleted, n.handleIssueCompleted)
}

func (n *NotificationService) handleIssueCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.IssueCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	assignee, err := n.users.GetByID(ctx, payload.AssigneeID)
	if err != nil {
		return fmt.Errorf("load assignee %s: %w", payload.AssigneeID, err)
	}

	err = n.mailer.Send(ctx, AssignmentMessage(assignee, payload))
	n.metrics.EmailSent("assignment", err)
	if err != nil {
		n.logger.Warn("assignment email failed",
			zap.String("issue_id", event.IssueID),
			zap.String("assignee_id", assignee.ID),
			zap.Error(err))
		return err
	}
	n.logger.Info("assignment email sent", zap.String("issue_id", event.IssueID), zap.String("to", assignee.Email))
	return nil
}

func (n *NotificationService) handleIssueCompleted(_ context.Context, event events.Event) error {
	n.logger.Info("issue completed", zap.String("issue_id", event.IssueID), zap.Any("payload", event.Payload))
	return nil
}

// SendLicenseDigest mails one digest per recipient, all with the same body.
func (n *NotificationService) SendLicenseDigest(ctx context.Context, departmentName string, recipients []domain.User, licenses []domain.License, now time.Time) DigestResult {
	subject, body := LicenseDigestMessage(departmentName, licenses, now, n.location)

	var result DigestResult
	for _, recipient := range recipients {
		err := n.mailer.Send(ctx, mail.Message{To: recipient.Email, Subject: subject, Body: body})
		n.metrics.EmailSent("license_digest", err)
		if err != nil {
			result.Failed++
			n.logger.Warn("license digest email failed",
				zap.String("department", departmentName),
				zap.String("to", recipient.Email),
				zap.Error(err))
			continue
		}
		result.Sent++
	}
	return result
}

// AssignmentMessage renders the notice sent to the user an issue was routed to.
func AssignmentMessage(assignee *domain.User, issue events.IssueCreatedPayload) mail.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n", assignee.FullName)
	b.WriteString("You have been assigned a new issue:\n")
	fmt.Fprintf(&b, "Issue: %s\n", issue.Title)
	fmt.Fprintf(&b, "Description: %s\n", issue.Description)
	fmt.Fprintf(&b, "Address: %s\n", issue.Address)
	b.WriteString("\nPlease address this issue as soon as possible.\n\n")
	b.WriteString("Thank you,\n")
	b.WriteString(signature)
	return mail.Message{To: assignee.Email, Subject: assignmentSubject, Body: b.String()}
}

// LicenseDigestMessage renders the department digest for licenses nearing expiry.
func LicenseDigestMessage(departmentName string, licenses []domain.License, now time.Time, loc *time.Location) (subject, body string) {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s Team,\n\n", departmentName)
	b.WriteString("The following licenses in your department are expiring soon:\n\n")
	for _, license := range licenses {
		fmt.Fprintf(&b, "- %s (Expiry Date: %s - %d days left)\n",
			license.FileName,
			license.ExpiryDate.In(loc).Format(domain.DateLayout),
			license.DaysUntilExpiry(now))
	}
	b.WriteString("\nPlease take necessary action to renew these licenses.\n\n")
	b.WriteString("Best Regards,\n")
	b.WriteString(signature + " - License Management")
	return fmt.Sprintf("License Expiry Reminder - %s Department", departmentName), b.String()
}
