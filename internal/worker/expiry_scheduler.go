package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/clock"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/observability"
	"github.com/spec-kit/issue-tracker/internal/repository"
	"github.com/spec-kit/issue-tracker/internal/service"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// LicenseRegistry is the part of the license store the scheduler needs.
type LicenseRegistry interface {
	PendingNotifications(ctx context.Context, windowDays int) ([]domain.License, error)
	MarkNotified(ctx context.Context, ids []string) (int, error)
}

// Directory resolves who belongs to a department.
type Directory interface {
	Recipients(ctx context.Context, departmentID string) ([]domain.User, error)
	DepartmentName(ctx context.Context, departmentID string) (string, error)
}

// DigestNotifier delivers a department digest to each recipient.
type DigestNotifier interface {
	SendLicenseDigest(ctx context.Context, departmentName string, recipients []domain.User, licenses []domain.License, now time.Time) service.DigestResult
}

// ExpirySchedulerConfig controls when and how the expiry check runs.
type ExpirySchedulerConfig struct {
	DailySpec  string
	WeeklySpec string
	Location   *time.Location
	WindowDays int
	LockKey    string
	LockTTL    time.Duration
}

// ExpiryDependencies bundles the scheduler's collaborators.
type ExpiryDependencies struct {
	Registry  LicenseRegistry
	Directory Directory
	Notifier  DigestNotifier
	// Lock is optional. Without it overlapping runs are not prevented.
	Lock    repository.RunLock
	Clock   clock.Clock
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// ExpiryScheduler notifies departments about licenses nearing expiry.
type ExpiryScheduler struct {
	cfg       ExpirySchedulerConfig
	registry  LicenseRegistry
	directory Directory
	notifier  DigestNotifier
	lock      repository.RunLock
	clock     clock.Clock
	metrics   *observability.Metrics
	logger    *zap.Logger
	cron      *cron.Cron
}

// NewExpiryScheduler wires the scheduler. Call Start to arm the triggers.
func NewExpiryScheduler(cfg ExpirySchedulerConfig, deps ExpiryDependencies) *ExpiryScheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 15
	}
	if cfg.LockKey == "" {
		cfg.LockKey = "license-expiry-check"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &ExpiryScheduler{
		cfg:       cfg,
		registry:  deps.Registry,
		directory: deps.Directory,
		notifier:  deps.Notifier,
		lock:      deps.Lock,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
		logger:    deps.Logger.Named("expiry-scheduler"),
	}
}

// Start registers the daily and optional weekly triggers and starts the cron
// loop in its own goroutine.
func (s *ExpiryScheduler) Start() error {
	c := cron.New(cron.WithLocation(s.cfg.Location))
	if _, err := c.AddFunc(s.cfg.DailySpec, func() { s.runScheduled("daily") }); err != nil {
		return fmt.Errorf("daily schedule %q: %w", s.cfg.DailySpec, err)
	}
	if s.cfg.WeeklySpec != "" {
		if _, err := c.AddFunc(s.cfg.WeeklySpec, func() { s.runScheduled("weekly") }); err != nil {
			return fmt.Errorf("weekly schedule %q: %w", s.cfg.WeeklySpec, err)
		}
	}
	s.cron = c
	c.Start()
	s.logger.Info("license expiry check scheduled",
		zap.String("daily", s.cfg.DailySpec),
		zap.String("weekly", s.cfg.WeeklySpec),
		zap.String("timezone", s.cfg.Location.String()))
	return nil
}

// Stop disarms the triggers and waits for a running check to finish or ctx
// to expire. A running check is never interrupted.
func (s *ExpiryScheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs the check synchronously for an administrative trigger. The run
// keeps ctx's values but not its cancellation: once started it finishes, so
// no department is marked notified after its mail was abandoned.
func (s *ExpiryScheduler) RunNow(ctx context.Context) (*domain.ExpiryRunResult, error) {
	return s.run(context.WithoutCancel(ctx), "manual")
}

func (s *ExpiryScheduler) runScheduled(trigger string) {
	// Scheduled runs have no caller to cancel them.
	result, err := s.run(context.Background(), trigger)
	if err != nil {
		s.logger.Error("scheduled license expiry check failed", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	s.logger.Info("scheduled license expiry check finished",
		zap.String("trigger", trigger),
		zap.Int("licenses_found", result.LicensesFound),
		zap.Int("licenses_marked", result.LicensesMarked))
}

func (s *ExpiryScheduler) run(ctx context.Context, trigger string) (result *domain.ExpiryRunResult, err error) {
	defer func() {
		marked := 0
		if result != nil {
			marked = result.LicensesMarked
		}
		s.metrics.ExpiryRun(trigger, err, marked)
	}()

	if s.lock != nil {
		release, ok, lockErr := s.lock.Acquire(ctx, s.cfg.LockKey, s.cfg.LockTTL)
		switch {
		case lockErr != nil:
			s.logger.Warn("run lock unavailable; continuing without it", zap.Error(lockErr))
		case !ok:
			return nil, apperrors.NewConflict("license expiry check already running", nil)
		default:
			defer func() {
				if err := release(context.Background()); err != nil {
					s.logger.Warn("release run lock failed", zap.Error(err))
				}
			}()
		}
	}

	now := s.clock.Now()
	result = &domain.ExpiryRunResult{StartedAt: now}

	licenses, err := s.registry.PendingNotifications(ctx, s.cfg.WindowDays)
	if err != nil {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, apperrors.NewDependencyError("query expiring licenses", err)
	}
	result.LicensesFound = len(licenses)
	if len(licenses) == 0 {
		s.logger.Info("no licenses expiring soon or all notifications already sent", zap.String("trigger", trigger))
		return result, nil
	}

	order, groups := groupByDepartment(licenses)
	for _, departmentID := range order {
		s.notifyDepartment(ctx, departmentID, groups[departmentID], now, result)
	}

	s.logger.Info("license expiry check completed",
		zap.String("trigger", trigger),
		zap.Int("licenses_found", result.LicensesFound),
		zap.Int("departments_notified", result.DepartmentsNotified),
		zap.Int("departments_skipped", result.SkippedDepartments),
		zap.Int("emails_sent", result.EmailsSent),
		zap.Int("emails_failed", result.EmailsFailed))
	return result, nil
}

// notifyDepartment sends one department's digest and then marks its
// licenses, whatever the individual deliveries did. Failures stay local to
// the department.
func (s *ExpiryScheduler) notifyDepartment(ctx context.Context, departmentID string, licenses []domain.License, now time.Time, result *domain.ExpiryRunResult) {
	log := s.logger.With(zap.String("department_id", departmentID), zap.Int("licenses", len(licenses)))

	recipients, err := s.directory.Recipients(ctx, departmentID)
	if err != nil {
		log.Warn("resolve recipients failed; department skipped", zap.Error(err))
		result.SkippedDepartments++
		return
	}
	if len(recipients) == 0 {
		log.Warn("no users assigned to department; department skipped")
		result.SkippedDepartments++
		return
	}

	name, err := s.directory.DepartmentName(ctx, departmentID)
	if err != nil || name == "" {
		name = departmentID
	}

	sent := s.notifier.SendLicenseDigest(ctx, name, recipients, licenses, now)
	result.EmailsSent += sent.Sent
	result.EmailsFailed += sent.Failed

	ids := make([]string, 0, len(licenses))
	for _, license := range licenses {
		ids = append(ids, license.ID)
	}
	marked, err := s.registry.MarkNotified(ctx, ids)
	if err != nil {
		log.Error("mark licenses notified failed", zap.Error(err))
		return
	}
	result.LicensesMarked += marked
	result.DepartmentsNotified++
	log.Info("department notified", zap.String("department", name), zap.Int("emails_sent", sent.Sent))
}

// groupByDepartment keeps departments in first-seen order, which follows
// expiry order since the registry sorts by expiry.
func groupByDepartment(licenses []domain.License) ([]string, map[string][]domain.License) {
	var order []string
	groups := make(map[string][]domain.License)
	for _, license := range licenses {
		if _, ok := groups[license.DepartmentID]; !ok {
			order = append(order, license.DepartmentID)
		}
		groups[license.DepartmentID] = append(groups[license.DepartmentID], license)
	}
	return order, groups
}
