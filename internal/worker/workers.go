package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/service"
)

// Workers owns the background side of the service: event driven
// notifications and the license expiry scheduler.
type Workers struct {
	scheduler *ExpiryScheduler
	logger    *zap.Logger
}

// WorkersConfig lists what Start wires up. Nil members are skipped.
type WorkersConfig struct {
	Notifications *service.NotificationService
	Scheduler     *ExpiryScheduler
	// ScheduleExpiry arms the cron triggers. The scheduler still serves
	// manual runs when false.
	ScheduleExpiry bool
	Logger         *zap.Logger
}

// Start subscribes the notification handlers and arms the expiry
// scheduler.
func Start(cfg WorkersConfig) (*Workers, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Workers{logger: logger}

	if cfg.Notifications != nil {
		cfg.Notifications.RegisterHandlers()
		logger.Info("notification handlers registered")
	}
	if cfg.Scheduler != nil && cfg.ScheduleExpiry {
		if err := cfg.Scheduler.Start(); err != nil {
			return nil, err
		}
		w.scheduler = cfg.Scheduler
	}
	return w, nil
}

// Stop halts the scheduler and waits for a running check up to ctx's deadline.
func (w *Workers) Stop(ctx context.Context) error {
	if w == nil || w.scheduler == nil {
		return nil
	}
	return w.scheduler.Stop(ctx)
}
