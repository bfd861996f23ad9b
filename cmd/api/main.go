package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/issue-tracker/internal/api/http"
	"github.com/spec-kit/issue-tracker/internal/api/http/handlers"
	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/clock"
	"github.com/spec-kit/issue-tracker/internal/config"
	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/mail"
	"github.com/spec-kit/issue-tracker/internal/observability"
	"github.com/spec-kit/issue-tracker/internal/persistence"
	"github.com/spec-kit/issue-tracker/internal/repository"
	"github.com/spec-kit/issue-tracker/internal/repository/memory"
	"github.com/spec-kit/issue-tracker/internal/service"
	"github.com/spec-kit/issue-tracker/internal/worker"
)

// stores is the storage backend selected at startup.
type stores struct {
	departments repository.DepartmentRepository
	users       repository.UserRepository
	issues      repository.IssueRepository
	responses   repository.ResponseRepository
	licenses    repository.LicenseRepository
	tx          repository.Transactor
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.PoolHandle() != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	st := openStores(pg, logger)
	runLock := openRunLock(ctx, redis, logger)

	location, err := cfg.Scheduler.Location()
	if err != nil {
		logger.Fatal("invalid scheduler timezone", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	systemClock := clock.Real()
	dispatcher := events.NewInMemoryDispatcher(logger)
	mailer := mail.New(cfg.Mail, logger)

	routing := service.NewRoutingService(service.RoutingDependencies{
		UserRepo:       st.users,
		DepartmentRepo: st.departments,
	})
	issueService := service.NewIssueService(service.IssueDependencies{
		IssueRepo:    st.issues,
		ResponseRepo: st.responses,
		Transactor:   st.tx,
		Routing:      routing,
		Dispatcher:   dispatcher,
		Clock:        systemClock,
		Metrics:      metrics,
		Logger:       logger,
	})
	responseService := service.NewResponseService(service.ResponseDependencies{
		IssueRepo:    st.issues,
		ResponseRepo: st.responses,
		Transactor:   st.tx,
		Dispatcher:   dispatcher,
		Clock:        systemClock,
		Logger:       logger,
	})
	licenseService := service.NewLicenseService(service.LicenseDependencies{
		LicenseRepo:    st.licenses,
		DepartmentRepo: st.departments,
		Transactor:     st.tx,
		Clock:          systemClock,
		Logger:         logger,
		MaxUploadBytes: cfg.License.MaxUploadBytes,
	})
	departmentService := service.NewDepartmentService(st.departments)
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:       st.users,
		DepartmentRepo: st.departments,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		UserRepo:   st.users,
		Mailer:     mailer,
		Metrics:    metrics,
		Logger:     logger,
		Location:   location,
	})
	scheduler := worker.NewExpiryScheduler(worker.ExpirySchedulerConfig{
		DailySpec:  cfg.Scheduler.DailySpec,
		WeeklySpec: cfg.Scheduler.WeeklySpec,
		Location:   location,
		WindowDays: cfg.Scheduler.WindowDays,
		LockKey:    cfg.Scheduler.LockKey,
		LockTTL:    cfg.Scheduler.LockTTL(),
	}, worker.ExpiryDependencies{
		Registry:  licenseService,
		Directory: routing,
		Notifier:  notificationService,
		Lock:      runLock,
		Clock:     systemClock,
		Metrics:   metrics,
		Logger:    logger,
	})
	workers, err := worker.Start(worker.WorkersConfig{
		Notifications:  notificationService,
		Scheduler:      scheduler,
		ScheduleExpiry: cfg.Scheduler.Enabled,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("failed to start workers", zap.Error(err))
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), st.users)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    bodyLimit(cfg.License.MaxUploadBytes),
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:  logger,
		Metrics: metrics,
		CORS:    cfg.CORS,
		Timeout: cfg.App.RequestTimeout(),
	})

	checks := map[string]handlers.HealthCheck{}
	if pg.PoolHandle() != nil {
		checks["postgres"] = pg.Ping
	}
	if redis.Configured() {
		checks["redis"] = redis.Ping
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		APIPrefix:      cfg.App.APIPrefix,
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		Users:          handlers.NewUsersHandler(authService),
		Issues:         handlers.NewIssuesHandler(issueService, responseService),
		Licenses:       handlers.NewLicensesHandler(licenseService, scheduler, cfg.License.WindowDays),
		Departments:    handlers.NewDepartmentsHandler(departmentService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := workers.Stop(shutdownCtx); err != nil {
		logger.Warn("workers did not stop cleanly", zap.Error(err))
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

// openStores uses Postgres when a pool is configured and the in-memory
// store otherwise.
func openStores(pg *persistence.Postgres, logger *zap.Logger) stores {
	pool := pg.PoolHandle()
	if pool == nil {
		logger.Warn("using in-memory store; data is lost on restart")
		mem := memory.NewStore()
		return stores{
			departments: mem.Departments(),
			users:       mem.Users(),
			issues:      mem.Issues(),
			responses:   mem.Responses(),
			licenses:    mem.Licenses(),
			tx:          mem.Transactor(),
		}
	}
	return stores{
		departments: repository.NewDepartmentRepository(pool),
		users:       repository.NewUserRepository(pool),
		issues:      repository.NewIssueRepository(pool),
		responses:   repository.NewResponseRepository(pool),
		licenses:    repository.NewLicenseRepository(pool),
		tx:          repository.NewTransactor(pool),
	}
}

// openRunLock prefers the Redis lock and falls back to a process-local one
// when Redis is unreachable at startup.
func openRunLock(ctx context.Context, redis *persistence.Redis, logger *zap.Logger) repository.RunLock {
	if !redis.Configured() {
		return memory.NewRunLock()
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := redis.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable; expiry run lock is process local", zap.Error(err))
		return memory.NewRunLock()
	}
	return repository.NewRedisRunLock(redis.Client)
}

// bodyLimit leaves room for base64 expansion of the largest upload.
func bodyLimit(maxUploadBytes int) int {
	if maxUploadBytes <= 0 {
		return fiber.DefaultBodyLimit
	}
	return maxUploadBytes/3*4 + 64*1024
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
