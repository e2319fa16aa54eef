package container

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/expensehub/claimflow/internal/application/dispatcher"
	"github.com/expensehub/claimflow/internal/application/port"
	"github.com/expensehub/claimflow/internal/application/service"
	"github.com/expensehub/claimflow/internal/domain/event"
	"github.com/expensehub/claimflow/internal/domain/risk"
	"github.com/expensehub/claimflow/internal/domain/rules"
	"github.com/expensehub/claimflow/internal/infrastructure/persistence/repository"
	"github.com/expensehub/claimflow/internal/infrastructure/persistence/sqlite"
	"github.com/expensehub/claimflow/pkg/database"
	"github.com/expensehub/claimflow/pkg/metrics"
)

// DatabaseBundle groups the database handle and transaction manager.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database, runs migrations, and wraps it with
// the transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	sqlDB, err := database.Open(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.NewMigrator(sqlDB, logger).Run(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          sqlDB,
		TransactionMgr: sqlite.NewDB(sqlDB, logger),
	}, nil
}

// ProvideRepositories creates all repository implementations.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Claims:        repository.NewClaimRepository(sqlDB, logger),
		History:       repository.NewHistoryRepository(sqlDB, logger),
		Notifications: repository.NewNotificationRepository(sqlDB, logger),
		Directory:     repository.NewUserDirectory(sqlDB, logger),
	}, nil
}

// ProvideMetrics creates the Prometheus registry and instrument set.
func ProvideMetrics() (*prometheus.Registry, *metrics.Metrics) {
	registry := prometheus.NewRegistry()
	return registry, metrics.New(registry)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dispatcherLogger := &dispatcherLoggerAdapter{logger: logger}

	d := dispatcher.NewDispatcher(
		dispatcher.WithLogger(dispatcherLogger),
	)

	// Every published domain event lands in the structured log even when
	// no other subscriber is registered.
	for _, t := range event.AllTypes() {
		d.SubscribeNamed(t, "event-log", func(_ context.Context, evt *event.Event) error {
			logger.Info("Domain event",
				zap.String("event_type", evt.Type.String()),
				zap.String("event_id", evt.ID),
				zap.String("claim_id", evt.ClaimID),
				zap.String("new_status", string(evt.NewStatus)),
			)
			return nil
		})
	}

	return d, nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Config     *Config
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// ProvideServices wires the domain components and application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	annotator := risk.NewAnnotator(risk.Config{
		HighValueThreshold:  deps.Config.Risk.HighValueThreshold,
		SensitiveCategories: deps.Config.Risk.SensitiveCategories,
		LateSubmissionDays:  deps.Config.Risk.LateSubmissionDays,
		DuplicateLookback:   deps.Config.Risk.DuplicateLookback,
		FlagScoreThreshold:  deps.Config.Risk.FlagScoreThreshold,
	})

	ruleEngine := rules.NewEngine(rules.Config{
		HRThreshold:         deps.Config.Workflow.HRThreshold,
		AdminThreshold:      deps.Config.Workflow.AdminThreshold,
		CriticalScore:       deps.Config.Workflow.CriticalScore,
		SensitiveCategories: deps.Config.Risk.SensitiveCategories,
	})

	audit := service.NewAuditLogger(deps.Repos.History, serviceLogger)

	notifier := service.NewNotificationDispatcher(
		deps.Repos.Notifications,
		deps.Repos.Directory,
		deps.Dispatcher,
		serviceLogger,
		service.WithNotifierMetrics(deps.Metrics),
	)

	processor := service.NewApprovalProcessor(
		deps.Repos.Claims,
		deps.Repos.Directory,
		audit,
		deps.TxManager,
		deps.Config.Workflow.LockTTL,
		serviceLogger,
		service.WithMetrics(deps.Metrics),
	)

	coordinator := service.NewWorkflowCoordinator(
		deps.Repos.Claims,
		deps.Repos.Directory,
		annotator,
		ruleEngine,
		processor,
		audit,
		notifier,
		deps.TxManager,
		deps.Config.Risk.DuplicateLookback,
		serviceLogger,
		service.WithCoordinatorMetrics(deps.Metrics),
	)

	return &ServiceBundle{
		Coordinator: coordinator,
		Processor:   processor,
		Audit:       audit,
		Notifier:    notifier,
	}, nil
}
