// Command server wires the loan origination core: workflow engine, committee
// voting, credit advisory scoring, and their background workers. Business
// logic lives in the internal packages; main only assembles and supervises.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"loanflow/internal/advisory"
	advisorymetrics "loanflow/internal/advisory/metrics"
	"loanflow/internal/app"
	"loanflow/internal/committee"
	"loanflow/internal/committee/expirer"
	committeemetrics "loanflow/internal/committee/metrics"
	"loanflow/internal/consent"
	"loanflow/internal/creditcheck"
	"loanflow/internal/notification"
	"loanflow/internal/platform/config"
	"loanflow/internal/platform/httpserver"
	"loanflow/internal/platform/logger"
	"loanflow/internal/platform/postgres"
	"loanflow/internal/platform/redis"
	"loanflow/internal/workflow"
	"loanflow/internal/workflow/cache"
	workflowmetrics "loanflow/internal/workflow/metrics"
	"loanflow/internal/workflow/sweeper"
	"loanflow/pkg/platform/audit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		if cfg.Postgres.AutoMigrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				return err
			}
		}
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher, closePublisher, err := buildPublisher(cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	// Stores: postgres when configured, otherwise in-memory for dev runs.
	var (
		definitions workflow.DefinitionStore
		instances   workflow.InstanceStore
		reviews     committee.Store
		advisories  advisory.Store
		consents    consent.Store
	)
	if pool != nil {
		definitions = workflow.NewPostgresDefinitionStore(pool.Pool)
		instances = workflow.NewPostgresInstanceStore(pool.Pool)
		reviews = committee.NewPostgresStore(pool.Pool)
		advisories = advisory.NewPostgresStore(pool.Pool)
		consents = consent.NewPostgresStore(pool.Pool)
	} else {
		memDefs := workflow.NewInMemoryDefinitionStore()
		if err := seedDefinitions(ctx, memDefs); err != nil {
			return err
		}
		definitions = memDefs
		instances = workflow.NewInMemoryInstanceStore()
		reviews = committee.NewInMemoryStore()
		advisories = advisory.NewInMemoryStore()
		consents = consent.NewInMemoryStore()
	}
	if redisClient != nil {
		definitions = cache.New(definitions, redisClient.Client, cfg.Redis.DefinitionTTL, log)
	}

	wfMetrics := workflowmetrics.New()
	cmMetrics := committeemetrics.New()
	advMetrics := advisorymetrics.New()

	engine, err := workflow.NewEngine(definitions, instances,
		workflow.WithLogger(log),
		workflow.WithAuditPublisher(publisher),
		workflow.WithMetrics(wfMetrics),
	)
	if err != nil {
		return err
	}

	committeeService, err := committee.NewService(reviews,
		committee.WithLogger(log),
		committee.WithAuditPublisher(publisher),
		committee.WithMetrics(cmMetrics),
		committee.WithDefaultDeadlineHours(cfg.Committee.DefaultDeadlineHours),
	)
	if err != nil {
		return err
	}

	advisoryService, err := advisory.NewService(advisories,
		advisory.WithLogger(log),
		advisory.WithAuditPublisher(publisher),
		advisory.WithMetrics(advMetrics),
	)
	if err != nil {
		return err
	}

	consentService, err := consent.NewService(consents,
		consent.WithLogger(log),
		consent.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}

	queue := notification.NewQueue(
		notification.NewLogNotifier(log),
		cfg.Workers.NotificationAttempts,
		cfg.Workers.NotificationBackoff,
		log,
	)

	slaSweeper := sweeper.New(instances, queue,
		cfg.Workers.SLASweepInterval, cfg.Workers.MaxEscalationLevel,
		sweeper.WithLogger(log),
		sweeper.WithAuditPublisher(publisher),
		sweeper.WithMetrics(wfMetrics),
	)
	deadlineExpirer := expirer.New(reviews, queue,
		cfg.Workers.ExpirySweepInterval,
		expirer.WithLogger(log),
		expirer.WithAuditPublisher(publisher),
		expirer.WithMetrics(cmMetrics),
	)
	dispatcher := creditcheck.New(
		creditcheck.NewInMemoryRequestStore(),
		creditcheck.NewInMemoryReportStore(),
		creditcheck.NewStubBureau(),
		consentService,
		cfg.Workers.DispatchInterval,
		3,
		creditcheck.WithLogger(log),
		creditcheck.WithAuditPublisher(publisher),
	)

	// The transport layer, when deployed alongside this core, consumes the
	// composition root rather than individual services.
	services := &app.App{
		Workflow:      engine,
		Committee:     committeeService,
		Advisory:      advisoryService,
		Consent:       consentService,
		CreditChecks:  dispatcher,
		Notifications: queue,
	}

	checks := map[string]httpserver.HealthChecker{}
	if pool != nil {
		checks["postgres"] = pool
	}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	srv := httpserver.New(cfg.Server.Addr, httpserver.NewRouter(checks))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("ops server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	group.Go(func() error { return ignoreCancel(services.Notifications.Run(ctx)) })
	group.Go(func() error { return ignoreCancel(slaSweeper.Run(ctx)) })
	group.Go(func() error { return ignoreCancel(deadlineExpirer.Run(ctx)) })
	group.Go(func() error { return ignoreCancel(services.CreditChecks.Run(ctx)) })

	log.Info("loanflow started")
	if err := group.Wait(); err != nil {
		return err
	}
	log.Info("loanflow stopped")
	return nil
}

// buildPublisher returns the kafka publisher when brokers are configured,
// otherwise the in-memory sink so dev runs still see events flow.
func buildPublisher(cfg config.KafkaConfig, log *slog.Logger) (audit.Publisher, func(), error) {
	if len(cfg.Brokers) == 0 {
		return audit.NewInMemoryStore(), func() {}, nil
	}
	kafka, err := audit.NewKafkaPublisher(cfg.Brokers, cfg.AuditTopic, audit.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	return kafka, func() { _ = kafka.Close() }, nil
}

// seedDefinitions loads the built-in workflows so a fresh dev process can
// start instances immediately.
func seedDefinitions(ctx context.Context, store workflow.DefinitionStore) error {
	for _, def := range []*workflow.Definition{
		workflow.SeedRetailDefinition(),
		workflow.SeedCorporateLargeDefinition(),
	} {
		if err := store.Save(ctx, def); err != nil {
			return err
		}
	}
	return nil
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
