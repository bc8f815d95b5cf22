package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/BrianCLong/summit-sub013/config"
	provrepo "github.com/BrianCLong/summit-sub013/internal/repositories/provenance"
	"github.com/BrianCLong/summit-sub013/pkg/database"
	"github.com/BrianCLong/summit-sub013/pkg/er"
	"github.com/BrianCLong/summit-sub013/pkg/events"
	"github.com/BrianCLong/summit-sub013/pkg/graph"
	"github.com/BrianCLong/summit-sub013/pkg/guardrail"
	"github.com/BrianCLong/summit-sub013/pkg/kafka"
	"github.com/BrianCLong/summit-sub013/pkg/logging"
	"github.com/BrianCLong/summit-sub013/pkg/matching"
	"github.com/BrianCLong/summit-sub013/pkg/policy"
	erroutes "github.com/BrianCLong/summit-sub013/pkg/routes/er"
	"github.com/BrianCLong/summit-sub013/pkg/routes/health"
	"github.com/BrianCLong/summit-sub013/pkg/server"
	"github.com/BrianCLong/summit-sub013/pkg/tracing"
)

const version = "1.0.0"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		panic(err)
	}

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.AppName, tracing.OTLPConfig{
		Endpoint: cfg.OTLPEndpoint,
		Protocol: cfg.OTLPProtocol,
		Insecure: cfg.OTLPInsecure,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		logger.WithError(err).Warn("Tracing disabled: failed to init OTLP provider")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(shutdownCtx)
		}()
	}

	db, err := database.Connect(database.Config{
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to provenance database")
		os.Exit(1)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		logger.WithError(err).Error("Failed to create migration driver")
		os.Exit(1)
	}
	migrations := database.NewMigrationService(logger, database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
	})
	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	graphClient, err := graph.NewClient(graph.Config{
		Host:     cfg.GraphDBHost,
		Port:     cfg.GraphDBPort,
		Username: cfg.GraphDBUser,
		Password: cfg.GraphDBPassword,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create graph client")
		os.Exit(1)
	}
	defer graphClient.Close(ctx)

	connected := false
	for attempt := 1; attempt <= cfg.StartupMaxAttempts; attempt++ {
		if err := graphClient.VerifyConnectivity(ctx); err != nil {
			logger.WithError(err).WithFields(map[string]any{"attempt": attempt}).Warn("Graph database unreachable; retrying")
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}
		connected = true
		break
	}
	if !connected {
		logger.Error("Graph database unreachable; giving up")
		os.Exit(1)
	}

	registry := graph.NewTypeRegistry(graphClient, logger, cfg.AllowedRelationshipTypes)
	if err := registry.Refresh(ctx); err != nil {
		logger.WithError(err).Warn("Relationship type registry running on static seed only")
	}

	store := graph.NewDecisionStore(graphClient, registry, logger, cfg.RevertRemovesSyntheticEdges)
	ledger := provrepo.NewRepository(db, logger)

	explainer := matching.NewExplainer()
	evaluator := guardrail.NewClient(guardrail.ClientConfig{
		BaseURL: cfg.GuardrailBaseURL,
		Timeout: cfg.GuardrailTimeout,
	}, logger)
	gate := guardrail.NewGate(evaluator, explainer.Score, logger)
	authorizer := policy.NewAuthorizer(cfg.RestrictedLabels...)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()
	emitter := events.NewEmitter(producer, logger)

	service := er.NewService(store, gate, ledger, authorizer, explainer, emitter, logger)
	feed := er.NewGraphCandidateFeed(graphClient, logger)

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		logger.WithError(err).Error("Failed to create DI container")
		os.Exit(1)
	}
	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		logger.WithError(err).Error("Failed to register logger for DI resolution")
		os.Exit(1)
	}
	if err := ectoinject.RegisterInstance[*er.Service](container, service); err != nil {
		logger.WithError(err).Error("Failed to register entity resolution service for DI resolution")
		os.Exit(1)
	}

	srv := server.New(cfg, logger)
	e := srv.Echo()

	checker := health.NewChecker(db.DB, graphClient, version)
	checker.RegisterRoutes(e)

	erroutes.NewHandler(service, feed, erroutes.HandlerConfig{
		DefaultGuardrailDataset: cfg.GuardrailDefaultDataset,
		DefaultCandidateLimit:   cfg.CandidateClusterLimit,
	}, logger).Register(e.Group("/api/v1/er"))

	checker.SetReady(true)

	go func() {
		if err := srv.Start(); err != nil {
			logger.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down cleanly")
	}
}
