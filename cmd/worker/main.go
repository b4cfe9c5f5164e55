package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/companies"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/statutory"
	"github.com/meridian-erp/meridian-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	auditLogger := shared.NewAuditLogger(pool)
	metrics := jobmetrics.NewMetrics(nil)

	companyRepo := companies.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	ledgerReader := ledger.NewReader(ledgerRepo)

	rules := statutory.DefaultRules()
	if cfg.ClassifierRulesPath != "" {
		rules, err = statutory.LoadRules(cfg.ClassifierRulesPath)
		if err != nil {
			logger.Error("load classifier rules", slog.String("path", cfg.ClassifierRulesPath), slog.Any("error", err))
			os.Exit(1)
		}
	}
	classifier := statutory.NewClassifier(rules)
	aggregator := statutory.NewAggregator(ledgerRepo, ledgerReader, classifier, cfg.ReportFetchConcurrency)

	reportRepo := statutory.NewRepository(pool)
	reportCache := statutory.NewCache(redisClient, cfg.ReportCacheTTL)
	reportService := statutory.NewService(reportRepo, aggregator, statutory.NewTaxCalculator(), companyRepo, reportCache, auditLogger, nil)

	asynqClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	generateJob := jobs.NewGenerateReportJob(reportService, logger, metrics)
	generateJob.Mail = asynqClient
	generateJob.NotifyAddr = cfg.ReportNotifyEmail
	integrityJob := jobs.NewLedgerIntegrityJob(companyRepo, ledgerRepo, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Mailer:    jobs.Mailer{Addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort), From: cfg.SMTPFrom},
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeGenerateReport, Handler: generateJob.Handle},
			{Type: jobs.TaskTypeLedgerIntegrity, Handler: integrityJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: jobs.NewLedgerIntegrityTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
