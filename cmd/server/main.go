package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"garita/internal/audit"
	"garita/internal/catalog"
	cataloghandler "garita/internal/catalog/handler"
	"garita/internal/files"
	"garita/internal/flow/actors"
	"garita/internal/flow/graph"
	flowhandler "garita/internal/flow/handler"
	"garita/internal/flow/ledger"
	flowmetrics "garita/internal/flow/metrics"
	flowservice "garita/internal/flow/service"
	flowstore "garita/internal/flow/store"
	jwttoken "garita/internal/jwt_token"
	"garita/internal/platform/config"
	"garita/internal/platform/httpserver"
	"garita/internal/platform/logger"
	platformmetrics "garita/internal/platform/metrics"
	platformredis "garita/internal/platform/redis"
	"garita/internal/verify/extractor"
	verifyhandler "garita/internal/verify/handler"
	verifymetrics "garita/internal/verify/metrics"
	"garita/internal/verify/quota"
	verifyservice "garita/internal/verify/service"
)

const auditQueueSize = 256

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages. Without a database URL the
// process runs fully in memory, which is the development kiosk mode.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	} else {
		log.Warn("no database configured, running with in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	fileStorage, err := files.NewLocalStorage(cfg.FileRoot)
	if err != nil {
		log.Error("failed to prepare file storage", "root", cfg.FileRoot, "error", err)
		os.Exit(1)
	}

	// Stores and the step transaction boundary.
	var (
		submissions    flowstore.SubmissionStore
		answers        flowstore.AnswerStore
		questionnaires flowstore.QuestionnaireStore
		questions      graph.QuestionSource
		actorStore     catalog.Store
		auditStore     audit.Store
		usage          verifyservice.UsageCounter
		storeTx        flowservice.StoreTx
	)
	if db != nil {
		pgQuestionnaires := flowstore.NewPostgresQuestionnaires(db)
		submissions = flowstore.NewPostgresSubmissions(db)
		answers = flowstore.NewPostgresAnswers(db)
		questionnaires = pgQuestionnaires
		questions = pgQuestionnaires
		actorStore = catalog.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		usage = quota.NewPostgresCounter(db)
		storeTx = newFlowPostgresTx(db)
	} else {
		memQuestionnaires := flowstore.NewInMemoryQuestionnaires()
		submissions = flowstore.NewInMemorySubmissions()
		answers = flowstore.NewInMemoryAnswers()
		questionnaires = memQuestionnaires
		questions = memQuestionnaires
		actorStore = catalog.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		usage = quota.NewInMemoryCounter()
		storeTx = flowservice.NewShardedTx()
	}
	if redisClient != nil {
		usage = quota.NewRedisCounter(redisClient.Client)
	}

	// Audit events persist off the request path.
	auditInbox := make(chan audit.Event, auditQueueSize)
	auditWorker := audit.NewWorker(auditStore, auditInbox, log)
	go func() {
		if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	catalogService := catalog.NewService(actorStore, catalog.WithLogger(log))
	flowEngine := flowservice.New(
		submissions,
		questionnaires,
		graph.NewCache(questions),
		ledger.New(answers),
		actors.NewResolver(catalogService),
		storeTx,
		flowservice.WithLogger(log),
		flowservice.WithMetrics(flowmetrics.New()),
		flowservice.WithFileStorage(fileStorage),
		flowservice.WithAuditPublisher(audit.NewAsyncPublisher(auditInbox, log)),
	)

	verifyEngine := verifyservice.NewEngine(
		extractor.New(cfg.OCRBaseURL, cfg.OCRAPIKey, extractor.WithLogger(log)),
		usage,
		verifyservice.WithLogger(log),
		verifyservice.WithMonthlyQuota(cfg.OCRMonthlyQuota),
		verifyservice.WithMetrics(verifymetrics.New()),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "garita", "garita-kiosk")
	httpMetrics := platformmetrics.New()

	router := chi.NewRouter()
	flowhandler.New(flowEngine, log, httpMetrics, jwtService).Register(router)
	verifyhandler.New(verifyEngine, log, httpMetrics, jwtService).Register(router)
	cataloghandler.New(catalogService, log, httpMetrics, jwtService).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("starting garita", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
