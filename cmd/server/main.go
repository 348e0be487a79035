// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	adminhandler "canon/internal/admin/handler"
	"canon/internal/integrity"
	integritymetrics "canon/internal/integrity/metrics"
	"canon/internal/jwttoken"
	"canon/internal/platform/config"
	"canon/internal/platform/httpserver"
	"canon/internal/platform/logger"
	platformredis "canon/internal/platform/redis"
	"canon/internal/proposal/ports"
	proposalstore "canon/internal/proposal/store"
	"canon/internal/restore"
	"canon/internal/restore/executor"
	restoremetrics "canon/internal/restore/metrics"
	httptransport "canon/internal/transport/http"
	audit "canon/pkg/platform/audit"
	"canon/pkg/platform/audit/emitter"
	auditmemory "canon/pkg/platform/audit/store/memory"
	auditpostgres "canon/pkg/platform/audit/store/postgres"
	"canon/pkg/platform/secrets"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	var (
		db           *sql.DB
		proposals    ports.ProposalStore
		logs         ports.TransitionLogStore
		auditStore   audit.Store
		auditQuerier audit.Querier
	)

	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(context.Background()); err != nil {
			log.Error("database ping failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pgStore := proposalstore.NewPostgres(db)
		proposals = pgStore
		logs = pgStore

		pgAudit := auditpostgres.New(db)
		auditStore = pgAudit
		auditQuerier = pgAudit
	} else {
		log.Warn("no database configured, using in-memory stores")
		memStore := proposalstore.NewInMemoryStore()
		proposals = memStore
		logs = memStore

		memAudit := auditmemory.NewInMemoryStore()
		auditStore = memAudit
		auditQuerier = memAudit
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	var rdb *goredis.Client
	if redisClient != nil {
		rdb = redisClient.Client
		defer redisClient.Close()
	}

	auditEmitter := emitter.New(auditStore,
		emitter.WithLogger(log),
		emitter.WithMetrics(emitter.NewMetrics()),
		emitter.WithMaxRetries(cfg.AuditRetry.MaxRetries),
		emitter.WithBaseDelay(cfg.AuditRetry.BaseDelay),
	)

	im := integritymetrics.New()
	verifier := integrity.NewVerifier(proposals, logs,
		integrity.WithVerifierLogger(log),
		integrity.WithVerifierMetrics(im),
	)
	corrector := integrity.NewCorrector(proposals,
		integrity.WithCorrectorLogger(log),
		integrity.WithCorrectorMetrics(im),
		integrity.WithCorrectorEmitter(auditEmitter),
	)
	reports := integrity.NewReportCache(rdb, integrity.DefaultReportTTL)

	uploads, err := restore.NewFSUploadStore(cfg.BackupsDir)
	if err != nil {
		log.Error("failed to prepare backups directory", "error", err, "dir", cfg.BackupsDir)
		os.Exit(1)
	}

	gate := restore.NewGate(rdb, log)
	restoreSvc := restore.New(
		gate,
		uploads,
		executor.NewPSQL(cfg.DatabaseURL, log),
		proposals,
		auditEmitter,
		restore.WithLogger(log),
		restore.WithMetrics(restoremetrics.New()),
	)

	var adminTokenHash string
	if cfg.AdminToken != "" {
		adminTokenHash, err = secrets.Hash(cfg.AdminToken)
		if err != nil {
			log.Error("failed to hash admin token", "error", err)
			os.Exit(1)
		}
	}

	jwtService := jwttoken.NewService(cfg.JWTSigningKey, "canon")
	admin := adminhandler.New(restoreSvc, verifier, corrector, reports, auditQuerier, log)

	var health []httptransport.HealthChecker
	if redisClient != nil {
		health = append(health, redisClient)
	}
	if db != nil {
		health = append(health, dbHealth{db})
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Admin:          admin,
		Validator:      jwtService,
		AdminTokenHash: adminTokenHash,
		Logger:         log,
		Health:         health,
	})

	srv := httpserver.New(cfg, router)

	log.Info("starting canon server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

type dbHealth struct{ db *sql.DB }

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
