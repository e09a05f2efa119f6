package main

import (
	"context"
	"log"
	"time"

	"lexipro/internal/config"
	"lexipro/internal/domain"
	"lexipro/internal/infra/db"
	"lexipro/internal/infra/evidencemem"
	httpinfra "lexipro/internal/infra/http"
	"lexipro/internal/infra/ledgermem"
	"lexipro/internal/infra/llm"
	"lexipro/internal/infra/packets"
	"lexipro/internal/infra/policyrego"
	"lexipro/internal/infra/ratelimit"
	"lexipro/internal/infra/storage"
	"lexipro/internal/usecase"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg := config.FromEnv()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	store, err := db.NewStore(cfg)
	if err != nil {
		logger.Fatal("failed to init store", zap.Error(err))
	}

	genesis := usecase.GenesisHash(cfg.GenesisSeed)

	var (
		ledger   usecase.AuditLedger
		resolver usecase.AnchorResolver
		evidence httpinfra.EvidenceSource
		exhibits httpinfra.ExhibitStore
		anchors  httpinfra.AnchorStore
		matters  httpinfra.MatterStore
		reader   usecase.ExhibitReader
	)
	if store.Available() {
		ledger = db.NewAuditEventRepository(store.DB, genesis)
		anchorRepo := db.NewAnchorRepository(store.DB, cfg.TenantIsolation)
		exhibitRepo := db.NewExhibitRepository(store.DB)
		resolver = anchorRepo
		evidence = anchorRepo
		anchors = anchorRepo
		exhibits = exhibitRepo
		matters = db.NewMatterRepository(store.DB)
		reader = exhibitRepo
		logger.Info("using postgres-backed ledger and evidence store")
	} else {
		memLedger := ledgermem.New(genesis)
		memEvidence := evidencemem.New(cfg.TenantIsolation)
		ledger = memLedger
		resolver = memEvidence
		evidence = memEvidence
		anchors = memEvidence.Anchors()
		exhibits = memEvidence.Exhibits()
		matters = memEvidence.Matters()
		reader = memEvidence
		logger.Warn("no POSTGRES_DSN configured; ledger and evidence are in-memory")
	}

	guard := usecase.NewLedgerGuard(ledger, genesis)

	policy, err := policyrego.NewEngine(context.Background())
	if err != nil {
		logger.Fatal("failed to init release policy", zap.Error(err))
	}

	blobs, err := storage.NewLocal(cfg.StorageDir)
	if err != nil {
		logger.Fatal("failed to init storage", zap.Error(err))
	}

	model := llm.NewClient(cfg)
	gate := &usecase.ReleaseGate{
		Verifier:  usecase.NewGroundingVerifier(resolver),
		Auditor:   usecase.NewCorroborationAuditor(model, cfg.ModelTimeout()),
		Policy:    policy,
		Ledger:    guard,
		Tolerance: cfg.CountTolerance,
	}
	builder := &packets.Builder{
		Ledger:   guard,
		Exhibits: reader,
		Storage:  blobs,
		Genesis:  genesis,
	}

	var limiter domain.RateLimiter
	switch {
	case cfg.RateLimitRequests <= 0:
		// throttling disabled
	case cfg.RedisAddr != "":
		limiter, err = ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, time.Now)
		if err != nil {
			logger.Fatal("failed to init redis rate limiter", zap.Error(err))
		}
		logger.Info("rate limiting via redis", zap.String("addr", cfg.RedisAddr))
	default:
		limiter = ratelimit.NewMemoryLimiter(time.Now, 4096)
		logger.Info("rate limiting in-process")
	}

	srv := httpinfra.NewServer(cfg, logger, httpinfra.ServerDeps{
		Gate:        gate,
		Model:       model,
		Guard:       guard,
		Evidence:    evidence,
		Exhibits:    exhibits,
		Anchors:     anchors,
		Matters:     matters,
		Storage:     blobs,
		Packets:     builder,
		RateLimiter: limiter,
	})

	logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := srv.Run(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
