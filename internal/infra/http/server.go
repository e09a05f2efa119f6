// Package http is the gin transport for the verification pipeline.
// Handlers translate between wire shapes and the release gate; no
// verification logic lives here.
package http

import (
	"context"
	"net/http"
	"time"

	"lexipro/internal/config"
	"lexipro/internal/domain"
	"lexipro/internal/infra/packets"
	"lexipro/internal/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EvidenceSource feeds the corroboration auditor's anchor inventory.
type EvidenceSource interface {
	AnchorInventory(ctx context.Context, workspaceID, matterID string) (ids []string, excerpts map[string]string, err error)
}

// ExhibitStore persists and serves exhibit records.
type ExhibitStore interface {
	Create(ctx context.Context, exhibit domain.Exhibit) (domain.Exhibit, error)
	Get(ctx context.Context, workspaceID, exhibitID string) (domain.Exhibit, error)
}

// AnchorStore persists the anchors declared alongside an upload and
// serves them back per exhibit.
type AnchorStore interface {
	Create(ctx context.Context, anchor domain.Anchor) error
	ListByExhibit(ctx context.Context, workspaceID, exhibitID string) ([]domain.Anchor, error)
}

// MatterStore persists matters. Uploads and verification requests are
// refused for matters that do not exist in the workspace.
type MatterStore interface {
	Create(ctx context.Context, matter domain.Matter) (domain.Matter, error)
	Get(ctx context.Context, workspaceID, matterID string) (domain.Matter, error)
}

type Server struct {
	cfg    config.Config
	logger *zap.Logger
	r      *gin.Engine

	gate     *usecase.ReleaseGate
	model    usecase.ModelClient
	guard    *usecase.LedgerGuard
	evidence EvidenceSource
	exhibits ExhibitStore
	anchors  AnchorStore
	matters  MatterStore
	storage  usecase.FileStorage
	packets  *packets.Builder

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration

	adminAPIKey string
}

type ServerDeps struct {
	Gate        *usecase.ReleaseGate
	Model       usecase.ModelClient
	Guard       *usecase.LedgerGuard
	Evidence    EvidenceSource
	Exhibits    ExhibitStore
	Anchors     AnchorStore
	Matters     MatterStore
	Storage     usecase.FileStorage
	Packets     *packets.Builder
	RateLimiter domain.RateLimiter
}

func NewServer(cfg config.Config, logger *zap.Logger, deps ServerDeps) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:               cfg,
		logger:            logger,
		r:                 r,
		gate:              deps.Gate,
		model:             deps.Model,
		guard:             deps.Guard,
		evidence:          deps.Evidence,
		exhibits:          deps.Exhibits,
		anchors:           deps.Anchors,
		matters:           deps.Matters,
		storage:           deps.Storage,
		packets:           deps.Packets,
		rateLimiter:       deps.RateLimiter,
		rateLimitRequests: cfg.RateLimitRequests,
		rateLimitWindow:   cfg.RateLimitWindow(),
		adminAPIKey:       cfg.AdminAPIKey,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/ai/chat", s.handleChat)
		v1.GET("/ai/guardrails", s.handleGuardrails)
		v1.POST("/matters", s.handleCreateMatter)
		v1.POST("/exhibits", s.handleExhibitUpload)
		v1.GET("/exhibits/:exhibit_id", s.handleExhibitDetail)
		v1.POST("/proof-packets", s.handleBuildPacket)
		v1.GET("/audit/:workspace_id/verify", s.handleVerifyChain)
		v1.POST("/audit/:workspace_id/unlock", s.handleUnlockChain)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}
