package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"lexipro/internal/domain"
	cryptoinfra "lexipro/internal/infra/crypto"
	"lexipro/internal/infra/llm"
	"lexipro/internal/infra/packets"
	"lexipro/internal/infra/ratelimit"
	"lexipro/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Prompt keys whose answers cannot be grounded in exhibit anchors.
// These are refused before any model call is made.
var ungroundedPromptKeys = map[string]struct{}{
	"timeline": {},
	"outcome":  {},
	"damages":  {},
}

const maxExhibitBytes = 32 << 20

// codeWorkspaceQuarantined is the 423 wire code for every route a
// quarantined workspace blocks.
const codeWorkspaceQuarantined = "INTEGRITY_QUARANTINED"

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type chatRequest struct {
	WorkspaceID string `json:"workspaceId"`
	MatterID    string `json:"matterId"`
	PromptKey   string `json:"promptKey"`
	Question    string `json:"question"`
}

type chatClaim struct {
	Text      string   `json:"text"`
	AnchorIDs []string `json:"anchorIds"`
}

type chatResponse struct {
	OK              bool                `json:"ok"`
	Status          string              `json:"status"`
	ErrorCode       string              `json:"errorCode,omitempty"`
	Summary         string              `json:"summary,omitempty"`
	Claims          []chatClaim         `json:"claims,omitempty"`
	Reasons         []domain.ReasonCode `json:"reasons,omitempty"`
	TotalClaims     int                 `json:"totalClaims"`
	AnchoredCount   int                 `json:"anchoredCount"`
	UnanchoredCount int                 `json:"unanchoredCount"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	req.WorkspaceID = workspaceFrom(c, req.WorkspaceID)
	if req.WorkspaceID == "" || req.MatterID == "" || req.Question == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "workspaceId, matterId, and question are required")
		return
	}
	actorID := actorFrom(c)
	ctx := c.Request.Context()

	if s.guard.Quarantined(req.WorkspaceID) {
		writeErrorCode(c, http.StatusLocked, codeWorkspaceQuarantined, "workspace audit chain is quarantined")
		return
	}

	if _, disabled := ungroundedPromptKeys[req.PromptKey]; disabled {
		s.recordDisabledPrompt(c, req, actorID)
		return
	}

	if !s.requireMatter(c, req.WorkspaceID, req.MatterID) {
		return
	}

	if !s.allowRate(c, req.WorkspaceID, actorID) {
		return
	}

	anchorIDs, excerpts, err := s.evidence.AnchorInventory(ctx, req.WorkspaceID, req.MatterID)
	if err != nil {
		s.logger.Error("anchor inventory", zap.Error(err), zap.String("workspace_id", req.WorkspaceID))
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	raw, err := s.model.Generate(ctx, buildGenerationPrompt(req.Question, anchorIDs, excerpts))
	if err != nil {
		s.logger.Error("candidate generation", zap.Error(err), zap.String("workspace_id", req.WorkspaceID))
		writeErrorCode(c, http.StatusBadGateway, "MODEL_UNAVAILABLE", "model call failed")
		return
	}

	result, err := s.gate.Run(ctx, usecase.GateRequest{
		WorkspaceID:  req.WorkspaceID,
		MatterID:     req.MatterID,
		ActorID:      actorID,
		PromptKey:    req.PromptKey,
		RawCandidate: []byte(raw),
		Evidence:     usecase.EvidenceContext{AnchorIDs: anchorIDs, Excerpts: excerpts},
	})
	if err != nil {
		if errors.Is(err, domain.ErrIntegrityChainBroken) {
			writeErrorCode(c, http.StatusLocked, codeWorkspaceQuarantined, "workspace audit chain is quarantined")
			return
		}
		s.logger.Error("release gate", zap.Error(err), zap.String("workspace_id", req.WorkspaceID))
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	s.logger.Info("release decision",
		zap.String("workspace_id", req.WorkspaceID),
		zap.String("matter_id", req.MatterID),
		zap.String("status", string(result.Decision.Status)),
		zap.Int("total_claims", result.Decision.TotalClaims),
		zap.Int("anchored", result.Decision.AnchoredCount),
		zap.Duration("duration", result.Decision.Duration),
	)

	if result.Decision.Status != domain.StatusProven {
		c.JSON(http.StatusUnprocessableEntity, chatResponse{
			OK:              false,
			Status:          string(domain.StatusWithheld),
			ErrorCode:       string(domain.StatusWithheld),
			Reasons:         result.Decision.Reasons,
			TotalClaims:     result.Decision.TotalClaims,
			AnchoredCount:   result.Decision.AnchoredCount,
			UnanchoredCount: result.Decision.UnanchoredCount,
		})
		return
	}

	claims := make([]chatClaim, 0, len(result.Candidate.Claims))
	for _, claim := range result.Candidate.Claims {
		claims = append(claims, chatClaim{Text: claim.Text, AnchorIDs: claim.AnchorIDs})
	}
	c.JSON(http.StatusOK, chatResponse{
		OK:            true,
		Status:        string(domain.StatusProven),
		Summary:       result.Candidate.Summary,
		Claims:        claims,
		TotalClaims:   result.Decision.TotalClaims,
		AnchoredCount: result.Decision.AnchoredCount,
	})
}

func (s *Server) recordDisabledPrompt(c *gin.Context, req chatRequest, actorID string) {
	_, err := s.guard.Append(c.Request.Context(), domain.AuditEvent{
		WorkspaceID: req.WorkspaceID,
		EventType:   domain.AuditEventReleaseGateBlocked,
		ActorID:     actorID,
		Payload: usecase.RedactPayload(map[string]any{
			"promptKey": req.PromptKey,
			"matterId":  req.MatterID,
			"reasons":   []any{string(domain.ReasonEndpointDisabled)},
		}),
	})
	if err != nil {
		if errors.Is(err, domain.ErrIntegrityChainBroken) {
			writeErrorCode(c, http.StatusLocked, codeWorkspaceQuarantined, "workspace audit chain is quarantined")
			return
		}
		s.logger.Error("record disabled prompt", zap.Error(err), zap.String("workspace_id", req.WorkspaceID))
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	c.JSON(http.StatusUnprocessableEntity, chatResponse{
		OK:        false,
		Status:    string(domain.StatusWithheld),
		ErrorCode: string(domain.StatusWithheld),
		Reasons:   []domain.ReasonCode{domain.ReasonEndpointDisabled},
	})
}

func (s *Server) handleGuardrails(c *gin.Context) {
	disabled := make([]string, 0, len(ungroundedPromptKeys))
	for key := range ungroundedPromptKeys {
		disabled = append(disabled, key)
	}
	sort.Strings(disabled)
	c.JSON(http.StatusOK, gin.H{
		"disabledPromptKeys": disabled,
		"countTolerance":     s.cfg.CountTolerance,
		"temperature":        llm.Temperature,
		"anchoringPolicy":    "every released claim cites at least one in-scope evidence anchor; unverifiable answers are withheld",
		"reasonCodes": []domain.ReasonCode{
			domain.ReasonMalformedResponse,
			domain.ReasonUnanchoredCitation,
			domain.ReasonCrossTenant,
			domain.ReasonAuditMismatch,
			domain.ReasonCorroborationTimeout,
			domain.ReasonEndpointDisabled,
		},
	})
}

func (s *Server) handleExhibitUpload(c *gin.Context) {
	workspaceID := workspaceFrom(c, c.PostForm("workspace_id"))
	matterID := c.PostForm("matter_id")
	if workspaceID == "" || matterID == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "workspace_id and matter_id are required")
		return
	}
	actorID := actorFrom(c)
	ctx := c.Request.Context()

	if s.guard.Quarantined(workspaceID) {
		writeErrorCode(c, http.StatusLocked, codeWorkspaceQuarantined, "workspace audit chain is quarantined")
		return
	}

	if !s.requireMatter(c, workspaceID, matterID) {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "file is required")
		return
	}
	if fileHeader.Size > maxExhibitBytes {
		writeErrorCode(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "exhibit exceeds size limit")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "unreadable file")
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, maxExhibitBytes+1))
	f.Close()
	if err != nil || int64(len(data)) > maxExhibitBytes {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "unreadable file")
		return
	}

	var declared []anchorDecl
	if raw := c.PostForm("anchors"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &declared); err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "anchors must be a JSON array")
			return
		}
	}

	exhibitID := uuid.NewString()
	storageKey := fmt.Sprintf("%s/%s/%s", workspaceID, exhibitID, sanitizeFilename(fileHeader.Filename))
	if err := s.storage.Upload(ctx, storageKey, data); err != nil {
		s.logger.Error("exhibit upload", zap.Error(err), zap.String("workspace_id", workspaceID))
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "storage failure")
		return
	}

	exhibit, err := s.exhibits.Create(ctx, domain.Exhibit{
		ID:            exhibitID,
		WorkspaceID:   workspaceID,
		MatterID:      matterID,
		Filename:      fileHeader.Filename,
		MimeType:      fileHeader.Header.Get("Content-Type"),
		StorageKey:    storageKey,
		IntegrityHash: cryptoinfra.SHA256Hex(data),
		SizeBytes:     int64(len(data)),
	})
	if err != nil {
		_ = s.storage.Delete(ctx, storageKey)
		s.logger.Error("exhibit record", zap.Error(err), zap.String("workspace_id", workspaceID))
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	anchorIDs := make([]string, 0, len(declared))
	for _, decl := range declared {
		anchor := domain.Anchor{
			ID:          decl.ID,
			ExhibitID:   exhibit.ID,
			WorkspaceID: workspaceID,
			MatterID:    matterID,
			PageNumber:  decl.PageNumber,
			LineNumber:  decl.LineNumber,
			Text:        decl.Text,
			BoundingBox: decl.BoundingBox,
		}
		if anchor.ID == "" {
			anchor.ID = uuid.NewString()
		}
		if err := s.anchors.Create(ctx, anchor); err != nil {
			s.logger.Error("anchor record", zap.Error(err), zap.String("workspace_id", workspaceID))
			writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
			return
		}
		anchorIDs = append(anchorIDs, anchor.ID)
	}

	_, err = s.guard.Append(ctx, domain.AuditEvent{
		WorkspaceID: workspaceID,
		EventType:   domain.AuditEventExhibitUpload,
		ActorID:     actorID,
		Payload: usecase.RedactPayload(map[string]any{
			"exhibitId":     exhibit.ID,
			"matterId":      matterID,
			"filename":      fileHeader.Filename,
			"storageKey":    storageKey,
			"sizeBytes":     exhibit.SizeBytes,
			"integrityHash": exhibit.IntegrityHash,
			"anchorCount":   len(anchorIDs),
		}),
	})
	if err != nil {
		s.logger.Error("exhibit audit event", zap.Error(err), zap.String("workspace_id", workspaceID))
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"exhibitId":     exhibit.ID,
		"integrityHash": exhibit.IntegrityHash,
		"sizeBytes":     exhibit.SizeBytes,
		"anchorIds":     anchorIDs,
	})
}

type matterRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateMatter(c *gin.Context) {
	var req matterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	req.WorkspaceID = workspaceFrom(c, req.WorkspaceID)
	if req.WorkspaceID == "" || req.Name == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "workspaceId and name are required")
		return
	}

	matter, err := s.matters.Create(c.Request.Context(), domain.Matter{
		WorkspaceID: req.WorkspaceID,
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		s.logger.Error("matter record", zap.Error(err), zap.String("workspace_id", req.WorkspaceID))
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"matterId": matter.ID,
		"slug":     matter.Slug,
		"name":     matter.Name,
	})
}

func (s *Server) handleExhibitDetail(c *gin.Context) {
	workspaceID := workspaceFrom(c, c.Query("workspace_id"))
	if workspaceID == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "workspace id is required")
		return
	}
	exhibitID := c.Param("exhibit_id")
	ctx := c.Request.Context()

	exhibit, err := s.exhibits.Get(ctx, workspaceID, exhibitID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeErrorCode(c, http.StatusNotFound, "EXHIBIT_NOT_FOUND", "exhibit not found")
			return
		}
		s.logger.Error("exhibit lookup", zap.Error(err), zap.String("workspace_id", workspaceID))
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	anchors, err := s.anchors.ListByExhibit(ctx, workspaceID, exhibitID)
	if err != nil {
		s.logger.Error("exhibit anchors", zap.Error(err), zap.String("workspace_id", workspaceID))
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	out := make([]gin.H, 0, len(anchors))
	for _, anchor := range anchors {
		out = append(out, gin.H{
			"id":         anchor.ID,
			"pageNumber": anchor.PageNumber,
			"lineNumber": anchor.LineNumber,
			"text":       anchor.Text,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"exhibitId":     exhibit.ID,
		"matterId":      exhibit.MatterID,
		"filename":      exhibit.Filename,
		"mimeType":      exhibit.MimeType,
		"sizeBytes":     exhibit.SizeBytes,
		"integrityHash": exhibit.IntegrityHash,
		"anchors":       out,
	})
}

// requireMatter refuses requests that reference a matter the workspace
// does not contain. Anchors and exhibits always hang off a matter; an
// unknown matter id is a caller error, not an empty result.
func (s *Server) requireMatter(c *gin.Context, workspaceID, matterID string) bool {
	_, err := s.matters.Get(c.Request.Context(), workspaceID, matterID)
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrNotFound) {
		writeErrorCode(c, http.StatusNotFound, "MATTER_NOT_FOUND", "matter not found")
		return false
	}
	s.logger.Error("matter lookup", zap.Error(err), zap.String("workspace_id", workspaceID))
	writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	return false
}

// anchorDecl is the wire shape of an anchor declared alongside an
// exhibit upload.
type anchorDecl struct {
	ID          string `json:"id"`
	PageNumber  int    `json:"pageNumber"`
	LineNumber  int    `json:"lineNumber"`
	Text        string `json:"text"`
	BoundingBox string `json:"boundingBox"`
}

type packetRequest struct {
	WorkspaceID string `json:"workspaceId"`
	MatterID    string `json:"matterId"`
}

func (s *Server) handleBuildPacket(c *gin.Context) {
	var req packetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	req.WorkspaceID = workspaceFrom(c, req.WorkspaceID)
	if req.WorkspaceID == "" || req.MatterID == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "workspaceId and matterId are required")
		return
	}
	if s.guard.Quarantined(req.WorkspaceID) {
		writeErrorCode(c, http.StatusLocked, codeWorkspaceQuarantined, "workspace audit chain is quarantined")
		return
	}
	if !s.requireMatter(c, req.WorkspaceID, req.MatterID) {
		return
	}

	archive, summary, err := s.packets.Build(c.Request.Context(), packets.BuildRequest{
		WorkspaceID: req.WorkspaceID,
		MatterID:    req.MatterID,
		ActorID:     actorFrom(c),
	})
	if err != nil {
		if errors.Is(err, domain.ErrIntegrityChainBroken) {
			writeErrorCode(c, http.StatusLocked, "INTEGRITY_QUARANTINED", "workspace audit chain failed verification")
			return
		}
		if errors.Is(err, domain.ErrPacketTampered) {
			writeErrorCode(c, http.StatusConflict, string(domain.ReasonPacketTampered), "stored evidence does not match its recorded digest")
			return
		}
		s.logger.Error("packet build", zap.Error(err), zap.String("workspace_id", req.WorkspaceID))
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	c.Header("X-Packet-Id", summary.PacketID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "proof_packet_"+summary.PacketID+".zip"))
	c.Data(http.StatusOK, "application/zip", archive)
}

func (s *Server) handleVerifyChain(c *gin.Context) {
	workspaceID := c.Param("workspace_id")
	status, err := s.guard.Verify(c.Request.Context(), workspaceID)
	if err != nil {
		if errors.Is(err, domain.ErrIntegrityChainBroken) {
			var broken *usecase.BrokenChainError
			detail := gin.H{"code": string(domain.ReasonChainBroken)}
			if errors.As(err, &broken) {
				detail["brokenAtSeq"] = broken.Seq
			}
			c.JSON(http.StatusLocked, detail)
			return
		}
		s.logger.Error("chain verify", zap.Error(err), zap.String("workspace_id", workspaceID))
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"eventCount": status.EventCount,
		"headHash":   status.HeadHash,
	})
}

func (s *Server) handleUnlockChain(c *gin.Context) {
	if !s.requireAdminKey(c) {
		return
	}
	workspaceID := c.Param("workspace_id")
	ctx := c.Request.Context()

	if err := s.guard.Unlock(ctx, workspaceID); err != nil {
		if errors.Is(err, domain.ErrIntegrityChainBroken) {
			writeErrorCode(c, http.StatusConflict, "CHAIN_STILL_BROKEN", "chain did not verify; workspace remains quarantined")
			return
		}
		s.logger.Error("chain unlock", zap.Error(err), zap.String("workspace_id", workspaceID))
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	if _, err := s.guard.Append(ctx, domain.AuditEvent{
		WorkspaceID: workspaceID,
		EventType:   domain.AuditEventChainUnlocked,
		ActorID:     actorFrom(c),
		Payload:     map[string]any{"unlockedBy": "admin-key"},
	}); err != nil {
		s.logger.Error("unlock audit event", zap.Error(err), zap.String("workspace_id", workspaceID))
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) allowRate(c *gin.Context, workspaceID, actorID string) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	decision, err := s.rateLimiter.Allow(c.Request.Context(), ratelimit.ChatKey(workspaceID, actorID), s.rateLimitRequests, s.rateLimitWindow)
	if err != nil {
		// limiter outage must not block verified releases
		s.logger.Warn("rate limiter unavailable", zap.Error(err))
		return true
	}
	if !decision.Allowed {
		c.Header("Retry-After", fmt.Sprintf("%d", int(s.rateLimitWindow.Seconds())))
		writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
		return false
	}
	return true
}

func buildGenerationPrompt(question string, anchorIDs []string, excerpts map[string]string) string {
	var b strings.Builder
	b.WriteString("You are a legal research assistant. Answer only from the evidence anchors below.\n")
	b.WriteString(`Reply with strict JSON only: {"summary": string, "claims": [{"text": string, "anchorIds": [string]}]}. `)
	b.WriteString("Every claim must cite the anchor ids that support it. ")
	b.WriteString("If the evidence does not answer the question, return an empty claims array.\n\n")

	b.WriteString("Evidence anchors:\n")
	for _, id := range anchorIDs {
		b.WriteString("- ")
		b.WriteString(id)
		if excerpt, ok := excerpts[id]; ok && excerpt != "" {
			b.WriteString(": ")
			b.WriteString(excerpt)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

// workspaceFrom prefers the X-Workspace-Id header; body and form
// fields are accepted for clients that scope per request instead.
func workspaceFrom(c *gin.Context, fallback string) string {
	if ws := strings.TrimSpace(c.GetHeader("X-Workspace-Id")); ws != "" {
		return ws
	}
	return fallback
}

func actorFrom(c *gin.Context) string {
	if actor := strings.TrimSpace(c.GetHeader("X-Actor-Id")); actor != "" {
		return actor
	}
	return "anonymous"
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." {
		name = "exhibit"
	}
	return name
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}
