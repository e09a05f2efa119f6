package usecase

import (
	"context"
	"fmt"
	"time"

	"lexipro/internal/domain"
)

// ReleaseGate decides whether a candidate answer may be shown to a
// human. One instance serves many requests; all per-request state lives
// in the run.
//
// State machine per request:
//
//	RECEIVED -> PARSING -> VERIFYING -> DECIDING -> {PROVEN | WITHHELD}
//
// The grounding verifier and the corroboration auditor run concurrently
// between VERIFYING and DECIDING; the gate blocks on both. Reaching a
// terminal state appends to the audit ledger exactly once; a decision
// that was not durably recorded is never returned to the caller.
type ReleaseGate struct {
	Verifier  *GroundingVerifier
	Auditor   *CorroborationAuditor
	Policy    ReleasePolicy
	Ledger    AuditLedger
	Clock     Clock
	Tolerance int
}

type GateRequest struct {
	WorkspaceID  string
	MatterID     string
	ActorID      string
	PromptKey    string
	RawCandidate []byte
	Evidence     EvidenceContext
}

type GateResult struct {
	State     domain.GateState
	Decision  domain.ReleaseDecision
	Candidate domain.CandidateResponse
}

// Run drives one request through the state machine. The returned error
// is reserved for infrastructure faults (resolver store down, ledger
// append failed); every model-level or claim-level failure resolves to
// a WITHHELD decision instead.
func (g *ReleaseGate) Run(ctx context.Context, req GateRequest) (GateResult, error) {
	start := g.now()

	// The decision and its audit record must not depend on the client
	// staying connected; verification runs to completion either way.
	ctx = context.WithoutCancel(ctx)

	state := domain.GateReceived

	state = domain.GateParsing
	candidate, err := ParseCandidate(req.RawCandidate)
	if err != nil {
		decision := withheldDecision(domain.VerdictCounts{}, start, g.now(), domain.ReasonMalformedResponse)
		if err := g.recordBlocked(ctx, req, decision); err != nil {
			return GateResult{State: state}, err
		}
		return GateResult{State: domain.GateWithheld, Decision: decision}, nil
	}

	state = domain.GateVerifying
	var (
		verdicts    []domain.ClaimVerdict
		verifierErr error
		report      domain.CorroborationReport
	)
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		report = g.Auditor.Corroborate(ctx, candidate, req.Evidence)
	}()
	verdicts, verifierErr = g.Verifier.Verify(ctx, candidate, req.WorkspaceID, req.MatterID)
	<-auditDone
	if verifierErr != nil {
		return GateResult{State: state}, fmt.Errorf("grounding verification: %w", verifierErr)
	}

	state = domain.GateDeciding
	counts := domain.CountVerdicts(verdicts)
	allow, reasons, policyErr := g.Policy.Evaluate(ctx, counts, report, g.Tolerance)
	if policyErr != nil {
		// Policy faults fail closed: nothing is released on a decision
		// the policy engine could not render.
		allow = false
		reasons = []domain.ReasonCode{domain.ReasonAuditMismatch}
	}

	if !allow {
		decision := withheldDecision(counts, start, g.now(), reasons...)
		if err := g.recordBlocked(ctx, req, decision); err != nil {
			return GateResult{State: state}, err
		}
		return GateResult{State: domain.GateWithheld, Decision: decision, Candidate: candidate}, nil
	}

	decision := domain.ReleaseDecision{
		Status:          domain.StatusProven,
		AnchoredCount:   counts.Anchored,
		UnanchoredCount: counts.Unanchored,
		TotalClaims:     counts.Total,
		Duration:        g.now().Sub(start),
	}
	if err := g.recordProven(ctx, req, decision); err != nil {
		return GateResult{State: state}, err
	}
	return GateResult{State: domain.GateProven, Decision: decision, Candidate: candidate}, nil
}

func withheldDecision(counts domain.VerdictCounts, start, end time.Time, reasons ...domain.ReasonCode) domain.ReleaseDecision {
	return domain.ReleaseDecision{
		Status:          domain.StatusWithheld,
		AnchoredCount:   counts.Anchored,
		UnanchoredCount: counts.Unanchored,
		TotalClaims:     counts.Total,
		Reasons:         reasons,
		Duration:        end.Sub(start),
	}
}

func (g *ReleaseGate) recordProven(ctx context.Context, req GateRequest, decision domain.ReleaseDecision) error {
	anchored := domain.AuditEvent{
		WorkspaceID: req.WorkspaceID,
		EventType:   domain.AuditEventClaimAnchored,
		ActorID:     req.ActorID,
		Payload: RedactPayload(map[string]any{
			"promptKey":     req.PromptKey,
			"matterId":      req.MatterID,
			"totalClaims":   decision.TotalClaims,
			"anchoredCount": decision.AnchoredCount,
		}),
	}
	if _, err := g.Ledger.Append(ctx, anchored); err != nil {
		return fmt.Errorf("record anchored claims: %w", err)
	}
	released := domain.AuditEvent{
		WorkspaceID: req.WorkspaceID,
		EventType:   domain.AuditEventChatReleased,
		ActorID:     req.ActorID,
		Payload: RedactPayload(map[string]any{
			"promptKey":       req.PromptKey,
			"matterId":        req.MatterID,
			"totalClaims":     decision.TotalClaims,
			"anchoredCount":   decision.AnchoredCount,
			"unanchoredCount": decision.UnanchoredCount,
			"durationMs":      decision.Duration.Milliseconds(),
		}),
	}
	if _, err := g.Ledger.Append(ctx, released); err != nil {
		return fmt.Errorf("record release: %w", err)
	}
	return nil
}

func (g *ReleaseGate) recordBlocked(ctx context.Context, req GateRequest, decision domain.ReleaseDecision) error {
	reasons := make([]any, 0, len(decision.Reasons))
	for _, reason := range decision.Reasons {
		reasons = append(reasons, string(reason))
	}
	blocked := domain.AuditEvent{
		WorkspaceID: req.WorkspaceID,
		EventType:   domain.AuditEventReleaseGateBlocked,
		ActorID:     req.ActorID,
		Payload: RedactPayload(map[string]any{
			"promptKey":       req.PromptKey,
			"matterId":        req.MatterID,
			"totalClaims":     decision.TotalClaims,
			"anchoredCount":   decision.AnchoredCount,
			"unanchoredCount": decision.UnanchoredCount,
			"reasons":         reasons,
			"durationMs":      decision.Duration.Milliseconds(),
		}),
	}
	if _, err := g.Ledger.Append(ctx, blocked); err != nil {
		return fmt.Errorf("record blocked release: %w", err)
	}
	return nil
}

func (g *ReleaseGate) now() time.Time {
	if g != nil && g.Clock != nil {
		return g.Clock()
	}
	return time.Now().UTC()
}
