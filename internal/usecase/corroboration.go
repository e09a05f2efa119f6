package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lexipro/internal/domain"
)

// CorroborationAuditor is the independent second pass of the release
// gate. It re-derives aggregate grounding counts through its own model
// invocation and never sees the grounding verifier's verdicts; the two
// results meet only inside the release gate.
type CorroborationAuditor struct {
	Model   ModelClient
	Timeout time.Duration
}

func NewCorroborationAuditor(model ModelClient, timeout time.Duration) *CorroborationAuditor {
	return &CorroborationAuditor{Model: model, Timeout: timeout}
}

// EvidenceContext is the anchor inventory handed to the auditor: ids
// and excerpts only, no verdicts.
type EvidenceContext struct {
	AnchorIDs []string
	Excerpts  map[string]string
}

type corroborationReply struct {
	Admissible      *bool `json:"admissible"`
	AnchoredCount   *int  `json:"anchoredCount"`
	UnanchoredCount *int  `json:"unanchoredCount"`
	TotalClaims     *int  `json:"totalClaims"`
}

// Corroborate runs the audit pass. Every failure mode (model error,
// timeout, malformed or inconsistent reply) collapses to an
// inadmissible report. The gate fails closed; it never fails open.
func (a *CorroborationAuditor) Corroborate(ctx context.Context, candidate domain.CandidateResponse, evidence EvidenceContext) domain.CorroborationReport {
	failed := domain.CorroborationReport{Admissible: false}
	if a == nil || a.Model == nil {
		return failed
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := a.Model.Generate(callCtx, buildAuditPrompt(candidate, evidence))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			failed.TimedOut = true
		}
		return failed
	}

	report, err := parseCorroboration([]byte(raw))
	if err != nil {
		return failed
	}
	return report
}

func parseCorroboration(raw []byte) (domain.CorroborationReport, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var reply corroborationReply
	if err := dec.Decode(&reply); err != nil {
		return domain.CorroborationReport{}, fmt.Errorf("decode corroboration reply: %w", err)
	}
	if reply.Admissible == nil || reply.AnchoredCount == nil || reply.UnanchoredCount == nil || reply.TotalClaims == nil {
		return domain.CorroborationReport{}, errors.New("corroboration reply missing fields")
	}
	report := domain.CorroborationReport{
		Admissible:      *reply.Admissible,
		AnchoredCount:   *reply.AnchoredCount,
		UnanchoredCount: *reply.UnanchoredCount,
		TotalClaims:     *reply.TotalClaims,
	}
	if report.AnchoredCount < 0 || report.UnanchoredCount < 0 || report.TotalClaims < 0 {
		return domain.CorroborationReport{}, errors.New("corroboration counts negative")
	}
	if report.AnchoredCount+report.UnanchoredCount != report.TotalClaims {
		return domain.CorroborationReport{}, errors.New("corroboration counts do not sum")
	}
	return report, nil
}

// buildAuditPrompt frames the audit as a count-only task. The prompt
// deliberately contains no verdicts and no mention of the first pass.
func buildAuditPrompt(candidate domain.CandidateResponse, evidence EvidenceContext) string {
	var b strings.Builder
	b.WriteString("You are an evidence auditor for a legal case file.\n")
	b.WriteString("You will receive a list of factual claims, each citing evidence anchor ids, ")
	b.WriteString("and the inventory of anchor ids that actually exist with their excerpts.\n")
	b.WriteString("Count how many claims are fully supported by existing anchors (anchored) ")
	b.WriteString("and how many are not (unanchored).\n")
	b.WriteString(`Reply with strict JSON only: {"admissible": bool, "anchoredCount": int, "unanchoredCount": int, "totalClaims": int}. `)
	b.WriteString("admissible is true only when every claim is anchored.\n\n")

	b.WriteString("Existing anchors:\n")
	for _, id := range evidence.AnchorIDs {
		b.WriteString("- ")
		b.WriteString(id)
		if excerpt, ok := evidence.Excerpts[id]; ok && excerpt != "" {
			b.WriteString(": ")
			b.WriteString(excerpt)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nClaims:\n")
	for i, claim := range candidate.Claims {
		fmt.Fprintf(&b, "%d. %s (cites: %s)\n", i+1, claim.Text, strings.Join(claim.AnchorIDs, ", "))
	}
	return b.String()
}
