package policyrego

import (
	"context"
	"reflect"
	"testing"

	"lexipro/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func baseCounts() domain.VerdictCounts {
	return domain.VerdictCounts{Total: 3, Anchored: 3}
}

func baseReport() domain.CorroborationReport {
	return domain.CorroborationReport{
		Admissible:    true,
		AnchoredCount: 3,
		TotalClaims:   3,
	}
}

func TestEngineAllowsFullyGrounded(t *testing.T) {
	engine := newTestEngine(t)

	allow, reasons, err := engine.Evaluate(context.Background(), baseCounts(), baseReport(), 0)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow, got reasons %v", reasons)
	}
	if len(reasons) != 0 {
		t.Fatalf("expected empty deny list, got %v", reasons)
	}
}

func TestEngineDeterministic(t *testing.T) {
	engine := newTestEngine(t)
	counts := domain.VerdictCounts{Total: 2, Anchored: 1, Unanchored: 1, CrossTenant: 1}
	report := domain.CorroborationReport{Admissible: false, AnchoredCount: 1, UnanchoredCount: 1, TotalClaims: 2}

	_, first, err := engine.Evaluate(context.Background(), counts, report, 0)
	if err != nil {
		t.Fatalf("evaluate first: %v", err)
	}
	_, second, err := engine.Evaluate(context.Background(), counts, report, 0)
	if err != nil {
		t.Fatalf("evaluate second: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected deterministic deny ordering: %v vs %v", first, second)
	}
}

func TestEngineDenies(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name      string
		counts    domain.VerdictCounts
		report    domain.CorroborationReport
		tolerance int
		want      []domain.ReasonCode
	}{
		{
			name:   "zero claims",
			counts: domain.VerdictCounts{},
			report: domain.CorroborationReport{Admissible: true},
			want:   []domain.ReasonCode{domain.ReasonUnanchoredCitation},
		},
		{
			name:   "unanchored claim",
			counts: domain.VerdictCounts{Total: 2, Anchored: 1, Unanchored: 1},
			report: domain.CorroborationReport{Admissible: true, AnchoredCount: 1, UnanchoredCount: 1, TotalClaims: 2},
			want:   []domain.ReasonCode{domain.ReasonUnanchoredCitation},
		},
		{
			name:   "cross tenant citation",
			counts: domain.VerdictCounts{Total: 2, Anchored: 1, Unanchored: 1, CrossTenant: 1},
			report: domain.CorroborationReport{Admissible: true, AnchoredCount: 1, UnanchoredCount: 1, TotalClaims: 2},
			want:   []domain.ReasonCode{domain.ReasonCrossTenant, domain.ReasonUnanchoredCitation},
		},
		{
			name:   "inadmissible report",
			counts: baseCounts(),
			report: domain.CorroborationReport{Admissible: false, AnchoredCount: 3, TotalClaims: 3},
			want:   []domain.ReasonCode{domain.ReasonAuditMismatch},
		},
		{
			name:   "corroboration timeout",
			counts: baseCounts(),
			report: domain.CorroborationReport{TimedOut: true},
			want:   []domain.ReasonCode{domain.ReasonCorroborationTimeout},
		},
		{
			name:   "count disagreement beyond tolerance",
			counts: baseCounts(),
			report: domain.CorroborationReport{Admissible: true, AnchoredCount: 2, UnanchoredCount: 1, TotalClaims: 3},
			want:   []domain.ReasonCode{domain.ReasonAuditMismatch},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allow, reasons, err := engine.Evaluate(context.Background(), tt.counts, tt.report, tt.tolerance)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if allow {
				t.Fatalf("expected deny")
			}
			if !reflect.DeepEqual(reasons, tt.want) {
				t.Fatalf("expected reasons %v, got %v", tt.want, reasons)
			}
		})
	}
}

func TestEngineToleranceAbsorbsCountDrift(t *testing.T) {
	engine := newTestEngine(t)
	report := domain.CorroborationReport{Admissible: true, AnchoredCount: 2, UnanchoredCount: 1, TotalClaims: 3}

	allow, reasons, err := engine.Evaluate(context.Background(), baseCounts(), report, 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !allow {
		t.Fatalf("tolerance 1 should absorb a one-count drift, got %v", reasons)
	}
}
