package usecase

import (
	"context"
	"errors"
	"testing"

	"lexipro/internal/domain"
)

type memoryAnchorResolver struct {
	anchors map[string]domain.Anchor
	// ids that exist but belong to a different workspace or matter
	foreign map[string]struct{}
	failOn  string
}

func (r *memoryAnchorResolver) Resolve(ctx context.Context, anchorID, workspaceID, matterID string) (domain.Anchor, error) {
	if anchorID == r.failOn {
		return domain.Anchor{}, errors.New("store unavailable")
	}
	if _, ok := r.foreign[anchorID]; ok {
		return domain.Anchor{}, domain.ErrCrossTenant
	}
	anchor, ok := r.anchors[anchorID]
	if !ok {
		return domain.Anchor{}, domain.ErrNotFound
	}
	return anchor, nil
}

func testAnchor(id string) domain.Anchor {
	return domain.Anchor{
		ID:          id,
		ExhibitID:   "exh-1",
		WorkspaceID: "ws-1",
		MatterID:    "matter-1",
		PageNumber:  3,
		Text:        "signed on 2024-03-01",
	}
}

func claimCiting(ids ...string) domain.Claim {
	return domain.Claim{Text: "claim", AnchorIDs: ids}
}

func TestGroundingVerifier_Verdicts(t *testing.T) {
	resolver := &memoryAnchorResolver{
		anchors: map[string]domain.Anchor{
			"anc-1": testAnchor("anc-1"),
			"anc-2": testAnchor("anc-2"),
		},
		foreign: map[string]struct{}{"anc-other-tenant": {}},
	}
	verifier := NewGroundingVerifier(resolver)

	candidate := domain.CandidateResponse{Claims: []domain.Claim{
		claimCiting("anc-1"),
		claimCiting("anc-missing"),
		claimCiting("anc-missing", "anc-2"),
		claimCiting("anc-other-tenant"),
		claimCiting("anc-other-tenant", "anc-1"),
		claimCiting(),
	}}

	verdicts, err := verifier.Verify(context.Background(), candidate, "ws-1", "matter-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	want := []domain.VerdictOutcome{
		domain.VerdictAnchored,
		domain.VerdictUnresolved,
		domain.VerdictAnchored,
		domain.VerdictCrossTenant,
		domain.VerdictAnchored,
		domain.VerdictUnresolved,
	}
	if len(verdicts) != len(want) {
		t.Fatalf("expected %d verdicts, got %d", len(want), len(verdicts))
	}
	for i, outcome := range want {
		if verdicts[i].Outcome != outcome {
			t.Fatalf("claim %d: expected %s, got %s", i, outcome, verdicts[i].Outcome)
		}
		if verdicts[i].ClaimIndex != i {
			t.Fatalf("claim %d: wrong index %d", i, verdicts[i].ClaimIndex)
		}
	}
	if verdicts[0].AnchorID != "anc-1" {
		t.Fatalf("anchored verdict should carry the resolving anchor id, got %q", verdicts[0].AnchorID)
	}
}

func TestGroundingVerifier_EmptyAnchorTextIsUnresolved(t *testing.T) {
	empty := testAnchor("anc-blank")
	empty.Text = ""
	resolver := &memoryAnchorResolver{anchors: map[string]domain.Anchor{"anc-blank": empty}}
	verifier := NewGroundingVerifier(resolver)

	verdicts, err := verifier.Verify(context.Background(), domain.CandidateResponse{
		Claims: []domain.Claim{claimCiting("anc-blank")},
	}, "ws-1", "matter-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verdicts[0].Outcome != domain.VerdictUnresolved {
		t.Fatalf("empty anchor must not ground a claim, got %s", verdicts[0].Outcome)
	}
}

func TestGroundingVerifier_ResolverFaultPropagates(t *testing.T) {
	resolver := &memoryAnchorResolver{failOn: "anc-1"}
	verifier := NewGroundingVerifier(resolver)

	_, err := verifier.Verify(context.Background(), domain.CandidateResponse{
		Claims: []domain.Claim{claimCiting("anc-1")},
	}, "ws-1", "matter-1")
	if err == nil {
		t.Fatal("expected resolver fault to propagate")
	}
}

func TestCountVerdicts_CrossTenantCountsAsUnanchored(t *testing.T) {
	counts := domain.CountVerdicts([]domain.ClaimVerdict{
		{Outcome: domain.VerdictAnchored},
		{Outcome: domain.VerdictUnresolved},
		{Outcome: domain.VerdictCrossTenant},
	})
	if counts.Total != 3 || counts.Anchored != 1 || counts.Unanchored != 2 || counts.CrossTenant != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}
