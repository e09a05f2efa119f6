package usecase

import (
	"context"
	"errors"
	"fmt"

	"lexipro/internal/domain"
)

// GroundingVerifier renders one verdict per claim by resolving every
// cited anchor against the evidence store. It is a pure function of the
// candidate and the resolver's contents: no writes, no model calls.
type GroundingVerifier struct {
	Resolver AnchorResolver
}

func NewGroundingVerifier(resolver AnchorResolver) *GroundingVerifier {
	return &GroundingVerifier{Resolver: resolver}
}

// Verify walks the candidate's claims in order. A claim is ANCHORED as
// soon as one citation resolves in-scope and non-empty; CROSS_TENANT if
// no citation anchored it but at least one resolved outside the request
// scope; UNRESOLVED otherwise, including claims that cite nothing.
func (v *GroundingVerifier) Verify(ctx context.Context, candidate domain.CandidateResponse, workspaceID, matterID string) ([]domain.ClaimVerdict, error) {
	if v == nil || v.Resolver == nil {
		return nil, errors.New("anchor resolver required")
	}
	verdicts := make([]domain.ClaimVerdict, 0, len(candidate.Claims))
	for i, claim := range candidate.Claims {
		verdict, err := v.verdictFor(ctx, i, claim, workspaceID, matterID)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, verdict)
	}
	return verdicts, nil
}

func (v *GroundingVerifier) verdictFor(ctx context.Context, index int, claim domain.Claim, workspaceID, matterID string) (domain.ClaimVerdict, error) {
	if len(claim.AnchorIDs) == 0 {
		return domain.ClaimVerdict{ClaimIndex: index, Outcome: domain.VerdictUnresolved}, nil
	}

	crossTenantID := ""
	for _, anchorID := range claim.AnchorIDs {
		anchor, err := v.Resolver.Resolve(ctx, anchorID, workspaceID, matterID)
		switch {
		case err == nil:
			if anchor.Empty() {
				continue
			}
			return domain.ClaimVerdict{ClaimIndex: index, Outcome: domain.VerdictAnchored, AnchorID: anchorID}, nil
		case errors.Is(err, domain.ErrCrossTenant):
			crossTenantID = anchorID
		case errors.Is(err, domain.ErrNotFound):
			// fabricated or stale citation, keep looking
		default:
			return domain.ClaimVerdict{}, fmt.Errorf("resolve anchor for claim %d: %w", index, err)
		}
	}

	if crossTenantID != "" {
		return domain.ClaimVerdict{ClaimIndex: index, Outcome: domain.VerdictCrossTenant, AnchorID: crossTenantID}, nil
	}
	return domain.ClaimVerdict{ClaimIndex: index, Outcome: domain.VerdictUnresolved}, nil
}
