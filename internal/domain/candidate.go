package domain

// Claim is one atomic factual assertion extracted from a model answer,
// together with the anchor ids it cites.
type Claim struct {
	Text      string   `json:"text"`
	AnchorIDs []string `json:"anchorIds"`
}

// CandidateResponse is the normalized shape of a model answer after
// strict parsing. It lives for the duration of one release decision.
type CandidateResponse struct {
	Summary string  `json:"summary"`
	Claims  []Claim `json:"claims"`
}

type VerdictOutcome string

const (
	VerdictAnchored    VerdictOutcome = "ANCHORED"
	VerdictUnresolved  VerdictOutcome = "UNRESOLVED"
	VerdictCrossTenant VerdictOutcome = "CROSS_TENANT"
)

// ClaimVerdict is the grounding verifier's finding for a single claim.
// A claim is ANCHORED when at least one cited anchor resolves in-scope;
// CROSS_TENANT when a citation resolved but in the wrong scope;
// UNRESOLVED otherwise (including claims with zero citations).
type ClaimVerdict struct {
	ClaimIndex int
	Outcome    VerdictOutcome
	// AnchorID is the citation that determined the outcome. Internal
	// only: it is never copied into user-visible error payloads.
	AnchorID string
}

// VerdictCounts aggregates verdicts for the release decision.
type VerdictCounts struct {
	Total       int
	Anchored    int
	Unanchored  int
	CrossTenant int
}

func CountVerdicts(verdicts []ClaimVerdict) VerdictCounts {
	counts := VerdictCounts{Total: len(verdicts)}
	for _, v := range verdicts {
		switch v.Outcome {
		case VerdictAnchored:
			counts.Anchored++
		case VerdictCrossTenant:
			counts.CrossTenant++
			counts.Unanchored++
		default:
			counts.Unanchored++
		}
	}
	return counts
}
