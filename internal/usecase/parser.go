package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"lexipro/internal/domain"
)

type rawCandidate struct {
	Summary *string    `json:"summary"`
	Claims  []rawClaim `json:"claims"`
}

type rawClaim struct {
	Text      *string   `json:"text"`
	AnchorIDs []*string `json:"anchorIds"`
}

// ParseCandidate validates and normalizes raw model output into a
// CandidateResponse. Any deviation from the expected shape fails with
// domain.ErrMalformedResponse; there is no best-effort partial parse.
// A response the parser cannot fully account for is withheld upstream.
func ParseCandidate(raw []byte) (domain.CandidateResponse, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var parsed rawCandidate
	if err := dec.Decode(&parsed); err != nil {
		return domain.CandidateResponse{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if err := ensureNoTrailing(dec); err != nil {
		return domain.CandidateResponse{}, err
	}
	if parsed.Summary == nil {
		return domain.CandidateResponse{}, fmt.Errorf("%w: missing summary", domain.ErrMalformedResponse)
	}
	if parsed.Claims == nil {
		return domain.CandidateResponse{}, fmt.Errorf("%w: missing claims", domain.ErrMalformedResponse)
	}

	out := domain.CandidateResponse{
		Summary: *parsed.Summary,
		Claims:  make([]domain.Claim, 0, len(parsed.Claims)),
	}
	for i, claim := range parsed.Claims {
		if claim.Text == nil || strings.TrimSpace(*claim.Text) == "" {
			return domain.CandidateResponse{}, fmt.Errorf("%w: claim %d has empty text", domain.ErrMalformedResponse, i)
		}
		if claim.AnchorIDs == nil {
			return domain.CandidateResponse{}, fmt.Errorf("%w: claim %d missing anchorIds", domain.ErrMalformedResponse, i)
		}
		ids := make([]string, 0, len(claim.AnchorIDs))
		for j, id := range claim.AnchorIDs {
			if id == nil {
				return domain.CandidateResponse{}, fmt.Errorf("%w: claim %d anchorIds[%d] is null", domain.ErrMalformedResponse, i, j)
			}
			trimmed := strings.TrimSpace(*id)
			if trimmed == "" {
				continue
			}
			ids = append(ids, trimmed)
		}
		out.Claims = append(out.Claims, domain.Claim{
			Text:      normalizeClaimText(*claim.Text),
			AnchorIDs: ids,
		})
	}
	return out, nil
}

func normalizeClaimText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func ensureNoTrailing(dec *json.Decoder) error {
	var extra any
	if err := dec.Decode(&extra); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return fmt.Errorf("%w: trailing data after candidate", domain.ErrMalformedResponse)
}
