package usecase

import (
	"context"
	"time"

	"lexipro/internal/domain"
)

type Clock func() time.Time

// AnchorResolver looks up evidence anchors scoped to a workspace and
// matter. Implementations return domain.ErrNotFound for unknown ids and
// domain.ErrCrossTenant for anchors that exist outside the request
// scope.
type AnchorResolver interface {
	Resolve(ctx context.Context, anchorID, workspaceID, matterID string) (domain.Anchor, error)
}

// ModelClient is the external language-model collaborator. The pipeline
// never trusts its output: candidates go through the strict parser and
// the grounding verifier, corroboration replies through their own
// strict parse.
type ModelClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AuditLedger is the single writer of audit events. Append assigns seq,
// prev-hash and hash under a per-workspace critical section; two
// concurrent appends for one workspace can never share a prev-hash.
type AuditLedger interface {
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.AuditEvent, error)
}

// ExhibitReader provides the evidence files included in proof packets.
type ExhibitReader interface {
	ListByMatter(ctx context.Context, workspaceID, matterID string) ([]domain.Exhibit, error)
}

// FileStorage is the exhibit blob collaborator. Delete is best-effort
// cleanup; Download feeds packet building.
type FileStorage interface {
	Upload(ctx context.Context, key string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ReleasePolicy turns verification results into an allow/deny decision.
// The count tolerance lives inside the policy, not in gate code.
type ReleasePolicy interface {
	Evaluate(ctx context.Context, counts domain.VerdictCounts, report domain.CorroborationReport, tolerance int) (allow bool, reasons []domain.ReasonCode, err error)
}
