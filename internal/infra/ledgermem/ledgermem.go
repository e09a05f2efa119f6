// Package ledgermem is the in-memory audit ledger used when no
// postgres DSN is configured and throughout the test suite. It applies
// the same chain discipline as the database ledger: per-workspace
// sequence assignment under a lock, canonical payload bytes, and the
// shared chain hash.
package ledgermem

import (
	"context"
	"errors"
	"sync"
	"time"

	"lexipro/internal/domain"
	cryptoinfra "lexipro/internal/infra/crypto"
	"lexipro/internal/usecase"

	"github.com/google/uuid"
)

type Ledger struct {
	genesisHash string

	mu     sync.Mutex
	chains map[string][]domain.AuditEvent
}

func New(genesisHash string) *Ledger {
	return &Ledger{
		genesisHash: genesisHash,
		chains:      make(map[string][]domain.AuditEvent),
	}
}

func (l *Ledger) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if event.WorkspaceID == "" {
		return domain.AuditEvent{}, errors.New("workspace_id is required")
	}
	if event.EventType == "" {
		return domain.AuditEvent{}, errors.New("event_type is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.CreatedAt = event.CreatedAt.UTC()
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}

	payloadJSON, err := cryptoinfra.CanonicalizeValue(event.Payload)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.Payload = payloadJSON
	event.PayloadHash = cryptoinfra.SHA256Hex(payloadJSON)

	l.mu.Lock()
	defer l.mu.Unlock()

	chain := l.chains[event.WorkspaceID]
	prevHash := l.genesisHash
	if len(chain) > 0 {
		prevHash = chain[len(chain)-1].EventHash
	}
	event.Seq = int64(len(chain)) + 1
	event.PrevEventHash = prevHash

	eventHash, err := usecase.ComputeChainHash(event)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.EventHash = eventHash

	l.chains[event.WorkspaceID] = append(chain, event)
	return event, nil
}

func (l *Ledger) ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	chain := l.chains[workspaceID]
	out := make([]domain.AuditEvent, len(chain))
	copy(out, chain)
	return out, nil
}
