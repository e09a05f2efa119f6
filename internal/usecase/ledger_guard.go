package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lexipro/internal/domain"
)

// LedgerGuard wraps an AuditLedger with workspace quarantine. Once a
// chain fails verification the workspace stops accepting appends;
// recording further decisions on a broken chain would itself be a
// correctness violation. Only an explicit Unlock (after external
// remediation) re-opens it.
type LedgerGuard struct {
	ledger      AuditLedger
	genesisHash string

	mu          sync.RWMutex
	quarantined map[string]struct{}
}

func NewLedgerGuard(ledger AuditLedger, genesisHash string) *LedgerGuard {
	return &LedgerGuard{
		ledger:      ledger,
		genesisHash: genesisHash,
		quarantined: make(map[string]struct{}),
	}
}

func (g *LedgerGuard) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if g.Quarantined(event.WorkspaceID) {
		// carries both sentinels: callers match either the quarantine
		// or the underlying chain fault
		return domain.AuditEvent{}, fmt.Errorf("append to workspace %s: %w: %w", event.WorkspaceID, domain.ErrWorkspaceQuarantined, domain.ErrIntegrityChainBroken)
	}
	return g.ledger.Append(ctx, event)
}

func (g *LedgerGuard) ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.AuditEvent, error) {
	return g.ledger.ListByWorkspace(ctx, workspaceID)
}

// Verify re-walks the workspace chain and quarantines the workspace on
// the first mismatch.
func (g *LedgerGuard) Verify(ctx context.Context, workspaceID string) (ChainStatus, error) {
	status, err := VerifyWorkspaceChain(ctx, g.ledger, workspaceID, g.genesisHash)
	if err != nil && errors.Is(err, domain.ErrIntegrityChainBroken) {
		g.mu.Lock()
		g.quarantined[workspaceID] = struct{}{}
		g.mu.Unlock()
	}
	return status, err
}

func (g *LedgerGuard) Quarantined(workspaceID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.quarantined[workspaceID]
	return ok
}

// Unlock clears quarantine after remediation. It re-verifies first: a
// still-broken chain stays locked.
func (g *LedgerGuard) Unlock(ctx context.Context, workspaceID string) error {
	if _, err := VerifyWorkspaceChain(ctx, g.ledger, workspaceID, g.genesisHash); err != nil {
		return err
	}
	g.mu.Lock()
	delete(g.quarantined, workspaceID)
	g.mu.Unlock()
	return nil
}

func (g *LedgerGuard) GenesisHash() string {
	return g.genesisHash
}
