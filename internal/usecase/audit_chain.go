package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexipro/internal/domain"
	"lexipro/internal/infra/crypto"
)

// GenesisHash derives the chain's genesis from the configured seed.
// Packets embed the hash, never the seed.
func GenesisHash(seed string) string {
	if seed == "" {
		seed = domain.DefaultGenesisSeed
	}
	return crypto.SHA256Hex([]byte(seed))
}

// BrokenChainError names the first event at which a workspace's chain
// stopped verifying.
type BrokenChainError struct {
	WorkspaceID string
	EventID     string
	Seq         int64
	Detail      string
}

func (e *BrokenChainError) Error() string {
	return fmt.Sprintf("audit chain broken for workspace %s at seq %d (event %s): %s", e.WorkspaceID, e.Seq, e.EventID, e.Detail)
}

func (e *BrokenChainError) Unwrap() error {
	return domain.ErrIntegrityChainBroken
}

// ChainStatus summarizes a verification walk.
type ChainStatus struct {
	EventCount int
	HeadHash   string
}

// VerifyWorkspaceChain replays a workspace's full event sequence and
// recomputes every link: seq continuity, prev-hash linkage, payload
// digest, and the chain hash itself. It fails on the first mismatch.
func VerifyWorkspaceChain(ctx context.Context, ledger AuditLedger, workspaceID, genesisHash string) (ChainStatus, error) {
	if ledger == nil {
		return ChainStatus{}, errors.New("audit ledger required")
	}
	events, err := ledger.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return ChainStatus{}, err
	}

	status := ChainStatus{}
	expectedSeq := int64(1)
	prevHash := genesisHash
	for _, event := range events {
		broken := func(detail string) (ChainStatus, error) {
			return status, &BrokenChainError{WorkspaceID: workspaceID, EventID: event.ID, Seq: event.Seq, Detail: detail}
		}
		if event.WorkspaceID != workspaceID {
			return broken("workspace mismatch")
		}
		if event.Seq != expectedSeq {
			return broken(fmt.Sprintf("expected seq %d got %d", expectedSeq, event.Seq))
		}
		if event.PrevEventHash != prevHash {
			return broken("prev hash mismatch")
		}
		payloadJSON, err := payloadBytes(event.Payload)
		if err != nil {
			return broken("payload not canonical bytes")
		}
		if crypto.SHA256Hex(payloadJSON) != event.PayloadHash {
			return broken("payload hash mismatch")
		}
		if event.CreatedAt.IsZero() {
			return broken("missing created_at")
		}
		expectedHash, err := ComputeChainHash(event)
		if err != nil {
			return broken(err.Error())
		}
		if expectedHash != event.EventHash {
			return broken("event hash mismatch")
		}
		prevHash = event.EventHash
		status.HeadHash = event.EventHash
		status.EventCount++
		expectedSeq++
	}
	return status, nil
}

func payloadBytes(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("payload must be canonical JSON bytes")
	}
}

// ComputeChainHash hashes the chain envelope of an event: version,
// workspace, seq, event type, payload digest, previous hash, and the
// RFC3339Nano creation time, in canonical JSON form.
func ComputeChainHash(event domain.AuditEvent) (string, error) {
	if event.WorkspaceID == "" || event.EventType == "" {
		return "", errors.New("audit event missing workspace_id or event_type")
	}
	if event.PayloadHash == "" || event.PrevEventHash == "" {
		return "", errors.New("audit event missing payload_hash or prev_event_hash")
	}
	envelope := map[string]any{
		"v":               domain.AuditChainVersion,
		"workspace_id":    event.WorkspaceID,
		"seq":             event.Seq,
		"event_type":      string(event.EventType),
		"payload_hash":    event.PayloadHash,
		"prev_event_hash": event.PrevEventHash,
		"created_at":      event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	canonical, err := crypto.CanonicalizeValue(envelope)
	if err != nil {
		return "", err
	}
	return crypto.SHA256Hex(canonical), nil
}
