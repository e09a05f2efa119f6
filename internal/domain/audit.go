package domain

import "time"

const (
	// AuditChainVersion is folded into every chain hash so a format
	// change can never silently validate against old events.
	AuditChainVersion = "lexipro_chain_v1"

	// DefaultGenesisSeed seeds the chain for deployments that have not
	// configured their own. Overridable via LEDGER_GENESIS_SEED.
	DefaultGenesisSeed = "lexipro-genesis"
)

type AuditEventType string

const (
	AuditEventExhibitUpload      AuditEventType = "EXHIBIT_UPLOAD"
	AuditEventClaimAnchored      AuditEventType = "AI_CHAT_ANCHORED"
	AuditEventChatReleased       AuditEventType = "AI_CHAT_RELEASED"
	AuditEventReleaseGateBlocked AuditEventType = "AI_RELEASE_GATE_BLOCKED"
	AuditEventPacketExported     AuditEventType = "PROOF_PACKET_EXPORTED"
	AuditEventChainUnlocked      AuditEventType = "AUDIT_CHAIN_UNLOCKED"
)

// AuditEvent is one link in a workspace's chain of custody. Events are
// created exactly once at append time and never mutated or deleted.
//
// EventHash = sha256 over the canonical JSON of {v, workspace_id, seq,
// event_type, payload_hash, prev_event_hash, created_at}. The first
// event of a workspace chains from the genesis hash (sha256 of the
// configured seed).
type AuditEvent struct {
	ID            string
	WorkspaceID   string
	Seq           int64
	EventType     AuditEventType
	ActorID       string
	Payload       any
	PayloadHash   string
	PrevEventHash string
	EventHash     string
	CreatedAt     time.Time
}
