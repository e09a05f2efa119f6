package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrCrossTenant          = errors.New("anchor outside request scope")
	ErrMalformedResponse    = errors.New("malformed candidate response")
	ErrIntegrityChainBroken = errors.New("audit chain integrity broken")
	ErrWorkspaceQuarantined = errors.New("workspace quarantined")
	ErrPacketTampered       = errors.New("proof packet tampered")
)

// ReasonCode is the stable vocabulary surfaced to callers on WITHHELD
// decisions and verification failures. Raw anchor ids never appear next
// to these codes in user-visible payloads.
type ReasonCode string

const (
	ReasonMalformedResponse    ReasonCode = "MALFORMED_RESPONSE"
	ReasonUnanchoredCitation   ReasonCode = "UNANCHORED_CITATION"
	ReasonCrossTenant          ReasonCode = "CROSS_TENANT_CITATION"
	ReasonAuditMismatch        ReasonCode = "AUDIT_MISMATCH"
	ReasonCorroborationTimeout ReasonCode = "CORROBORATION_TIMEOUT"
	ReasonEndpointDisabled     ReasonCode = "UNGROUNDED_ENDPOINT_DISABLED"
	ReasonChainBroken          ReasonCode = "INTEGRITY_CHAIN_BROKEN"
	ReasonPacketTampered       ReasonCode = "PACKET_TAMPERED"
)
