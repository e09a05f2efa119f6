package domain

import "time"

const (
	PacketVersion      = "proof_packet_v1"
	PacketManifestPath = "manifest.json"
	PacketChainPath    = "ledger/chain_of_custody.json"
	PacketEvidenceDir  = "evidence"
)

// PacketManifest is the self-describing index of a proof packet. Every
// file in the archive except the manifest itself is listed with its
// sha256 digest; the genesis hash lets the chain be re-verified with no
// access to the live system.
type PacketManifest struct {
	Version     string          `json:"version"`
	PacketID    string          `json:"packet_id"`
	WorkspaceID string          `json:"workspace_id"`
	MatterID    string          `json:"matter_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	GenesisHash string          `json:"genesis_hash"`
	Entries     []ManifestEntry `json:"entries"`
}

type ManifestEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// PacketSummary describes a built packet to the caller.
type PacketSummary struct {
	PacketID    string
	WorkspaceID string
	MatterID    string
	EventCount  int
	FileCount   int
	SizeBytes   int64
}

// PacketVerification is the offline verifier's report. Failures name
// archive paths (or pseudo-paths for chain faults); a packet with any
// failure is never partially trusted.
type PacketVerification struct {
	OK       bool     `json:"ok"`
	Failures []string `json:"failures,omitempty"`
}
