// Package packets builds and verifies proof packets: self-contained
// zip archives holding a matter's chain of custody and evidence files,
// indexed by a digest manifest. A packet verifies offline with nothing
// but the archive bytes.
package packets

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"lexipro/internal/domain"
	cryptoinfra "lexipro/internal/infra/crypto"
	"lexipro/internal/usecase"

	"github.com/google/uuid"
)

type Builder struct {
	Ledger   usecase.AuditLedger
	Exhibits usecase.ExhibitReader
	Storage  usecase.FileStorage
	Genesis  string
	Clock    usecase.Clock
}

type BuildRequest struct {
	WorkspaceID string
	MatterID    string
	ActorID     string
}

// Build assembles a packet for one matter. The workspace chain is
// verified before anything is archived; a packet is never cut from a
// chain that does not stand on its own. The export itself is recorded
// as a ledger event after the archive bytes are fixed, so the packet
// describes the chain as it was at build time.
func (b *Builder) Build(ctx context.Context, req BuildRequest) ([]byte, domain.PacketSummary, error) {
	if req.WorkspaceID == "" || req.MatterID == "" {
		return nil, domain.PacketSummary{}, errors.New("workspace_id and matter_id are required")
	}

	if _, err := usecase.VerifyWorkspaceChain(ctx, b.Ledger, req.WorkspaceID, b.Genesis); err != nil {
		return nil, domain.PacketSummary{}, err
	}

	events, err := b.Ledger.ListByWorkspace(ctx, req.WorkspaceID)
	if err != nil {
		return nil, domain.PacketSummary{}, err
	}
	chainJSON, err := marshalChain(events)
	if err != nil {
		return nil, domain.PacketSummary{}, err
	}

	exhibits, err := b.Exhibits.ListByMatter(ctx, req.WorkspaceID, req.MatterID)
	if err != nil {
		return nil, domain.PacketSummary{}, err
	}

	files := map[string][]byte{
		domain.PacketChainPath: chainJSON,
	}
	for _, exhibit := range exhibits {
		data, err := b.Storage.Download(ctx, exhibit.StorageKey)
		if err != nil {
			return nil, domain.PacketSummary{}, fmt.Errorf("download exhibit %s: %w", exhibit.ID, err)
		}
		if got := cryptoinfra.SHA256Hex(data); exhibit.IntegrityHash != "" && got != exhibit.IntegrityHash {
			return nil, domain.PacketSummary{}, fmt.Errorf("exhibit %s: %w", exhibit.ID, domain.ErrPacketTampered)
		}
		files[evidencePath(exhibit)] = data
	}

	packetID := uuid.NewString()
	manifest := domain.PacketManifest{
		Version:     domain.PacketVersion,
		PacketID:    packetID,
		WorkspaceID: req.WorkspaceID,
		MatterID:    req.MatterID,
		GeneratedAt: b.now(),
		GenesisHash: b.Genesis,
		Entries:     manifestEntries(files),
	}
	manifestJSON, err := cryptoinfra.CanonicalizeValue(manifest)
	if err != nil {
		return nil, domain.PacketSummary{}, err
	}

	archive, err := writeArchive(manifestJSON, files)
	if err != nil {
		return nil, domain.PacketSummary{}, err
	}

	_, err = b.Ledger.Append(ctx, domain.AuditEvent{
		WorkspaceID: req.WorkspaceID,
		EventType:   domain.AuditEventPacketExported,
		ActorID:     req.ActorID,
		Payload: map[string]any{
			"packetId":   packetID,
			"matterId":   req.MatterID,
			"eventCount": len(events),
			"fileCount":  len(files),
		},
	})
	if err != nil {
		return nil, domain.PacketSummary{}, fmt.Errorf("record packet export: %w", err)
	}

	summary := domain.PacketSummary{
		PacketID:    packetID,
		WorkspaceID: req.WorkspaceID,
		MatterID:    req.MatterID,
		EventCount:  len(events),
		FileCount:   len(files),
		SizeBytes:   int64(len(archive)),
	}
	return archive, summary, nil
}

func (b *Builder) now() time.Time {
	if b.Clock != nil {
		return b.Clock()
	}
	return time.Now().UTC()
}

// chainEvent is the archived form of an audit event. Payload is kept as
// raw canonical JSON so digests recompute byte for byte.
type chainEvent struct {
	ID            string          `json:"id"`
	WorkspaceID   string          `json:"workspace_id"`
	Seq           int64           `json:"seq"`
	EventType     string          `json:"event_type"`
	ActorID       string          `json:"actor_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	PayloadHash   string          `json:"payload_hash"`
	PrevEventHash string          `json:"prev_event_hash"`
	EventHash     string          `json:"event_hash"`
	CreatedAt     string          `json:"created_at"`
}

func marshalChain(events []domain.AuditEvent) ([]byte, error) {
	out := make([]chainEvent, 0, len(events))
	for _, event := range events {
		payload, ok := event.Payload.([]byte)
		if !ok {
			return nil, fmt.Errorf("event %s payload is not canonical bytes", event.ID)
		}
		out = append(out, chainEvent{
			ID:            event.ID,
			WorkspaceID:   event.WorkspaceID,
			Seq:           event.Seq,
			EventType:     string(event.EventType),
			ActorID:       event.ActorID,
			Payload:       json.RawMessage(payload),
			PayloadHash:   event.PayloadHash,
			PrevEventHash: event.PrevEventHash,
			EventHash:     event.EventHash,
			CreatedAt:     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

func evidencePath(exhibit domain.Exhibit) string {
	name := path.Base(exhibit.Filename)
	if name == "" || name == "." || name == "/" {
		name = exhibit.ID
	}
	return path.Join(domain.PacketEvidenceDir, exhibit.ID+"_"+name)
}

func manifestEntries(files map[string][]byte) []domain.ManifestEntry {
	entries := make([]domain.ManifestEntry, 0, len(files))
	for p, data := range files {
		entries = append(entries, domain.ManifestEntry{
			Path:   p,
			SHA256: cryptoinfra.SHA256Hex(data),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

func writeArchive(manifestJSON []byte, files map[string][]byte) ([]byte, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name string, data []byte) error {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	if err := write(domain.PacketManifestPath, manifestJSON); err != nil {
		return nil, err
	}
	for _, p := range paths {
		if err := write(p, files[p]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
