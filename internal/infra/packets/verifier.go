package packets

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"lexipro/internal/domain"
	cryptoinfra "lexipro/internal/infra/crypto"
	"lexipro/internal/usecase"
)

// Verify checks a packet offline: manifest digests for every archived
// file, no files outside the manifest, and a full re-walk of the
// archived chain of custody from the manifest's genesis hash. All
// failures are collected rather than stopping at the first, so a
// reviewer sees the complete damage report.
func Verify(ctx context.Context, archive []byte) (domain.PacketVerification, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return domain.PacketVerification{Failures: []string{"archive: not a zip file"}}, nil
	}

	contents := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return domain.PacketVerification{Failures: []string{fmt.Sprintf("%s: unreadable entry", f.Name)}}, nil
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return domain.PacketVerification{Failures: []string{fmt.Sprintf("%s: unreadable entry", f.Name)}}, nil
		}
		contents[f.Name] = data
	}

	manifestJSON, ok := contents[domain.PacketManifestPath]
	if !ok {
		return domain.PacketVerification{Failures: []string{domain.PacketManifestPath + ": missing"}}, nil
	}
	var manifest domain.PacketManifest
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		return domain.PacketVerification{Failures: []string{domain.PacketManifestPath + ": invalid JSON"}}, nil
	}

	var failures []string
	if manifest.Version != domain.PacketVersion {
		failures = append(failures, fmt.Sprintf("%s: unsupported version %q", domain.PacketManifestPath, manifest.Version))
	}
	if manifest.GenesisHash == "" {
		failures = append(failures, domain.PacketManifestPath+": missing genesis_hash")
	}

	listed := make(map[string]string, len(manifest.Entries))
	for _, entry := range manifest.Entries {
		listed[entry.Path] = entry.SHA256
	}

	for p, want := range listed {
		data, ok := contents[p]
		if !ok {
			failures = append(failures, p+": listed in manifest but missing from archive")
			continue
		}
		if got := cryptoinfra.SHA256Hex(data); got != want {
			failures = append(failures, p+": digest mismatch")
		}
	}
	for p := range contents {
		if p == domain.PacketManifestPath {
			continue
		}
		if _, ok := listed[p]; !ok {
			failures = append(failures, p+": present in archive but not in manifest")
		}
	}

	if chainJSON, ok := contents[domain.PacketChainPath]; ok {
		failures = append(failures, verifyArchivedChain(ctx, chainJSON, manifest)...)
	} else if _, inManifest := listed[domain.PacketChainPath]; !inManifest {
		failures = append(failures, domain.PacketChainPath+": missing")
	}

	return domain.PacketVerification{OK: len(failures) == 0, Failures: failures}, nil
}

// sliceLedger replays archived events through the shared chain walk.
type sliceLedger struct {
	events []domain.AuditEvent
}

func (l *sliceLedger) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	return domain.AuditEvent{}, fmt.Errorf("archived chain is read-only")
}

func (l *sliceLedger) ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.AuditEvent, error) {
	return l.events, nil
}

func verifyArchivedChain(ctx context.Context, chainJSON []byte, manifest domain.PacketManifest) []string {
	var archived []chainEvent
	if err := json.Unmarshal(chainJSON, &archived); err != nil {
		return []string{domain.PacketChainPath + ": invalid JSON"}
	}
	events := make([]domain.AuditEvent, 0, len(archived))
	for _, e := range archived {
		createdAt, err := time.Parse(time.RFC3339Nano, e.CreatedAt)
		if err != nil {
			return []string{fmt.Sprintf("%s: event %s has invalid created_at", domain.PacketChainPath, e.ID)}
		}
		canonical, err := cryptoinfra.Canonicalize([]byte(e.Payload))
		if err != nil {
			return []string{fmt.Sprintf("%s: event %s payload is not valid JSON", domain.PacketChainPath, e.ID)}
		}
		events = append(events, domain.AuditEvent{
			ID:            e.ID,
			WorkspaceID:   e.WorkspaceID,
			Seq:           e.Seq,
			EventType:     domain.AuditEventType(e.EventType),
			ActorID:       e.ActorID,
			Payload:       canonical,
			PayloadHash:   e.PayloadHash,
			PrevEventHash: e.PrevEventHash,
			EventHash:     e.EventHash,
			CreatedAt:     createdAt,
		})
	}

	_, err := usecase.VerifyWorkspaceChain(ctx, &sliceLedger{events: events}, manifest.WorkspaceID, manifest.GenesisHash)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", domain.PacketChainPath, err)}
	}
	return nil
}
