//go:build integration
// +build integration

package db

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"lexipro/internal/domain"
	cryptoinfra "lexipro/internal/infra/crypto"
	"lexipro/internal/usecase"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if dsn == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(&MatterModel{}, &ExhibitModel{}, &AnchorModel{}, &AuditEventModel{}); err != nil {
		t.Fatalf("migrate models: %v", err)
	}
	if err := gdb.Exec(
		"CREATE TABLE IF NOT EXISTS workspace_audit_seq (workspace_id uuid PRIMARY KEY, seq bigint NOT NULL)",
	).Error; err != nil {
		t.Fatalf("create seq table: %v", err)
	}
	return gdb
}

func resetDB(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	if err := gdb.Exec(`
		TRUNCATE matters,
			exhibits,
			anchors,
			audit_events,
			workspace_audit_seq
		RESTART IDENTITY CASCADE`).Error; err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func TestAuditEventRepository_Append_HashChain(t *testing.T) {
	gdb := setupTestDB(t)
	resetDB(t, gdb)

	workspaceID := uuid.NewString()
	genesis := usecase.GenesisHash("test-seed")
	repo := NewAuditEventRepository(gdb, genesis)

	first, err := repo.Append(context.Background(), domain.AuditEvent{
		WorkspaceID: workspaceID,
		EventType:   domain.AuditEventExhibitUpload,
		ActorID:     "paralegal-1",
		Payload: map[string]any{
			"matterId":  "matter-1",
			"exhibitId": "exh-1",
		},
		CreatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("append first event: %v", err)
	}
	if first.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", first.Seq)
	}
	if first.PrevEventHash != genesis {
		t.Fatalf("first event must chain from genesis, got %s", first.PrevEventHash)
	}
	if _, err := hex.DecodeString(first.EventHash); err != nil {
		t.Fatalf("invalid event hash: %v", err)
	}

	second, err := repo.Append(context.Background(), domain.AuditEvent{
		WorkspaceID: workspaceID,
		EventType:   domain.AuditEventChatReleased,
		ActorID:     "paralegal-1",
		Payload: map[string]any{
			"matterId":   "matter-1",
			"claimCount": 2,
		},
		CreatedAt: time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("append second event: %v", err)
	}
	if second.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", second.Seq)
	}
	if second.PrevEventHash != first.EventHash {
		t.Fatalf("expected prev_event_hash %s, got %s", first.EventHash, second.PrevEventHash)
	}

	var stored AuditEventModel
	if err := gdb.WithContext(context.Background()).First(&stored, "id = ?", first.ID).Error; err != nil {
		t.Fatalf("load stored event: %v", err)
	}
	if stored.EventHash != first.EventHash {
		t.Fatal("append must not mutate earlier events")
	}
	canonical, err := cryptoinfra.CanonicalizeValue(map[string]any{
		"matterId":  "matter-1",
		"exhibitId": "exh-1",
	})
	if err != nil {
		t.Fatalf("canonicalize payload: %v", err)
	}
	if stored.PayloadHash != cryptoinfra.SHA256Hex(canonical) {
		t.Fatalf("payload hash mismatch: %s", stored.PayloadHash)
	}

	status, err := usecase.VerifyWorkspaceChain(context.Background(), repo, workspaceID, genesis)
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	if status.EventCount != 2 || status.HeadHash != second.EventHash {
		t.Fatalf("unexpected chain status %+v", status)
	}
}

// jsonb storage discards key order and whitespace; listing must hand
// back bytes that still hash to the stored payload digest.
func TestAuditEventRepository_JSONBRoundTrip(t *testing.T) {
	gdb := setupTestDB(t)
	resetDB(t, gdb)

	workspaceID := uuid.NewString()
	genesis := usecase.GenesisHash("test-seed")
	repo := NewAuditEventRepository(gdb, genesis)

	if _, err := repo.Append(context.Background(), domain.AuditEvent{
		WorkspaceID: workspaceID,
		EventType:   domain.AuditEventClaimAnchored,
		Payload: map[string]any{
			"zeta":   "Fénix Trading S.A.",
			"alpha":  map[string]any{"page": 3, "line": 12},
			"counts": []any{1, 2, 3},
		},
		CreatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	events, err := repo.ListByWorkspace(context.Background(), workspaceID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	payload, ok := events[0].Payload.([]byte)
	if !ok {
		t.Fatalf("expected canonical payload bytes, got %T", events[0].Payload)
	}
	if cryptoinfra.SHA256Hex(payload) != events[0].PayloadHash {
		t.Fatal("listed payload no longer hashes to the stored digest")
	}
	if _, err := usecase.VerifyWorkspaceChain(context.Background(), repo, workspaceID, genesis); err != nil {
		t.Fatalf("verify chain after round trip: %v", err)
	}
}

// Concurrent appends contend on the workspace seq row. The row lock
// must serialize them into one gap-free chain.
func TestAuditEventRepository_ConcurrentAppends(t *testing.T) {
	gdb := setupTestDB(t)
	resetDB(t, gdb)

	workspaceID := uuid.NewString()
	genesis := usecase.GenesisHash("test-seed")
	repo := NewAuditEventRepository(gdb, genesis)

	const writers = 8
	const perWriter = 4
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(writer int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := repo.Append(context.Background(), domain.AuditEvent{
					WorkspaceID: workspaceID,
					EventType:   domain.AuditEventExhibitUpload,
					Payload:     map[string]any{"writer": writer, "n": i},
				})
				if err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent append: %v", err)
	}

	events, err := repo.ListByWorkspace(context.Background(), workspaceID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != writers*perWriter {
		t.Fatalf("expected %d events, got %d", writers*perWriter, len(events))
	}
	for i, event := range events {
		if event.Seq != int64(i+1) {
			t.Fatalf("seq gap at position %d: got %d", i, event.Seq)
		}
	}
	status, err := usecase.VerifyWorkspaceChain(context.Background(), repo, workspaceID, genesis)
	if err != nil {
		t.Fatalf("verify chain after concurrent appends: %v", err)
	}
	if status.EventCount != writers*perWriter {
		t.Fatalf("unexpected event count %d", status.EventCount)
	}
}

func TestAuditEventRepository_SeqIsPerWorkspace(t *testing.T) {
	gdb := setupTestDB(t)
	resetDB(t, gdb)

	genesis := usecase.GenesisHash("test-seed")
	repo := NewAuditEventRepository(gdb, genesis)
	wsA := uuid.NewString()
	wsB := uuid.NewString()

	for _, ws := range []string{wsA, wsB} {
		event, err := repo.Append(context.Background(), domain.AuditEvent{
			WorkspaceID: ws,
			EventType:   domain.AuditEventExhibitUpload,
			Payload:     map[string]any{"ws": ws},
		})
		if err != nil {
			t.Fatalf("append to %s: %v", ws, err)
		}
		if event.Seq != 1 {
			t.Fatalf("each workspace starts at seq 1, got %d for %s", event.Seq, ws)
		}
		if event.PrevEventHash != genesis {
			t.Fatalf("each workspace chains from genesis, got %s", event.PrevEventHash)
		}
	}
}

func TestAuditEventRepository_VerifyChain_MutatedPayload(t *testing.T) {
	gdb := setupTestDB(t)
	resetDB(t, gdb)

	workspaceID := uuid.NewString()
	genesis := usecase.GenesisHash("test-seed")
	repo := NewAuditEventRepository(gdb, genesis)

	for i := 0; i < 3; i++ {
		if _, err := repo.Append(context.Background(), domain.AuditEvent{
			WorkspaceID: workspaceID,
			EventType:   domain.AuditEventExhibitUpload,
			Payload:     map[string]any{"n": i},
			CreatedAt:   time.Date(2026, 3, 2, 10+i, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("append event %d: %v", i, err)
		}
	}

	if err := gdb.WithContext(context.Background()).Exec(
		"UPDATE audit_events SET payload_json = '{\"n\":99}'::jsonb WHERE workspace_id = ? AND seq = 2",
		workspaceID,
	).Error; err != nil {
		t.Fatalf("mutate stored payload: %v", err)
	}

	_, err := usecase.VerifyWorkspaceChain(context.Background(), repo, workspaceID, genesis)
	if !errors.Is(err, domain.ErrIntegrityChainBroken) {
		t.Fatalf("expected broken chain, got %v", err)
	}
	var broken *usecase.BrokenChainError
	if !errors.As(err, &broken) {
		t.Fatalf("expected BrokenChainError, got %T", err)
	}
	if broken.Seq != 2 {
		t.Fatalf("break should be reported at seq 2, got %d", broken.Seq)
	}
}
