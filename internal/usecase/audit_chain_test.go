package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"lexipro/internal/domain"
	"lexipro/internal/infra/crypto"
)

// staticLedger serves a fixed event slice and records appends. Chain
// assignment is done by the test, not the stub.
type staticLedger struct {
	events    []domain.AuditEvent
	appendErr error
	appended  []domain.AuditEvent
}

func (l *staticLedger) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if l.appendErr != nil {
		return domain.AuditEvent{}, l.appendErr
	}
	l.appended = append(l.appended, event)
	return event, nil
}

func (l *staticLedger) ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.AuditEvent, error) {
	out := make([]domain.AuditEvent, 0, len(l.events))
	for _, e := range l.events {
		if e.WorkspaceID == workspaceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func buildTestChain(t *testing.T, workspaceID, genesisHash string, n int) []domain.AuditEvent {
	t.Helper()
	events := make([]domain.AuditEvent, 0, n)
	prev := genesisHash
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		payload, err := crypto.CanonicalizeValue(map[string]any{"step": i})
		if err != nil {
			t.Fatalf("canonicalize payload: %v", err)
		}
		event := domain.AuditEvent{
			ID:            fmt.Sprintf("evt-%d", i+1),
			WorkspaceID:   workspaceID,
			Seq:           int64(i + 1),
			EventType:     domain.AuditEventExhibitUpload,
			ActorID:       "user-1",
			Payload:       payload,
			PayloadHash:   crypto.SHA256Hex(payload),
			PrevEventHash: prev,
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		}
		hash, err := ComputeChainHash(event)
		if err != nil {
			t.Fatalf("compute chain hash: %v", err)
		}
		event.EventHash = hash
		prev = hash
		events = append(events, event)
	}
	return events
}

func TestVerifyWorkspaceChain_Intact(t *testing.T) {
	genesis := GenesisHash("test-seed")
	events := buildTestChain(t, "ws-1", genesis, 4)
	ledger := &staticLedger{events: events}

	status, err := VerifyWorkspaceChain(context.Background(), ledger, "ws-1", genesis)
	if err != nil {
		t.Fatalf("VerifyWorkspaceChain: %v", err)
	}
	if status.EventCount != 4 {
		t.Fatalf("expected 4 verified events, got %d", status.EventCount)
	}
	if status.HeadHash != events[3].EventHash {
		t.Fatalf("head hash mismatch: %s", status.HeadHash)
	}
}

func TestVerifyWorkspaceChain_EmptyChainIsValid(t *testing.T) {
	genesis := GenesisHash("test-seed")
	status, err := VerifyWorkspaceChain(context.Background(), &staticLedger{}, "ws-1", genesis)
	if err != nil {
		t.Fatalf("VerifyWorkspaceChain: %v", err)
	}
	if status.EventCount != 0 || status.HeadHash != "" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestVerifyWorkspaceChain_Breaks(t *testing.T) {
	genesis := GenesisHash("test-seed")

	cases := []struct {
		name   string
		mutate func(events []domain.AuditEvent) []domain.AuditEvent
		seq    int64
	}{
		{
			"payload tampered",
			func(events []domain.AuditEvent) []domain.AuditEvent {
				events[1].Payload = []byte(`{"step":99}`)
				return events
			},
			2,
		},
		{
			"payload hash rewritten to match tampered payload",
			func(events []domain.AuditEvent) []domain.AuditEvent {
				tampered := []byte(`{"step":99}`)
				events[1].Payload = tampered
				events[1].PayloadHash = crypto.SHA256Hex(tampered)
				return events
			},
			2,
		},
		{
			"event deleted mid-chain",
			func(events []domain.AuditEvent) []domain.AuditEvent {
				return append(events[:1], events[2:]...)
			},
			3,
		},
		{
			"events reordered",
			func(events []domain.AuditEvent) []domain.AuditEvent {
				events[1], events[2] = events[2], events[1]
				return events
			},
			3,
		},
		{
			"timestamp shifted",
			func(events []domain.AuditEvent) []domain.AuditEvent {
				events[2].CreatedAt = events[2].CreatedAt.Add(time.Minute)
				return events
			},
			3,
		},
		{
			"first event forged against wrong genesis",
			func(events []domain.AuditEvent) []domain.AuditEvent {
				events[0].PrevEventHash = GenesisHash("other-seed")
				return events
			},
			1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events := tc.mutate(buildTestChain(t, "ws-1", genesis, 4))
			ledger := &staticLedger{events: events}

			_, err := VerifyWorkspaceChain(context.Background(), ledger, "ws-1", genesis)
			if !errors.Is(err, domain.ErrIntegrityChainBroken) {
				t.Fatalf("expected ErrIntegrityChainBroken, got %v", err)
			}
			var broken *BrokenChainError
			if !errors.As(err, &broken) {
				t.Fatalf("expected BrokenChainError, got %T", err)
			}
			if broken.Seq != tc.seq {
				t.Fatalf("expected break at seq %d, got %d (%s)", tc.seq, broken.Seq, broken.Detail)
			}
		})
	}
}

func TestGenesisHash_DefaultsSeed(t *testing.T) {
	if GenesisHash("") != GenesisHash(domain.DefaultGenesisSeed) {
		t.Fatal("empty seed must fall back to the default")
	}
	if GenesisHash("a") == GenesisHash("b") {
		t.Fatal("distinct seeds must yield distinct genesis hashes")
	}
}

func TestComputeChainHash_RequiresEnvelopeFields(t *testing.T) {
	event := buildTestChain(t, "ws-1", GenesisHash("test-seed"), 1)[0]
	event.PayloadHash = ""
	if _, err := ComputeChainHash(event); err == nil {
		t.Fatal("expected error for missing payload hash")
	}
}
