package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexipro/internal/domain"
	cryptoinfra "lexipro/internal/infra/crypto"
	"lexipro/internal/usecase"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditEventRepository is the postgres ledger. Seq assignment is
// serialized per workspace through a row lock on workspace_audit_seq,
// so concurrent appends can never interleave within one chain.
type AuditEventRepository struct {
	db          *gorm.DB
	genesisHash string
}

func NewAuditEventRepository(db *gorm.DB, genesisHash string) *AuditEventRepository {
	return &AuditEventRepository{db: db, genesisHash: genesisHash}
}

func (r *AuditEventRepository) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if r.db == nil {
		return domain.AuditEvent{}, errDBUnavailable
	}
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
	// Postgres stores microsecond precision; hash what will be read back.
	event.CreatedAt = event.CreatedAt.UTC().Truncate(time.Microsecond)
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}

	payloadJSON, err := cryptoinfra.CanonicalizeValue(event.Payload)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.Payload = payloadJSON
	event.PayloadHash = cryptoinfra.SHA256Hex(payloadJSON)

	var out domain.AuditEvent
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, prevHash, err := nextWorkspaceSeq(ctx, tx, event.WorkspaceID, r.genesisHash)
		if err != nil {
			return err
		}
		event.Seq = seq
		event.PrevEventHash = prevHash

		eventHash, err := usecase.ComputeChainHash(event)
		if err != nil {
			return err
		}
		event.EventHash = eventHash

		model := auditEventModelFromDomain(event, payloadJSON)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		out = event
		return nil
	})
	if err != nil {
		return domain.AuditEvent{}, err
	}
	return out, nil
}

func (r *AuditEventRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AuditEventModel
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditEvent, 0, len(models))
	for _, model := range models {
		// jsonb storage does not preserve byte layout; restore the
		// canonical form the payload hash was computed over.
		canonical, err := cryptoinfra.Canonicalize(model.PayloadJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, auditEventFromModel(model, canonical))
	}
	return out, nil
}

func auditEventModelFromDomain(event domain.AuditEvent, payloadJSON []byte) AuditEventModel {
	return AuditEventModel{
		ID:            event.ID,
		WorkspaceID:   event.WorkspaceID,
		Seq:           event.Seq,
		EventType:     string(event.EventType),
		ActorID:       event.ActorID,
		PayloadJSON:   payloadJSON,
		PayloadHash:   event.PayloadHash,
		PrevEventHash: event.PrevEventHash,
		EventHash:     event.EventHash,
		CreatedAt:     event.CreatedAt.UTC(),
	}
}

func auditEventFromModel(model AuditEventModel, payloadJSON []byte) domain.AuditEvent {
	return domain.AuditEvent{
		ID:            model.ID,
		WorkspaceID:   model.WorkspaceID,
		Seq:           model.Seq,
		EventType:     domain.AuditEventType(model.EventType),
		ActorID:       model.ActorID,
		Payload:       payloadJSON,
		PayloadHash:   model.PayloadHash,
		PrevEventHash: model.PrevEventHash,
		EventHash:     model.EventHash,
		CreatedAt:     model.CreatedAt.UTC(),
	}
}

func nextWorkspaceSeq(ctx context.Context, tx *gorm.DB, workspaceID, genesisHash string) (int64, string, error) {
	if err := tx.WithContext(ctx).Exec(
		"INSERT INTO workspace_audit_seq (workspace_id, seq) VALUES (?, 0) ON CONFLICT (workspace_id) DO NOTHING",
		workspaceID,
	).Error; err != nil {
		return 0, "", err
	}

	var currentSeq int64
	if err := tx.WithContext(ctx).Raw(
		"SELECT seq FROM workspace_audit_seq WHERE workspace_id = ? FOR UPDATE",
		workspaceID,
	).Scan(&currentSeq).Error; err != nil {
		return 0, "", err
	}
	nextSeq := currentSeq + 1
	if err := tx.WithContext(ctx).Exec(
		"UPDATE workspace_audit_seq SET seq = ? WHERE workspace_id = ?",
		nextSeq,
		workspaceID,
	).Error; err != nil {
		return 0, "", err
	}

	prevHash := genesisHash
	if currentSeq > 0 {
		var prev AuditEventModel
		if err := tx.WithContext(ctx).
			Where("workspace_id = ? AND seq = ?", workspaceID, currentSeq).
			Take(&prev).Error; err != nil {
			return 0, "", err
		}
		prevHash = prev.EventHash
	}
	if prevHash == "" {
		return 0, "", fmt.Errorf("missing previous event hash for workspace %s", workspaceID)
	}
	return nextSeq, prevHash, nil
}
