package db

import (
	"context"
	"time"

	"lexipro/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ExhibitRepository struct {
	db *gorm.DB
}

func NewExhibitRepository(db *gorm.DB) *ExhibitRepository {
	return &ExhibitRepository{db: db}
}

func (r *ExhibitRepository) Create(ctx context.Context, exhibit domain.Exhibit) (domain.Exhibit, error) {
	if r.db == nil {
		return domain.Exhibit{}, errDBUnavailable
	}
	if exhibit.ID == "" {
		exhibit.ID = uuid.NewString()
	}
	if exhibit.CreatedAt.IsZero() {
		exhibit.CreatedAt = time.Now().UTC()
	}
	model := ExhibitModel{
		ID:            exhibit.ID,
		WorkspaceID:   exhibit.WorkspaceID,
		MatterID:      exhibit.MatterID,
		Filename:      exhibit.Filename,
		MimeType:      exhibit.MimeType,
		StorageKey:    exhibit.StorageKey,
		IntegrityHash: exhibit.IntegrityHash,
		SizeBytes:     exhibit.SizeBytes,
		CreatedAt:     exhibit.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Exhibit{}, err
	}
	return exhibit, nil
}

func (r *ExhibitRepository) Get(ctx context.Context, workspaceID, exhibitID string) (domain.Exhibit, error) {
	if r.db == nil {
		return domain.Exhibit{}, errDBUnavailable
	}
	var model ExhibitModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", exhibitID, workspaceID).
		Take(&model).Error; err != nil {
		return domain.Exhibit{}, mapNotFound(err)
	}
	return exhibitFromModel(model), nil
}

func (r *ExhibitRepository) ListByMatter(ctx context.Context, workspaceID, matterID string) ([]domain.Exhibit, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []ExhibitModel
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND matter_id = ?", workspaceID, matterID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Exhibit, 0, len(models))
	for _, model := range models {
		out = append(out, exhibitFromModel(model))
	}
	return out, nil
}

func exhibitFromModel(model ExhibitModel) domain.Exhibit {
	return domain.Exhibit{
		ID:            model.ID,
		WorkspaceID:   model.WorkspaceID,
		MatterID:      model.MatterID,
		Filename:      model.Filename,
		MimeType:      model.MimeType,
		StorageKey:    model.StorageKey,
		IntegrityHash: model.IntegrityHash,
		SizeBytes:     model.SizeBytes,
		CreatedAt:     model.CreatedAt.UTC(),
	}
}
