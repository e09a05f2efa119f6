package db

import (
	"context"
	"time"

	"lexipro/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MatterRepository struct {
	db *gorm.DB
}

func NewMatterRepository(db *gorm.DB) *MatterRepository {
	return &MatterRepository{db: db}
}

func (r *MatterRepository) Create(ctx context.Context, matter domain.Matter) (domain.Matter, error) {
	if r.db == nil {
		return domain.Matter{}, errDBUnavailable
	}
	if matter.ID == "" {
		matter.ID = uuid.NewString()
	}
	if matter.CreatedAt.IsZero() {
		matter.CreatedAt = time.Now().UTC()
	}
	model := MatterModel{
		ID:          matter.ID,
		WorkspaceID: matter.WorkspaceID,
		Slug:        matter.Slug,
		Name:        matter.Name,
		Description: matter.Description,
		CreatedAt:   matter.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Matter{}, err
	}
	return matter, nil
}

func (r *MatterRepository) Get(ctx context.Context, workspaceID, matterID string) (domain.Matter, error) {
	if r.db == nil {
		return domain.Matter{}, errDBUnavailable
	}
	var model MatterModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", matterID, workspaceID).
		Take(&model).Error; err != nil {
		return domain.Matter{}, mapNotFound(err)
	}
	return domain.Matter{
		ID:          model.ID,
		WorkspaceID: model.WorkspaceID,
		Slug:        model.Slug,
		Name:        model.Name,
		Description: model.Description,
		CreatedAt:   model.CreatedAt.UTC(),
	}, nil
}
