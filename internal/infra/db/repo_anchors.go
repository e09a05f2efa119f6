package db

import (
	"context"
	"time"

	"lexipro/internal/domain"

	"gorm.io/gorm"
)

// AnchorRepository resolves anchors under tenant scoping rules. Lookup
// is by primary key first; scope is checked afterwards so an anchor
// that exists in another workspace or matter is reported as
// domain.ErrCrossTenant rather than blending into plain not-found.
type AnchorRepository struct {
	db *gorm.DB
	// matterScoped extends scoping to the matter level. Workspace
	// scoping always applies.
	matterScoped bool
}

func NewAnchorRepository(db *gorm.DB, matterScoped bool) *AnchorRepository {
	return &AnchorRepository{db: db, matterScoped: matterScoped}
}

func (r *AnchorRepository) Resolve(ctx context.Context, anchorID, workspaceID, matterID string) (domain.Anchor, error) {
	if r.db == nil {
		return domain.Anchor{}, errDBUnavailable
	}
	var model AnchorModel
	if err := r.db.WithContext(ctx).Where("id = ?", anchorID).Take(&model).Error; err != nil {
		return domain.Anchor{}, mapNotFound(err)
	}
	if model.WorkspaceID != workspaceID {
		return domain.Anchor{}, domain.ErrCrossTenant
	}
	if r.matterScoped && model.MatterID != matterID {
		return domain.Anchor{}, domain.ErrCrossTenant
	}
	return anchorFromModel(model), nil
}

func (r *AnchorRepository) Create(ctx context.Context, anchor domain.Anchor) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := AnchorModel{
		ID:          anchor.ID,
		ExhibitID:   anchor.ExhibitID,
		WorkspaceID: anchor.WorkspaceID,
		MatterID:    anchor.MatterID,
		PageNumber:  anchor.PageNumber,
		LineNumber:  anchor.LineNumber,
		Text:        anchor.Text,
		BoundingBox: anchor.BoundingBox,
		CreatedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *AnchorRepository) ListByExhibit(ctx context.Context, workspaceID, exhibitID string) ([]domain.Anchor, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AnchorModel
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND exhibit_id = ?", workspaceID, exhibitID).
		Order("page_number ASC, line_number ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Anchor, 0, len(models))
	for _, model := range models {
		out = append(out, anchorFromModel(model))
	}
	return out, nil
}

// AnchorInventory returns the matter's anchor ids in a stable order
// alongside their excerpts.
func (r *AnchorRepository) AnchorInventory(ctx context.Context, workspaceID, matterID string) ([]string, map[string]string, error) {
	if r.db == nil {
		return nil, nil, errDBUnavailable
	}
	var models []AnchorModel
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND matter_id = ?", workspaceID, matterID).
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, nil, err
	}
	ids := make([]string, 0, len(models))
	excerpts := make(map[string]string, len(models))
	for _, model := range models {
		ids = append(ids, model.ID)
		excerpts[model.ID] = model.Text
	}
	return ids, excerpts, nil
}

func anchorFromModel(model AnchorModel) domain.Anchor {
	return domain.Anchor{
		ID:          model.ID,
		ExhibitID:   model.ExhibitID,
		WorkspaceID: model.WorkspaceID,
		MatterID:    model.MatterID,
		PageNumber:  model.PageNumber,
		LineNumber:  model.LineNumber,
		Text:        model.Text,
		BoundingBox: model.BoundingBox,
	}
}
