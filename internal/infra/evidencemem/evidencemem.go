// Package evidencemem is the in-memory evidence store backing the
// no-db mode. It mirrors the scoping behavior of the postgres
// repositories so the release gate behaves identically against either.
package evidencemem

import (
	"context"
	"sort"
	"sync"
	"time"

	"lexipro/internal/domain"

	"github.com/google/uuid"
)

type Store struct {
	// matterScoped extends anchor scoping to the matter level.
	matterScoped bool

	mu       sync.RWMutex
	anchors  map[string]domain.Anchor
	exhibits map[string]domain.Exhibit
	matters  map[string]domain.Matter
}

func New(matterScoped bool) *Store {
	return &Store{
		matterScoped: matterScoped,
		anchors:      make(map[string]domain.Anchor),
		exhibits:     make(map[string]domain.Exhibit),
		matters:      make(map[string]domain.Matter),
	}
}

func (s *Store) Resolve(ctx context.Context, anchorID, workspaceID, matterID string) (domain.Anchor, error) {
	s.mu.RLock()
	anchor, ok := s.anchors[anchorID]
	s.mu.RUnlock()
	if !ok {
		return domain.Anchor{}, domain.ErrNotFound
	}
	if anchor.WorkspaceID != workspaceID {
		return domain.Anchor{}, domain.ErrCrossTenant
	}
	if s.matterScoped && anchor.MatterID != matterID {
		return domain.Anchor{}, domain.ErrCrossTenant
	}
	return anchor, nil
}

func (s *Store) PutAnchor(anchor domain.Anchor) domain.Anchor {
	if anchor.ID == "" {
		anchor.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.anchors[anchor.ID] = anchor
	s.mu.Unlock()
	return anchor
}

func (s *Store) AnchorIDsByMatter(workspaceID, matterID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for id, anchor := range s.anchors {
		if anchor.WorkspaceID == workspaceID && anchor.MatterID == matterID {
			out = append(out, id)
		}
	}
	return out
}

// AnchorInventory returns the matter's anchor ids in a stable order
// alongside their excerpts. It feeds both candidate generation and the
// corroboration auditor's prompt.
func (s *Store) AnchorInventory(ctx context.Context, workspaceID, matterID string) ([]string, map[string]string, error) {
	ids := s.AnchorIDsByMatter(workspaceID, matterID)
	sort.Strings(ids)
	return ids, s.Excerpts(workspaceID, matterID), nil
}

func (s *Store) Excerpts(workspaceID, matterID string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	for id, anchor := range s.anchors {
		if anchor.WorkspaceID == workspaceID && anchor.MatterID == matterID {
			out[id] = anchor.Text
		}
	}
	return out
}

func (s *Store) PutExhibit(exhibit domain.Exhibit) domain.Exhibit {
	if exhibit.ID == "" {
		exhibit.ID = uuid.NewString()
	}
	if exhibit.CreatedAt.IsZero() {
		exhibit.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.exhibits[exhibit.ID] = exhibit
	s.mu.Unlock()
	return exhibit
}

func (s *Store) ListByMatter(ctx context.Context, workspaceID, matterID string) ([]domain.Exhibit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Exhibit, 0)
	for _, exhibit := range s.exhibits {
		if exhibit.WorkspaceID == workspaceID && exhibit.MatterID == matterID {
			out = append(out, exhibit)
		}
	}
	sortExhibits(out)
	return out, nil
}

func (s *Store) PutMatter(matter domain.Matter) domain.Matter {
	if matter.ID == "" {
		matter.ID = uuid.NewString()
	}
	if matter.CreatedAt.IsZero() {
		matter.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.matters[matter.ID] = matter
	s.mu.Unlock()
	return matter
}

func (s *Store) GetMatter(workspaceID, matterID string) (domain.Matter, error) {
	s.mu.RLock()
	matter, ok := s.matters[matterID]
	s.mu.RUnlock()
	if !ok || matter.WorkspaceID != workspaceID {
		return domain.Matter{}, domain.ErrNotFound
	}
	return matter, nil
}

func (s *Store) GetExhibit(workspaceID, exhibitID string) (domain.Exhibit, error) {
	s.mu.RLock()
	exhibit, ok := s.exhibits[exhibitID]
	s.mu.RUnlock()
	if !ok || exhibit.WorkspaceID != workspaceID {
		return domain.Exhibit{}, domain.ErrNotFound
	}
	return exhibit, nil
}

// AnchorsByExhibit returns an exhibit's anchors in page/line order,
// matching the postgres repository's ordering.
func (s *Store) AnchorsByExhibit(workspaceID, exhibitID string) []domain.Anchor {
	s.mu.RLock()
	out := make([]domain.Anchor, 0)
	for _, anchor := range s.anchors {
		if anchor.WorkspaceID == workspaceID && anchor.ExhibitID == exhibitID {
			out = append(out, anchor)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].PageNumber != out[j].PageNumber {
			return out[i].PageNumber < out[j].PageNumber
		}
		if out[i].LineNumber != out[j].LineNumber {
			return out[i].LineNumber < out[j].LineNumber
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ExhibitWriter adapts the store to the transport's exhibit surface.
type ExhibitWriter struct{ store *Store }

func (s *Store) Exhibits() ExhibitWriter { return ExhibitWriter{store: s} }

func (w ExhibitWriter) Create(ctx context.Context, exhibit domain.Exhibit) (domain.Exhibit, error) {
	return w.store.PutExhibit(exhibit), nil
}

func (w ExhibitWriter) Get(ctx context.Context, workspaceID, exhibitID string) (domain.Exhibit, error) {
	return w.store.GetExhibit(workspaceID, exhibitID)
}

// AnchorWriter adapts the store to the transport's anchor surface.
type AnchorWriter struct{ store *Store }

func (s *Store) Anchors() AnchorWriter { return AnchorWriter{store: s} }

func (w AnchorWriter) Create(ctx context.Context, anchor domain.Anchor) error {
	w.store.PutAnchor(anchor)
	return nil
}

func (w AnchorWriter) ListByExhibit(ctx context.Context, workspaceID, exhibitID string) ([]domain.Anchor, error) {
	return w.store.AnchorsByExhibit(workspaceID, exhibitID), nil
}

// MatterWriter adapts the store to the transport's matter surface.
type MatterWriter struct{ store *Store }

func (s *Store) Matters() MatterWriter { return MatterWriter{store: s} }

func (w MatterWriter) Create(ctx context.Context, matter domain.Matter) (domain.Matter, error) {
	return w.store.PutMatter(matter), nil
}

func (w MatterWriter) Get(ctx context.Context, workspaceID, matterID string) (domain.Matter, error) {
	return w.store.GetMatter(workspaceID, matterID)
}

func sortExhibits(exhibits []domain.Exhibit) {
	sort.Slice(exhibits, func(i, j int) bool {
		if exhibits[i].CreatedAt.Equal(exhibits[j].CreatedAt) {
			return exhibits[i].ID < exhibits[j].ID
		}
		return exhibits[i].CreatedAt.Before(exhibits[j].CreatedAt)
	})
}
