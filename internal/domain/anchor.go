package domain

import "time"

// Anchor is a located, verifiable excerpt of evidence. Anchors are
// written by the ingestion pipeline and immutable afterwards; the
// verification core only reads them.
type Anchor struct {
	ID          string
	ExhibitID   string
	WorkspaceID string
	MatterID    string
	PageNumber  int
	LineNumber  int
	Text        string
	BoundingBox string
}

// Empty reports whether the anchor carries no usable excerpt. An empty
// anchor can never ground a claim.
func (a Anchor) Empty() bool {
	return a.Text == ""
}

type Exhibit struct {
	ID            string
	WorkspaceID   string
	MatterID      string
	Filename      string
	MimeType      string
	StorageKey    string
	IntegrityHash string
	SizeBytes     int64
	CreatedAt     time.Time
}

type Matter struct {
	ID          string
	WorkspaceID string
	Slug        string
	Name        string
	Description string
	CreatedAt   time.Time
}
