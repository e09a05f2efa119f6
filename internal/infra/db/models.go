package db

import "time"

type MatterModel struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	WorkspaceID string    `gorm:"type:uuid;index;not null"`
	Slug        string    `gorm:"index;not null"`
	Name        string    `gorm:"not null"`
	Description string
	CreatedAt   time.Time `gorm:"not null"`
}

func (MatterModel) TableName() string { return "matters" }

type ExhibitModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	WorkspaceID   string    `gorm:"type:uuid;index;not null"`
	MatterID      string    `gorm:"type:uuid;index;not null"`
	Filename      string    `gorm:"not null"`
	MimeType      string    `gorm:"not null"`
	StorageKey    string    `gorm:"uniqueIndex;not null"`
	IntegrityHash string    `gorm:"not null"`
	SizeBytes     int64     `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (ExhibitModel) TableName() string { return "exhibits" }

type AnchorModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	ExhibitID   string `gorm:"type:uuid;index;not null"`
	WorkspaceID string `gorm:"type:uuid;index;not null"`
	MatterID    string `gorm:"type:uuid;index;not null"`
	PageNumber  int    `gorm:"not null"`
	LineNumber  int
	Text        string `gorm:"type:text;not null"`
	BoundingBox string
	CreatedAt   time.Time `gorm:"not null"`
}

func (AnchorModel) TableName() string { return "anchors" }

type AuditEventModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	WorkspaceID   string    `gorm:"type:uuid;uniqueIndex:idx_workspace_seq,priority:1;not null"`
	Seq           int64     `gorm:"uniqueIndex:idx_workspace_seq,priority:2;not null"`
	EventType     string    `gorm:"index;not null"`
	ActorID       string
	PayloadJSON   []byte    `gorm:"type:jsonb;not null"`
	PayloadHash   string    `gorm:"not null"`
	PrevEventHash string    `gorm:"not null"`
	EventHash     string    `gorm:"uniqueIndex;not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (AuditEventModel) TableName() string { return "audit_events" }
