package store

import (
	"encoding/json"
	"time"
)

type Document struct {
	ID            string
	OwnerID       string
	Status        string
	ThemePresetID string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Snapshot provenance types.
const (
	SnapshotManual  = "manual"
	SnapshotAIEdit  = "ai-edit"
	SnapshotRestore = "restore"
)

type Snapshot struct {
	ID          string
	DocumentID  string
	Number      int64
	Type        string
	Prompt      string
	Response    string
	Content     json.RawMessage
	ArchiveHash string
	CreatedAt   time.Time
}

type AIEditLog struct {
	ID         string
	DocumentID string
	BlockID    string
	Prompt     string
	Patches    json.RawMessage
	Success    bool
	Error      string
	SnapshotID *string
	CreatedAt  time.Time
}

type Asset struct {
	ID          string
	DocumentID  string
	ObjectKey   string
	ContentType string
	UsedIn      []string
	CreatedAt   time.Time
}
