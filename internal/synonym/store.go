package synonym

import (
	"context"
	"time"
)

// Entry is a scored mapping from free-text variants to a canonical field ID.
// An empty WorkspaceID marks a global (cross-workspace) entry.
type Entry struct {
	ID          string    `json:"id"`
	FieldID     string    `json:"field_id"`
	Variants    []string  `json:"variants"`
	Score       float64   `json:"score"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasVariant reports whether the entry already carries the given variant.
func (e Entry) HasVariant(term string) bool {
	for _, v := range e.Variants {
		if v == term {
			return true
		}
	}
	return false
}

// Store is the narrow persistence contract the synonym map needs. Implemented
// by internal/store.
type Store interface {
	ListWorkspaceSynonyms(ctx context.Context, workspaceID string) ([]Entry, error)
	ListGlobalSynonyms(ctx context.Context) ([]Entry, error)
	GetWorkspaceSynonym(ctx context.Context, workspaceID, fieldID string) (*Entry, error)
	GetGlobalSynonym(ctx context.Context, fieldID string) (*Entry, error)
	UpsertWorkspaceSynonym(ctx context.Context, e Entry) error
	UpsertGlobalSynonym(ctx context.Context, e Entry) error
	// CountWorkspacesWithVariant counts distinct workspaces whose entry for
	// fieldID includes term among its variants.
	CountWorkspacesWithVariant(ctx context.Context, fieldID, term string) (int, error)
}
