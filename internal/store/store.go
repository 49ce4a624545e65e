package store

import (
	"context"

	"github.com/cribs1908/specpipe/internal/model"
	"github.com/cribs1908/specpipe/internal/synonym"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	WorkspaceID string          `json:"workspace_id,omitempty"`
	Status      model.RunStatus `json:"status,omitempty"`
	Limit       int             `json:"limit,omitempty"`
	Offset      int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the comparison pipeline. It
// embeds synonym.Store so the synonym map persists through the same backend.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, workspaceID, domain string) (*model.Run, error)
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	// UpdateRunStatus transitions the run. errMsg is recorded only for the
	// error status and ignored otherwise.
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	// UpdateRunDomain records the resolved domain after auto-detection.
	UpdateRunDomain(ctx context.Context, runID, domain string) error

	// Documents
	CreateDocument(ctx context.Context, doc model.Document) error
	ListDocuments(ctx context.Context, runID string) ([]model.Document, error)
	UpdateDocumentOCR(ctx context.Context, documentID string, pages int, ocrUsed bool) error

	// Extractions
	SaveRawExtractions(ctx context.Context, runID string, raws []model.ExtractionRaw) error
	SaveNormExtractions(ctx context.Context, runID string, norms []model.ExtractionNorm) error
	ListRawExtractions(ctx context.Context, runID string) ([]model.ExtractionRaw, error)
	ListNormExtractions(ctx context.Context, runID string) ([]model.ExtractionNorm, error)

	// Result tables
	SaveResultTable(ctx context.Context, table model.ResultTable) error
	// GetResultTable returns the most recent table for the run, or nil when
	// no table has been built yet.
	GetResultTable(ctx context.Context, runID string) (*model.ResultTable, error)

	synonym.Store

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
