package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/cribs1908/specpipe/internal/model"
)

// uploadSourceMap stores the per-document OCR page texts as a run artifact so
// table cells can be traced back to the page they came from. Failure never
// fails the run.
func (p *Pipeline) uploadSourceMap(ctx context.Context, run *model.Run, pagesByDoc map[string][]model.OCRPage, log *zap.Logger) {
	if p.blobs == nil {
		return
	}

	payload, err := json.MarshalIndent(pagesByDoc, "", "  ")
	if err != nil {
		log.Warn("pipeline: marshal source map failed", zap.Error(err))
		return
	}

	path := fmt.Sprintf("workspace/%s/runs/%s/sourcemap.json", run.WorkspaceID, run.ID)
	if err := p.blobs.Upload(ctx, path, payload, "application/json"); err != nil {
		log.Warn("pipeline: source map upload failed", zap.String("path", path), zap.Error(err))
	}
}
