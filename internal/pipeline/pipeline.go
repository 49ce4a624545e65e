// Package pipeline orchestrates a comparison run: OCR, field extraction,
// normalization, and table build, with per-document failure isolation.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cribs1908/specpipe/internal/blob"
	"github.com/cribs1908/specpipe/internal/config"
	"github.com/cribs1908/specpipe/internal/model"
	"github.com/cribs1908/specpipe/internal/normalize"
	"github.com/cribs1908/specpipe/internal/ocr"
	"github.com/cribs1908/specpipe/internal/profile"
	"github.com/cribs1908/specpipe/internal/store"
	"github.com/cribs1908/specpipe/internal/synonym"
	"github.com/cribs1908/specpipe/internal/table"
)

// Extractor is the LLM extraction surface the pipeline depends on.
// Implemented by extract.Extractor.
type Extractor interface {
	WarmCache(ctx context.Context, domain string, snapshot synonym.Snapshot) error
	ExtractFields(ctx context.Context, domain, documentID string, pages []model.OCRPage, snapshot synonym.Snapshot) ([]model.ExtractionRaw, model.TokenUsage, error)
}

// Pipeline runs comparison requests end to end.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	ocr       ocr.Extractor
	extractor Extractor
	blobs     blob.Store
}

// New creates a Pipeline with all dependencies. blobs may be nil, which
// disables export and source map artifacts.
func New(cfg *config.Config, st store.Store, ocrExt ocr.Extractor, ext Extractor, blobs blob.Store) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		ocr:       ocrExt,
		extractor: ext,
		blobs:     blobs,
	}
}

// Submit creates a queued run over the given PDF paths. Domain must name a
// registered profile or be AUTO.
func (p *Pipeline) Submit(ctx context.Context, workspaceID, domain string, pdfPaths []string) (*model.Run, error) {
	if workspaceID == "" {
		return nil, eris.New("pipeline: workspace id is required")
	}
	if len(pdfPaths) == 0 {
		return nil, eris.New("pipeline: at least one document is required")
	}
	if domain != profile.DomainAuto && profile.GetProfile(domain) == nil {
		return nil, eris.Errorf("pipeline: unknown domain %q", domain)
	}

	run, err := p.store.CreateRun(ctx, workspaceID, domain)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	for i, path := range pdfPaths {
		doc := model.Document{
			ID:       uuid.New().String(),
			RunID:    run.ID,
			Filename: filepath.Base(path),
			Path:     path,
			Position: i,
		}
		if err := p.store.CreateDocument(ctx, doc); err != nil {
			return nil, eris.Wrapf(err, "pipeline: create document %s", doc.Filename)
		}
	}

	zap.L().Info("pipeline: run submitted",
		zap.String("run_id", run.ID),
		zap.String("workspace_id", workspaceID),
		zap.String("domain", domain),
		zap.Int("documents", len(pdfPaths)),
	)
	return run, nil
}

// Process executes a queued run to completion and returns the built table.
// A document that fails OCR or extraction degrades to empty columns; the run
// fails only when no document yields any extraction.
func (p *Pipeline) Process(ctx context.Context, runID string) (*model.ResultTable, error) {
	run, err := p.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: get run")
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("workspace_id", run.WorkspaceID))

	if err := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusProcessing, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: mark processing")
	}

	tbl, err := p.process(ctx, run, log)
	if err != nil {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusError, err.Error()); statusErr != nil {
			log.Warn("pipeline: failed to record error status", zap.Error(statusErr))
		}
		return nil, err
	}

	if err := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusReady, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: mark ready")
	}
	return tbl, nil
}

func (p *Pipeline) process(ctx context.Context, run *model.Run, log *zap.Logger) (*model.ResultTable, error) {
	start := time.Now()

	docs, err := p.store.ListDocuments(ctx, run.ID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list documents")
	}
	if len(docs) == 0 {
		return nil, eris.Errorf("pipeline: run %s has no documents", run.ID)
	}

	// Stage 1: OCR every document. Failures degrade to zero pages.
	pagesByDoc := p.runOCR(ctx, docs, log)

	// Resolve the domain before extraction so AUTO runs can use OCR text.
	domain := run.Domain
	if domain == profile.DomainAuto {
		domain = profile.DetectDomain(allText(pagesByDoc))
		log.Info("pipeline: detected domain", zap.String("domain", domain))
		if err := p.store.UpdateRunDomain(ctx, run.ID, domain); err != nil {
			return nil, eris.Wrap(err, "pipeline: update run domain")
		}
	}

	// Synonym snapshot: seed the workspace for this domain, then load both tiers.
	if err := synonym.SeedDomain(ctx, p.store, run.WorkspaceID, domain); err != nil {
		return nil, eris.Wrap(err, "pipeline: seed synonyms")
	}
	synMap := synonym.New(p.store, run.WorkspaceID)
	if err := synMap.LoadSnapshot(ctx); err != nil {
		return nil, eris.Wrap(err, "pipeline: load synonym snapshot")
	}
	snapshot := synMap.Snapshot()

	if p.cfg.Pipeline.WarmPromptCache {
		if err := p.extractor.WarmCache(ctx, domain, snapshot); err != nil {
			log.Warn("pipeline: prompt cache warmup failed", zap.Error(err))
		}
	}

	// Stage 2: extract fields per document.
	raws, usage := p.runExtraction(ctx, domain, docs, pagesByDoc, snapshot, log)
	if len(raws) == 0 {
		return nil, eris.New("pipeline: no fields extracted from any document")
	}
	if err := p.store.SaveRawExtractions(ctx, run.ID, raws); err != nil {
		return nil, eris.Wrap(err, "pipeline: save raw extractions")
	}

	p.reportMissingRequired(domain, docs, raws, log)

	// Stage 3: normalization is pure and runs inline.
	norms := normalize.NormalizeExtractions(raws)
	if err := p.store.SaveNormExtractions(ctx, run.ID, norms); err != nil {
		return nil, eris.Wrap(err, "pipeline: save norm extractions")
	}

	p.uploadSourceMap(ctx, run, pagesByDoc, log)

	// Stage 4: table build.
	builder := table.New(run.ID, run.WorkspaceID, domain, p.blobs)
	tbl := builder.BuildTable(ctx, norms, raws, docs)
	if err := p.store.SaveResultTable(ctx, tbl); err != nil {
		return nil, eris.Wrap(err, "pipeline: save result table")
	}

	log.Info("pipeline: run complete",
		zap.String("domain", domain),
		zap.Int("documents", len(docs)),
		zap.Int("extractions", len(raws)),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Duration("took", time.Since(start)),
	)
	return &tbl, nil
}

// runOCR extracts page text for each document concurrently. A failed document
// logs a warning and contributes no pages.
func (p *Pipeline) runOCR(ctx context.Context, docs []model.Document, log *zap.Logger) map[string][]model.OCRPage {
	var mu sync.Mutex
	pagesByDoc := make(map[string][]model.OCRPage, len(docs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())

	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			ocrCtx, cancel := context.WithTimeout(gCtx, p.stageTimeout())
			defer cancel()

			pages, err := p.ocr.ExtractPages(ocrCtx, doc.Path)
			if err != nil {
				log.Warn("pipeline: ocr failed",
					zap.String("document_id", doc.ID),
					zap.String("filename", doc.Filename),
					zap.Error(err),
				)
				return nil
			}

			ocrUsed := p.cfg.OCR.Provider == "mistral"
			if err := p.store.UpdateDocumentOCR(ctx, doc.ID, len(pages), ocrUsed); err != nil {
				log.Warn("pipeline: failed to record ocr result", zap.String("document_id", doc.ID), zap.Error(err))
			}

			mu.Lock()
			pagesByDoc[doc.ID] = pages
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return pagesByDoc
}

// runExtraction calls the LLM extractor per document. A failed document logs
// a warning and contributes no extractions.
func (p *Pipeline) runExtraction(ctx context.Context, domain string, docs []model.Document, pagesByDoc map[string][]model.OCRPage, snapshot synonym.Snapshot, log *zap.Logger) ([]model.ExtractionRaw, model.TokenUsage) {
	var mu sync.Mutex
	var raws []model.ExtractionRaw
	var usage model.TokenUsage

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())

	for _, doc := range docs {
		doc := doc
		pages := pagesByDoc[doc.ID]
		if len(pages) == 0 {
			continue
		}
		g.Go(func() error {
			extractCtx, cancel := context.WithTimeout(gCtx, p.stageTimeout())
			defer cancel()

			docRaws, docUsage, err := p.extractor.ExtractFields(extractCtx, domain, doc.ID, pages, snapshot)
			if err != nil {
				log.Warn("pipeline: extraction failed",
					zap.String("document_id", doc.ID),
					zap.String("filename", doc.Filename),
					zap.Error(err),
				)
				return nil
			}

			mu.Lock()
			raws = append(raws, docRaws...)
			usage.Add(docUsage)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return raws, usage
}

// reportMissingRequired logs, per document, required profile fields that the
// extractor did not find.
func (p *Pipeline) reportMissingRequired(domain string, docs []model.Document, raws []model.ExtractionRaw, log *zap.Logger) {
	prof := profile.GetProfile(domain)
	if prof == nil {
		return
	}
	required := prof.RequiredFields()
	if len(required) == 0 {
		return
	}

	found := make(map[string]map[string]bool, len(docs))
	for _, raw := range raws {
		if found[raw.DocumentID] == nil {
			found[raw.DocumentID] = make(map[string]bool)
		}
		found[raw.DocumentID][raw.FieldID] = true
	}

	for _, doc := range docs {
		var missing []string
		for _, fieldID := range required {
			if !found[doc.ID][fieldID] {
				missing = append(missing, fieldID)
			}
		}
		if len(missing) > 0 {
			log.Warn("pipeline: required fields missing",
				zap.String("document_id", doc.ID),
				zap.String("filename", doc.Filename),
				zap.Strings("fields", missing),
			)
		}
	}
}

func (p *Pipeline) concurrency() int {
	if n := p.cfg.Pipeline.MaxConcurrentDocuments; n > 0 {
		return n
	}
	return 4
}

func (p *Pipeline) stageTimeout() time.Duration {
	if s := p.cfg.Pipeline.ExtractTimeoutSecs; s > 0 {
		return time.Duration(s) * time.Second
	}
	return 2 * time.Minute
}

func allText(pagesByDoc map[string][]model.OCRPage) string {
	var sb strings.Builder
	for _, pages := range pagesByDoc {
		for _, page := range pages {
			sb.WriteString(page.Text)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
