package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cribs1908/specpipe/internal/blob"
	"github.com/cribs1908/specpipe/internal/extract"
	"github.com/cribs1908/specpipe/internal/ocr"
	"github.com/cribs1908/specpipe/internal/pipeline"
	"github.com/cribs1908/specpipe/internal/store"
	anthropicpkg "github.com/cribs1908/specpipe/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "specpipe.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initPipeline(st store.Store) (*pipeline.Pipeline, error) {
	ocrExt, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		return nil, eris.Wrap(err, "init ocr")
	}

	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (SPECPIPE_ANTHROPIC_KEY)")
	}
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	opts := []extract.Option{
		extract.WithModel(cfg.Anthropic.Model),
		extract.WithMaxTokens(cfg.Anthropic.MaxTokens),
	}
	if cfg.Pipeline.LLMRequestsPerSecond > 0 {
		opts = append(opts, extract.WithRateLimit(cfg.Pipeline.LLMRequestsPerSecond))
	}
	extractor := extract.New(anthropicClient, opts...)

	// Blob storage is optional. Without it, runs complete but exports and
	// source maps are skipped.
	var blobs blob.Store
	if cfg.Blob.BaseDir != "" {
		blobs, err = blob.NewFSStore(cfg.Blob.BaseDir, cfg.Blob.BaseURL, cfg.Blob.Secret)
		if err != nil {
			zap.L().Warn("blob store init failed, exports disabled", zap.Error(err))
			blobs = nil
		}
	}

	return pipeline.New(cfg, st, ocrExt, extractor, blobs), nil
}
