// Package extract turns OCR'd document text into raw field extractions by
// prompting an LLM with the domain profile's field hints and the workspace's
// learned synonyms.
package extract

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cribs1908/specpipe/internal/model"
	"github.com/cribs1908/specpipe/internal/profile"
	"github.com/cribs1908/specpipe/internal/resilience"
	"github.com/cribs1908/specpipe/internal/synonym"
	"github.com/cribs1908/specpipe/pkg/anthropic"
)

const (
	DefaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 4000
	temperature      = 0.1
)

// Extractor prompts the LLM once per document and parses the response into
// raw extractions.
type Extractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(e *Extractor) { e.model = model }
}

// WithMaxTokens overrides the response token cap.
func WithMaxTokens(n int64) Option {
	return func(e *Extractor) { e.maxTokens = n }
}

// WithRateLimit bounds LLM calls to n requests per second.
func WithRateLimit(n float64) Option {
	return func(e *Extractor) { e.limiter = rate.NewLimiter(rate.Limit(n), 1) }
}

// New creates an Extractor backed by the given LLM client.
func New(client anthropic.Client, opts ...Option) *Extractor {
	e := &Extractor{
		client:    client,
		model:     DefaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WarmCache sends one primer request with the run's system prompt so that
// subsequent per-document calls hit a warm prompt cache. Failures are
// non-fatal; extraction proceeds without the cache benefit.
func (e *Extractor) WarmCache(ctx context.Context, domain string, snapshot synonym.Snapshot) error {
	p := profile.GetProfile(domain)
	if p == nil {
		return eris.Errorf("extract: unknown domain %q", domain)
	}
	req := anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 16,
		System:    anthropic.BuildCachedSystemBlocks(buildSystemPrompt(p, snapshot)),
		Messages:  []anthropic.Message{{Role: "user", Content: "Acknowledge receipt of the extraction instructions."}},
	}
	if _, err := anthropic.PrimerRequest(ctx, e.client, req); err != nil {
		return eris.Wrap(err, "extract: warm cache")
	}
	return nil
}

// ExtractFields extracts the domain profile's fields from one document's OCR
// pages. A response that fails to parse yields zero extractions and a nil
// error; transport or auth failures are returned to the caller, which decides
// whether to fail the run or continue with partial documents.
func (e *Extractor) ExtractFields(ctx context.Context, domain, documentID string, pages []model.OCRPage, snapshot synonym.Snapshot) ([]model.ExtractionRaw, model.TokenUsage, error) {
	var usage model.TokenUsage

	p := profile.GetProfile(domain)
	if p == nil {
		return nil, usage, eris.Errorf("extract: unknown domain %q", domain)
	}
	if len(pages) == 0 {
		return nil, usage, nil
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, usage, eris.Wrap(err, "extract: rate limit wait")
		}
	}

	payload := make([]pagePayload, len(pages))
	for i, page := range pages {
		payload[i] = pagePayload{Page: page.Page, Text: page.Text}
	}

	// The system prompt is identical for every document in a run, so a cache
	// breakpoint lets subsequent documents hit the warm prompt cache.
	req := anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(buildSystemPrompt(p, snapshot)),
		Messages:    []anthropic.Message{{Role: "user", Content: buildUserMessage(documentID, payload)}},
		Temperature: floatPtr(temperature),
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "extract")
	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, usage, eris.Wrapf(err, "extract: document %s", documentID)
	}

	usage = model.TokenUsage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	resp.Usage.LogCost(e.model, "extract")

	items := parseExtractions(extractText(resp))
	raws := make([]model.ExtractionRaw, 0, len(items))
	for _, item := range items {
		method := item.Provenance.Method
		if method == "" {
			method = "llm"
		}
		raws = append(raws, model.ExtractionRaw{
			ID:         uuid.New().String(),
			DocumentID: documentID,
			FieldID:    item.FieldID,
			ValueRaw:   item.Value,
			UnitRaw:    item.Unit,
			Source:     fmt.Sprintf("page %d", item.Provenance.Page),
			Confidence: item.Confidence,
			Provenance: model.Provenance{
				Page:   item.Provenance.Page,
				BBox:   item.Provenance.BBox,
				Method: method,
			},
		})
	}

	zap.L().Debug("extract: document complete",
		zap.String("document", documentID),
		zap.String("domain", domain),
		zap.Int("pages", len(pages)),
		zap.Int("extractions", len(raws)),
	)
	return raws, usage, nil
}

// extractText concatenates all text content blocks of a response.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var out string
	for _, b := range resp.Content {
		if b.Type == "" || b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

func floatPtr(f float64) *float64 { return &f }
