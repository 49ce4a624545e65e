// Package table assembles normalized extractions from multiple documents
// into a comparison table: one column per document, one row per field, with
// cross-document highlights, derived insights, and export artifacts.
package table

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cribs1908/specpipe/internal/blob"
	"github.com/cribs1908/specpipe/internal/model"
	"github.com/cribs1908/specpipe/internal/profile"
)

// Builder constructs one immutable ResultTable per run.
type Builder struct {
	runID       string
	workspaceID string
	domain      string
	profile     *profile.DomainProfile
	blobs       blob.Store
}

// New creates a Builder for one run. blobs may be nil, in which case the
// export step is skipped entirely.
func New(runID, workspaceID, domain string, blobs blob.Store) *Builder {
	return &Builder{
		runID:       runID,
		workspaceID: workspaceID,
		domain:      domain,
		profile:     profile.GetProfile(domain),
		blobs:       blobs,
	}
}

// BuildTable assembles the comparison table from all documents' normalized
// extractions. raws supplies provenance for cells via ProvenanceRef; pass nil
// when provenance is not needed. Export failures are logged and soft-fail;
// the table is always returned.
func (b *Builder) BuildTable(ctx context.Context, norms []model.ExtractionNorm, raws []model.ExtractionRaw, documents []model.Document) model.ResultTable {
	columns := b.buildColumns(documents)
	rows := b.buildRows(norms, raws, columns)
	highlights := buildHighlights(rows)
	insights := buildInsights(rows, columns, highlights)
	exports := b.generateExports(ctx, columns, rows)

	return model.ResultTable{
		ID:         uuid.New().String(),
		RunID:      b.runID,
		Columns:    columns,
		Rows:       rows,
		Highlights: highlights,
		Insights:   insights,
		Exports:    exports,
		CreatedAt:  time.Now().UTC(),
	}
}

// buildColumns emits the leading spec column followed by one column per
// document in input order.
func (b *Builder) buildColumns(documents []model.Document) []model.TableColumn {
	columns := make([]model.TableColumn, 0, len(documents)+1)
	columns = append(columns, model.TableColumn{
		ID:   model.SpecColumnID,
		Name: "SPEC",
		Type: model.ColumnTypeSpec,
	})
	for _, doc := range documents {
		columns = append(columns, model.TableColumn{
			ID:         doc.ID,
			Name:       documentName(doc.Filename),
			Type:       model.ColumnTypeDocument,
			DocumentID: doc.ID,
		})
	}
	return columns
}

var (
	pdfExtPattern     = regexp.MustCompile(`\.(pdf|PDF)$`)
	namePrefixPattern = regexp.MustCompile(`(?i)^(spec|datasheet|manual|guide)[-_\s]`)
	nameSuffixPattern = regexp.MustCompile(`(?i)[-_\s](spec|datasheet|manual|guide)$`)
)

// documentName derives a short display name from a filename: strip the
// extension and spec/datasheet affixes, uppercase, truncate past 15 chars.
func documentName(filename string) string {
	name := pdfExtPattern.ReplaceAllString(filename, "")
	name = namePrefixPattern.ReplaceAllString(name, "")
	name = nameSuffixPattern.ReplaceAllString(name, "")
	name = strings.ToUpper(name)
	if len(name) > 15 {
		name = name[:12] + "..."
	}
	if name == "" {
		return "DOC"
	}
	return name
}

// buildRows groups extractions by field and emits one row per field with a
// spec cell plus one cell per document column. Documents with no extraction
// for a field get an empty cell at confidence zero; no row is dropped for
// partial coverage.
func (b *Builder) buildRows(norms []model.ExtractionNorm, raws []model.ExtractionRaw, columns []model.TableColumn) []model.TableRow {
	provByRawID := make(map[string]model.Provenance, len(raws))
	for _, raw := range raws {
		provByRawID[raw.ID] = raw.Provenance
	}

	byField := make(map[string][]model.ExtractionNorm)
	for _, n := range norms {
		byField[n.FieldID] = append(byField[n.FieldID], n)
	}

	rows := make([]model.TableRow, 0, len(byField))
	for fieldID, extractions := range byField {
		fieldName := b.fieldDisplayName(fieldID)
		values := map[string]model.TableCell{
			model.SpecColumnID: {Value: fieldName, Confidence: 1.0},
		}

		for _, col := range columns {
			if col.Type != model.ColumnTypeDocument {
				continue
			}
			cell := model.TableCell{Value: "", Confidence: 0}
			for _, e := range extractions {
				if e.DocumentID != col.DocumentID {
					continue
				}
				cell = model.TableCell{
					Value:      e.Value,
					Unit:       e.Unit,
					Confidence: e.Confidence,
					Flags:      e.Flags,
					Note:       e.Note,
				}
				if prov, ok := provByRawID[e.ProvenanceRef]; ok {
					cell.Provenance = &prov
				}
				break
			}
			values[col.ID] = cell
		}

		rows = append(rows, model.TableRow{
			ID:        uuid.New().String(),
			FieldID:   fieldID,
			FieldName: fieldName,
			Values:    values,
		})
	}

	b.sortRows(rows)
	return rows
}

// fieldDisplayName resolves the profile's display name, falling back to the
// field ID with underscores replaced by spaces. Always uppercased.
func (b *Builder) fieldDisplayName(fieldID string) string {
	if b.profile != nil {
		if f := b.profile.Field(fieldID); f != nil {
			return strings.ToUpper(f.Name)
		}
	}
	return strings.ToUpper(strings.ReplaceAll(fieldID, "_", " "))
}

// sortRows orders profile fields first in schema-declared order, then
// unprofiled fields alphabetically by display name.
func (b *Builder) sortRows(rows []model.TableRow) {
	index := func(fieldID string) int {
		if b.profile == nil {
			return -1
		}
		return b.profile.FieldIndex(fieldID)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ai, bi := index(rows[i].FieldID), index(rows[j].FieldID)
		switch {
		case ai >= 0 && bi >= 0:
			return ai < bi
		case ai >= 0:
			return true
		case bi >= 0:
			return false
		default:
			return rows[i].FieldName < rows[j].FieldName
		}
	})
}

func logExportFailure(kind string, err error) {
	zap.L().Warn("table: export failed",
		zap.String("kind", kind),
		zap.Error(err),
	)
}
