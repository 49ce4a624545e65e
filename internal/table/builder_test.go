package table

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cribs1908/specpipe/internal/model"
)

// memBlobStore keeps uploads in memory. failUpload simulates storage outage.
type memBlobStore struct {
	objects    map[string][]byte
	failUpload bool
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: map[string][]byte{}}
}

func (s *memBlobStore) Upload(_ context.Context, path string, content []byte, _ string) error {
	if s.failUpload {
		return fmt.Errorf("bucket unavailable")
	}
	s.objects[path] = content
	return nil
}

func (s *memBlobStore) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "https://blobs.local/" + path + "?sig=abc", nil
}

func docs(n int) []model.Document {
	out := make([]model.Document, n)
	for i := range out {
		out[i] = model.Document{
			ID:       fmt.Sprintf("doc-%d", i+1),
			RunID:    "run-1",
			Filename: fmt.Sprintf("chip%d.pdf", i+1),
		}
	}
	return out
}

func norm(docID, fieldID, value, unit string, confidence float64) model.ExtractionNorm {
	return model.ExtractionNorm{
		ID:            "norm-" + docID + "-" + fieldID,
		DocumentID:    docID,
		FieldID:       fieldID,
		Value:         value,
		Unit:          unit,
		ProvenanceRef: "raw-" + docID + "-" + fieldID,
		Confidence:    confidence,
	}
}

func TestBuildColumns(t *testing.T) {
	b := New("run-1", "ws-1", "Chip", nil)
	table := b.BuildTable(context.Background(), nil, nil, []model.Document{
		{ID: "doc-1", Filename: "datasheet_LM317-regulator.pdf"},
		{ID: "doc-2", Filename: "spec very-long-component-name-here.pdf"},
		{ID: "doc-3", Filename: "spec_.pdf"},
	})

	require.Len(t, table.Columns, 4)
	assert.Equal(t, model.SpecColumnID, table.Columns[0].ID)
	assert.Equal(t, model.ColumnTypeSpec, table.Columns[0].Type)
	assert.Equal(t, "SPEC", table.Columns[0].Name)

	assert.Equal(t, "LM317-REGULATOR", table.Columns[1].Name)
	assert.Equal(t, "doc-1", table.Columns[1].DocumentID)
	assert.Equal(t, model.ColumnTypeDocument, table.Columns[1].Type)
	assert.Equal(t, "VERY-LONG-CO...", table.Columns[2].Name)
	assert.Equal(t, "DOC", table.Columns[3].Name)
}

func TestDocumentName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"LM317.pdf", "LM317"},
		{"datasheet-lm317.pdf", "LM317"},
		{"lm317_datasheet.pdf", "LM317"},
		{"guide relay.PDF", "RELAY"},
		{"exactly-15-ch.pdf", "EXACTLY-15-CH"},
		{"", "DOC"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, documentName(tt.in), "filename %q", tt.in)
	}
}

func TestBuildRows_Completeness(t *testing.T) {
	// Only document A has field X; the row still carries a cell for B.
	b := New("run-1", "ws-1", "Chip", nil)
	norms := []model.ExtractionNorm{
		norm("doc-1", "supply_voltage", "3.3", "V", 0.9),
	}
	table := b.BuildTable(context.Background(), norms, nil, docs(2))

	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	assert.Equal(t, "supply_voltage", row.FieldID)
	assert.Equal(t, "SUPPLY VOLTAGE", row.FieldName)

	filled := row.Values["doc-1"]
	assert.Equal(t, "3.3", filled.Value)
	assert.Equal(t, "V", filled.Unit)
	assert.Equal(t, 0.9, filled.Confidence)

	empty := row.Values["doc-2"]
	assert.Equal(t, "", empty.Value)
	assert.Zero(t, empty.Confidence)

	spec := row.Values[model.SpecColumnID]
	assert.Equal(t, "SUPPLY VOLTAGE", spec.Value)
	assert.Equal(t, 1.0, spec.Confidence)
}

func TestBuildRows_Ordering(t *testing.T) {
	b := New("run-1", "ws-1", "Chip", nil)
	norms := []model.ExtractionNorm{
		norm("doc-1", "zeta_custom", "1", "", 0.5),
		norm("doc-1", "frequency", "16", "MHz", 0.9),
		norm("doc-1", "supply_voltage", "3.3", "V", 0.9),
		norm("doc-1", "alpha_custom", "2", "", 0.5),
	}
	table := b.BuildTable(context.Background(), norms, nil, docs(1))

	require.Len(t, table.Rows, 4)
	// Profile fields first in schema order, then unprofiled alphabetically.
	assert.Equal(t, "supply_voltage", table.Rows[0].FieldID)
	assert.Equal(t, "frequency", table.Rows[1].FieldID)
	assert.Equal(t, "alpha_custom", table.Rows[2].FieldID)
	assert.Equal(t, "zeta_custom", table.Rows[3].FieldID)
}

func TestBuildRows_Provenance(t *testing.T) {
	b := New("run-1", "ws-1", "Chip", nil)
	raws := []model.ExtractionRaw{{
		ID:         "raw-doc-1-supply_voltage",
		DocumentID: "doc-1",
		FieldID:    "supply_voltage",
		Provenance: model.Provenance{Page: 3, Method: "ocr"},
	}}
	norms := []model.ExtractionNorm{norm("doc-1", "supply_voltage", "3.3", "V", 0.9)}

	table := b.BuildTable(context.Background(), norms, raws, docs(1))
	cell := table.Rows[0].Values["doc-1"]
	require.NotNil(t, cell.Provenance)
	assert.Equal(t, 3, cell.Provenance.Page)
	assert.Equal(t, "ocr", cell.Provenance.Method)
}

func TestHighlights_LowerIsBetter(t *testing.T) {
	b := New("run-1", "ws-1", "SaaS", nil)
	norms := []model.ExtractionNorm{
		norm("doc-1", "pricing_price", "1.0", "$", 0.9),
		norm("doc-2", "pricing_price", "2.0", "$", 0.9),
		norm("doc-3", "pricing_price", "3.0", "$", 0.9),
	}
	table := b.BuildTable(context.Background(), norms, nil, docs(3))

	assert.Equal(t, "doc-1", table.Highlights.BestValues["pricing_price"])
	assert.Equal(t, "doc-3", table.Highlights.WorstValues["pricing_price"])
}

func TestHighlights_HigherIsBetter(t *testing.T) {
	b := New("run-1", "ws-1", "SaaS", nil)
	norms := []model.ExtractionNorm{
		norm("doc-1", "sla", "99.9", "%", 0.9),
		norm("doc-2", "sla", "99.99", "%", 0.9),
	}
	table := b.BuildTable(context.Background(), norms, nil, docs(2))

	assert.Equal(t, "doc-2", table.Highlights.BestValues["sla"])
	assert.Equal(t, "doc-1", table.Highlights.WorstValues["sla"])
}

func TestHighlights_NoPreferenceField(t *testing.T) {
	// Voltage is in neither direction table: no best/worst highlight.
	b := New("run-1", "ws-1", "Chip", nil)
	norms := []model.ExtractionNorm{
		norm("doc-1", "supply_voltage", "3.3", "V", 0.9),
		norm("doc-2", "supply_voltage", "5.0", "V", 0.9),
	}
	table := b.BuildTable(context.Background(), norms, nil, docs(2))

	assert.NotContains(t, table.Highlights.BestValues, "supply_voltage")
	assert.NotContains(t, table.Highlights.WorstValues, "supply_voltage")
}

func TestHighlights_MedianOutlier(t *testing.T) {
	b := New("run-1", "ws-1", "Chip", nil)
	norms := []model.ExtractionNorm{
		norm("doc-1", "supply_voltage", "3.0", "V", 0.9),
		norm("doc-2", "supply_voltage", "3.3", "V", 0.9),
		norm("doc-3", "supply_voltage", "12.0", "V", 0.9),
	}
	table := b.BuildTable(context.Background(), norms, nil, docs(3))

	require.Len(t, table.Highlights.Outliers, 1)
	out := table.Highlights.Outliers[0]
	assert.Equal(t, "supply_voltage", out.FieldID)
	assert.Equal(t, "doc-3", out.ColumnID)
	assert.Contains(t, out.Reason, "median")
}

func TestHighlights_NormalizerFlagSurfaced(t *testing.T) {
	b := New("run-1", "ws-1", "Chip", nil)
	flagged := norm("doc-1", "supply_current", "5000", "A", 0.63)
	flagged.Flags = []string{"potential_outlier"}
	norms := []model.ExtractionNorm{
		flagged,
		norm("doc-2", "supply_current", "50", "mA", 0.9),
	}
	table := b.BuildTable(context.Background(), norms, nil, docs(2))

	require.Len(t, table.Highlights.Outliers, 1)
	assert.Equal(t, "doc-1", table.Highlights.Outliers[0].ColumnID)
	assert.Contains(t, table.Highlights.Outliers[0].Reason, "normalization")
}

func TestInsights_SingleDocument(t *testing.T) {
	b := New("run-1", "ws-1", "Chip", nil)
	norms := []model.ExtractionNorm{norm("doc-1", "supply_voltage", "3.3", "V", 0.9)}
	table := b.BuildTable(context.Background(), norms, nil, docs(1))

	require.Len(t, table.Insights, 1)
	assert.Contains(t, table.Insights[0], "Upload at least 2 documents")
}

func TestInsights_BestPerformerAndCompleteness(t *testing.T) {
	b := New("run-1", "ws-1", "SaaS", nil)
	norms := []model.ExtractionNorm{
		norm("doc-1", "pricing", "49", "$", 0.9),
		norm("doc-2", "pricing", "99", "$", 0.9),
		// sla and api_latency present only for doc-1: completeness 4/6.
		norm("doc-1", "sla", "99.99", "%", 0.9),
		norm("doc-1", "api_latency", "120", "ms", 0.8),
	}
	table := b.BuildTable(context.Background(), norms, nil, docs(2))

	require.NotEmpty(t, table.Insights)
	assert.Contains(t, table.Insights[0], "Best overall performance: CHIP1")
	joined := ""
	for _, s := range table.Insights {
		joined += s + "\n"
	}
	assert.Contains(t, joined, "outperforms")
	assert.Contains(t, joined, "Data completeness: 67%")
	assert.LessOrEqual(t, len(table.Insights), 5)
}

func TestExports_CSVRoundTrip(t *testing.T) {
	blobs := newMemBlobStore()
	b := New("run-1", "ws-1", "Chip", blobs)
	norms := []model.ExtractionNorm{
		norm("doc-1", "supply_voltage", "3.3", "V", 0.9),
		norm("doc-2", "supply_voltage", "5.0", "V", 0.9),
		norm("doc-1", "package_type", `DIP-8, "narrow"`, "", 0.8),
	}
	table := b.BuildTable(context.Background(), norms, nil, docs(2))

	require.NotNil(t, table.Exports.CSV)
	assert.Contains(t, table.Exports.CSV.URL, "workspace/ws-1/runs/run-1/exports/comparison.csv")
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), table.Exports.CSV.ExpiresAt, time.Minute)

	content := blobs.objects["workspace/ws-1/runs/run-1/exports/comparison.csv"]
	require.NotEmpty(t, content)

	records, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + 2 rows
	assert.Len(t, records[0], 3)
	assert.Equal(t, "SPEC", records[0][0])
	assert.Equal(t, "SUPPLY VOLTAGE", records[1][0])
	assert.Equal(t, "3.3 V", records[1][1])
	assert.Equal(t, "5.0 V", records[1][2])
	// Comma and quote survive escaping.
	assert.Equal(t, `DIP-8, "narrow"`, records[2][1])
}

func TestExports_JSONAndXLSX(t *testing.T) {
	blobs := newMemBlobStore()
	b := New("run-1", "ws-1", "Chip", blobs)
	norms := []model.ExtractionNorm{norm("doc-1", "supply_voltage", "3.3", "V", 0.9)}
	table := b.BuildTable(context.Background(), norms, nil, docs(2))

	require.NotNil(t, table.Exports.JSON)
	jsonContent := blobs.objects["workspace/ws-1/runs/run-1/exports/comparison.json"]
	assert.Contains(t, string(jsonContent), `"run_id": "run-1"`)
	assert.Contains(t, string(jsonContent), `"field_id": "supply_voltage"`)

	require.NotNil(t, table.Exports.XLSX)
	xlsxContent := blobs.objects["workspace/ws-1/runs/run-1/exports/comparison.xlsx"]
	assert.True(t, bytes.HasPrefix(xlsxContent, []byte("PK")), "xlsx is a zip container")
}

func TestExports_SoftFail(t *testing.T) {
	blobs := newMemBlobStore()
	blobs.failUpload = true
	b := New("run-1", "ws-1", "Chip", blobs)
	norms := []model.ExtractionNorm{norm("doc-1", "supply_voltage", "3.3", "V", 0.9)}

	table := b.BuildTable(context.Background(), norms, nil, docs(1))

	assert.Nil(t, table.Exports.CSV)
	assert.Nil(t, table.Exports.JSON)
	assert.Nil(t, table.Exports.XLSX)
	assert.NotEmpty(t, table.Rows, "export failure must not abort table construction")
}

func TestExports_SkippedWithoutBlobStore(t *testing.T) {
	b := New("run-1", "ws-1", "Chip", nil)
	table := b.BuildTable(context.Background(), []model.ExtractionNorm{norm("doc-1", "supply_voltage", "3.3", "V", 0.9)}, nil, docs(1))
	assert.Nil(t, table.Exports.CSV)
	assert.Nil(t, table.Exports.JSON)
	assert.Nil(t, table.Exports.XLSX)
}
