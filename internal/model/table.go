package model

import "time"

// ColumnType distinguishes the leading spec column from document columns.
type ColumnType string

const (
	ColumnTypeSpec     ColumnType = "spec"
	ColumnTypeDocument ColumnType = "document"
)

// SpecColumnID is the fixed ID of the leading spec column.
const SpecColumnID = "spec"

// TableColumn is one column of a comparison table.
type TableColumn struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	DocumentID string     `json:"document_id,omitempty"`
}

// TableCell is a single cell value with its confidence and normalization
// metadata carried through from the extraction.
type TableCell struct {
	Value      string      `json:"value"`
	Unit       string      `json:"unit,omitempty"`
	Confidence float64     `json:"confidence"`
	Provenance *Provenance `json:"provenance,omitempty"`
	Flags      []string    `json:"flags,omitempty"`
	Note       string      `json:"note,omitempty"`
}

// HasFlag reports whether the cell carries the given normalization flag.
func (c TableCell) HasFlag(flag string) bool {
	for _, f := range c.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// TableRow is one field's values across all columns.
type TableRow struct {
	ID        string               `json:"id"`
	FieldID   string               `json:"field_id"`
	FieldName string               `json:"field_name"`
	Values    map[string]TableCell `json:"values"`
}

// Outlier marks one cell whose value deviates materially from its row.
type Outlier struct {
	FieldID  string `json:"field_id"`
	ColumnID string `json:"column_id"`
	Reason   string `json:"reason"`
}

// Highlights holds cross-document best/worst/outlier designations.
type Highlights struct {
	BestValues  map[string]string `json:"best_values"`
	WorstValues map[string]string `json:"worst_values"`
	Outliers    []Outlier         `json:"outliers"`
}

// ExportLink is a time-limited signed URL to a generated export artifact.
type ExportLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportSet holds whichever export artifacts were generated successfully.
// A missing entry means that artifact's generation failed or was skipped.
type ExportSet struct {
	CSV  *ExportLink `json:"csv,omitempty"`
	JSON *ExportLink `json:"json,omitempty"`
	XLSX *ExportLink `json:"xlsx,omitempty"`
}

// ResultTable is the immutable output of one table build. A rerun produces a
// new ResultTable rather than mutating an old one.
type ResultTable struct {
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	Columns    []TableColumn `json:"columns"`
	Rows       []TableRow    `json:"rows"`
	Highlights Highlights    `json:"highlights"`
	Insights   []string      `json:"insights"`
	Exports    ExportSet     `json:"exports"`
	CreatedAt  time.Time     `json:"created_at"`
}
