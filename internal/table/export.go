package table

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/cribs1908/specpipe/internal/model"
)

const exportTTL = 24 * time.Hour

// generateExports serializes the table to CSV, JSON and XLSX, uploads each
// through the blob store, and collects signed download links. Each format
// soft-fails independently: a failed export is logged and its link omitted,
// never failing table construction.
func (b *Builder) generateExports(ctx context.Context, columns []model.TableColumn, rows []model.TableRow) model.ExportSet {
	var exports model.ExportSet
	if b.blobs == nil {
		return exports
	}

	if link, err := b.export(ctx, "comparison.csv", "text/csv", func() ([]byte, error) {
		return generateCSV(columns, rows)
	}); err != nil {
		logExportFailure("csv", err)
	} else {
		exports.CSV = link
	}

	if link, err := b.export(ctx, "comparison.json", "application/json", func() ([]byte, error) {
		return b.generateJSON(columns, rows)
	}); err != nil {
		logExportFailure("json", err)
	} else {
		exports.JSON = link
	}

	if link, err := b.export(ctx, "comparison.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", func() ([]byte, error) {
		return generateXLSX(columns, rows)
	}); err != nil {
		logExportFailure("xlsx", err)
	} else {
		exports.XLSX = link
	}

	return exports
}

// export runs one serialize-upload-sign sequence.
func (b *Builder) export(ctx context.Context, filename, contentType string, serialize func() ([]byte, error)) (*model.ExportLink, error) {
	content, err := serialize()
	if err != nil {
		return nil, eris.Wrapf(err, "table: serialize %s", filename)
	}

	path := fmt.Sprintf("workspace/%s/runs/%s/exports/%s", b.workspaceID, b.runID, filename)
	if err := b.blobs.Upload(ctx, path, content, contentType); err != nil {
		return nil, eris.Wrapf(err, "table: upload %s", filename)
	}

	url, err := b.blobs.SignedURL(ctx, path, exportTTL)
	if err != nil {
		return nil, eris.Wrapf(err, "table: sign %s", filename)
	}

	return &model.ExportLink{
		URL:       url,
		ExpiresAt: time.Now().Add(exportTTL),
	}, nil
}

// cellText renders a cell for flat exports, appending the unit when present.
func cellText(cell model.TableCell, ok bool) string {
	if !ok || cell.Value == "" {
		return ""
	}
	if cell.Unit != "" {
		return cell.Value + " " + cell.Unit
	}
	return cell.Value
}

func generateCSV(columns []model.TableColumn, rows []model.TableRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Name
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			cell, ok := row.Values[col.ID]
			record[i] = cellText(cell, ok)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// exportPayload is the structured JSON dump format.
type exportPayload struct {
	Metadata exportMetadata      `json:"metadata"`
	Columns  []model.TableColumn `json:"columns"`
	Rows     []exportRow         `json:"rows"`
}

type exportMetadata struct {
	RunID       string    `json:"run_id"`
	Domain      string    `json:"domain"`
	GeneratedAt time.Time `json:"generated_at"`
	Columns     int       `json:"columns"`
	Rows        int       `json:"rows"`
}

type exportRow struct {
	FieldID   string                     `json:"field_id"`
	FieldName string                     `json:"field_name"`
	Values    map[string]model.TableCell `json:"values"`
}

func (b *Builder) generateJSON(columns []model.TableColumn, rows []model.TableRow) ([]byte, error) {
	payload := exportPayload{
		Metadata: exportMetadata{
			RunID:       b.runID,
			Domain:      b.domain,
			GeneratedAt: time.Now().UTC(),
			Columns:     len(columns),
			Rows:        len(rows),
		},
		Columns: columns,
		Rows:    make([]exportRow, len(rows)),
	}
	for i, row := range rows {
		payload.Rows[i] = exportRow{
			FieldID:   row.FieldID,
			FieldName: row.FieldName,
			Values:    row.Values,
		}
	}
	return json.MarshalIndent(payload, "", "  ")
}

func generateXLSX(columns []model.TableColumn, rows []model.TableRow) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Comparison"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, col := range columns {
		cellName, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cellName, col.Name); err != nil {
			return nil, err
		}
	}

	for r, row := range rows {
		for c, col := range columns {
			cell, ok := row.Values[col.ID]
			cellName, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cellName, cellText(cell, ok)); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
