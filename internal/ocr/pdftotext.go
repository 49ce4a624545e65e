package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cribs1908/specpipe/internal/model"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractPages runs pdftotext -layout on the given PDF and splits stdout on
// form feeds, which pdftotext emits at page boundaries.
func (p *PdfToText) ExtractPages(ctx context.Context, pdfPath string) ([]model.OCRPage, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	return splitPages(stdout.String()), nil
}

// splitPages divides raw pdftotext output into pages. Blank pages are kept so
// page numbers in provenance stay aligned with the source document.
func splitPages(text string) []model.OCRPage {
	// pdftotext terminates every page with \f, so drop a trailing empty chunk.
	chunks := strings.Split(text, "\f")
	if len(chunks) > 1 && strings.TrimSpace(chunks[len(chunks)-1]) == "" {
		chunks = chunks[:len(chunks)-1]
	}

	pages := make([]model.OCRPage, 0, len(chunks))
	for i, chunk := range chunks {
		pages = append(pages, model.OCRPage{Page: i + 1, Text: chunk})
	}
	return pages
}
