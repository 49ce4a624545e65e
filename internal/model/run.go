package model

import "time"

// RunStatus is the lifecycle state of a comparison run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusProcessing RunStatus = "processing"
	RunStatusReady      RunStatus = "ready"
	RunStatusError      RunStatus = "error"
)

// Run is one end-to-end comparison request over a fixed set of documents.
type Run struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Domain      string    `json:"domain"`
	Status      RunStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Document is one uploaded spec sheet within a run.
type Document struct {
	ID       string `json:"id"`
	RunID    string `json:"run_id"`
	Filename string `json:"filename"`
	Path     string `json:"path,omitempty"`
	// Position is the document's place in the submission order. Column order
	// in the result table follows it.
	Position int  `json:"position"`
	Pages    int  `json:"pages,omitempty"`
	OCRUsed  bool `json:"ocr_used,omitempty"`
}

// OCRPage is one page of OCR output for a document. Text is markdown-shaped:
// the extractor's prompt strategy relies on table layout cues surviving OCR.
type OCRPage struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}
