package model

// Provenance records the page/method evidence backing an extracted value.
type Provenance struct {
	Page   int       `json:"page"`
	BBox   []float64 `json:"bbox,omitempty"`
	Method string    `json:"method"`
}

// ExtractionRaw is a single field candidate as returned by the LLM extractor,
// before normalization. Immutable once produced.
type ExtractionRaw struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"document_id"`
	FieldID    string     `json:"field_id"`
	ValueRaw   string     `json:"value_raw"`
	UnitRaw    string     `json:"unit_raw,omitempty"`
	Source     string     `json:"source"`
	Confidence float64    `json:"confidence"`
	Provenance Provenance `json:"provenance"`
}

// ExtractionNorm is the canonicalized form of one ExtractionRaw. ProvenanceRef
// points back at the source raw extraction.
type ExtractionNorm struct {
	ID            string   `json:"id"`
	DocumentID    string   `json:"document_id"`
	FieldID       string   `json:"field_id"`
	Value         string   `json:"value"`
	Unit          string   `json:"unit,omitempty"`
	Note          string   `json:"note,omitempty"`
	Flags         []string `json:"flags,omitempty"`
	ProvenanceRef string   `json:"provenance_ref"`
	Confidence    float64  `json:"confidence"`
}

// HasFlag reports whether the normalized extraction carries the given flag.
func (e ExtractionNorm) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// TokenUsage tracks LLM token consumption for one extraction call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}
