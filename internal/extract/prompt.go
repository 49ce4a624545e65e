package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cribs1908/specpipe/internal/profile"
	"github.com/cribs1908/specpipe/internal/synonym"
)

// Prompt size bounds. Per-page OCR text is truncated so a long datasheet
// cannot blow the model's context window; the synonym context is capped at
// the strongest fields and variants.
const (
	pageCharBudget     = 8000
	maxSynonymFields   = 10
	maxSynonymVariants = 5
)

// buildSystemPrompt assembles the extraction instructions for one domain:
// target fields expressed as hints, known synonyms, and the extraction and
// response-format policy.
func buildSystemPrompt(p *profile.DomainProfile, snapshot synonym.Snapshot) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are an expert technical specification extractor specializing in %s documents.\n\n", p.Domain)
	sb.WriteString("TARGET FIELDS TO EXTRACT:\n")
	sb.WriteString(fieldHints(p))

	if ctx := synonymContext(snapshot); ctx != "" {
		sb.WriteString(ctx)
	}

	sb.WriteString(`
EXTRACTION STRATEGY FOR MARKDOWN-FORMATTED DOCUMENTS:
1. STRUCTURED ANALYSIS: The text is in markdown format with tables, headers, and formatted sections
2. TABLE PRIORITY: Focus on markdown tables and specification sections
3. SPEC SECTIONS: Look for "Electrical Characteristics", "Specifications", "Parameters" sections
4. HANDLE RANGES: For ranges like "3.0 - 5.5V" or "min 2.0, typ 3.3, max 5.0", extract the typical or mid-range value
5. UNIT EXTRACTION: Always capture the unit (V, A, mA, MHz, %, etc.)
6. CONFIDENCE SCORING:
   - 0.9-1.0: Clear table entry or specification box
   - 0.7-0.8: Clear text statement
   - 0.5-0.6: Inferred from context
   - Below 0.5: Don't extract

RESPONSE FORMAT - STRICT JSON ARRAY:
[
  {"fieldId": "supply_voltage", "value": "3.3", "unit": "V", "confidence": 0.9, "provenance": {"page": 1, "method": "ocr"}}
]

CRITICAL: Return ONLY a valid JSON array, no markdown formatting, no explanations.`)

	return sb.String()
}

// fieldHints renders each profile field as one extraction hint line, in
// schema-declared order.
func fieldHints(p *profile.DomainProfile) string {
	var sb strings.Builder
	for _, f := range p.Fields {
		hint := f.Description
		if hint == "" {
			hint = f.Name
		}
		fmt.Fprintf(&sb, "- %s: %s", f.ID, hint)
		if units := p.AcceptedUnits(f.ID); len(units) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(units, ", "))
		}
		if len(f.Enums) > 0 {
			fmt.Fprintf(&sb, " - one of: %s", strings.Join(f.Enums, ", "))
		}
		if seeds := p.SynonymsSeed[f.ID]; len(seeds) > 0 {
			fmt.Fprintf(&sb, " - look for %s", strings.Join(seeds, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// synonymContext renders the learned synonym snapshot as prompt lines,
// bounded to keep token usage predictable. Fields are ordered by variant
// count so the strongest mappings survive the cap.
func synonymContext(snapshot synonym.Snapshot) string {
	if len(snapshot.Entries) == 0 {
		return ""
	}

	fieldIDs := make([]string, 0, len(snapshot.Entries))
	for fieldID := range snapshot.Entries {
		fieldIDs = append(fieldIDs, fieldID)
	}
	sort.Slice(fieldIDs, func(i, j int) bool {
		li, lj := len(snapshot.Entries[fieldIDs[i]]), len(snapshot.Entries[fieldIDs[j]])
		if li != lj {
			return li > lj
		}
		return fieldIDs[i] < fieldIDs[j]
	})
	if len(fieldIDs) > maxSynonymFields {
		fieldIDs = fieldIDs[:maxSynonymFields]
	}

	var sb strings.Builder
	sb.WriteString("\nKNOWN SYNONYMS:\n")
	for _, fieldID := range fieldIDs {
		variants := snapshot.Entries[fieldID]
		if len(variants) > maxSynonymVariants {
			variants = variants[:maxSynonymVariants]
		}
		fmt.Fprintf(&sb, "- %s: also called %s\n", fieldID, strings.Join(variants, ", "))
	}
	return sb.String()
}

// buildUserMessage serializes the OCR pages for one document, truncating each
// page to the character budget.
func buildUserMessage(documentID string, pages []pagePayload) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Document: %s\n\n", documentID)
	for _, p := range pages {
		text := p.Text
		if len(text) > pageCharBudget {
			text = text[:pageCharBudget]
		}
		fmt.Fprintf(&sb, "--- Page %d ---\n%s\n\n", p.Page, text)
	}
	return sb.String()
}

type pagePayload struct {
	Page int
	Text string
}
