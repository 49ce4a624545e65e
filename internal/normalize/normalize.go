// Package normalize turns raw LLM extractions into canonical values: range
// detection, unit normalization, enum canonicalization, and outlier/ambiguity
// flagging with confidence penalties. Everything here is pure computation.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/cribs1908/specpipe/internal/model"
)

// Flags set by the normalization pipeline.
const (
	FlagRange            = "range"
	FlagUnitNormalized   = "unit_normalized"
	FlagEnumCanonical    = "enum_canonicalized"
	FlagPotentialOutlier = "potential_outlier"
	FlagAmbiguous        = "ambiguous"
)

const (
	baseConfidence    = 0.9
	outlierPenalty    = 0.7
	ambiguityPenalty  = 0.8
	confidenceFloor   = 0.1
	confidenceCeiling = 1.0
)

// Result is the output of NormalizeValue for one raw extraction.
type Result struct {
	Value      string
	Unit       string
	Note       string
	Flags      []string
	Confidence float64
}

var leadingNumberPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)`)

var ambiguousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)tbd|tba|n/a|unknown|varies|depends`),
	regexp.MustCompile(`(?i)\?|\.\.\.|pending`),
	regexp.MustCompile(`(?i)contact|call|inquire`),
}

// NormalizeValue runs the five-step normalization pipeline over one raw
// extraction. Deterministic and side-effect free; identical input yields
// identical output.
func NormalizeValue(raw model.ExtractionRaw) Result {
	var flags []string
	value := strings.TrimSpace(raw.ValueRaw)
	unit := strings.TrimSpace(raw.UnitRaw)
	var note string
	confidence := baseConfidence

	// 1. Range detection. Min-max ranges keep the "min-max" string form;
	// typical-only patterns collapse to the typical value alone.
	if r := DetectRange(value); r != nil {
		flags = append(flags, FlagRange)
		switch r.Type {
		case RangeMinMax:
			value = r.Min + "-" + r.Max
			note = fmt.Sprintf("Range: min %s, max %s", r.Min, r.Max)
		case RangeTypical:
			value = r.Typical
			note = fmt.Sprintf("Typical value: %s", r.Typical)
		}
	}

	// 2. Unit normalization. Rewrites the unit only; the numeric value is
	// intentionally left as-is (see units.go).
	if unit != "" {
		if canonical := canonicalUnit(unit); canonical != "" {
			original := unit
			unit = canonical
			flags = append(flags, FlagUnitNormalized)
			note = appendNote(note, fmt.Sprintf("Unit normalized from %s", original))
		}
	}

	// 3. Enum canonicalization.
	if canonical := canonicalizeEnum(value, raw.FieldID); canonical != value {
		value = canonical
		flags = append(flags, FlagEnumCanonical)
		note = appendNote(note, fmt.Sprintf("Canonicalized from %s", raw.ValueRaw))
	}

	// 4. Outlier detection on the leading numeric value.
	if isOutlier(value, raw.FieldID) {
		flags = append(flags, FlagPotentialOutlier)
		confidence *= outlierPenalty
	}

	// 5. Ambiguity detection runs against the original raw value so a range
	// rewrite cannot mask filler text.
	if isAmbiguous(raw.ValueRaw) {
		flags = append(flags, FlagAmbiguous)
		confidence *= ambiguityPenalty
	}

	return Result{
		Value:      value,
		Unit:       unit,
		Note:       note,
		Flags:      flags,
		Confidence: clampConfidence(confidence),
	}
}

// NormalizeExtractions applies NormalizeValue per item, assigning fresh
// identity and a provenance reference back to the source raw extraction.
// Safe to call concurrently on disjoint slices.
func NormalizeExtractions(raws []model.ExtractionRaw) []model.ExtractionNorm {
	normalized := make([]model.ExtractionNorm, 0, len(raws))
	for _, raw := range raws {
		result := NormalizeValue(raw)
		normalized = append(normalized, model.ExtractionNorm{
			ID:            uuid.New().String(),
			DocumentID:    raw.DocumentID,
			FieldID:       raw.FieldID,
			Value:         result.Value,
			Unit:          result.Unit,
			Note:          result.Note,
			Flags:         result.Flags,
			ProvenanceRef: raw.ID,
			Confidence:    result.Confidence,
		})
	}
	return normalized
}

// outlierBound is a numeric sanity window keyed by field-id substring.
type outlierBound struct {
	substring string
	max       float64
}

var outlierBounds = []outlierBound{
	{"voltage", 1000},
	{"current", 100},
	{"frequency", 1e10},
	{"price", 100000},
}

// isOutlier checks whether the leading numeric value of a field falls outside
// its sanity bounds.
func isOutlier(value, fieldID string) bool {
	m := leadingNumberPattern.FindStringSubmatch(value)
	if m == nil {
		return false
	}
	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return false
	}
	for _, b := range outlierBounds {
		if strings.Contains(fieldID, b.substring) && (num > b.max || num < 0) {
			return true
		}
	}
	return false
}

func isAmbiguous(value string) bool {
	for _, p := range ambiguousPatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

func appendNote(note, addition string) string {
	if note == "" {
		return addition
	}
	return note + ". " + addition
}

func clampConfidence(c float64) float64 {
	if c < confidenceFloor {
		return confidenceFloor
	}
	if c > confidenceCeiling {
		return confidenceCeiling
	}
	return c
}
