package normalize

import "regexp"

// RangeType distinguishes full min-max ranges from typical-only values.
type RangeType string

const (
	RangeMinMax  RangeType = "min-max"
	RangeTypical RangeType = "typical"
)

// RangeMatch is the parsed form of a range expression found in a raw value.
type RangeMatch struct {
	Type    RangeType
	Min     string
	Max     string
	Typical string
}

// Pattern priority matters: the plain pair forms are tried first, then the
// explicit min/typ/max triple, then the "(typ)" suffix. First match wins.
var (
	rangePairPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*to\s*(\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(\d+(?:\.\d+)?)\s*~\s*(\d+(?:\.\d+)?)`),
	}
	rangeMinTypMaxPattern = regexp.MustCompile(`(?i)min:\s*(\d+(?:\.\d+)?),?\s*typ:\s*(\d+(?:\.\d+)?),?\s*max:\s*(\d+(?:\.\d+)?)`)
	rangeTypicalPattern   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*\(typ\)`)
)

// DetectRange parses a raw value for range notation. Returns nil when the
// value carries no recognized range form.
func DetectRange(value string) *RangeMatch {
	for _, pattern := range rangePairPatterns {
		if m := pattern.FindStringSubmatch(value); m != nil {
			return &RangeMatch{Type: RangeMinMax, Min: m[1], Max: m[2]}
		}
	}

	// min/typ/max triples collapse to their min-max envelope.
	if m := rangeMinTypMaxPattern.FindStringSubmatch(value); m != nil {
		return &RangeMatch{Type: RangeMinMax, Min: m[1], Max: m[3]}
	}

	if m := rangeTypicalPattern.FindStringSubmatch(value); m != nil {
		return &RangeMatch{Type: RangeTypical, Typical: m[1]}
	}

	return nil
}
