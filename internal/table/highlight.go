package table

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cribs1908/specpipe/internal/model"
	"github.com/cribs1908/specpipe/internal/normalize"
)

// Direction preference keyed by field-id substring. Fields matching neither
// table are genuinely neutral (voltage, package type) and get no best/worst
// highlight at all.
var (
	higherBetterTerms = []string{
		"sla", "uptime", "nps", "security", "frequency", "performance",
		"speed", "throughput", "bandwidth", "rating", "score",
	}
	lowerBetterTerms = []string{
		"latency", "delay", "price", "pricing", "cost", "power", "current",
		"onboarding", "setup_time", "response_time",
	}
)

// fieldDirection reports whether higher values are better for a field. The
// second return is false when the field has no preference either way.
func fieldDirection(fieldID string) (higherBetter, ok bool) {
	lower := strings.ToLower(fieldID)
	for _, term := range higherBetterTerms {
		if strings.Contains(lower, term) {
			return true, true
		}
	}
	for _, term := range lowerBetterTerms {
		if strings.Contains(lower, term) {
			return false, true
		}
	}
	return false, false
}

var leadingNumber = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// parseNumericValue extracts the first number in a cell value. Returns false
// for non-numeric cells.
func parseNumericValue(value string) (float64, bool) {
	m := leadingNumber.FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}
	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return num, true
}

type numericCell struct {
	columnID string
	value    float64
}

// buildHighlights ranks each row's numeric document cells, assigning best and
// worst columns for fields with a direction preference and flagging outliers
// by deviation from the row median. Cells the normalizer already flagged as
// potential outliers are surfaced independently.
func buildHighlights(rows []model.TableRow) model.Highlights {
	h := model.Highlights{
		BestValues:  map[string]string{},
		WorstValues: map[string]string{},
	}

	for _, row := range rows {
		// Fixed column order keeps highlight output deterministic.
		columnIDs := make([]string, 0, len(row.Values))
		for columnID := range row.Values {
			if columnID != model.SpecColumnID {
				columnIDs = append(columnIDs, columnID)
			}
		}
		sort.Strings(columnIDs)
		if len(columnIDs) < 2 {
			continue
		}

		var numeric []numericCell
		for _, columnID := range columnIDs {
			if num, ok := parseNumericValue(row.Values[columnID].Value); ok {
				numeric = append(numeric, numericCell{columnID: columnID, value: num})
			}
		}

		if len(numeric) >= 2 {
			if higherBetter, ok := fieldDirection(row.FieldID); ok {
				ranked := append([]numericCell(nil), numeric...)
				sort.SliceStable(ranked, func(i, j int) bool {
					if higherBetter {
						return ranked[i].value > ranked[j].value
					}
					return ranked[i].value < ranked[j].value
				})
				h.BestValues[row.FieldID] = ranked[0].columnID
				h.WorstValues[row.FieldID] = ranked[len(ranked)-1].columnID
			}

			if len(numeric) >= 3 {
				med := median(numeric)
				for _, item := range numeric {
					if abs(item.value-med) > 2*med {
						h.Outliers = append(h.Outliers, model.Outlier{
							FieldID:  row.FieldID,
							ColumnID: item.columnID,
							Reason:   fmt.Sprintf("Value %g significantly differs from median %.2f", item.value, med),
						})
					}
				}
			}
		}

		for _, columnID := range columnIDs {
			if row.Values[columnID].HasFlag(normalize.FlagPotentialOutlier) {
				h.Outliers = append(h.Outliers, model.Outlier{
					FieldID:  row.FieldID,
					ColumnID: columnID,
					Reason:   "Flagged as potential outlier during normalization",
				})
			}
		}
	}

	return h
}

func median(cells []numericCell) float64 {
	values := make([]float64, len(cells))
	for i, c := range cells {
		values[i] = c.value
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2
	}
	return values[mid]
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
