package table

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cribs1908/specpipe/internal/model"
)

const maxInsights = 5

// buildInsights derives up to five natural-language observations from the
// assembled rows and highlights.
func buildInsights(rows []model.TableRow, columns []model.TableColumn, highlights model.Highlights) []string {
	var insights []string

	documentCount := 0
	for _, col := range columns {
		if col.Type == model.ColumnTypeDocument {
			documentCount++
		}
	}
	if documentCount < 2 {
		return []string{"Upload at least 2 documents to enable comparison insights."}
	}

	names := columnNames(columns)

	if performers := bestPerformers(highlights, names); len(performers) > 0 {
		insights = append(insights, fmt.Sprintf("Best overall performance: %s", strings.Join(performers, ", ")))
	}

	// Per-field winner sentences for the leading rows.
	limit := len(rows)
	if limit > 3 {
		limit = 3
	}
	for _, row := range rows[:limit] {
		bestColumn := highlights.BestValues[row.FieldID]
		worstColumn := highlights.WorstValues[row.FieldID]
		if bestColumn == "" || worstColumn == "" || bestColumn == worstColumn {
			continue
		}
		bestCell, bestOK := row.Values[bestColumn]
		worstCell, worstOK := row.Values[worstColumn]
		if !bestOK || !worstOK {
			continue
		}
		if improvement, ok := relativeImprovement(bestCell.Value, worstCell.Value); ok {
			insights = append(insights, fmt.Sprintf("%s: %s outperforms %s by %s",
				row.FieldName, names[bestColumn], names[worstColumn], improvement))
		}
	}

	if n := len(highlights.Outliers); n > 0 {
		plural := ""
		if n > 1 {
			plural = "s"
		}
		insights = append(insights, fmt.Sprintf("Found %d potential outlier%s - review highlighted values", n, plural))
	}

	if completeness := dataCompleteness(rows); completeness < 0.8 {
		insights = append(insights, fmt.Sprintf("Data completeness: %.0f%% - some fields may need manual review", completeness*100))
	}

	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}

func columnNames(columns []model.TableColumn) map[string]string {
	names := make(map[string]string, len(columns))
	for _, col := range columns {
		names[col.ID] = col.Name
	}
	return names
}

// bestPerformers counts per-document wins across the best-value highlights
// and returns the top two document names.
func bestPerformers(highlights model.Highlights, names map[string]string) []string {
	wins := map[string]int{}
	for _, columnID := range highlights.BestValues {
		if columnID != model.SpecColumnID {
			wins[columnID]++
		}
	}
	if len(wins) == 0 {
		return nil
	}

	type score struct {
		columnID string
		wins     int
	}
	scores := make([]score, 0, len(wins))
	for columnID, n := range wins {
		scores = append(scores, score{columnID, n})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].wins != scores[j].wins {
			return scores[i].wins > scores[j].wins
		}
		return scores[i].columnID < scores[j].columnID
	})
	if len(scores) > 2 {
		scores = scores[:2]
	}

	performers := make([]string, 0, len(scores))
	for _, s := range scores {
		if name := names[s.columnID]; name != "" {
			performers = append(performers, name)
		}
	}
	return performers
}

// relativeImprovement formats the percentage gap between best and worst.
// Differences under 5% are not worth a sentence.
func relativeImprovement(bestValue, worstValue string) (string, bool) {
	best, bestOK := parseNumericValue(bestValue)
	worst, worstOK := parseNumericValue(worstValue)
	if !bestOK || !worstOK || worst == 0 {
		return "", false
	}
	improvement := abs((best - worst) / worst * 100)
	if improvement < 5 {
		return "", false
	}
	return fmt.Sprintf("%.0f%%", improvement), true
}

// dataCompleteness is the share of document cells holding a value.
func dataCompleteness(rows []model.TableRow) float64 {
	total, filled := 0, 0
	for _, row := range rows {
		for columnID, cell := range row.Values {
			if columnID == model.SpecColumnID {
				continue
			}
			total++
			if strings.TrimSpace(cell.Value) != "" {
				filled++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(filled) / float64(total)
}
