package heuristics

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/manikumarthati/extractionWithValidation/constants"
	"github.com/manikumarthati/extractionWithValidation/internal/correction"
	"github.com/manikumarthati/extractionWithValidation/internal/record"
	"github.com/manikumarthati/extractionWithValidation/internal/schema"
)

// RowCandidate is a heuristically reconstructed table row found in raw text
// but absent from the record. Merged by the applicator only when the
// acceptance score clears its threshold.
type RowCandidate struct {
	Table           string         `json:"table"`
	RawLine         string         `json:"raw_line"`
	ParsedFields    map[string]any `json:"parsed_fields"`
	AcceptanceScore float32        `json:"acceptance_score"`
}

// Op converts a candidate into the insert operation the applicator consumes;
// confidence carries the acceptance score so sub-threshold candidates land
// in skippedOps instead of vanishing.
func (c RowCandidate) Op() correction.Op {
	return correction.Op{
		FieldPath:  c.Table,
		Action:     constants.ActionValueInserted,
		NewValue:   map[string]any(c.ParsedFields),
		Confidence: c.AcceptanceScore,
		Source:     constants.SourceHeuristic,
		Reason:     fmt.Sprintf("row recovered from raw text: %q", c.RawLine),
	}
}

// maxCandidatesPerTable caps recovery per scan to limit false positives.
const maxCandidatesPerTable = 3

// minCandidateLineLen filters out fragments and stray labels.
const minCandidateLineLen = 10

// RecoverRows scans raw text line-by-line for table rows the record is
// missing. A line qualifies when at least 2 of 3 indicators are present:
// a numeric token, a currency/percent marker, and a token count within ±1
// of the table's average row token count. Vision models systematically
// under-report missing trailing rows, so this runs every round.
func RecoverRows(rec record.Record, s *schema.Schema, rawText string, logger *slog.Logger) []RowCandidate {
	if logger == nil {
		logger = slog.Default()
	}

	var out []RowCandidate
	lines := strings.Split(rawText, "\n")

	for _, table := range s.Tables() {
		rows, ok := rec.Table(table.Path)
		if !ok || len(rows) == 0 {
			continue
		}
		columns := s.Columns(table.Path)
		if len(columns) == 0 {
			continue
		}

		knownValues := collectKnownValues(rows)
		avgTokens := averageRowTokens(rows)

		found := 0
		for _, line := range lines {
			if found >= maxCandidatesPerTable {
				break
			}
			line = strings.TrimSpace(line)
			if len(line) < minCandidateLineLen {
				continue
			}
			if containsKnownValue(line, knownValues) {
				continue
			}
			score := scoreLine(line, avgTokens)
			if score < 2.0/3.0 {
				continue
			}
			fields := parseRowBackToFront(line, columns)
			if fields == nil {
				continue
			}
			out = append(out, RowCandidate{
				Table:           table.Path,
				RawLine:         line,
				ParsedFields:    fields,
				AcceptanceScore: score,
			})
			found++
			logger.Info("heuristics.rows.candidate",
				"table", table.Path, "line", line, "score", score)
		}
	}
	return out
}

// scoreLine is matched-indicators / 3.
func scoreLine(line string, avgTokens int) float32 {
	tokens := strings.Fields(line)
	indicators := 0
	if anyToken(tokens, containsDigit) {
		indicators++
	}
	if anyToken(tokens, hasCurrencyOrPercent) {
		indicators++
	}
	if avgTokens > 0 && len(tokens) >= avgTokens-1 && len(tokens) <= avgTokens+1 {
		indicators++
	}
	return float32(indicators) / 3.0
}

// parseRowBackToFront assigns tokens to columns from the end of the line:
// the last currency/percent-bearing token maps to the last numeric column,
// working backward; all remaining leading tokens concatenate into the first
// text-typed column (multi-word labels).
func parseRowBackToFront(line string, columns []schema.Field) map[string]any {
	tokens := strings.Fields(line)
	if len(tokens) < 2 {
		return nil
	}

	row := make(map[string]any, len(columns))
	for _, c := range columns {
		row[columnKey(c)] = nil
	}

	var numericCols []schema.Field
	firstText := -1
	for i, c := range columns {
		if expectedShape(c) == shapeNumeric {
			numericCols = append(numericCols, c)
		} else if firstText == -1 {
			firstText = i
		}
	}

	cursor := len(tokens) - 1
	for i := len(numericCols) - 1; i >= 0 && cursor >= 0; i-- {
		for j := cursor; j >= 0; j-- {
			if hasCurrencyOrPercent(tokens[j]) || isNumericToken(tokens[j]) {
				row[columnKey(numericCols[i])] = tokens[j]
				cursor = j - 1
				break
			}
		}
	}

	if firstText >= 0 && cursor >= 0 {
		row[columnKey(columns[firstText])] = strings.Join(tokens[:cursor+1], " ")
	}

	// Every numeric column must be filled: summary lines ("NET PAY $3,712.50")
	// carry an amount but not the full column complement.
	for _, c := range numericCols {
		if row[columnKey(c)] == nil {
			return nil
		}
	}
	populated := 0
	for _, v := range row {
		if v != nil {
			populated++
		}
	}
	if populated < 2 {
		return nil
	}
	return row
}

func collectKnownValues(rows []map[string]any) map[string]struct{} {
	known := make(map[string]struct{})
	for _, row := range rows {
		for _, v := range row {
			if s, ok := v.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					known[s] = struct{}{}
				}
			}
		}
	}
	return known
}

func containsKnownValue(line string, known map[string]struct{}) bool {
	for v := range known {
		if strings.Contains(line, v) {
			return true
		}
	}
	return false
}

// averageRowTokens approximates a row's raw token count by counting tokens
// across its string cells.
func averageRowTokens(rows []map[string]any) int {
	total := 0
	for _, row := range rows {
		for _, v := range row {
			switch t := v.(type) {
			case string:
				total += len(strings.Fields(t))
			case nil:
			default:
				total++
			}
		}
	}
	if len(rows) == 0 {
		return 0
	}
	return total / len(rows)
}

func anyToken(tokens []string, pred func(string) bool) bool {
	for _, t := range tokens {
		if pred(t) {
			return true
		}
	}
	return false
}
