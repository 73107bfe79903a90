package heuristics

import (
	"fmt"
	"log/slog"

	"github.com/manikumarthati/extractionWithValidation/constants"
	"github.com/manikumarthati/extractionWithValidation/internal/correction"
	"github.com/manikumarthati/extractionWithValidation/internal/record"
	"github.com/manikumarthati/extractionWithValidation/internal/schema"
)

// ShiftReport classifies a table's misalignment. Ephemeral: recomputed each
// round from the current record, never persisted standalone.
type ShiftReport struct {
	Table           string                 `json:"table"`
	Pattern         constants.ShiftPattern `json:"pattern"`
	ColumnsAffected []string               `json:"columns_affected,omitempty"`
	Complexity      constants.Complexity   `json:"complexity"`
	AffectedRows    []int                  `json:"affected_rows,omitempty"`
}

// heuristicMoveConfidence applies to shift-repair ops. Deterministic
// detection, but the destination inference can still be wrong on exotic
// layouts, so it stays below certainty.
const heuristicMoveConfidence = 0.85

// rowShift is one row's alignment analysis.
type rowShift struct {
	moves      []columnMove
	mismatched []int // column indexes that mismatch with no detectable destination
	uniform    bool
	offset     int
}

type columnMove struct {
	from, to int
}

// AnalyzeShifts inspects every table-typed field group and classifies how
// its rows are misaligned against the columns' expected shapes. It returns
// one report per table plus the value_moved ops that would repair the
// detected shifts.
func AnalyzeShifts(rec record.Record, s *schema.Schema, logger *slog.Logger) ([]ShiftReport, []correction.Op) {
	if logger == nil {
		logger = slog.Default()
	}

	var reports []ShiftReport
	var ops []correction.Op

	for _, table := range s.Tables() {
		rows, ok := rec.Table(table.Path)
		if !ok || len(rows) == 0 {
			continue
		}
		columns := s.Columns(table.Path)
		if len(columns) < 2 {
			continue
		}

		report := ShiftReport{Table: table.Path, Pattern: constants.ShiftNone, Complexity: constants.ComplexityLow}
		affectedCols := map[string]struct{}{}
		rowPatterns := make([]constants.ShiftPattern, len(rows))

		for i, row := range rows {
			rs := analyzeRow(row, columns)
			rowPatterns[i] = classifyRow(rs)
			if rowPatterns[i] == constants.ShiftNone {
				continue
			}
			report.AffectedRows = append(report.AffectedRows, i)
			for _, mv := range rs.moves {
				src := cellPath(table.Path, i, columns[mv.from])
				dst := cellPath(table.Path, i, columns[mv.to])
				affectedCols[columns[mv.from].Path] = struct{}{}
				affectedCols[columns[mv.to].Path] = struct{}{}
				val, _ := rec.Get(src)
				ops = append(ops, correction.Op{
					FieldPath:    dst,
					Action:       constants.ActionValueMoved,
					OldValue:     nil,
					NewValue:     val,
					SourceColumn: src,
					TargetColumn: dst,
					Confidence:   heuristicMoveConfidence,
					Source:       constants.SourceHeuristic,
					Reason:       fmt.Sprintf("value shape matches %s, not %s", columns[mv.to].Path, columns[mv.from].Path),
				})
			}
			for _, ci := range rs.mismatched {
				affectedCols[columns[ci].Path] = struct{}{}
			}
		}

		report.Pattern = classifyTable(rowPatterns)
		for _, c := range columns {
			if _, ok := affectedCols[c.Path]; ok {
				report.ColumnsAffected = append(report.ColumnsAffected, c.Path)
			}
		}
		report.Complexity = gradeComplexity(report)

		if report.Pattern != constants.ShiftNone {
			logger.Warn("heuristics.shift.detected",
				"table", table.Path,
				"pattern", string(report.Pattern),
				"columns", len(report.ColumnsAffected),
				"rows", len(report.AffectedRows),
			)
		}
		reports = append(reports, report)
	}
	return reports, ops
}

// analyzeRow finds, for each value that mismatches its own column's expected
// shape, the nearest column whose shape it does match. Preference order is
// rightward first: a missing cell shifts later values left, so the repair
// moves them right.
func analyzeRow(row map[string]any, columns []schema.Field) rowShift {
	n := len(columns)
	shapes := make([]shape, n)
	for i, c := range columns {
		shapes[i] = expectedShape(c)
	}

	var rs rowShift
	offsets := make([]int, 0, n)
	for i, col := range columns {
		v := row[columnKey(col)]
		if v == nil {
			continue
		}
		if matchesShape(v, shapes[i]) {
			continue
		}
		found := false
		for d := 1; d < n && !found; d++ {
			for _, j := range []int{i + d, i - d} {
				if j < 0 || j >= n {
					continue
				}
				if matchesShape(v, shapes[j]) {
					rs.moves = append(rs.moves, columnMove{from: i, to: j})
					offsets = append(offsets, j-i)
					found = true
					break
				}
			}
		}
		if !found {
			rs.mismatched = append(rs.mismatched, i)
		}
	}

	rs.uniform = true
	for _, d := range offsets {
		if d != offsets[0] {
			rs.uniform = false
			break
		}
	}
	if len(offsets) > 0 && rs.uniform {
		rs.offset = offsets[0]
	}
	if len(rs.mismatched) > 0 {
		rs.uniform = false
	}
	return rs
}

// classifyRow grades one row: one displaced column is a single shift, two is
// a multiple shift, three or more means the first error propagated through
// the rest of the row.
func classifyRow(rs rowShift) constants.ShiftPattern {
	shifted := len(rs.moves) + len(rs.mismatched)
	switch {
	case shifted == 0:
		return constants.ShiftNone
	case shifted == 1:
		return constants.ShiftSingleColumn
	case shifted >= 3 && rs.uniform:
		return constants.ShiftCascade
	default:
		return constants.ShiftMultipleColumn
	}
}

// classifyTable folds per-row patterns into the table verdict: a shift in
// only some rows is partial_row_shift; when every row is affected the worst
// row pattern wins.
func classifyTable(rowPatterns []constants.ShiftPattern) constants.ShiftPattern {
	shifted := 0
	worst := constants.ShiftNone
	for _, p := range rowPatterns {
		if p == constants.ShiftNone {
			continue
		}
		shifted++
		if severity(p) > severity(worst) {
			worst = p
		}
	}
	switch {
	case shifted == 0:
		return constants.ShiftNone
	case shifted < len(rowPatterns):
		return constants.ShiftPartialRow
	default:
		return worst
	}
}

func severity(p constants.ShiftPattern) int {
	switch p {
	case constants.ShiftCascade:
		return 4
	case constants.ShiftMultipleColumn:
		return 3
	case constants.ShiftPartialRow:
		return 2
	case constants.ShiftSingleColumn:
		return 1
	default:
		return 0
	}
}

func gradeComplexity(r ShiftReport) constants.Complexity {
	switch {
	case r.Pattern == constants.ShiftNone:
		return constants.ComplexityLow
	case r.Pattern == constants.ShiftCascade || len(r.ColumnsAffected) >= 2:
		return constants.ComplexityHigh
	default:
		return constants.ComplexityMedium
	}
}

// WorstPattern picks the most severe pattern across a round's reports, used
// as the round's shift_pattern in the audit trail.
func WorstPattern(reports []ShiftReport) constants.ShiftPattern {
	worst := constants.ShiftNone
	for _, r := range reports {
		if severity(r.Pattern) > severity(worst) {
			worst = r.Pattern
		}
	}
	return worst
}

// columnKey is the row-map key for a column field ("taxes.rate" -> "rate").
func columnKey(col schema.Field) string {
	path := col.Path
	if i := lastDot(path); i >= 0 {
		return path[i+1:]
	}
	return path
}

func cellPath(tablePath string, rowIdx int, col schema.Field) string {
	return fmt.Sprintf("%s[%d].%s", tablePath, rowIdx, columnKey(col))
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
