package heuristics

import (
	"fmt"
	"log/slog"

	"github.com/manikumarthati/extractionWithValidation/constants"
	"github.com/manikumarthati/extractionWithValidation/internal/correction"
	"github.com/manikumarthati/extractionWithValidation/internal/record"
	"github.com/manikumarthati/extractionWithValidation/internal/schema"
)

// heuristicAssocConfidence is lower than the shift-move confidence: adjacent
// field drift has more plausible alternative explanations.
const heuristicAssocConfidence = 0.7

// AnalyzeAssociations detects key-value association drift in scalar fields:
// when a field is skipped on the document, subsequent values slide up and
// attach to the wrong keys. A value that mismatches its own field's shape
// but matches the next declared field's shape, while that next field is
// empty, is moved down one slot.
func AnalyzeAssociations(rec record.Record, s *schema.Schema, logger *slog.Logger) []correction.Op {
	if logger == nil {
		logger = slog.Default()
	}

	scalars := s.Scalars()
	var ops []correction.Op
	for i := 0; i < len(scalars)-1; i++ {
		cur, next := scalars[i], scalars[i+1]

		v, ok := rec.Get(cur.Path)
		if !ok || v == nil {
			continue
		}
		if matchesShape(v, expectedShape(cur)) {
			continue
		}
		if !matchesShape(v, expectedShape(next)) {
			continue
		}
		if nv, ok := rec.Get(next.Path); ok && nv != nil {
			continue
		}

		ops = append(ops, correction.Op{
			FieldPath:    next.Path,
			Action:       constants.ActionValueMoved,
			NewValue:     v,
			SourceColumn: cur.Path,
			TargetColumn: next.Path,
			Confidence:   heuristicAssocConfidence,
			Source:       constants.SourceHeuristic,
			Reason:       fmt.Sprintf("value shape matches %s, not %s; likely association drift", next.Path, cur.Path),
		})
		logger.Warn("heuristics.assoc.drift",
			"from", cur.Path, "to", next.Path)
	}
	return ops
}
