package correction

import (
	"log/slog"
	"sort"

	"github.com/manikumarthati/extractionWithValidation/constants"
	"github.com/manikumarthati/extractionWithValidation/internal/record"
)

// ApplyConfig exposes the applicator's tuned thresholds. The defaults are
// defaults, not fixed physics.
type ApplyConfig struct {
	// RowAcceptThreshold gates heuristic row candidates: at least 2 of 3
	// indicators must be present (0.66).
	RowAcceptThreshold float32
}

func (c *ApplyConfig) setDefaults() {
	if c.RowAcceptThreshold <= 0 {
		c.RowAcceptThreshold = 0.66
	}
}

// ApplyResult reports what changed; losing and failed ops are kept in
// SkippedOps so the audit trail is complete.
type ApplyResult struct {
	NewRecord  record.Record
	AppliedOps []Op
	SkippedOps []Op
}

// Applicator merges proposed operations into a record deterministically.
type Applicator struct {
	cfg    ApplyConfig
	logger *slog.Logger
}

func NewApplicator(cfg ApplyConfig, logger *slog.Logger) *Applicator {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Applicator{cfg: cfg, logger: logger}
}

// Apply resolves conflicts, then applies the surviving ops to a deep copy of
// rec. The input record is never mutated.
func (a *Applicator) Apply(rec record.Record, ops []Op) ApplyResult {
	res := ApplyResult{NewRecord: rec.Clone()}

	winners, losers := resolveConflicts(ops)
	res.SkippedOps = append(res.SkippedOps, losers...)

	moves := planMoves(res.NewRecord, winners)
	for _, op := range winners {
		// Sub-threshold row candidates stay visible for debugging but are
		// not applied.
		if op.Action == constants.ActionValueInserted &&
			op.Source == constants.SourceHeuristic &&
			op.Confidence < a.cfg.RowAcceptThreshold {
			res.SkippedOps = append(res.SkippedOps, op)
			continue
		}
		if err := a.applyOne(res.NewRecord, &op, moves); err != nil {
			a.logger.Warn("correction.apply.op_failed",
				"field", op.FieldPath, "action", string(op.Action), "error", err)
			res.SkippedOps = append(res.SkippedOps, op)
			continue
		}
		res.AppliedOps = append(res.AppliedOps, op)
	}
	return res
}

// movePlan makes a round's moved ops behave as one simultaneous permutation:
// every source value is captured before any op writes, and a source that is
// another move's target this round is not nulled, so chained moves cannot
// consume each other's writes.
type movePlan struct {
	values  map[string]any
	targets map[string]struct{}
}

func planMoves(rec record.Record, ops []Op) movePlan {
	p := movePlan{values: map[string]any{}, targets: map[string]struct{}{}}
	for _, op := range ops {
		if op.Action != constants.ActionValueMoved {
			continue
		}
		v, ok := rec.Get(op.SourceColumn)
		if !ok || v == nil {
			// Source already empty; fall back to the value the op carried.
			v = op.NewValue
		}
		p.values[op.SourceColumn] = v
		p.targets[op.TargetColumn] = struct{}{}
	}
	return p
}

func (a *Applicator) applyOne(rec record.Record, op *Op, moves movePlan) error {
	if err := op.Validate(); err != nil {
		return err
	}

	switch op.Action {
	case constants.ActionValueMoved:
		moved := moves.values[op.SourceColumn]
		if prev, ok := rec.Get(op.TargetColumn); ok {
			op.OldValue = prev
		}
		op.NewValue = moved
		if err := rec.Set(op.TargetColumn, moved); err != nil {
			return err
		}
		if _, alsoTarget := moves.targets[op.SourceColumn]; alsoTarget {
			return nil
		}
		return rec.Set(op.SourceColumn, nil)

	case constants.ActionValueInserted:
		if row, ok := op.NewValue.(map[string]any); ok {
			if _, isTable := rec.Table(op.FieldPath); isTable {
				return rec.AppendRow(op.FieldPath, row)
			}
		}
		return rec.Set(op.FieldPath, op.NewValue)

	case constants.ActionValueDeleted:
		if prev, ok := rec.Get(op.FieldPath); ok {
			op.OldValue = prev
		}
		return rec.Set(op.FieldPath, nil)

	default: // value_replaced
		if prev, ok := rec.Get(op.FieldPath); ok {
			op.OldValue = prev
		}
		return rec.Set(op.FieldPath, op.NewValue)
	}
}

// resolveConflicts enforces the policy for ops targeting the same path in
// the same round:
//
//   - a value_moved op always wins over a value_replaced op (moves encode
//     higher-confidence structural reasoning);
//   - among same-action ops the higher confidence wins;
//   - ties keep the heuristic-sourced op over the model-sourced op.
//
// Winners keep their original proposal order so application is stable.
func resolveConflicts(ops []Op) (winners, losers []Op) {
	type indexed struct {
		op  Op
		pos int
	}
	byPath := make(map[string][]indexed)
	order := make([]string, 0, len(ops))
	for i, op := range ops {
		path := op.writePath()
		if _, seen := byPath[path]; !seen {
			order = append(order, path)
		}
		byPath[path] = append(byPath[path], indexed{op: op, pos: i})
	}

	var won []indexed
	for _, path := range order {
		group := byPath[path]
		best := group[0]
		for _, cand := range group[1:] {
			if beats(cand.op, best.op) {
				losers = append(losers, best.op)
				best = cand
			} else {
				losers = append(losers, cand.op)
			}
		}
		won = append(won, best)
	}
	sort.Slice(won, func(i, j int) bool { return won[i].pos < won[j].pos })
	for _, w := range won {
		winners = append(winners, w.op)
	}
	return winners, losers
}

func beats(a, b Op) bool {
	aMoved := a.Action == constants.ActionValueMoved
	bMoved := b.Action == constants.ActionValueMoved
	if aMoved != bMoved {
		return aMoved
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Source == constants.SourceHeuristic && b.Source == constants.SourceModel
}
