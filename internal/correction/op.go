// Package correction converts free-form model output into typed correction
// reports and applies them to extracted records deterministically.
package correction

import (
	"fmt"

	"github.com/manikumarthati/extractionWithValidation/constants"
)

// Op is an atomic change to extracted data.
//
// Invariant: ActionValueMoved always carries both SourceColumn and
// TargetColumn (with FieldPath equal to TargetColumn); other actions carry
// neither.
type Op struct {
	FieldPath    string                 `json:"field_path"`
	Action       constants.ChangeAction `json:"action"`
	OldValue     any                    `json:"old_value,omitempty"`
	NewValue     any                    `json:"new_value,omitempty"`
	SourceColumn string                 `json:"source_column,omitempty"`
	TargetColumn string                 `json:"target_column,omitempty"`
	Confidence   float32                `json:"confidence"`
	Source       constants.OpSource     `json:"source"`
	Reason       string                 `json:"reason,omitempty"`
}

// Validate enforces the move-column invariant.
func (o Op) Validate() error {
	if !o.Action.Valid() {
		return fmt.Errorf("unknown action %q", o.Action)
	}
	if o.Action == constants.ActionValueMoved {
		if o.SourceColumn == "" || o.TargetColumn == "" {
			return fmt.Errorf("value_moved op on %q missing source/target column", o.FieldPath)
		}
		return nil
	}
	if o.SourceColumn != "" || o.TargetColumn != "" {
		return fmt.Errorf("%s op on %q must not carry source/target columns", o.Action, o.FieldPath)
	}
	return nil
}

// writePath is the path an op mutates; conflicting ops are grouped by it.
func (o Op) writePath() string {
	if o.Action == constants.ActionValueMoved {
		return o.TargetColumn
	}
	return o.FieldPath
}

// Report is the typed outcome of parsing one round's model response.
type Report struct {
	AccuracyEstimate float32
	Ops              []Op
	ShiftPatternHint constants.ShiftPattern
	Warnings         []string
}
