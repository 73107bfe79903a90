package vision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxHistoryRounds bounds the correction-history section; older rounds add
// tokens without changing behavior.
const maxHistoryRounds = 3

// BuildValidationPrompt composes the single combined validate-and-correct
// prompt: the model compares the attached page image against the current
// extraction and reports an accuracy estimate plus concrete corrections.
func BuildValidationPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("You are validating structured data extracted from the attached document page.\n")
	b.WriteString("Compare EVERY field value against what is visibly printed on the page.\n\n")

	b.WriteString("EXPECTED FIELDS:\n")
	for _, f := range req.Schema.Fields {
		fmt.Fprintf(&b, "- %s (%s)\n", f.Path, f.Type)
	}

	b.WriteString("\nCURRENT EXTRACTION:\n")
	b.WriteString(mustJSON(req.Record))
	b.WriteString("\n")

	if len(req.History) > 0 {
		b.WriteString("\nCORRECTIONS ALREADY APPLIED IN EARLIER ROUNDS (do not re-propose or revert these):\n")
		entries := req.History
		if len(entries) > maxHistoryRounds {
			entries = entries[len(entries)-maxHistoryRounds:]
		}
		for _, e := range entries {
			for _, op := range e.Ops {
				fmt.Fprintf(&b, "- round %d: %s %s (%v -> %v)\n",
					e.Round, op.Action, op.FieldPath, op.OldValue, op.NewValue)
			}
		}
	}

	b.WriteString("\nCHECK SPECIFICALLY FOR:\n")
	b.WriteString("1. Wrong or mistranscribed values.\n")
	b.WriteString("2. Column shifts in tables: a value printed under one column recorded under another. Report these as value_moved with source_column and target_column.\n")
	b.WriteString("3. Missing table rows, especially trailing rows near the bottom of the table.\n")
	b.WriteString("4. Values attached to the wrong label (key-value association errors).\n")
	b.WriteString("5. Fields extracted that are not printed on the page at all.\n")

	b.WriteString("\nRESPONSE FORMAT. Return ONLY a JSON object, no prose outside it:\n")
	b.WriteString(responseFormat)

	fmt.Fprintf(&b, "\nThis is validation round %d. ", req.RoundIndex)
	b.WriteString("Set accuracy_estimate to the fraction of fields you verified as correct AFTER your proposed corrections would be applied. Use 1.0 only when every field matches the page exactly.\n")

	if req.Strict {
		b.WriteString("\nSTRICT MODE: your previous answer could not be parsed. Respond with the JSON object ONLY. No markdown fences, no commentary, no trailing commas. Every corrections entry must include field, change_type, after_value and confidence.\n")
	}
	return b.String()
}

// responseFormat is the envelope the correction parser consumes.
const responseFormat = `{
  "validation_status": "valid" | "corrected",
  "accuracy_estimate": 0.0-1.0,
  "corrections_made": true | false,
  "shift_pattern": "none" | "single_column_shift" | "multiple_column_shift" | "cascade_shift" | "partial_row_shift",
  "corrections_applied": [
    {
      "field": "dot.path.to.field or table[rowIndex].column",
      "change_type": "value_replaced" | "value_moved" | "value_inserted" | "value_deleted",
      "before_value": <value currently extracted, null if absent>,
      "after_value": <value printed on the page>,
      "source_column": "required for value_moved",
      "target_column": "required for value_moved",
      "confidence": 0.0-1.0,
      "reason": "short explanation"
    }
  ],
  "validation_details": "optional free-text notes"
}
`

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
