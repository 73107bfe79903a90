package correction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manikumarthati/extractionWithValidation/constants"
	"github.com/manikumarthati/extractionWithValidation/internal/common"
	"github.com/manikumarthati/extractionWithValidation/internal/schema"
)

const payrollDecl = `
employee_name: string
employee_id: string
gross_pay: number
taxes:
  items:
    tax_type: string
    rate: string
    amount: number
`

func mustSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Load([]byte(payrollDecl))
	require.NoError(t, err)
	return s
}

func TestParseValidEnvelope(t *testing.T) {
	raw := `{
		"validation_status": "corrected",
		"accuracy_estimate": 0.85,
		"corrections_made": true,
		"shift_pattern": "single_column_shift",
		"corrections_applied": [
			{
				"field": "gross_pay",
				"change_type": "value_replaced",
				"before_value": "1200.00",
				"after_value": "$1,250.00",
				"confidence": 0.9,
				"reason": "misread digit"
			}
		]
	}`

	rep, err := NewParser(nil).Parse(raw, mustSchema(t))
	require.NoError(t, err)

	assert.InDelta(t, 0.85, rep.AccuracyEstimate, 1e-6)
	assert.Equal(t, constants.ShiftSingleColumn, rep.ShiftPatternHint)
	require.Len(t, rep.Ops, 1)

	op := rep.Ops[0]
	assert.Equal(t, "gross_pay", op.FieldPath)
	assert.Equal(t, constants.ActionValueReplaced, op.Action)
	assert.Equal(t, 1250.0, op.NewValue)
	assert.Equal(t, constants.SourceModel, op.Source)
	assert.InDelta(t, 0.9, op.Confidence, 1e-6)
}

func TestParseProseWrappedResponse(t *testing.T) {
	raw := "Here is my validation result:\n```json\n" +
		`{"validation_status": "valid", "accuracy_estimate": 1.0, "corrections_made": false, "corrections_applied": [],}` +
		"\n```\nLet me know if you need anything else."

	rep, err := NewParser(nil).Parse(raw, mustSchema(t))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rep.AccuracyEstimate, 1e-6)
	assert.Empty(t, rep.Ops)
}

func TestParseRepairsUnclosedBraces(t *testing.T) {
	raw := `{"validation_status": "valid", "accuracy_estimate": 0.9, "corrections_made": false, "corrections_applied": [{"field": "employee_name", "change_type": "value_replaced", "after_value": "Jane"}`

	rep, err := NewParser(nil).Parse(raw, mustSchema(t))
	require.NoError(t, err)
	require.Len(t, rep.Ops, 1)
	assert.Equal(t, "Jane", rep.Ops[0].NewValue)
}

func TestParseNoJSONIsMalformed(t *testing.T) {
	_, err := NewParser(nil).Parse("I could not find any issues with the data.", mustSchema(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
}

func TestParseMissingRequiredFieldsIsMalformed(t *testing.T) {
	_, err := NewParser(nil).Parse(`{"accuracy_estimate": 0.9}`, mustSchema(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
}

func TestParseLegacyChangeTypes(t *testing.T) {
	raw := `{
		"validation_status": "corrected",
		"accuracy_estimate": 0.7,
		"corrections_made": true,
		"corrections_applied": [
			{"field": "employee_name", "change_type": "value_corrected", "after_value": "Jane Doe"},
			{"field": "", "change_type": "column_realigned", "after_value": "2.5%",
			 "source_column": "taxes.amount", "target_column": "taxes.rate"}
		]
	}`

	rep, err := NewParser(nil).Parse(raw, mustSchema(t))
	require.NoError(t, err)
	require.Len(t, rep.Ops, 2)

	assert.Equal(t, constants.ActionValueReplaced, rep.Ops[0].Action)

	moved := rep.Ops[1]
	assert.Equal(t, constants.ActionValueMoved, moved.Action)
	assert.Equal(t, "taxes.rate", moved.FieldPath)
	assert.Equal(t, "taxes.amount", moved.SourceColumn)
	assert.Equal(t, "taxes.rate", moved.TargetColumn)
}

func TestParseMovedRequiresColumns(t *testing.T) {
	raw := `{
		"validation_status": "corrected",
		"accuracy_estimate": 0.7,
		"corrections_made": true,
		"corrections_applied": [
			{"field": "taxes.rate", "change_type": "value_moved", "after_value": "2.5%"}
		]
	}`

	rep, err := NewParser(nil).Parse(raw, mustSchema(t))
	require.NoError(t, err)
	assert.Empty(t, rep.Ops)
	require.NotEmpty(t, rep.Warnings)
}

func TestParseUnknownFieldDropped(t *testing.T) {
	raw := `{
		"validation_status": "corrected",
		"accuracy_estimate": 0.7,
		"corrections_made": true,
		"corrections_applied": [
			{"field": "not_declared", "change_type": "value_replaced", "after_value": "x"},
			{"field": "employee_id", "change_type": "value_replaced", "after_value": "E-1042"}
		]
	}`

	rep, err := NewParser(nil).Parse(raw, mustSchema(t))
	require.NoError(t, err)
	require.Len(t, rep.Ops, 1)
	assert.Equal(t, "employee_id", rep.Ops[0].FieldPath)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "not_declared")
}

func TestParseIndexedPathResolvesDeclaredField(t *testing.T) {
	raw := `{
		"validation_status": "corrected",
		"accuracy_estimate": 0.7,
		"corrections_made": true,
		"corrections_applied": [
			{"field": "taxes[2].amount", "change_type": "value_replaced", "after_value": "$250.00"}
		]
	}`

	rep, err := NewParser(nil).Parse(raw, mustSchema(t))
	require.NoError(t, err)
	require.Len(t, rep.Ops, 1)
	assert.Equal(t, "taxes[2].amount", rep.Ops[0].FieldPath)
	assert.Equal(t, 250.0, rep.Ops[0].NewValue)
}

func TestParseAccuracyClamped(t *testing.T) {
	raw := `{"validation_status": "valid", "accuracy_estimate": 1.35, "corrections_made": false, "corrections_applied": []}`

	rep, err := NewParser(nil).Parse(raw, mustSchema(t))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rep.AccuracyEstimate, 1e-6)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "clamped")
}

func TestParseCoercionFailureSkipsOpOnly(t *testing.T) {
	raw := `{
		"validation_status": "corrected",
		"accuracy_estimate": 0.6,
		"corrections_made": true,
		"corrections_applied": [
			{"field": "gross_pay", "change_type": "value_replaced", "after_value": "twelve hundred"},
			{"field": "employee_name", "change_type": "value_replaced", "after_value": "Jane Doe"}
		]
	}`

	rep, err := NewParser(nil).Parse(raw, mustSchema(t))
	require.NoError(t, err)
	require.Len(t, rep.Ops, 1)
	assert.Equal(t, "employee_name", rep.Ops[0].FieldPath)
	require.NotEmpty(t, rep.Warnings)
}

func TestParseDefaultConfidence(t *testing.T) {
	raw := `{
		"validation_status": "corrected",
		"accuracy_estimate": 0.8,
		"corrections_made": true,
		"corrections_applied": [
			{"field": "employee_name", "change_type": "value_replaced", "after_value": "Jane"}
		]
	}`

	rep, err := NewParser(nil).Parse(raw, mustSchema(t))
	require.NoError(t, err)
	require.Len(t, rep.Ops, 1)
	assert.InDelta(t, 0.75, rep.Ops[0].Confidence, 1e-6)
}

func TestParseDeleteIgnoresAfterValue(t *testing.T) {
	raw := `{
		"validation_status": "corrected",
		"accuracy_estimate": 0.9,
		"corrections_made": true,
		"corrections_applied": [
			{"field": "employee_id", "change_type": "field_removed", "before_value": "E-1", "after_value": "garbage"}
		]
	}`

	rep, err := NewParser(nil).Parse(raw, mustSchema(t))
	require.NoError(t, err)
	require.Len(t, rep.Ops, 1)
	assert.Equal(t, constants.ActionValueDeleted, rep.Ops[0].Action)
	assert.Nil(t, rep.Ops[0].NewValue)
}
