package heuristics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manikumarthati/extractionWithValidation/constants"
	"github.com/manikumarthati/extractionWithValidation/internal/record"
)

const statementDecl = `
employee_name: string
pay_date: string
gross_pay: number
net_pay: number
`

func TestAnalyzeAssociationsDetectsDrift(t *testing.T) {
	// The document skipped pay_date, so the gross pay amount slid up and
	// attached to the pay_date label.
	rec := record.Record{
		"employee_name": "Jane Doe",
		"pay_date":      "$5,000.00",
		"gross_pay":     nil,
		"net_pay":       3712.50,
	}

	ops := AnalyzeAssociations(rec, mustSchema(t, statementDecl), nil)
	require.Len(t, ops, 1)

	op := ops[0]
	assert.Equal(t, constants.ActionValueMoved, op.Action)
	assert.Equal(t, "pay_date", op.SourceColumn)
	assert.Equal(t, "gross_pay", op.TargetColumn)
	assert.Equal(t, "gross_pay", op.FieldPath)
	assert.Equal(t, constants.SourceHeuristic, op.Source)
	assert.InDelta(t, 0.7, op.Confidence, 1e-6)
}

func TestAnalyzeAssociationsCleanRecord(t *testing.T) {
	rec := record.Record{
		"employee_name": "Jane Doe",
		"pay_date":      "2024-06-14",
		"gross_pay":     5000.0,
		"net_pay":       3712.50,
	}
	ops := AnalyzeAssociations(rec, mustSchema(t, statementDecl), nil)
	assert.Empty(t, ops)
}

func TestAnalyzeAssociationsRequiresEmptyNeighbor(t *testing.T) {
	// Even when a value looks misplaced, an occupied neighbor blocks the
	// move; overwriting data is the model's call, not a heuristic's.
	rec := record.Record{
		"employee_name": "Jane Doe",
		"pay_date":      "$5,000.00",
		"gross_pay":     5000.0,
		"net_pay":       3712.50,
	}
	ops := AnalyzeAssociations(rec, mustSchema(t, statementDecl), nil)
	assert.Empty(t, ops)
}
