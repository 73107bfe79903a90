package heuristics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manikumarthati/extractionWithValidation/constants"
	"github.com/manikumarthati/extractionWithValidation/internal/record"
)

func fiveRowTaxRecord() record.Record {
	return record.Record{
		"taxes": []any{
			map[string]any{"tax_type": "Federal", "rate": "12%", "amount": 600.0},
			map[string]any{"tax_type": "Medicare", "rate": "1.45%", "amount": 72.5},
			map[string]any{"tax_type": "Social Security", "rate": "6.2%", "amount": 310.0},
			map[string]any{"tax_type": "State W/H", "rate": "4.0%", "amount": 200.0},
			map[string]any{"tax_type": "SDI", "rate": "1.1%", "amount": 55.0},
		},
	}
}

const taxPageText = `EARNINGS STATEMENT

TAXES AND WITHHOLDINGS
Federal 12% $600.00
Medicare 1.45% $72.50
Social Security 6.2% $310.00
State W/H 4.0% $200.00
SDI 1.1% $55.00
State UI 2.5% $250.00

NET PAY $3,712.50
`

func TestRecoverRowsFindsMissingTrailingRow(t *testing.T) {
	cands := RecoverRows(fiveRowTaxRecord(), mustSchema(t, taxesDecl), taxPageText, nil)
	require.Len(t, cands, 1)

	c := cands[0]
	assert.Equal(t, "taxes", c.Table)
	assert.Equal(t, "State UI 2.5% $250.00", c.RawLine)
	assert.Equal(t, map[string]any{
		"tax_type": "State UI",
		"rate":     "2.5%",
		"amount":   "$250.00",
	}, c.ParsedFields)
	assert.GreaterOrEqual(t, c.AcceptanceScore, float32(0.66))
}

func TestRecoverRowsSkipsKnownRows(t *testing.T) {
	// Every table row already present in the record must be skipped even
	// though each line scores as a plausible row.
	text := strings.Join([]string{
		"Federal 12% $600.00",
		"Medicare 1.45% $72.50",
	}, "\n")
	cands := RecoverRows(fiveRowTaxRecord(), mustSchema(t, taxesDecl), text, nil)
	assert.Empty(t, cands)
}

func TestRecoverRowsCapsCandidates(t *testing.T) {
	lines := []string{
		"Local A 1.0% $10.00",
		"Local B 2.0% $20.00",
		"Local C 3.0% $30.00",
		"Local D 4.0% $40.00",
		"Local E 5.0% $50.00",
	}
	cands := RecoverRows(fiveRowTaxRecord(), mustSchema(t, taxesDecl), strings.Join(lines, "\n"), nil)
	assert.Len(t, cands, maxCandidatesPerTable)
}

func TestRecoverRowsIgnoresProse(t *testing.T) {
	text := "This statement is provided for your records\nQuestions: call payroll"
	cands := RecoverRows(fiveRowTaxRecord(), mustSchema(t, taxesDecl), text, nil)
	assert.Empty(t, cands)
}

func TestRecoverRowsNoTableRowsNoCandidates(t *testing.T) {
	rec := record.Record{"taxes": []any{}}
	cands := RecoverRows(rec, mustSchema(t, taxesDecl), taxPageText, nil)
	assert.Empty(t, cands)
}

func TestRowCandidateOp(t *testing.T) {
	c := RowCandidate{
		Table:           "taxes",
		RawLine:         "State UI 2.5% $250.00",
		ParsedFields:    map[string]any{"tax_type": "State UI"},
		AcceptanceScore: 1.0,
	}
	op := c.Op()
	assert.Equal(t, "taxes", op.FieldPath)
	assert.Equal(t, constants.ActionValueInserted, op.Action)
	assert.Equal(t, constants.SourceHeuristic, op.Source)
	assert.Equal(t, float32(1.0), op.Confidence)
}
