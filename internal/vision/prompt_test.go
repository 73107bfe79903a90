package vision

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manikumarthati/extractionWithValidation/constants"
	"github.com/manikumarthati/extractionWithValidation/internal/correction"
	"github.com/manikumarthati/extractionWithValidation/internal/record"
	"github.com/manikumarthati/extractionWithValidation/internal/schema"
)

func promptRequest(t *testing.T) Request {
	t.Helper()
	s, err := schema.Load([]byte("employee_name: string\ngross_pay: number\n"))
	require.NoError(t, err)
	return Request{
		AssetRef:   "file-abc",
		Record:     record.Record{"employee_name": "Jane", "gross_pay": 5000.0},
		Schema:     s,
		RoundIndex: 1,
	}
}

func TestBuildValidationPromptListsFieldsAndData(t *testing.T) {
	p := BuildValidationPrompt(promptRequest(t))

	assert.Contains(t, p, "employee_name (string)")
	assert.Contains(t, p, "gross_pay (number)")
	assert.Contains(t, p, `"employee_name": "Jane"`)
	assert.Contains(t, p, "corrections_applied")
	assert.Contains(t, p, "validation round 1")
	assert.NotContains(t, p, "STRICT MODE")
}

func TestBuildValidationPromptStrict(t *testing.T) {
	req := promptRequest(t)
	req.Strict = true
	p := BuildValidationPrompt(req)
	assert.Contains(t, p, "STRICT MODE")
}

func TestBuildValidationPromptTruncatesHistory(t *testing.T) {
	req := promptRequest(t)
	for i := 1; i <= 5; i++ {
		req.History = append(req.History, HistoryEntry{
			Round: i,
			Ops: []correction.Op{{
				FieldPath: "employee_name",
				Action:    constants.ActionValueReplaced,
				NewValue:  fmt.Sprintf("v%d", i),
			}},
		})
	}
	p := BuildValidationPrompt(req)

	assert.NotContains(t, p, "round 1:")
	assert.NotContains(t, p, "round 2:")
	assert.Contains(t, p, "round 3:")
	assert.Contains(t, p, "round 5:")
}

func TestBuildValidationPromptNoHistorySection(t *testing.T) {
	p := BuildValidationPrompt(promptRequest(t))
	assert.NotContains(t, p, "EARLIER ROUNDS")
}
