package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	return Record{
		"employee_name": "Jane Doe",
		"employer": map[string]any{
			"name": "Acme Corp",
		},
		"taxes": []any{
			map[string]any{"tax_type": "Federal", "rate": "1.5%", "amount": 100.0},
			map[string]any{"tax_type": "Medicare", "rate": "2.9%", "amount": 58.0},
		},
	}
}

func TestGetScalarAndNested(t *testing.T) {
	r := sampleRecord()

	v, ok := r.Get("employee_name")
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", v)

	v, ok = r.Get("employer.name")
	require.True(t, ok)
	assert.Equal(t, "Acme Corp", v)
}

func TestGetIndexedPath(t *testing.T) {
	r := sampleRecord()

	v, ok := r.Get("taxes[1].rate")
	require.True(t, ok)
	assert.Equal(t, "2.9%", v)

	_, ok = r.Get("taxes[5].rate")
	assert.False(t, ok)

	_, ok = r.Get("taxes[0].missing")
	assert.False(t, ok)
}

func TestSetCreatesIntermediates(t *testing.T) {
	r := Record{}
	require.NoError(t, r.Set("employer.address.city", "Springfield"))

	v, ok := r.Get("employer.address.city")
	require.True(t, ok)
	assert.Equal(t, "Springfield", v)
}

func TestSetIndexedCell(t *testing.T) {
	r := sampleRecord()
	require.NoError(t, r.Set("taxes[0].amount", 125.0))

	v, ok := r.Get("taxes[0].amount")
	require.True(t, ok)
	assert.Equal(t, 125.0, v)
}

func TestSetAppendPosition(t *testing.T) {
	r := sampleRecord()
	require.NoError(t, r.Set("taxes[2].tax_type", "State UI"))

	rows, ok := r.Table("taxes")
	require.True(t, ok)
	require.Len(t, rows, 3)
	assert.Equal(t, "State UI", rows[2]["tax_type"])
}

func TestSetIndexOutOfRange(t *testing.T) {
	r := sampleRecord()
	assert.Error(t, r.Set("taxes[7].tax_type", "nope"))
}

func TestSetThroughScalarFails(t *testing.T) {
	r := sampleRecord()
	assert.Error(t, r.Set("employee_name.sub", "x"))
}

func TestCloneIsDeep(t *testing.T) {
	r := sampleRecord()
	c := r.Clone()

	require.NoError(t, c.Set("taxes[0].amount", 999.0))
	require.NoError(t, c.Set("employer.name", "Other Inc"))

	v, _ := r.Get("taxes[0].amount")
	assert.Equal(t, 100.0, v)
	v, _ = r.Get("employer.name")
	assert.Equal(t, "Acme Corp", v)
}

func TestAppendRow(t *testing.T) {
	r := sampleRecord()
	require.NoError(t, r.AppendRow("taxes", map[string]any{"tax_type": "State UI", "rate": "2.5%", "amount": 250.0}))

	rows, ok := r.Table("taxes")
	require.True(t, ok)
	require.Len(t, rows, 3)
	assert.Equal(t, "State UI", rows[2]["tax_type"])
}

func TestAppendRowCreatesTable(t *testing.T) {
	r := Record{}
	require.NoError(t, r.AppendRow("deductions", map[string]any{"name": "401k"}))

	rows, ok := r.Table("deductions")
	require.True(t, ok)
	require.Len(t, rows, 1)
}

func TestAppendRowRejectsScalarTarget(t *testing.T) {
	r := sampleRecord()
	assert.Error(t, r.AppendRow("employee_name", map[string]any{"x": 1}))
}

func TestTableSkipsNonObjectRows(t *testing.T) {
	r := Record{"taxes": []any{map[string]any{"a": 1}, "stray"}}
	rows, ok := r.Table("taxes")
	require.True(t, ok)
	assert.Len(t, rows, 1)
}
