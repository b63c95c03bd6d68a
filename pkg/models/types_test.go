package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCompact(t *testing.T) {
	tests := []struct {
		name   string
		result ExtractionResult
		want   string
	}{
		{
			name:   "two by two",
			result: ExtractionResult{Rows: []Row{{Cells: []string{"A", "B"}}, {Cells: []string{"C", "D"}}}},
			want:   `{"rows":[{"cells":["A","B"]},{"cells":["C","D"]}]}`,
		},
		{
			name:   "empty table",
			result: NewExtractionResult(),
			want:   `{"rows":[]}`,
		},
		{
			name:   "zero value",
			result: ExtractionResult{},
			want:   `{"rows":[]}`,
		},
		{
			name:   "row without cells",
			result: ExtractionResult{Rows: []Row{{}}},
			want:   `{"rows":[{"cells":[]}]}`,
		},
		{
			name:   "html characters are kept verbatim",
			result: ExtractionResult{Rows: []Row{{Cells: []string{"a<b", "x&y"}}}},
			want:   `{"rows":[{"cells":["a<b","x&y"]}]}`,
		},
		{
			name:   "newlines are escaped",
			result: ExtractionResult{Rows: []Row{{Cells: []string{"Write: A\n\nRead: B"}}}},
			want:   `{"rows":[{"cells":["Write: A\n\nRead: B"]}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.result.MarshalCompact()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	original := NewExtractionResult()
	original.AppendRow([]string{"Bits", "Name", "Type", "Function"})
	original.AppendRow([]string{"[31:16]", "VECTKEY", "RW", "Register key:\n\nReads as 0xFA05"})
	original.AppendRow([]string{})
	original.AppendRow([]string{"ünïcødé", "\"quoted\"", "\t", ""})

	data, err := original.MarshalCompact()
	require.NoError(t, err)

	parsed, err := ParseExtractionResult(data)
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestParseExtractionResult_Invalid(t *testing.T) {
	_, err := ParseExtractionResult([]byte(`{"rows": [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode extraction result")
}

func TestParseExtractionResult_MissingFields(t *testing.T) {
	parsed, err := ParseExtractionResult([]byte(`{"rows":[{}]}`))
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 1)
	assert.NotNil(t, parsed.Rows[0].Cells)
	assert.Empty(t, parsed.Rows[0].Cells)
}

func TestAppendRowCopiesCells(t *testing.T) {
	cells := []string{"a", "b"}
	r := NewExtractionResult()
	r.AppendRow(cells)
	cells[0] = "changed"

	assert.Equal(t, "a", r.Rows[0].Cells[0])
	assert.Equal(t, 1, r.RowCount())
	assert.Equal(t, []int{2}, r.CellCounts())
	assert.Equal(t, [][]string{{"a", "b"}}, r.Matrix())
}
