package htmldom

import (
	"bytes"
	"strings"
	"testing"

	"tabcopy/pkg/dom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registerPage = `<!DOCTYPE html>
<html><head><title>SCB</title><script>var x = 1;</script></head>
<body>
<table class="c-table">
  <caption>Table 4.12. AIRCR bit assignments</caption>
  <thead><tr><th>Bits</th><th>Name</th><th>Type</th><th>Function</th></tr></thead>
  <tbody>
    <tr><td>[31:16]</td><td><p>Write: VECTKEYSTAT</p><p>Read: VECTKEY</p></td><td>RW</td><td>Register key</td></tr>
    <tr><td>[15]</td><td>ENDIANNESS</td><td>RO</td><td>Data endianness bit is <em>implementation</em> defined</td></tr>
  </tbody>
</table>
<table class="other"><caption>ignored</caption><tr><td>x</td></tr></table>
<table class="c-table"><tr><td>no caption</td></tr></table>
</body></html>`

func cellMatrix(t *testing.T, d *Document, table dom.Table) [][]string {
	t.Helper()
	var out [][]string
	for _, row := range d.RowsOf(table) {
		var cells []string
		for _, c := range d.CellsOf(row) {
			cells = append(cells, d.TextOf(c))
		}
		out = append(out, cells)
	}
	return out
}

func TestListTables_UsesSelector(t *testing.T) {
	d, err := ParseString(registerPage)
	require.NoError(t, err)

	tables, err := d.ListTables()
	require.NoError(t, err)
	assert.Len(t, tables, 2)
	assert.Equal(t, 2, d.CountTables())

	d, err = ParseString(registerPage, WithTableSelector("table.other"))
	require.NoError(t, err)
	tables, err = d.ListTables()
	require.NoError(t, err)
	assert.Len(t, tables, 1)
}

func TestNew_InvalidSelector(t *testing.T) {
	_, err := ParseString(registerPage, WithTableSelector("table[["))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table selector")

	_, err = ParseString(registerPage, WithCaptionSelector(":::"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid caption selector")
}

func TestCaptionOf(t *testing.T) {
	d, err := ParseString(registerPage)
	require.NoError(t, err)
	tables, err := d.ListTables()
	require.NoError(t, err)

	caption, ok := d.CaptionOf(tables[0])
	require.True(t, ok)
	assert.Equal(t, "Table 4.12. AIRCR bit assignments", d.CaptionText(caption))

	_, ok = d.CaptionOf(tables[1])
	assert.False(t, ok)

	_, ok = d.CaptionOf("not a node")
	assert.False(t, ok)
}

func TestRowsAndCells(t *testing.T) {
	d, err := ParseString(registerPage)
	require.NoError(t, err)
	tables, err := d.ListTables()
	require.NoError(t, err)

	got := cellMatrix(t, d, tables[0])
	want := [][]string{
		{"Bits", "Name", "Type", "Function"},
		{"[31:16]", "Write: VECTKEYSTAT\n\nRead: VECTKEY", "RW", "Register key"},
		{"[15]", "ENDIANNESS", "RO", "Data endianness bit is implementation defined"},
	}
	assert.Equal(t, want, got)
}

func TestRowsOf_SectionOrder(t *testing.T) {
	page := `<table class="c-table">
	<tfoot><tr><td>foot</td></tr></tfoot>
	<tbody><tr><td>body1</td></tr></tbody>
	<thead><tr><td>head</td></tr></thead>
	<tbody><tr><td>body2</td></tr></tbody>
	</table>`
	d, err := ParseString(page)
	require.NoError(t, err)
	tables, err := d.ListTables()
	require.NoError(t, err)
	require.Len(t, tables, 1)

	got := cellMatrix(t, d, tables[0])
	assert.Equal(t, [][]string{{"head"}, {"body1"}, {"body2"}, {"foot"}}, got)
}

func TestRowsOf_ExcludesNestedTables(t *testing.T) {
	page := `<table class="c-table"><tr><td>outer<table><tr><td>inner</td></tr></table></td></tr></table>`
	d, err := ParseString(page)
	require.NoError(t, err)
	tables, err := d.ListTables()
	require.NoError(t, err)
	require.Len(t, tables, 1)

	rows := d.RowsOf(tables[0])
	require.Len(t, rows, 1)
	assert.Len(t, d.CellsOf(rows[0]), 1)
}

func TestRowsOf_EmptyTable(t *testing.T) {
	d, err := ParseString(`<table class="c-table"><caption>Empty</caption></table>`)
	require.NoError(t, err)
	tables, err := d.ListTables()
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Empty(t, d.RowsOf(tables[0]))
}

func TestPrependControl(t *testing.T) {
	d, err := ParseString(registerPage)
	require.NoError(t, err)
	tables, err := d.ListTables()
	require.NoError(t, err)
	caption, ok := d.CaptionOf(tables[0])
	require.True(t, ok)

	require.NoError(t, d.PrependControl(caption, dom.Control{ID: "tabcopy-1", Label: "Generate Code"}))
	require.NoError(t, d.PrependControl(caption, dom.Control{ID: "tabcopy-2", Label: "Generate Code"}))

	var buf bytes.Buffer
	require.NoError(t, d.Render(&buf))
	out := buf.String()

	assert.Equal(t, 2, strings.Count(out, `class="tabcopy-trigger"`))
	assert.Contains(t, out, `<caption><button type="button" id="tabcopy-2" class="tabcopy-trigger">Generate Code</button><button type="button" id="tabcopy-1"`)

	// inserted controls do not leak into the caption text
	assert.Equal(t, "Table 4.12. AIRCR bit assignments", d.CaptionText(caption))

	assert.Error(t, d.PrependControl(42, dom.Control{}))
}

func TestOuterHTML(t *testing.T) {
	d, err := ParseString(registerPage)
	require.NoError(t, err)
	tables, err := d.ListTables()
	require.NoError(t, err)

	out, err := d.OuterHTML(tables[1])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `<table class="c-table">`))
	assert.Contains(t, out, "no caption")

	_, err = d.OuterHTML(nil)
	assert.Error(t, err)
}
