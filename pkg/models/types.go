package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is one table row: the rendered text of its cells in document order.
type Row struct {
	Cells []string `json:"cells" yaml:"cells"`
}

// ExtractionResult is the interchange value copied to the clipboard for a
// single table activation.
type ExtractionResult struct {
	Rows []Row `json:"rows" yaml:"rows"`
}

// NewExtractionResult returns an empty result whose rows encode as [].
func NewExtractionResult() ExtractionResult {
	return ExtractionResult{Rows: []Row{}}
}

// AppendRow adds a row holding a copy of cells.
func (r *ExtractionResult) AppendRow(cells []string) {
	row := Row{Cells: make([]string, len(cells))}
	copy(row.Cells, cells)
	r.Rows = append(r.Rows, row)
}

// RowCount returns the number of rows.
func (r ExtractionResult) RowCount() int {
	return len(r.Rows)
}

// CellCounts returns the number of cells in each row.
func (r ExtractionResult) CellCounts() []int {
	counts := make([]int, len(r.Rows))
	for i, row := range r.Rows {
		counts[i] = len(row.Cells)
	}
	return counts
}

// Matrix returns the cell text as a plain [][]string.
func (r ExtractionResult) Matrix() [][]string {
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = append([]string(nil), row.Cells...)
	}
	return out
}

// normalized replaces nil slices so that empty tables and rows encode as []
// instead of null.
func (r ExtractionResult) normalized() ExtractionResult {
	out := ExtractionResult{Rows: make([]Row, len(r.Rows))}
	for i, row := range r.Rows {
		cells := row.Cells
		if cells == nil {
			cells = []string{}
		}
		out.Rows[i] = Row{Cells: cells}
	}
	return out
}

// MarshalCompact encodes the result in the compact interchange format:
// {"rows":[{"cells":["A","B"]}]}. HTML characters are not escaped.
func (r ExtractionResult) MarshalCompact() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.normalized()); err != nil {
		return nil, fmt.Errorf("failed to encode extraction result: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalIndent encodes the result as indented JSON.
func (r ExtractionResult) MarshalIndent() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.normalized()); err != nil {
		return nil, fmt.Errorf("failed to encode extraction result: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseExtractionResult decodes interchange JSON. Missing rows or cells
// decode as empty slices.
func ParseExtractionResult(data []byte) (ExtractionResult, error) {
	var r ExtractionResult
	if err := json.Unmarshal(data, &r); err != nil {
		return ExtractionResult{}, fmt.Errorf("failed to decode extraction result: %w", err)
	}
	return r.normalized(), nil
}

// TableInfo describes a table found in a document.
type TableInfo struct {
	Index      int    `json:"index" yaml:"index"`
	Caption    string `json:"caption" yaml:"caption"`
	HasCaption bool   `json:"has_caption" yaml:"has_caption"`
	Rows       int    `json:"rows" yaml:"rows"`
	Columns    int    `json:"columns" yaml:"columns"`
	TriggerID  string `json:"trigger_id,omitempty" yaml:"trigger_id,omitempty"`
}

// Skipped reports whether discovery could not attach a control to the table.
func (t TableInfo) Skipped() bool {
	return !t.HasCaption
}
