// Package memdom is an in-memory dom.Document used to exercise the
// extractor without parsing HTML.
package memdom

import (
	"fmt"
	"html"
	"io"
	"strings"

	"tabcopy/pkg/dom"
)

type Document struct {
	Tables []*Table
	// ListErr, when set, is returned by ListTables.
	ListErr error
}

type Table struct {
	Caption *Caption
	Rows    []*Row
}

type Caption struct {
	Text     string
	Controls []dom.Control
	// InsertErr, when set, makes PrependControl fail for this caption.
	InsertErr error
}

type Row struct {
	Cells []*Cell
}

type Cell struct {
	Text string
}

// New builds a document from tables.
func New(tables ...*Table) *Document {
	return &Document{Tables: tables}
}

// NewTable builds a captioned table from rows of cell text.
func NewTable(caption string, rows ...[]string) *Table {
	t := NewUncaptionedTable(rows...)
	t.Caption = &Caption{Text: caption}
	return t
}

// NewUncaptionedTable builds a table without a caption.
func NewUncaptionedTable(rows ...[]string) *Table {
	t := &Table{}
	for _, cells := range rows {
		r := &Row{}
		for _, text := range cells {
			r.Cells = append(r.Cells, &Cell{Text: text})
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

func (d *Document) ListTables() ([]dom.Table, error) {
	if d.ListErr != nil {
		return nil, d.ListErr
	}
	tables := make([]dom.Table, len(d.Tables))
	for i, t := range d.Tables {
		tables[i] = t
	}
	return tables, nil
}

func (d *Document) CaptionOf(t dom.Table) (dom.Caption, bool) {
	table, ok := t.(*Table)
	if !ok || table == nil || table.Caption == nil {
		return nil, false
	}
	return table.Caption, true
}

func (d *Document) CaptionText(c dom.Caption) string {
	caption, ok := c.(*Caption)
	if !ok || caption == nil {
		return ""
	}
	return caption.Text
}

func (d *Document) RowsOf(t dom.Table) []dom.Row {
	table, ok := t.(*Table)
	if !ok || table == nil {
		return nil
	}
	rows := make([]dom.Row, len(table.Rows))
	for i, r := range table.Rows {
		rows[i] = r
	}
	return rows
}

func (d *Document) CellsOf(r dom.Row) []dom.Cell {
	row, ok := r.(*Row)
	if !ok || row == nil {
		return nil
	}
	cells := make([]dom.Cell, len(row.Cells))
	for i, c := range row.Cells {
		cells[i] = c
	}
	return cells
}

func (d *Document) TextOf(c dom.Cell) string {
	cell, ok := c.(*Cell)
	if !ok || cell == nil {
		return ""
	}
	return cell.Text
}

// PrependControl records ctl at the front of the caption's controls.
func (d *Document) PrependControl(c dom.Caption, ctl dom.Control) error {
	caption, ok := c.(*Caption)
	if !ok || caption == nil {
		return fmt.Errorf("caption handle %T does not belong to this document", c)
	}
	if caption.InsertErr != nil {
		return caption.InsertErr
	}
	caption.Controls = append([]dom.Control{ctl}, caption.Controls...)
	return nil
}

// OuterHTML renders a table as minimal markup.
func (d *Document) OuterHTML(t dom.Table) (string, error) {
	table, ok := t.(*Table)
	if !ok || table == nil {
		return "", fmt.Errorf("table handle %T does not belong to this document", t)
	}
	var sb strings.Builder
	writeTable(&sb, table)
	return sb.String(), nil
}

// Render writes every table as minimal markup.
func (d *Document) Render(w io.Writer) error {
	var sb strings.Builder
	for _, t := range d.Tables {
		writeTable(&sb, t)
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeTable(sb *strings.Builder, t *Table) {
	sb.WriteString("<table>")
	if t.Caption != nil {
		sb.WriteString("<caption>")
		for _, ctl := range t.Caption.Controls {
			fmt.Fprintf(sb, `<button type="button" id="%s" class="%s">%s</button>`,
				html.EscapeString(ctl.ID), html.EscapeString(ctl.Class), html.EscapeString(ctl.Label))
		}
		sb.WriteString(html.EscapeString(t.Caption.Text))
		sb.WriteString("</caption>")
	}
	for _, r := range t.Rows {
		sb.WriteString("<tr>")
		for _, c := range r.Cells {
			sb.WriteString("<td>")
			sb.WriteString(html.EscapeString(c.Text))
			sb.WriteString("</td>")
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</table>")
}
