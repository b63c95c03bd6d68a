// Package dom defines the document capability the table extractor works
// against. Implementations wrap a parsed HTML page (htmldom) or an in-memory
// fixture (memdom).
//
// Table, Caption, Row and Cell are opaque handles. A handle is only
// meaningful to the Document that issued it; passing a foreign handle yields
// empty results rather than a panic.
package dom

import "io"

// TriggerClass marks controls inserted by discovery. Rendered text skips
// elements carrying it.
const TriggerClass = "tabcopy-trigger"

type (
	Table   any
	Caption any
	Row     any
	Cell    any
)

// Control is a trigger element to be inserted into a table caption.
type Control struct {
	ID    string
	Label string
	Class string
}

// Document is the read/insert surface over a rendered page.
type Document interface {
	// ListTables returns tables matching the document's table selector in
	// document order.
	ListTables() ([]Table, error)
	// CaptionOf returns the caption element used as the control anchor.
	CaptionOf(t Table) (Caption, bool)
	// CaptionText returns the caption's rendered text.
	CaptionText(c Caption) string
	// RowsOf returns the table's rows in document order.
	RowsOf(t Table) []Row
	// CellsOf returns the row's cells in document order.
	CellsOf(r Row) []Cell
	// TextOf returns the cell's rendered (visible) text.
	TextOf(c Cell) string
	// PrependControl inserts ctl as the first child of the caption.
	PrependControl(c Caption, ctl Control) error
}

// Renderer is implemented by documents that can serialize themselves,
// including any inserted controls.
type Renderer interface {
	Render(w io.Writer) error
}

// TableHTML is implemented by documents that can return a table's markup.
type TableHTML interface {
	OuterHTML(t Table) (string, error)
}
