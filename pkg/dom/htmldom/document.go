// Package htmldom implements dom.Document over a parsed HTML page using
// goquery and golang.org/x/net/html.
package htmldom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"tabcopy/pkg/dom"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	DefaultTableSelector   = "table.c-table"
	DefaultCaptionSelector = "caption"
)

// Document wraps a goquery document. Handles issued by it are *html.Node.
type Document struct {
	doc             *goquery.Document
	tableSelector   cascadia.Selector
	captionSelector cascadia.Selector
}

type Option func(*options)

type options struct {
	tableSelector   string
	captionSelector string
}

// WithTableSelector sets the CSS selector identifying tables.
func WithTableSelector(sel string) Option {
	return func(o *options) {
		if sel != "" {
			o.tableSelector = sel
		}
	}
}

// WithCaptionSelector sets the CSS selector for the caption looked up
// inside each table.
func WithCaptionSelector(sel string) Option {
	return func(o *options) {
		if sel != "" {
			o.captionSelector = sel
		}
	}
}

// Parse reads UTF-8 HTML from r.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return New(doc, opts...)
}

// ParseString is Parse over a string.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

// New wraps an already parsed goquery document.
func New(doc *goquery.Document, opts ...Option) (*Document, error) {
	o := options{
		tableSelector:   DefaultTableSelector,
		captionSelector: DefaultCaptionSelector,
	}
	for _, opt := range opts {
		opt(&o)
	}

	tableSel, err := cascadia.Compile(o.tableSelector)
	if err != nil {
		return nil, fmt.Errorf("invalid table selector %q: %w", o.tableSelector, err)
	}
	captionSel, err := cascadia.Compile(o.captionSelector)
	if err != nil {
		return nil, fmt.Errorf("invalid caption selector %q: %w", o.captionSelector, err)
	}

	return &Document{
		doc:             doc,
		tableSelector:   tableSel,
		captionSelector: captionSel,
	}, nil
}

// CountTables returns the number of tables matching the selector.
func (d *Document) CountTables() int {
	return d.doc.FindMatcher(d.tableSelector).Length()
}

func (d *Document) ListTables() ([]dom.Table, error) {
	nodes := d.doc.FindMatcher(d.tableSelector).Nodes
	tables := make([]dom.Table, len(nodes))
	for i, n := range nodes {
		tables[i] = n
	}
	return tables, nil
}

// CaptionOf returns the first descendant matching the caption selector.
func (d *Document) CaptionOf(t dom.Table) (dom.Caption, bool) {
	n, ok := t.(*html.Node)
	if !ok || n == nil {
		return nil, false
	}
	caption := d.captionSelector.MatchFirst(n)
	if caption == nil || caption == n {
		return nil, false
	}
	return caption, true
}

func (d *Document) CaptionText(c dom.Caption) string {
	n, ok := c.(*html.Node)
	if !ok || n == nil {
		return ""
	}
	return RenderedText(n)
}

// RowsOf follows HTMLTableElement.rows ordering: thead rows, then tbody
// rows and direct tr children in tree order, then tfoot rows.
func (d *Document) RowsOf(t dom.Table) []dom.Row {
	n, ok := t.(*html.Node)
	if !ok || n == nil {
		return nil
	}

	var head, body, foot []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Tr:
			body = append(body, c)
		case atom.Thead:
			head = append(head, childElements(c, atom.Tr)...)
		case atom.Tbody:
			body = append(body, childElements(c, atom.Tr)...)
		case atom.Tfoot:
			foot = append(foot, childElements(c, atom.Tr)...)
		}
	}

	rows := make([]dom.Row, 0, len(head)+len(body)+len(foot))
	for _, group := range [][]*html.Node{head, body, foot} {
		for _, r := range group {
			rows = append(rows, r)
		}
	}
	return rows
}

func (d *Document) CellsOf(r dom.Row) []dom.Cell {
	n, ok := r.(*html.Node)
	if !ok || n == nil {
		return nil
	}
	nodes := childElements(n, atom.Td, atom.Th)
	cells := make([]dom.Cell, len(nodes))
	for i, c := range nodes {
		cells[i] = c
	}
	return cells
}

func (d *Document) TextOf(c dom.Cell) string {
	n, ok := c.(*html.Node)
	if !ok || n == nil {
		return ""
	}
	return RenderedText(n)
}

// PrependControl inserts a <button type="button"> as the caption's first
// child. Repeated calls insert repeated buttons.
func (d *Document) PrependControl(c dom.Caption, ctl dom.Control) error {
	n, ok := c.(*html.Node)
	if !ok || n == nil {
		return fmt.Errorf("caption handle %T does not belong to this document", c)
	}

	button := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Button,
		Data:     "button",
		Attr: []html.Attribute{
			{Key: "type", Val: "button"},
		},
	}
	if ctl.ID != "" {
		button.Attr = append(button.Attr, html.Attribute{Key: "id", Val: ctl.ID})
	}
	class := ctl.Class
	if class == "" {
		class = dom.TriggerClass
	}
	button.Attr = append(button.Attr, html.Attribute{Key: "class", Val: class})
	button.AppendChild(&html.Node{Type: html.TextNode, Data: ctl.Label})

	n.InsertBefore(button, n.FirstChild)
	return nil
}

// Render writes the whole document, including inserted controls.
func (d *Document) Render(w io.Writer) error {
	for _, n := range d.doc.Nodes {
		if err := html.Render(w, n); err != nil {
			return fmt.Errorf("rendering HTML: %w", err)
		}
	}
	return nil
}

// OuterHTML returns the markup of a table.
func (d *Document) OuterHTML(t dom.Table) (string, error) {
	n, ok := t.(*html.Node)
	if !ok || n == nil {
		return "", fmt.Errorf("table handle %T does not belong to this document", t)
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("rendering table: %w", err)
	}
	return buf.String(), nil
}

func childElements(n *html.Node, atoms ...atom.Atom) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		for _, a := range atoms {
			if c.DataAtom == a {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
