package htmldom

import (
	"strings"

	"tabcopy/pkg/dom"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RenderedText approximates the browser's innerText for the children of n:
// hidden content is dropped, whitespace collapses as in normal flow, <br>
// becomes a newline, block elements are separated by one line break and
// paragraphs by two.
func RenderedText(n *html.Node) string {
	b := textBuilder{lineStart: true}
	pre := isPreformatted(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.walk(c, pre)
	}
	return b.out.String()
}

type textBuilder struct {
	out       strings.Builder
	pending   int
	space     bool
	lineStart bool
}

func (b *textBuilder) walk(n *html.Node, pre bool) {
	switch n.Type {
	case html.TextNode:
		if pre {
			b.preformatted(n.Data)
		} else {
			b.inline(n.Data)
		}
	case html.ElementNode:
		if isHidden(n) {
			return
		}
		if n.DataAtom == atom.Br {
			b.lineBreak()
			return
		}
		breaks := blockBreaks(n)
		b.requireBreaks(breaks)
		pre = pre || isPreformatted(n)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c, pre)
		}
		b.requireBreaks(breaks)
		if (n.DataAtom == atom.Td || n.DataAtom == atom.Th) && hasNextCell(n) {
			b.literal("\t")
		}
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c, pre)
		}
	}
}

func (b *textBuilder) inline(s string) {
	s = collapseWhitespace(s)
	if s == "" {
		return
	}
	lead := s[0] == ' '
	trail := s[len(s)-1] == ' '
	s = strings.Trim(s, " ")
	if s == "" {
		if !b.lineStart && b.pending == 0 {
			b.space = true
		}
		return
	}

	b.flushBreaks()
	if (lead || b.space) && !b.lineStart {
		b.out.WriteByte(' ')
	}
	b.out.WriteString(s)
	b.space = trail
	b.lineStart = false
}

func (b *textBuilder) preformatted(s string) {
	if s == "" {
		return
	}
	b.flushBreaks()
	if b.space && !b.lineStart {
		b.out.WriteByte(' ')
	}
	b.out.WriteString(s)
	b.space = false
	b.lineStart = strings.HasSuffix(s, "\n")
}

func (b *textBuilder) literal(s string) {
	b.flushBreaks()
	b.out.WriteString(s)
	b.space = false
	b.lineStart = false
}

func (b *textBuilder) lineBreak() {
	b.flushBreaks()
	b.out.WriteByte('\n')
	b.space = false
	b.lineStart = true
}

func (b *textBuilder) requireBreaks(n int) {
	if n == 0 {
		return
	}
	b.space = false
	if n > b.pending {
		b.pending = n
	}
}

// flushBreaks emits pending required line breaks. Breaks before any output
// are dropped, and so are breaks never followed by content.
func (b *textBuilder) flushBreaks() {
	if b.pending == 0 {
		return
	}
	if b.out.Len() > 0 {
		b.out.WriteString(strings.Repeat("\n", b.pending))
		b.lineStart = true
	}
	b.pending = 0
	b.space = false
}

func collapseWhitespace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inSpace := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			if !inSpace {
				sb.WriteByte(' ')
				inSpace = true
			}
		default:
			sb.WriteRune(r)
			inSpace = false
		}
	}
	return sb.String()
}

func blockBreaks(n *html.Node) int {
	switch n.DataAtom {
	case atom.P:
		return 2
	case atom.Address, atom.Article, atom.Aside, atom.Blockquote, atom.Caption,
		atom.Details, atom.Dialog, atom.Dd, atom.Div, atom.Dl, atom.Dt,
		atom.Fieldset, atom.Figcaption, atom.Figure, atom.Footer, atom.Form,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Header,
		atom.Hgroup, atom.Hr, atom.Li, atom.Main, atom.Nav, atom.Ol, atom.Pre,
		atom.Section, atom.Summary, atom.Table, atom.Tbody, atom.Tfoot,
		atom.Thead, atom.Tr, atom.Ul:
		return 1
	}
	return 0
}

func isPreformatted(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Pre, atom.Textarea, atom.Listing, atom.Plaintext:
		return true
	}
	return false
}

func isHidden(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Template, atom.Noscript, atom.Head,
		atom.Title, atom.Meta, atom.Link:
		return true
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "style":
			style := strings.ToLower(strings.ReplaceAll(a.Val, " ", ""))
			if strings.Contains(style, "display:none") {
				return true
			}
		case "class":
			for _, class := range strings.Fields(a.Val) {
				if class == dom.TriggerClass {
					return true
				}
			}
		}
	}
	return false
}

func hasNextCell(n *html.Node) bool {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && (s.DataAtom == atom.Td || s.DataAtom == atom.Th) {
			return true
		}
	}
	return false
}
