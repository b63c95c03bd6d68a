// Package render writes extraction results in the output formats the CLI
// offers. The clipboard always receives the compact JSON form; these
// formats only shape what is printed.
package render

import (
	"fmt"
	"html"
	"io"
	"strings"

	"tabcopy/pkg/dom"
	"tabcopy/pkg/models"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/rivo/uniseg"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatPretty   Format = "pretty"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
	FormatTable    Format = "table"
)

// Formats lists the accepted --format values.
func Formats() []string {
	return []string{string(FormatJSON), string(FormatPretty), string(FormatYAML), string(FormatMarkdown), string(FormatTable)}
}

// ParseFormat validates s. An empty string selects json.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatPretty, FormatYAML, FormatMarkdown, FormatTable:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format '%s' (valid: %s)", s, strings.Join(Formats(), ", "))
	}
}

// Table is one extracted table together with what is known about its
// origin.
type Table struct {
	Index   int
	Caption string
	Result  models.ExtractionResult
	// HTML is the outer markup of the source table. Markdown output uses it
	// when set and falls back to markup built from Result.
	HTML string
}

// Write renders t to w in format f.
func Write(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatJSON, "":
		data, err := t.Result.MarshalCompact()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case FormatPretty:
		data, err := t.Result.MarshalIndent()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t.Result); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		md, err := Markdown(t)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, md)
		return err
	case FormatTable:
		return PlainTable(w, t)
	default:
		return fmt.Errorf("unknown format '%s'", f)
	}
}

// Markdown converts the table to a GitHub-flavoured markdown table.
// Trigger controls and scripts are dropped from the markup first.
func Markdown(t Table) (string, error) {
	markup := t.HTML
	if markup == "" {
		markup = TableHTML(t.Caption, t.Result)
	}

	clean, err := stripControls(markup)
	if err != nil {
		return "", err
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	md, err := conv.ConvertString(clean)
	if err != nil {
		return "", fmt.Errorf("converting table to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// TableHTML builds markup for a result, treating the first row as the
// header.
func TableHTML(caption string, r models.ExtractionResult) string {
	var sb strings.Builder
	sb.WriteString("<table>")
	if caption != "" {
		sb.WriteString("<caption>" + html.EscapeString(caption) + "</caption>")
	}
	for i, row := range r.Rows {
		tag := "td"
		if i == 0 {
			tag = "th"
		}
		sb.WriteString("<tr>")
		for _, cell := range row.Cells {
			fmt.Fprintf(&sb, "<%s>%s</%s>", tag, strings.ReplaceAll(html.EscapeString(cell), "\n", "<br>"), tag)
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</table>")
	return sb.String()
}

func stripControls(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parsing table markup: %w", err)
	}
	doc.Find("." + dom.TriggerClass).Remove()
	doc.Find("script, style, template").Remove()

	sel := doc.Find("table").First()
	if sel.Length() == 0 {
		return doc.Find("body").Html()
	}
	return goquery.OuterHtml(sel)
}

// PlainTable writes an aligned box table. Multi-line cells are flattened
// onto one line.
func PlainTable(w io.Writer, t Table) error {
	var sb strings.Builder

	if t.Caption != "" {
		fmt.Fprintf(&sb, "%s\n", t.Caption)
	}
	if len(t.Result.Rows) == 0 {
		sb.WriteString("(empty table)\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	cols := 0
	for _, row := range t.Result.Rows {
		cols = max(cols, len(row.Cells))
	}
	widths := make([]int, cols)
	cells := make([][]string, len(t.Result.Rows))
	for i, row := range t.Result.Rows {
		cells[i] = make([]string, cols)
		for j := range cols {
			if j < len(row.Cells) {
				cells[i][j] = flatten(row.Cells[j])
			}
			widths[j] = max(widths[j], uniseg.StringWidth(cells[i][j]))
		}
	}

	border := func(left, mid, right string) {
		sb.WriteString(left)
		for j, width := range widths {
			if j > 0 {
				sb.WriteString(mid)
			}
			sb.WriteString(strings.Repeat("─", width+2))
		}
		sb.WriteString(right + "\n")
	}

	border("┌", "┬", "┐")
	for i, row := range cells {
		sb.WriteString("│")
		for j, cell := range row {
			sb.WriteString(" " + cell + strings.Repeat(" ", widths[j]-uniseg.StringWidth(cell)) + " │")
		}
		sb.WriteString("\n")
		if i == 0 && len(cells) > 1 {
			border("├", "┼", "┤")
		}
	}
	border("└", "┴", "┘")

	_, err := io.WriteString(w, sb.String())
	return err
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
