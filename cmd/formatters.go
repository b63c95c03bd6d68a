package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"tabcopy/pkg/clipboard"
	"tabcopy/pkg/render"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// OutputWriter handles structured output formatting for listings. Table
// payloads go through pkg/render instead.
type OutputWriter struct {
	format render.Format
	writer io.Writer
}

// NewOutputWriter creates a new output writer with the specified format
func NewOutputWriter(format string) *OutputWriter {
	f, err := render.ParseFormat(format)
	if err != nil {
		f = render.FormatTable
	}
	return &OutputWriter{
		format: f,
		writer: os.Stdout,
	}
}

// SetWriter sets a custom writer (used in tests)
func (w *OutputWriter) SetWriter(writer io.Writer) {
	w.writer = writer
}

// GetFormat returns the current format
func (w *OutputWriter) GetFormat() render.Format {
	return w.format
}

// IsStructured returns true if the format is JSON or YAML
func (w *OutputWriter) IsStructured() bool {
	return w.format == render.FormatJSON || w.format == render.FormatPretty || w.format == render.FormatYAML
}

// Write outputs the data in the configured format
func (w *OutputWriter) Write(data interface{}) error {
	switch w.format {
	case render.FormatJSON:
		return json.NewEncoder(w.writer).Encode(data)
	case render.FormatPretty:
		encoder := json.NewEncoder(w.writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case render.FormatYAML:
		encoder := yaml.NewEncoder(w.writer)
		defer encoder.Close()
		return encoder.Encode(data)
	default:
		// Table format is handled by individual commands
		return nil
	}
}

// systemClipboard is swapped out in tests.
var systemClipboard clipboard.Writer = clipboard.System{}

// CopyToClipboard writes content to the clipboard as plain text.
func CopyToClipboard(content string) error {
	return systemClipboard.WriteText(content)
}

// PrintSuccess writes a green status line to stderr so stdout stays
// machine-readable.
func PrintSuccess(format string, args ...interface{}) {
	if quietFlag {
		return
	}
	green := color.New(color.FgGreen)
	_, _ = green.Fprintf(os.Stderr, "✓ "+format+"\n", args...)
}

// PrintWarning writes a yellow status line to stderr.
func PrintWarning(format string, args ...interface{}) {
	if quietFlag {
		return
	}
	yellow := color.New(color.FgYellow)
	_, _ = yellow.Fprintf(os.Stderr, "! "+format+"\n", args...)
}

// shortCaption trims a caption for status lines.
func shortCaption(caption string) string {
	const limit = 60
	r := []rune(caption)
	if len(r) <= limit {
		return caption
	}
	return string(r[:limit-3]) + "..."
}

func describeTable(index int, caption string) string {
	if caption == "" {
		return fmt.Sprintf("table %d", index)
	}
	return fmt.Sprintf("table %d (%s)", index, shortCaption(caption))
}
