package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"tabcopy/pkg/clipboard"
	"tabcopy/pkg/errors"
	"tabcopy/pkg/models"
	"tabcopy/pkg/regmap"

	"github.com/spf13/cobra"
)

type regmapOptions struct {
	fromClipboard bool
	output        string
	copy          bool
}

// clipboardReader is swapped out in tests.
var clipboardReader clipboard.Reader = clipboard.System{}

func newRegmapCmd() *cobra.Command {
	opts := &regmapOptions{}

	cmd := NewCommand(
		"regmap [file|-]",
		"Generate packed-struct fields from a copied register table",
		`Read the JSON produced by grab for a register bit-assignment table and
print one field declaration per bit range, lowest bit first:

  /// description line
  NAME: uN, // [hi:lo], ACCESS

The table header must name Bits, Name and Function columns (Type is
optional and defaults to RW). Reserved fields ("-") become _reservedN.
Fields must cover an 8, 16 or 32 bit register without gaps.`,
	).
		WithExample(`  # Straight from the clipboard after clicking "Generate Code"
  tabcopy regmap --from-clipboard

  # From a pipe
  tabcopy grab aircr.html --no-copy | tabcopy regmap -`).
		WithArgsValidation(0, 1).
		WithRun(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			return runRegmap(cmd.InOrStdin(), cmd.OutOrStdout(), args, opts)
		}).
		Build()

	cmd.Flags().BoolVar(&opts.fromClipboard, "from-clipboard", false, "Read the table JSON from the clipboard")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the declarations to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "Also copy the declarations to the clipboard")

	return cmd
}

func runRegmap(in io.Reader, out io.Writer, args []string, opts *regmapOptions) error {
	data, err := readRegmapInput(in, args, opts)
	if err != nil {
		return err
	}

	result, err := models.ParseExtractionResult(bytes.TrimSpace(data))
	if err != nil {
		return errors.NewWithSuggestion(errors.ExitCodeValidation,
			fmt.Sprintf("%s: not table JSON: %v", errors.ErrMsgInvalidInput, err),
			`Expected {"rows":[{"cells":[...]}]} as written by 'tabcopy grab'.`)
	}

	var buf bytes.Buffer
	if err := regmap.Generate(&buf, result); err != nil {
		return err
	}

	if opts.output != "" {
		if IsDryRun() {
			PrintDryRun("Would write %d bytes to %s", buf.Len(), opts.output)
		} else if err := os.WriteFile(opts.output, buf.Bytes(), 0644); err != nil {
			return errors.NewWithError(errors.ExitCodeFileOperation, "failed to write output file", err)
		}
	} else if _, err := out.Write(buf.Bytes()); err != nil {
		return err
	}

	if opts.copy {
		if IsDryRun() {
			PrintDryRun("Would copy %d bytes to the clipboard", buf.Len())
			return nil
		}
		if err := CopyToClipboard(buf.String()); err != nil {
			return errors.ClipboardError(err)
		}
		PrintSuccess("Copied declarations to clipboard")
	}
	return nil
}

func readRegmapInput(in io.Reader, args []string, opts *regmapOptions) ([]byte, error) {
	if opts.fromClipboard {
		if len(args) > 0 {
			return nil, errors.ValidationError("pass either a file or --from-clipboard, not both")
		}
		text, err := clipboardReader.ReadText()
		if err != nil {
			return nil, errors.ClipboardError(err)
		}
		return []byte(text), nil
	}

	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, errors.SourceError("stdin", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, errors.SourceError(args[0], err)
	}
	return data, nil
}
