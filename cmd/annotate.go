package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"tabcopy/pkg/clipboard"
	"tabcopy/pkg/errors"
	"tabcopy/pkg/extractor"
	"tabcopy/pkg/logger"

	"github.com/spf13/cobra"
)

type annotateOptions struct {
	output string
	times  int
}

func newAnnotateCmd() *cobra.Command {
	opts := &annotateOptions{}

	cmd := NewCommand(
		"annotate <source>",
		"Write the page with trigger controls inserted",
		`Run discovery and write the resulting HTML. Every captioned table gets a
<button type="button" class="tabcopy-trigger"> as the first child of its
caption. Running discovery more than once (--times) inserts one more
control per table per run, exactly like re-running the page script.`,
	).
		WithExample(`  tabcopy annotate page.html -o page.annotated.html
  curl -s https://example.com/regs.html | tabcopy annotate - --times 2`).
		WithArgsValidation(1, 1).
		WithSession(func(ctx context.Context, cmd *cobra.Command, s *Session) error {
			return runAnnotate(cmd.OutOrStdout(), s, opts)
		}).
		Build()

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the HTML to this file instead of stdout")
	cmd.Flags().IntVar(&opts.times, "times", 1, "How many times to run discovery")

	return cmd
}

func runAnnotate(out io.Writer, s *Session, opts *annotateOptions) error {
	if opts.times < 1 {
		return errors.ValidationError(fmt.Sprintf("--times must be at least 1, got %d", opts.times))
	}

	ext := extractor.New(s.Doc,
		extractor.WithClipboard(clipboard.Discard),
		extractor.WithLogger(logger.Component("extractor")),
		extractor.WithTriggerLabel(s.Extract.TriggerLabel),
	)

	controls := 0
	for i := 0; i < opts.times; i++ {
		triggers, err := ext.Discover()
		if err != nil {
			return errors.WrapWithCode(err, errors.ExitCodeSource, "table discovery failed")
		}
		controls += len(triggers)
	}

	dest := opts.output
	if dest == "" {
		dest = "-"
	}

	if IsDryRun() {
		PrintDryRunAction("write annotated page", map[string]string{
			"output":   dest,
			"controls": strconv.Itoa(controls),
			"skipped":  fmt.Sprintf("%v", ext.Skipped()),
		})
		return nil
	}

	if dest == "-" {
		return s.Doc.Render(out)
	}

	f, err := os.Create(dest)
	if err != nil {
		return errors.NewWithError(errors.ExitCodeFileOperation, "failed to create output file", err)
	}
	bw := bufio.NewWriter(f)
	if err := s.Doc.Render(bw); err != nil {
		f.Close()
		return errors.NewWithError(errors.ExitCodeFileOperation, "failed to write output file", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return errors.NewWithError(errors.ExitCodeFileOperation, "failed to write output file", err)
	}
	if err := f.Close(); err != nil {
		return errors.NewWithError(errors.ExitCodeFileOperation, "failed to close output file", err)
	}

	PrintSuccess("Wrote %s with %d control(s)", dest, controls)
	return nil
}
