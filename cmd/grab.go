package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"tabcopy/pkg/clipboard"
	"tabcopy/pkg/errors"
	"tabcopy/pkg/extractor"
	"tabcopy/pkg/filter"
	"tabcopy/pkg/logger"
	"tabcopy/pkg/render"

	"github.com/spf13/cobra"
)

type grabOptions struct {
	tables  []int
	caption string
	match   string
	noCopy  bool
}

func newGrabCmd() *cobra.Command {
	opts := &grabOptions{}

	cmd := NewCommand(
		"grab <source>",
		"Copy tables from a page to the clipboard as JSON",
		`Attach a trigger to every captioned table in the page, then activate the
selected ones. Each activation reads the table's rendered cell text, prints
it in --format and writes {"rows":[{"cells":[...]}]} to the clipboard.

With several tables selected every activation is independent and the last
successful write is what ends up on the clipboard.

<source> is an HTML file, "-" for stdin, or an http(s) URL.`,
	).
		WithExample(`  # Copy the only register table of a saved page
  tabcopy grab aircr.html

  # Copy table 2 of a live documentation page
  tabcopy grab --table 2 https://developer.arm.com/documentation/dui0552/a/cortex-m3-peripherals/system-control-block/application-interrupt-and-reset-control-register

  # Pick a table by caption and print it as markdown without copying
  tabcopy grab page.html --caption "AIRCR" --format markdown --no-copy`).
		WithArgsValidation(1, 1).
		WithSession(func(ctx context.Context, cmd *cobra.Command, s *Session) error {
			return runGrab(ctx, cmd.OutOrStdout(), s, opts)
		}).
		Build()

	cmd.Flags().IntSliceVar(&opts.tables, "table", nil, "Index of a table to copy, counted over all matching tables (repeatable)")
	cmd.Flags().StringVar(&opts.caption, "caption", "", "Only copy tables whose caption matches this pattern")
	cmd.Flags().StringVar(&opts.match, "match", "contains", "How --caption is matched (exact, contains, regex, fuzzy)")
	cmd.Flags().BoolVar(&opts.noCopy, "no-copy", false, "Print the tables without touching the clipboard")

	return cmd
}

func runGrab(ctx context.Context, out io.Writer, s *Session, opts *grabOptions) error {
	format, err := render.ParseFormat(outputFormat)
	if err != nil {
		return errors.ValidationError(err.Error())
	}
	mode, err := filter.ParseMode(opts.match)
	if err != nil {
		return errors.ValidationError(err.Error())
	}
	tf, err := filter.NewTableFilter(opts.tables, opts.caption, mode)
	if err != nil {
		return errors.ValidationError(err.Error())
	}

	copying := !opts.noCopy && !IsDryRun()
	clip := systemClipboard
	if !copying {
		clip = clipboard.Discard
	}

	ext := extractor.New(s.Doc,
		extractor.WithClipboard(clip),
		extractor.WithLogger(logger.Component("extractor")),
		extractor.WithTriggerLabel(s.Extract.TriggerLabel),
	)

	triggers, err := ext.Discover()
	if err != nil {
		return errors.WrapWithCode(err, errors.ExitCodeSource, "table discovery failed")
	}
	if len(triggers) == 0 {
		if s.Tables == 0 {
			return errors.NoTablesError(s.Extract.TableSelector)
		}
		return errors.NewWithSuggestion(errors.ExitCodeNotFound,
			fmt.Sprintf("none of the %d tables matching '%s' has a caption", s.Tables, s.Extract.TableSelector),
			"Point --caption-selector at the element holding the table title.")
	}

	if skipped := ext.Skipped(); len(skipped) > 0 {
		PrintWarning("Skipped %d table(s) without a caption: %v", len(skipped), skipped)
	}

	var selected []*extractor.Trigger
	for _, t := range triggers {
		if tf.Matches(t.Index, t.Caption) {
			selected = append(selected, t)
		}
	}
	if len(selected) == 0 {
		return noSelectionError(triggers, opts)
	}

	s.Logger.Debug().Int("discovered", len(triggers)).Int("selected", len(selected)).Msg("activating triggers")

	var failures []error
	for _, t := range selected {
		a := t.Activate()

		if err := a.Wait(ctx); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return errors.TimeoutError("writing to the clipboard")
			}
			if ctx.Err() != nil {
				return errors.CancelledError("writing to the clipboard")
			}
			logger.Warn().Err(err).Int("table", t.Index).Msg("clipboard write failed")
			failures = append(failures, err)
		}

		tbl := render.Table{Index: t.Index, Caption: t.Caption, Result: a.Result}
		if format == render.FormatMarkdown {
			if markup, err := s.Doc.OuterHTML(t.Table); err == nil {
				tbl.HTML = markup
			}
		}
		if err := render.Write(out, format, tbl); err != nil {
			return errors.NewWithError(errors.ExitCodeGeneral, errors.ErrMsgRenderFailed, err)
		}

		switch {
		case IsDryRun():
			PrintDryRunAction("copy "+describeTable(t.Index, t.Caption), map[string]string{
				"rows":    strconv.Itoa(a.Result.RowCount()),
				"bytes":   strconv.Itoa(len(a.Payload)),
				"trigger": a.TriggerID,
			})
		case copying && a.Err() == nil:
			PrintSuccess("Copied %s to clipboard (%d rows)", describeTable(t.Index, t.Caption), a.Result.RowCount())
		}
	}

	if len(failures) > 0 {
		e := errors.ClipboardError(failures[len(failures)-1])
		if len(failures) > 1 {
			e.Message = fmt.Sprintf("%s (%d of %d tables)", e.Message, len(failures), len(selected))
		}
		return e
	}
	return nil
}

func noSelectionError(triggers []*extractor.Trigger, opts *grabOptions) error {
	e := errors.NotFoundError(fmt.Sprintf("table matching --table %v --caption '%s'", opts.tables, opts.caption))

	captions := make([]string, 0, len(triggers))
	indices := make([]int, 0, len(triggers))
	for _, t := range triggers {
		captions = append(captions, t.Caption)
		indices = append(indices, t.Index)
	}

	if opts.caption != "" {
		if hint := filter.Closest(opts.caption, captions, 0.4); hint != "" {
			e.Suggestion = fmt.Sprintf("Did you mean --caption '%s'?", hint)
			return e
		}
	}
	e.Suggestion = fmt.Sprintf("Captioned tables are at indices %v. Run 'tabcopy list <source>' to see them.", indices)
	return e
}
