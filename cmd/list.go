package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"tabcopy/pkg/clipboard"
	"tabcopy/pkg/errors"
	"tabcopy/pkg/extractor"
	"tabcopy/pkg/logger"
	"tabcopy/pkg/models"
	"tabcopy/pkg/render"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return NewCommand(
		"list <source>",
		"List the tables a page offers",
		`Show every table matching the table selector with its index, caption and
size. Tables without a caption are listed as skipped: grab cannot attach a
trigger to them. Indices are the ones grab --table expects.`,
	).
		WithExample(`  tabcopy list page.html
  tabcopy list --format yaml https://developer.arm.com/documentation/dui0552/a/cortex-m3-peripherals/system-control-block`).
		WithArgsValidation(1, 1).
		WithSession(func(ctx context.Context, cmd *cobra.Command, s *Session) error {
			return runList(cmd.OutOrStdout(), s)
		}).
		Build()
}

func runList(out io.Writer, s *Session) error {
	ext := extractor.New(s.Doc,
		extractor.WithClipboard(clipboard.Discard),
		extractor.WithLogger(logger.Component("extractor")),
	)

	infos, err := ext.Inspect()
	if err != nil {
		return errors.WrapWithCode(err, errors.ExitCodeSource, "table discovery failed")
	}
	if len(infos) == 0 {
		return errors.NoTablesError(s.Extract.TableSelector)
	}

	w := NewOutputWriter(outputFormat)
	w.SetWriter(out)
	if w.IsStructured() {
		return w.Write(infos)
	}

	summary := models.NewExtractionResult()
	summary.AppendRow([]string{"#", "Caption", "Rows", "Columns", "Status"})
	for _, info := range infos {
		status := "ready"
		if info.Skipped() {
			status = "skipped (no caption)"
		}
		summary.AppendRow([]string{
			strconv.Itoa(info.Index),
			info.Caption,
			strconv.Itoa(info.Rows),
			strconv.Itoa(info.Columns),
			status,
		})
	}

	title := fmt.Sprintf("%d table(s) matching %s", len(infos), s.Extract.TableSelector)
	if s.Profile != "" {
		title += fmt.Sprintf(" [profile %s]", s.Profile)
	}
	return render.Write(out, w.GetFormat(), render.Table{Caption: title, Result: summary})
}
