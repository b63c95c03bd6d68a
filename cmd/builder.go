package cmd

import (
	"context"
	"fmt"
	"time"

	"tabcopy/pkg/config"
	"tabcopy/pkg/dom/htmldom"
	"tabcopy/pkg/errors"
	"tabcopy/pkg/logger"
	"tabcopy/pkg/progress"
	"tabcopy/pkg/readiness"
	"tabcopy/pkg/source"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Session is a loaded page ready for discovery.
type Session struct {
	Target  string
	Config  *config.Config
	Extract config.ExtractConfig
	Profile string
	Page    *source.Page
	Doc     *htmldom.Document
	Tables  int
	Logger  zerolog.Logger
}

// pageFlags are the flags shared by every command that reads a page.
type pageFlags struct {
	tableSelector   string
	captionSelector string
	readyTimeout    time.Duration
	noWait          bool
	maxSize         int64
}

func (f *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tableSelector, "table-selector", "", "CSS selector for target tables (default from config: table.c-table)")
	cmd.Flags().StringVar(&f.captionSelector, "caption-selector", "", "CSS selector for a table's caption (default from config: caption)")
	cmd.Flags().DurationVar(&f.readyTimeout, "ready-timeout", 0, "How long to wait for tables to appear (default from config: 10s)")
	cmd.Flags().BoolVar(&f.noWait, "no-wait", false, "Do not wait for tables, discover on the first read")
	cmd.Flags().Int64Var(&f.maxSize, "max-size", source.MaxSize, "Largest page accepted, in bytes")
}

type CommandBuilder struct {
	cmd   *cobra.Command
	flags *pageFlags
}

func NewCommand(use, short, long string) *CommandBuilder {
	return &CommandBuilder{
		cmd: &cobra.Command{
			Use:     use,
			Short:   short,
			Long:    long,
			Example: "",
		},
	}
}

func (b *CommandBuilder) WithExample(example string) *CommandBuilder {
	b.cmd.Example = example
	return b
}

func (b *CommandBuilder) WithArgsValidation(minArgs, maxArgs int) *CommandBuilder {
	b.cmd.Args = func(cmd *cobra.Command, args []string) error {
		if len(args) < minArgs {
			return errors.ValidationError(fmt.Sprintf("requires at least %d argument(s)", minArgs))
		}
		if maxArgs >= 0 && len(args) > maxArgs {
			return errors.ValidationError(fmt.Sprintf("accepts at most %d argument(s), received %d", maxArgs, len(args)))
		}
		return nil
	}
	return b
}

// WithRun runs fn under the command context.
func (b *CommandBuilder) WithRun(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) *CommandBuilder {
	b.cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, cancel := GetContext()
		defer cancel()
		return fn(ctx, cmd, args)
	}
	return b
}

// WithSession loads the page named by the first argument, waits until it
// holds tables and hands the session to fn.
func (b *CommandBuilder) WithSession(fn func(ctx context.Context, cmd *cobra.Command, s *Session) error) *CommandBuilder {
	b.flags = &pageFlags{}
	b.flags.register(b.cmd)
	flags := b.flags

	b.cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, cancel := GetContext()
		defer cancel()

		s, err := openSession(ctx, args[0], flags)
		if err != nil {
			return err
		}
		return fn(ctx, cmd, s)
	}
	return b
}

func (b *CommandBuilder) Build() *cobra.Command {
	return b.cmd
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPathFlag)
}

func openSession(ctx context.Context, target string, flags *pageFlags) (*Session, error) {
	log := logger.Component("session")

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	ext, profile, err := cfg.Resolve(target, profileFlag)
	if err != nil {
		return nil, err
	}
	if flags.tableSelector != "" {
		ext.TableSelector = flags.tableSelector
	}
	if flags.captionSelector != "" {
		ext.CaptionSelector = flags.captionSelector
	}
	for _, sel := range []string{ext.TableSelector, ext.CaptionSelector} {
		if err := config.ValidateSelector(sel); err != nil {
			return nil, err
		}
	}

	s := &Session{
		Target:  target,
		Config:  cfg,
		Extract: ext,
		Profile: profile,
		Logger:  log,
	}
	log.Debug().
		Str("target", target).
		Str("profile", profile).
		Str("table_selector", ext.TableSelector).
		Str("caption_selector", ext.CaptionSelector).
		Msg("opening page")

	loader := source.NewLoader(cfg.HTTP,
		source.WithLogger(logger.Component("source")),
		source.WithMaxSize(flags.maxSize),
	)
	countTables := func(ctx context.Context) (int, error) {
		page, err := loader.Load(ctx, target)
		if err != nil {
			return 0, err
		}
		doc, err := page.Document(
			htmldom.WithTableSelector(ext.TableSelector),
			htmldom.WithCaptionSelector(ext.CaptionSelector),
		)
		if err != nil {
			return 0, err
		}
		s.Page, s.Doc, s.Tables = page, doc, doc.CountTables()
		return s.Tables, nil
	}

	// The first read decides whether the source exists at all.
	if _, err := countTables(ctx); err != nil {
		return nil, err
	}

	minTables := max(cfg.Readiness.MinTables, 1)
	if s.Tables >= minTables || flags.noWait || s.Page.Kind == source.KindStdin {
		return s, nil
	}

	timeout := cfg.Readiness.Timeout
	if flags.readyTimeout > 0 {
		timeout = flags.readyTimeout
	}

	err = progress.WithSpinner("Waiting for tables matching "+ext.TableSelector, func(sp *progress.Spinner) error {
		_, err := readiness.Wait(ctx, countTables, readiness.Options{
			Timeout:  timeout,
			Interval: cfg.Readiness.Interval,
			MinCount: minTables,
			Logger:   log,
			OnPoll: func(attempt, count int) {
				sp.SetMessage(fmt.Sprintf("Waiting for tables matching %s (attempt %d, found %d)", ext.TableSelector, attempt, count))
			},
		})
		return err
	})
	if errors.IsExitCode(err, errors.ExitCodeTimeout) && s.Tables > 0 {
		e := err.(*errors.Error)
		e.Suggestion = fmt.Sprintf("The page has %d matching table(s) but %d are required. Lower readiness.min_tables or pass --no-wait.", s.Tables, minTables)
		return nil, e
	}
	if err != nil {
		return nil, err
	}
	logger.Info().Str("target", target).Int("tables", s.Tables).Msg("tables ready")
	return s, nil
}
