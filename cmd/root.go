package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"tabcopy/pkg/completions"
	"tabcopy/pkg/errors"
	"tabcopy/pkg/logger"
	"tabcopy/pkg/render"

	"github.com/spf13/cobra"
)

const (
	unknownValue = "unknown"
)

var (
	Version   string
	BuildTime string
	GitCommit string
)

var defaultTimeout = 2 * time.Minute
var globalTimeout time.Duration
var outputFormat string
var dryRunFlag bool
var assumeYesFlag bool
var quietFlag bool
var logLevel string
var profileFlag string
var configPathFlag string

var rootCmd = &cobra.Command{
	Use:   "tabcopy",
	Short: "Copy HTML tables as JSON",
	Long: `Find documentation tables in an HTML page, attach a "Generate Code"
trigger to each caption and copy a table's rendered cell text to the
clipboard as {"rows":[{"cells":[...]}]} JSON.

Pages can be read from a file, from stdin ("-") or fetched over http(s).
Configuration lives in the XDG config directory (tabcopy config path).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if globalTimeout <= 0 {
			globalTimeout = defaultTimeout
		}
		// Set log level: explicit flag takes precedence over env var
		level := logLevel
		if !cmd.Flags().Changed("log-level") {
			if envLevel := os.Getenv("TABCOPY_LOG_LEVEL"); envLevel != "" {
				level = envLevel
			}
		}
		logger.SetLevel(level)

		if _, err := render.ParseFormat(outputFormat); err != nil {
			return errors.ValidationError(err.Error())
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		ver := Version
		if ver == "" {
			ver = "dev"
		}
		bt := BuildTime
		if bt == "" {
			bt = unknownValue
		}
		gc := GitCommit
		if gc == "" {
			gc = unknownValue
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "tabcopy version %s\n", ver)
		fmt.Fprintf(out, "Built: %s\n", bt)
		fmt.Fprintf(out, "Git commit: %s\n", gc)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(int(exitCode(err)))
	}
}

// exitCode reports err on stderr unless --quiet is set, in which case only
// the exit status tells the caller what went wrong.
func exitCode(err error) errors.ExitCode {
	if quietFlag {
		return errors.HandleQuietReturn(err)
	}
	return errors.HandleReturn(err)
}

// GetContext returns a context bounded by --timeout and cancelled on
// interrupt.
func GetContext() (context.Context, context.CancelFunc) {
	timeout := globalTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func init() {
	RegisterCommands(rootCmd)

	rootCmd.PersistentFlags().DurationVar(&globalTimeout, "timeout", defaultTimeout, "Overall timeout for a command (e.g., 30s, 1m)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "json", "Output format (json, pretty, yaml, markdown, table)")
	rootCmd.PersistentFlags().BoolVar(&dryRunFlag, "dry-run", false, "Show what would be done without writing the clipboard or files")
	rootCmd.PersistentFlags().BoolVarP(&assumeYesFlag, "yes", "y", false, "Skip confirmation prompts")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Print no status lines or error messages, report failure through the exit code only")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "Use this config profile regardless of the page URL")
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "Config file (default $XDG_CONFIG_HOME/tabcopy/config.yaml)")

	completions.RegisterCompletions(rootCmd, completions.Options{
		Formats:    render.Formats(),
		ConfigPath: func() string { return configPathFlag },
	})
}
