package cmd

import (
	"fmt"
	"os"
	"strings"

	"tabcopy/pkg/config"
	"tabcopy/pkg/errors"

	"github.com/spf13/cobra"
)

var (
	configProfileName     string
	configProfileMatch    []string
	configTableSelector   string
	configCaptionSelector string
	configTriggerLabel    string
	configInitForce       bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tabcopy configuration and profiles",
	Long:  `Manage tabcopy configuration, including per-site profiles that override the table and caption selectors.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after environment overrides and defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		w := NewOutputWriter(outputFormat)
		w.SetWriter(cmd.OutOrStdout())
		if w.IsStructured() {
			return w.Write(cfg)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Current Configuration:")
		fmt.Fprintln(out, "======================")
		fmt.Fprintf(out, "Active Profile: %s\n", func() string {
			if cfg.ActiveProfile == "" {
				return "(none, matched by URL)"
			}
			return cfg.ActiveProfile
		}())
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Table Selector: %s\n", cfg.Extract.TableSelector)
		fmt.Fprintf(out, "Caption Selector: %s\n", cfg.Extract.CaptionSelector)
		fmt.Fprintf(out, "Trigger Label: %s\n", cfg.Extract.TriggerLabel)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Readiness: timeout %s, interval %s, min tables %d\n",
			cfg.Readiness.Timeout, cfg.Readiness.Interval, cfg.Readiness.MinTables)
		fmt.Fprintf(out, "HTTP: user agent %q, timeout %s, %d retries (%s..%s)\n",
			cfg.HTTP.UserAgent, cfg.HTTP.Timeout, cfg.HTTP.Retries(), cfg.HTTP.RetryWait, cfg.HTTP.RetryMaxWait)

		if len(cfg.Profiles) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Available Profiles:")
			for _, p := range cfg.Profiles {
				active := ""
				if cfg.IsProfileActive(p.Name) {
					active = " (active)"
				}
				fmt.Fprintf(out, "  - %s%s\n", p.Name, active)
				if len(p.Match) > 0 {
					fmt.Fprintf(out, "      Match: %s\n", strings.Join(p.Match, ", "))
				}
			}
		}

		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPathFlag
		if path == "" {
			p, err := config.GetConfigPath()
			if err != nil {
				return errors.NewWithError(errors.ExitCodeConfig, "failed to get config path", err)
			}
			path = p
		}

		if _, err := os.Stat(path); err == nil && !configInitForce {
			ok, err := ConfirmPrompt(fmt.Sprintf("%s already exists. Overwrite it", path))
			if err != nil {
				return err
			}
			if !ok {
				return errors.CancelledError("config init")
			}
		}

		if IsDryRun() {
			PrintDryRun("Would write default configuration to %s", path)
			return nil
		}

		if err := config.Save(config.Default(), path); err != nil {
			return err
		}
		PrintSuccess("Wrote default configuration to %s", path)
		return nil
	},
}

var configProfilesCmd = &cobra.Command{
	Use:     "profiles",
	Aliases: []string{"profile"},
	Short:   "Manage configuration profiles",
	Long:    `List, add, remove, and switch between per-site extraction profiles.`,
}

var configProfilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		profiles := cfg.ListProfiles()
		if len(profiles) == 0 {
			fmt.Fprintln(out, "No profiles configured.")
			fmt.Fprintln(out, "Use 'tabcopy config profiles add --name <name>' to create one.")
			return nil
		}

		fmt.Fprintln(out, "Profiles:")
		for _, name := range profiles {
			profile, _ := cfg.GetProfile(name)
			active := ""
			if cfg.IsProfileActive(name) {
				active = " *active*"
			}
			fmt.Fprintf(out, "  %s%s\n", name, active)
			for _, m := range profile.Match {
				fmt.Fprintf(out, "    Match: %s\n", m)
			}
			if profile.Extract.TableSelector != "" {
				fmt.Fprintf(out, "    Table selector: %s\n", profile.Extract.TableSelector)
			}
			if profile.Extract.CaptionSelector != "" {
				fmt.Fprintf(out, "    Caption selector: %s\n", profile.Extract.CaptionSelector)
			}
		}

		return nil
	},
}

var configProfilesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new profile",
	Long:  `Add a per-site profile. Match patterns are globs over host/path; ** crosses path segments.`,
	Example: `  tabcopy config profiles add --name stm32 \
    --match 'www.st.com/resource/en/reference_manual/**' \
    --table-selector 'table.register'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configProfileName == "" {
			return errors.ConfigError("profile name is required (--name)")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		profile := config.Profile{
			Name:  configProfileName,
			Match: configProfileMatch,
			Extract: config.ExtractConfig{
				TableSelector:   configTableSelector,
				CaptionSelector: configCaptionSelector,
				TriggerLabel:    configTriggerLabel,
			},
		}

		if err := cfg.AddProfile(profile); err != nil {
			return err
		}

		if IsDryRun() {
			PrintDryRun("Would add profile '%s'", configProfileName)
			return nil
		}
		if err := config.Save(cfg, configPathFlag); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' added successfully.\n", configProfileName)
		return nil
	},
}

var configProfilesRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configProfileName == "" {
			return errors.ConfigError("profile name is required (--name)")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err := cfg.RemoveProfile(configProfileName); err != nil {
			return err
		}

		if IsDryRun() {
			PrintDryRun("Would remove profile '%s'", configProfileName)
			return nil
		}
		if err := config.Save(cfg, configPathFlag); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' removed successfully.\n", configProfileName)
		return nil
	},
}

var configProfilesUseCmd = &cobra.Command{
	Use:   "use",
	Short: "Switch to a profile",
	Long:  `Set the profile used for every page regardless of its URL. Pass --name "" to go back to URL matching.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err := cfg.SetProfile(configProfileName); err != nil {
			return err
		}

		if IsDryRun() {
			PrintDryRun("Would switch to profile '%s'", configProfileName)
			return nil
		}
		if err := config.Save(cfg, configPathFlag); err != nil {
			return err
		}

		if configProfileName == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Profiles are now selected by page URL.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to profile '%s'.\n", configProfileName)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPathFlag
		if path == "" {
			p, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			path = p
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file without asking")

	// Profile management flags
	configProfilesAddCmd.Flags().StringVar(&configProfileName, "name", "", "Profile name (required)")
	configProfilesAddCmd.Flags().StringSliceVar(&configProfileMatch, "match", nil, "host/path glob the profile applies to (repeatable)")
	configProfilesAddCmd.Flags().StringVar(&configTableSelector, "table-selector", "", "CSS selector for target tables")
	configProfilesAddCmd.Flags().StringVar(&configCaptionSelector, "caption-selector", "", "CSS selector for a table's caption")
	configProfilesAddCmd.Flags().StringVar(&configTriggerLabel, "trigger-label", "", "Label of the inserted trigger control")
	if err := configProfilesAddCmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}

	configProfilesRemoveCmd.Flags().StringVar(&configProfileName, "name", "", "Profile name (required)")
	if err := configProfilesRemoveCmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}

	configProfilesUseCmd.Flags().StringVar(&configProfileName, "name", "", "Profile name (required)")
	if err := configProfilesUseCmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}

	// Add commands
	configProfilesCmd.AddCommand(configProfilesListCmd)
	configProfilesCmd.AddCommand(configProfilesAddCmd)
	configProfilesCmd.AddCommand(configProfilesRemoveCmd)
	configProfilesCmd.AddCommand(configProfilesUseCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configProfilesCmd)
	configCmd.AddCommand(configPathCmd)
}
