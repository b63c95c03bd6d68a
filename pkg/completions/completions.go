package completions

import (
	"fmt"
	"strings"
	"sync"

	"tabcopy/pkg/config"
	"tabcopy/pkg/filter"

	"github.com/spf13/cobra"
)

// Options tells the completer where configuration lives and which output
// formats the CLI accepts.
type Options struct {
	Formats    []string
	ConfigPath func() string
}

type Completer struct {
	opts     Options
	mu       sync.RWMutex
	profiles []string
}

func NewCompleter(opts Options) *Completer {
	if opts.ConfigPath == nil {
		opts.ConfigPath = func() string { return "" }
	}
	return &Completer{opts: opts}
}

// CompleteProfiles completes profile names from the config file, with their
// match patterns as descriptions.
func (c *Completer) CompleteProfiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := config.Load(c.opts.ConfigPath())
	if err != nil {
		return c.cachedProfiles(toComplete), cobra.ShellCompDirectiveNoFileComp
	}

	names := make([]string, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		desc := "profile"
		if len(p.Match) > 0 {
			desc = strings.Join(p.Match, ", ")
		}
		names = append(names, fmt.Sprintf("%s\t%s", p.Name, desc))
	}

	c.mu.Lock()
	c.profiles = names
	c.mu.Unlock()

	return c.filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func (c *Completer) cachedProfiles(toComplete string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filterPrefix(c.profiles, toComplete)
}

func (c *Completer) CompleteFormat(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	results := c.filterPrefix(c.opts.Formats, toComplete)

	for i, format := range results {
		results[i] = fmt.Sprintf("%s\t%s", format, getFormatDescription(format))
	}

	return results, cobra.ShellCompDirectiveNoFileComp
}

func (c *Completer) CompleteMatchMode(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	results := c.filterPrefix(filter.ModeNames(), toComplete)

	for i, mode := range results {
		results[i] = fmt.Sprintf("%s\t%s", mode, getMatchDescription(mode))
	}

	return results, cobra.ShellCompDirectiveNoFileComp
}

func (c *Completer) CompleteSelector(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	common := []string{
		"table.c-table\tARM developer documentation tables",
		"table\tEvery table",
		"caption\tHTML table caption",
	}
	return c.filterPrefix(common, toComplete), cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

func (c *Completer) filterPrefix(items []string, prefix string) []string {
	var result []string
	for _, item := range items {
		itemName := strings.Split(item, "\t")[0]
		if strings.HasPrefix(strings.ToLower(itemName), strings.ToLower(prefix)) {
			result = append(result, item)
		}
	}
	return result
}

func getFormatDescription(format string) string {
	switch format {
	case "json":
		return "Compact JSON, the clipboard format"
	case "pretty":
		return "Indented JSON"
	case "yaml":
		return "YAML document"
	case "markdown":
		return "Markdown table"
	case "table":
		return "Aligned text table"
	default:
		return ""
	}
}

func getMatchDescription(mode string) string {
	switch mode {
	case "exact":
		return "Whole caption, case-insensitive"
	case "contains":
		return "Substring, case-insensitive"
	case "regex":
		return "Go regular expression"
	case "fuzzy":
		return "Characters in order, gaps allowed"
	default:
		return ""
	}
}

func RegisterCompletions(rootCmd *cobra.Command, opts Options) {
	completer := NewCompleter(opts)

	rootCmd.RegisterFlagCompletionFunc("format", completer.CompleteFormat)
	rootCmd.RegisterFlagCompletionFunc("profile", completer.CompleteProfiles)

	for _, name := range []string{"grab", "list", "annotate"} {
		sub, _, err := rootCmd.Find([]string{name})
		if err != nil || sub == nil || sub == rootCmd {
			continue
		}
		sub.RegisterFlagCompletionFunc("table-selector", completer.CompleteSelector)
		sub.RegisterFlagCompletionFunc("caption-selector", completer.CompleteSelector)
	}

	if grabCmd, _, err := rootCmd.Find([]string{"grab"}); err == nil && grabCmd != nil {
		grabCmd.RegisterFlagCompletionFunc("match", completer.CompleteMatchMode)
	}

	if useCmd, _, err := rootCmd.Find([]string{"config", "profiles", "use"}); err == nil && useCmd != nil {
		useCmd.RegisterFlagCompletionFunc("name", completer.CompleteProfiles)
	}
	if removeCmd, _, err := rootCmd.Find([]string{"config", "profiles", "remove"}); err == nil && removeCmd != nil {
		removeCmd.RegisterFlagCompletionFunc("name", completer.CompleteProfiles)
	}
}
