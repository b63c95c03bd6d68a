package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

const (
	responseYes = "yes"
	responseY   = "y"
)

// promptInput is read by ConfirmPrompt; tests replace it.
var promptInput io.Reader = os.Stdin

// IsDryRun returns true if dry-run mode is enabled
func IsDryRun() bool {
	return dryRunFlag
}

// IsAssumeYes returns true if we should skip confirmation prompts
func IsAssumeYes() bool {
	return assumeYesFlag
}

// PrintDryRun prints a message indicating what would happen in dry-run mode.
// Dry-run notes go to stderr because stdout may carry a payload.
func PrintDryRun(format string, args ...interface{}) {
	yellow := color.New(color.FgYellow, color.Bold)
	_, _ = yellow.Fprint(os.Stderr, "[DRY-RUN] ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// PrintDryRunAction prints a dry-run action with details, keys sorted.
func PrintDryRunAction(action string, details map[string]string) {
	yellow := color.New(color.FgYellow, color.Bold)
	cyan := color.New(color.FgCyan)

	keys := make([]string, 0, len(details))
	for key := range details {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	_, _ = yellow.Fprintf(os.Stderr, "[DRY-RUN] Would %s:\n", action)
	for _, key := range keys {
		_, _ = cyan.Fprintf(os.Stderr, "  %s: ", key)
		fmt.Fprintln(os.Stderr, details[key])
	}
}

// ConfirmPrompt asks the user for confirmation
func ConfirmPrompt(message string) (bool, error) {
	if assumeYesFlag {
		return true, nil
	}

	yellow := color.New(color.FgYellow)
	_, _ = yellow.Fprintf(os.Stderr, "%s [y/N]: ", message)

	reader := bufio.NewReader(promptInput)
	response, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == responseY || response == responseYes, nil
}
