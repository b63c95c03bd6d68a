package errors

import (
	"fmt"
	"io"
	"os"
	"strings"

	"tabcopy/pkg/logger"

	"github.com/fatih/color"
)

type ExitCode int

const (
	ExitCodeSuccess       ExitCode = 0
	ExitCodeGeneral       ExitCode = 1
	ExitCodeConfig        ExitCode = 2
	ExitCodeSource        ExitCode = 3
	ExitCodeNotFound      ExitCode = 4
	ExitCodeFetch         ExitCode = 5
	ExitCodeValidation    ExitCode = 6
	ExitCodeFileOperation ExitCode = 7
	ExitCodeCancellation  ExitCode = 8
	ExitCodeTimeout       ExitCode = 9
	ExitCodeClipboard     ExitCode = 10
)

// Standardized error messages for consistent user-facing errors
const (
	ErrMsgParseFailed     = "Failed to parse HTML document"
	ErrMsgSourceFailed    = "Failed to read source"
	ErrMsgFetchFailed     = "Failed to fetch page"
	ErrMsgRenderFailed    = "Failed to render output"
	ErrMsgClipboardFailed = "Failed to write to clipboard"
	ErrMsgInvalidInput    = "Invalid input provided"
)

type Error struct {
	Code       ExitCode
	Message    string
	Underlying error
	Suggestion string
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

func New(code ExitCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func NewWithError(code ExitCode, message string, err error) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
	}
}

func NewWithSuggestion(code ExitCode, message string, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}

	if wrapped, ok := err.(*Error); ok {
		return &Error{
			Code:       wrapped.Code,
			Message:    message + ": " + wrapped.Message,
			Underlying: wrapped.Underlying,
			Suggestion: wrapped.Suggestion,
		}
	}

	return &Error{
		Code:       ExitCodeGeneral,
		Message:    message,
		Underlying: err,
	}
}

// WrapWithCode wraps err under message, keeping the code of an existing
// *Error and using code otherwise.
func WrapWithCode(err error, code ExitCode, message string) *Error {
	if err == nil {
		return nil
	}

	if e, ok := err.(*Error); ok {
		return &Error{
			Code:       e.Code,
			Message:    message + ": " + e.Message,
			Underlying: e.Underlying,
			Suggestion: e.Suggestion,
		}
	}

	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
	}
}

func IsExitCode(err error, code ExitCode) bool {
	if err == nil {
		return false
	}

	if e, ok := err.(*Error); ok {
		return e.Code == code
	}

	return false
}

// CodeOf returns the exit code carried by err, or ExitCodeGeneral.
func CodeOf(err error) ExitCode {
	if err == nil {
		return ExitCodeSuccess
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ExitCodeGeneral
}

// HandleReturn logs err, prints it to stderr and returns the exit code the
// process should terminate with.
func HandleReturn(err error) ExitCode {
	return handle(os.Stderr, err)
}

// HandleQuietReturn logs err without printing and returns the exit code.
func HandleQuietReturn(err error) ExitCode {
	if err == nil {
		return ExitCodeSuccess
	}
	if _, ok := err.(*Error); !ok {
		logger.Error().Err(err).Msg("operation failed")
	}
	return CodeOf(err)
}

func handle(w io.Writer, err error) ExitCode {
	if err == nil {
		return ExitCodeSuccess
	}

	var message, suggestion string
	if e, ok := err.(*Error); ok {
		message = e.Error()
		suggestion = e.Suggestion

		if e.Underlying != nil {
			logger.Error().Err(e.Underlying).Msg(e.Message)
		} else {
			logger.Error().Msg(e.Message)
		}
	} else {
		message = err.Error()
		logger.Error().Msg(message)
	}

	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	fmt.Fprintln(w)
	red.Fprint(w, "Error: ")
	fmt.Fprintln(w, message)

	if suggestion != "" {
		yellow.Fprint(w, "Suggestion: ")
		lines := strings.Split(strings.TrimRight(suggestion, "\n"), "\n")
		for i, line := range lines {
			switch {
			case i == 0:
				fmt.Fprintln(w, line)
			case strings.HasPrefix(line, "  -"):
				cyan.Fprintln(w, line)
			default:
				fmt.Fprintln(w, "           "+line)
			}
		}
	}

	fmt.Fprintln(w)

	return CodeOf(err)
}

func ConfigError(message string) *Error {
	return &Error{
		Code:       ExitCodeConfig,
		Message:    message,
		Suggestion: "Check your configuration file (tabcopy config path) or the TABCOPY_* environment variables.",
	}
}

func ValidationError(message string) *Error {
	return &Error{
		Code:    ExitCodeValidation,
		Message: message,
	}
}

func SourceError(target string, err error) *Error {
	return &Error{
		Code:       ExitCodeSource,
		Message:    fmt.Sprintf("%s '%s'", ErrMsgSourceFailed, target),
		Underlying: err,
		Suggestion: "Pass an existing HTML file, '-' for stdin, or an http(s) URL.",
	}
}

func FetchError(url string, err error) *Error {
	return &Error{
		Code:       ExitCodeFetch,
		Message:    fmt.Sprintf("%s %s", ErrMsgFetchFailed, url),
		Underlying: err,
		Suggestion: "Check the URL and your network connection, or save the page and pass the file instead.",
	}
}

func NotFoundError(resource string) *Error {
	return &Error{
		Code:    ExitCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NoTablesError reports that no table matched the selector.
func NoTablesError(selector string) *Error {
	return &Error{
		Code:    ExitCodeNotFound,
		Message: fmt.Sprintf("no tables matching '%s'", selector),
		Suggestion: "Use 'tabcopy list <source>' to inspect the page, or change the selector:\n" +
			"  - --table-selector 'table'\n" +
			"  - extract.table_selector in the config file",
	}
}

func ClipboardError(err error) *Error {
	return &Error{
		Code:       ExitCodeClipboard,
		Message:    ErrMsgClipboardFailed,
		Underlying: err,
		Suggestion: "Install xclip, xsel or wl-clipboard, or use --no-copy and redirect stdout.",
	}
}

func TimeoutError(operation string) *Error {
	return &Error{
		Code:       ExitCodeTimeout,
		Message:    fmt.Sprintf("Operation timed out: %s", operation),
		Suggestion: "Try again with a longer timeout using --timeout or --ready-timeout.",
	}
}

func CancelledError(operation string) *Error {
	return &Error{
		Code:    ExitCodeCancellation,
		Message: fmt.Sprintf("Operation cancelled: %s", operation),
	}
}
