package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/hexagram/internal/engine"
	"github.com/roach88/hexagram/internal/notify"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (sync failed, validation failed, bad credentials)
	ExitCommandError = 2 // Command error (bad flags, unreadable database or schema file)
)

// Error codes reported in JSON output.
const (
	CodeConfig     = "E001" // configuration, storage or schema problem
	CodeAuth       = "E002" // login or registration rejected
	CodeSync       = "E003" // remote load or save failed
	CodeValidation = "E004" // draft rejected locally
	CodeUsage      = "E005" // malformed command input
	CodeScenario   = "E006" // one or more scenarios failed
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError without an underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and message to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the first ExitError in err's chain,
// or ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or as a JSON CLIResponse.
// Diagnostics go to ErrWriter so they never mix with JSON on Writer.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failed command in JSON output.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func newFormatter(opts *RootOptions, out, errOut io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   opts.Verbose,
	}
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// Success writes data. Text output prints it with fmt's default format.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a failure. Text output shows details only with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err under code and returns it as an ExitError. Errors
// without an exit code become command errors.
func (f *OutputFormatter) Fail(code string, err error) error {
	_ = f.Error(code, err.Error(), nil)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return WrapExitError(ExitCommandError, "command failed", err)
}

// Outcome reports a failed engine outcome and returns its exit error.
// A successful outcome, including one skipped for lack of a session,
// writes nothing and returns nil.
func (f *OutputFormatter) Outcome(o engine.Outcome) error {
	var code, message string
	switch {
	case o.Canceled:
		code, message = CodeUsage, "operation cancelled"
	case o.Kind == notify.KindValidationFailed:
		code, message = CodeValidation, "profile not saved"
	case o.Kind == notify.KindSyncFailed:
		code, message = CodeSync, "saved locally, remote sync failed"
	case o.Kind == notify.KindLoadFailed:
		code, message = CodeSync, "load failed, showing cached profile"
	case o.Err != nil:
		code, message = CodeUsage, "operation failed"
	default:
		return nil
	}

	exitErr := WrapExitError(ExitFailure, message, o.Err)
	var details any
	if o.Err != nil {
		details = o.Err.Error()
	}
	_ = f.Error(code, exitErr.Error(), details)
	return exitErr
}

// VerboseLog writes a diagnostic line to ErrWriter when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.diag(), format+"\n", args...)
}

func (f *OutputFormatter) diag() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
