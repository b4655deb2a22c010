package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	pkgerrors "github.com/angelmondragon/packfinderz-ledger/pkg/errors"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // drift found or the ledger violates an invariant
	ExitCommandError = 2 // bad flags, unreachable database, busy reclaimer
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Non-ExitError values map to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope written by every command.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes results as indented JSON or as plain text.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// JSON writes an ok envelope around data.
func (f *OutputFormatter) JSON(data any) error {
	return f.encode(CLIResponse{Status: "ok", Data: data})
}

// Failure writes err in the configured format and returns the ExitError the command should
// return. Invariant violations exit with ExitFailure, everything else with ExitCommandError.
func (f *OutputFormatter) Failure(message string, err error) error {
	code := string(pkgerrors.CodeInternal)
	exit := ExitCommandError
	var details any
	if typed := pkgerrors.As(err); typed != nil {
		code = string(typed.Code())
		details = typed.Details()
		if typed.Code() == pkgerrors.CodeInvariantViolation {
			exit = ExitFailure
		}
	}

	if f.Format == "json" {
		if encErr := f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error(), Details: details},
		}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s: %v\n", code, message, err)
	}
	return WrapExitError(exit, message, err)
}

func (f *OutputFormatter) encode(response CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}
