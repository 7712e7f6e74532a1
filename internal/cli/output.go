package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roach88/queryvals/internal/kind"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Composition or execution failure
	ExitCommandError = 2 // Command error (unreadable input, bad config, database not found)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

type CLIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Success outputs data. Text output uses data's String method when it has
// one.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs err with its exit code.
func (f *OutputFormatter) Error(err error) error {
	code := GetExitCode(err)
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error()},
		})
	}

	_, werr := fmt.Fprintf(f.Writer, "Error: %v\n", err)
	return werr
}

// displayValue turns a kind value (or a pointer to one) into something
// both fmt and encoding/json render in the payload's text form.
func displayValue(v reflect.Value) any {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch x := v.Interface().(type) {
	case decimal.Decimal:
		return x.String()
	case civil.DateTime:
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case uuid.UUID:
		return x.String()
	case kind.Rune:
		return string(rune(x))
	default:
		return x
	}
}

// displayRow renders an element as a field map, or as a single value for
// scalar elements.
func displayRow(v reflect.Value) any {
	base := v.Type()
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() != reflect.Struct || base == reflect.TypeFor[time.Time]() || base == reflect.TypeFor[civil.DateTime]() ||
		base == reflect.TypeFor[decimal.Decimal]() {
		return displayValue(v)
	}

	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	row := make(map[string]any, v.NumField())
	for i := range v.NumField() {
		row[base.Field(i).Name] = displayValue(v.Field(i))
	}
	return row
}

// formatRow renders a display row on one line with fields in declaration
// order.
func formatRow(t reflect.Type, row any) string {
	m, ok := row.(map[string]any)
	if !ok {
		return fmt.Sprint(nullText(row))
	}
	parts := make([]string, 0, len(m))
	for i := range t.NumField() {
		name := t.Field(i).Name
		parts = append(parts, fmt.Sprintf("%s=%v", name, nullText(m[name])))
	}
	return strings.Join(parts, " ")
}

func nullText(v any) any {
	if v == nil {
		return "NULL"
	}
	return v
}
