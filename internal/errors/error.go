package errors

import (
	"bufio"
	"fmt"
	"os"
)

// Category groups error codes by the subsystem they come from.
type Category string

const (
	CategoryRuntime  Category = "runtime"
	CategoryProtocol Category = "protocol"
	CategoryConfig   Category = "config"
	CategoryMigrate  Category = "migrate"
	CategoryCLI      Category = "cli"
)

// Location is a source position a diagnostic points at.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location in file:line[:column] form.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Error is a structured diagnostic with a code, source location, and
// fix suggestion.
type Error struct {
	// Code is the registered identifier ("W201").
	Code string

	// Category names the subsystem.
	Category Category

	// Message is the short description.
	Message string

	// Detail is the longer explanation.
	Detail string

	// Location is where in the user's source the problem sits.
	Location *Location

	// Context holds source lines around Location.
	Context []string

	// Suggestion is a hint on how to fix the problem.
	Suggestion string

	// DocURL links to the error's documentation page.
	DocURL string

	// Wrapped is the underlying cause, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithLocation attaches a source location and loads surrounding
// context lines from the file.
func (e *Error) WithLocation(file string, line, column int) *Error {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithSuggestion attaches a fix suggestion.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail replaces the detailed explanation.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// WithContext replaces the source context lines.
func (e *Error) WithContext(lines []string) *Error {
	e.Context = lines
	return e
}

// Wrap attaches the underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the target line from a file.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates an Error from a registered code. Unregistered codes
// yield a bare error so a typo still surfaces something.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "unknown error",
		}
	}
	return &Error{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates an uncoded Error with a formatted message.
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a plain error under a registered code. An *Error
// passes through unchanged.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	if we, ok := err.(*Error); ok {
		return we
	}
	return New(code).Wrap(err)
}
