package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyLine     = errors.New("protocol: empty line")
	ErrMissingMethod = errors.New("protocol: missing method")
	ErrInvalidMethod = errors.New("protocol: method must be a string")
	ErrInvalidParams = errors.New("protocol: params must be an array or object")
)

const maxQuotedLine = 120

// DecodeError reports a line that did not decode to a Message. It is
// recoverable: callers log it and move on to the next line.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	line := e.Line
	if len(line) > maxQuotedLine {
		line = line[:maxQuotedLine] + "..."
	}
	return fmt.Sprintf("protocol: decode line %q: %v", line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
