package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type wireMessage struct {
	Method json.RawMessage `json:"method"`
	Params json.RawMessage `json:"params"`
}

type outboundMessage struct {
	Method string `json:"method"`
	Params Params `json:"params"`
}

// Decode parses one line into a Message. Surrounding whitespace, including
// the '\r' left by println-style firmware, is ignored. Every failure is a
// *DecodeError carrying the line.
func Decode(line string) (Message, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Message{}, &DecodeError{Line: line, Err: ErrEmptyLine}
	}

	var wire wireMessage
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return Message{}, &DecodeError{Line: line, Err: err}
	}

	rawMethod := bytes.TrimSpace(wire.Method)
	if len(rawMethod) == 0 || bytes.Equal(rawMethod, []byte("null")) {
		return Message{}, &DecodeError{Line: line, Err: ErrMissingMethod}
	}
	var method string
	if err := json.Unmarshal(rawMethod, &method); err != nil {
		return Message{}, &DecodeError{Line: line, Err: ErrInvalidMethod}
	}
	if method == "" {
		return Message{}, &DecodeError{Line: line, Err: ErrMissingMethod}
	}

	params, err := parseParams(wire.Params)
	if err != nil {
		if !errors.Is(err, ErrInvalidParams) {
			err = fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		return Message{}, &DecodeError{Line: line, Err: err}
	}
	return Message{Method: method, Params: params}, nil
}

// Encode renders one message as a single line without the terminator.
func Encode(method string, params Params) (string, error) {
	if strings.TrimSpace(method) == "" {
		return "", ErrMissingMethod
	}
	raw, err := json.Marshal(outboundMessage{Method: method, Params: params})
	if err != nil {
		return "", fmt.Errorf("protocol: encode %s: %w", method, err)
	}
	return string(raw), nil
}

// EncodeMessage is Encode for an already built Message.
func EncodeMessage(msg Message) (string, error) {
	return Encode(msg.Method, msg.Params)
}
