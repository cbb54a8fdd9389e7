// Package llmjson decodes JSON emitted by language models into typed values.
//
// Model output is untrusted: it may be wrapped in markdown fences, prefixed
// with prose, or simply malformed. Parse never coerces bad output into
// defaults; callers get a Result carrying either the value or the parse error
// and decide themselves whether a failure is fatal or fails open.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmpty  = errors.New("llmjson: empty response")
	ErrNoJSON = errors.New("llmjson: no JSON value in response")
)

// Validator is implemented by response schemas that check their own invariants
// after decoding.
type Validator interface {
	Validate() error
}

// Result is either a decoded value (Err == nil) or a parse error.
type Result[T any] struct {
	Value T
	Err   error
}

func (r Result[T]) OK() bool { return r.Err == nil }

// Get returns the value and error pair.
func (r Result[T]) Get() (T, error) { return r.Value, r.Err }

// Parse extracts the first JSON object or array from raw and decodes it into T.
// If *T implements Validator, Validate runs after decoding.
func Parse[T any](raw string) Result[T] {
	var zero T
	body, err := Extract(raw)
	if err != nil {
		return Result[T]{Err: err}
	}
	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return Result[T]{Value: zero, Err: fmt.Errorf("llmjson: decode: %w", err)}
	}
	if val, ok := any(&v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return Result[T]{Value: zero, Err: fmt.Errorf("llmjson: invalid: %w", err)}
		}
	}
	return Result[T]{Value: v}
}

// Extract returns the outermost JSON object or array embedded in raw.
func Extract(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmpty
	}
	s = stripFence(s)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
