// Package aijson recovers structured data from JSON text produced by a
// generative model, which is frequently almost-but-not-quite valid.
package aijson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Strategy names the attempt that produced a value.
type Strategy string

const (
	StrategyDirect    Strategy = "direct"
	StrategyCleaned   Strategy = "cleaned"
	StrategyExtracted Strategy = "extracted"
)

// snippetLen bounds how much of the input is echoed back in a ParseError.
const snippetLen = 200

// ErrNotObject is returned by ParseObject when the recovered value is not a JSON object.
var ErrNotObject = errors.New("recovered JSON is not an object")

// ParseError reports that every recovery strategy failed.
type ParseError struct {
	Snippet  string // leading part of the input
	Length   int    // input length in bytes
	Attempts []error
}

func (e *ParseError) Error() string {
	var last error
	if n := len(e.Attempts); n > 0 {
		last = e.Attempts[n-1]
	}
	return fmt.Sprintf("unrecoverable JSON after %d attempts (last error: %v); input (%d bytes) begins: %q",
		len(e.Attempts), last, e.Length, e.Snippet)
}

// Unwrap exposes the individual attempt errors to errors.Is/As.
func (e *ParseError) Unwrap() []error { return e.Attempts }

// Parse decodes text into a generic JSON value, repairing it if needed.
func Parse(text string) (any, error) {
	v, _, err := ParseWithStrategy(text)
	return v, err
}

// ParseObject is Parse restricted to JSON objects.
func ParseObject(text string) (map[string]any, error) {
	v, err := Parse(text)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w (got %T)", ErrNotObject, v)
	}
	return m, nil
}

// ParseWithStrategy tries, in order: a direct decode, a decode of the cleaned
// text, and a decode of the cleaned outermost {...} span, falling back to
// the outermost [...] span.
func ParseWithStrategy(text string) (any, Strategy, error) {
	var attempts []error

	v, err := decode(text)
	if err == nil {
		return v, StrategyDirect, nil
	}
	attempts = append(attempts, fmt.Errorf("direct: %w", err))

	v, err = decode(Clean(text))
	if err == nil {
		return v, StrategyCleaned, nil
	}
	attempts = append(attempts, fmt.Errorf("cleaned: %w", err))

	spans := candidateSpans(text)
	if len(spans) == 0 {
		attempts = append(attempts, errors.New("extracted: no {...} or [...] span found"))
	} else {
		var spanErrs []error
		for _, span := range spans {
			v, err = decode(Clean(span))
			if err == nil {
				return v, StrategyExtracted, nil
			}
			spanErrs = append(spanErrs, err)
		}
		attempts = append(attempts, fmt.Errorf("extracted: %w", errors.Join(spanErrs...)))
	}

	return nil, "", &ParseError{Snippet: snippet(text), Length: len(text), Attempts: attempts}
}

func decode(text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty input")
	}
	dec := json.NewDecoder(strings.NewReader(text))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// Trailing garbage after a complete value is still a failure here; the
	// span strategy is what trims prose around the payload.
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value at offset %d", dec.InputOffset())
	}
	return v, nil
}

// candidateSpans returns the slices worth decoding, in order: first '{' to
// last '}', then first '[' to last ']'. Objects win so that bracketed prose
// ahead of the payload ("plan [v2]: {...}") does not hide it.
func candidateSpans(text string) []string {
	var spans []string
	for _, pair := range [...][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(text, pair[0])
		end := strings.LastIndexByte(text, pair[1])
		if start < 0 || end <= start {
			continue
		}
		spans = append(spans, text[start:end+1])
	}
	return spans
}

func snippet(text string) string {
	if len(text) <= snippetLen {
		return text
	}
	cut := snippetLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
