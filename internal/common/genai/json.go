// internal/common/genai/json.go
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// CompletionParseError means a completion held no usable JSON object.
type CompletionParseError struct {
	Excerpt string
	Err     error
}

func (e *CompletionParseError) Error() string {
	return fmt.Sprintf("completion parse error: %v (excerpt: %q)", e.Err, e.Excerpt)
}

func (e *CompletionParseError) Unwrap() error {
	return e.Err
}

var (
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	codeFence     = regexp.MustCompile("```(?:json)?")
	smartQuotes   = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
)

// ExtractJSON decodes the first balanced {...} object in text into v. A
// failed decode gets one cleanup pass before giving up.
func ExtractJSON(text string, v interface{}) error {
	candidate, ok := firstObject(text)
	if !ok {
		return &CompletionParseError{Excerpt: excerpt(text), Err: fmt.Errorf("no JSON object found")}
	}

	err := json.Unmarshal([]byte(candidate), v)
	if err == nil {
		return nil
	}

	cleaned := cleanup(candidate)
	if cleanedCandidate, ok := firstObject(cleaned); ok {
		cleaned = cleanedCandidate
	}
	if retryErr := json.Unmarshal([]byte(cleaned), v); retryErr != nil {
		return &CompletionParseError{Excerpt: excerpt(candidate), Err: retryErr}
	}
	return nil
}

// CompleteJSON runs a completion and decodes its JSON payload into v.
func CompleteJSON(ctx context.Context, c Completer, req Request, v interface{}) error {
	text, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}
	return ExtractJSON(text, v)
}

// firstObject returns the first brace-balanced object, ignoring braces that
// appear inside string literals.
func firstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func cleanup(s string) string {
	s = codeFence.ReplaceAllString(s, "")
	s = smartQuotes.Replace(s)
	s = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' && r != '\r' {
			return -1
		}
		return r
	}, s)
	s = escapeRawNewlines(s)
	return trailingComma.ReplaceAllString(s, "$1")
}

// escapeRawNewlines replaces literal line breaks inside string literals.
func escapeRawNewlines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			case r == '\n' || r == '\r':
				b.WriteString(" ")
				continue
			}
		} else if r == '"' {
			inString = true
		}
		b.WriteRune(r)
	}
	return b.String()
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) > 200 {
		return string(r[:200])
	}
	return s
}
