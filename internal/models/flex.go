// internal/models/flex.go
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexNumber decodes numbers that completions sometimes emit as strings
// ("₹2,500"), objects ({"cost": 500}) or null. Anything unreadable is zero.
type FlexNumber float64

func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*n = 0
	if len(b) == 0 {
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		*n = FlexNumber(parseLooseNumber(s))
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(b, &m); err != nil {
			return nil
		}
		for _, key := range []string{"cost", "amount", "total", "value"} {
			if raw, ok := m[key]; ok {
				return n.UnmarshalJSON(raw)
			}
		}
	case '[', 'n', 't', 'f':
		return nil
	default:
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			*n = FlexNumber(f)
		}
	}
	return nil
}

func (n FlexNumber) Float() float64 {
	return float64(n)
}

// parseLooseNumber keeps the first run of digits, dots and a leading minus.
func parseLooseNumber(s string) float64 {
	var b strings.Builder
	started := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9' || r == '.':
			b.WriteRune(r)
			started = true
		case r == ',' && started:
		case r == '-' && !started:
			b.WriteRune(r)
		default:
			if started {
				f, _ := strconv.ParseFloat(b.String(), 64)
				return f
			}
			b.Reset()
		}
	}
	f, _ := strconv.ParseFloat(b.String(), 64)
	return f
}

// FlexString decodes any JSON scalar as text. Arrays of strings are joined
// and objects are kept as compact JSON.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*s = ""
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	switch b[0] {
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
	case '[':
		var items []FlexString
		if err := json.Unmarshal(b, &items); err != nil {
			return nil
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if item != "" {
				parts = append(parts, string(item))
			}
		}
		*s = FlexString(strings.Join(parts, ", "))
	case '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, b); err != nil {
			return nil
		}
		*s = FlexString(buf.String())
	default:
		*s = FlexString(b)
	}
	return nil
}

func (s FlexString) String() string {
	return string(s)
}

// FlexList decodes either an array or a single value into a list of strings.
type FlexList []string

func (l *FlexList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*l = nil
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	if b[0] == '[' {
		var items []FlexString
		if err := json.Unmarshal(b, &items); err != nil {
			return nil
		}
		out := make(FlexList, 0, len(items))
		for _, item := range items {
			if item != "" {
				out = append(out, string(item))
			}
		}
		*l = out
		return nil
	}

	var single FlexString
	if err := single.UnmarshalJSON(b); err != nil {
		return nil
	}
	if single != "" {
		*l = FlexList{string(single)}
	}
	return nil
}

// CostBreakdown maps a cost category to an amount. Non-object input decodes
// to an empty breakdown.
type CostBreakdown map[string]FlexNumber

func (c *CostBreakdown) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*c = nil
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	var m map[string]FlexNumber
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	*c = m
	return nil
}
