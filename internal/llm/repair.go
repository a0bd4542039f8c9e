package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var errNoJSON = errors.New("no JSON value found in model output")


// RepairJSON turns model output into valid JSON. It strips Markdown fences
// and surrounding prose, removes trailing commas and line comments, and
// closes brackets left open by truncated output. On failure it returns an
// *ErrInvalidResponse carrying the original text.
func RepairJSON(text string) (json.RawMessage, error) {
	s := stripFence(strings.TrimSpace(text))
	if json.Valid([]byte(s)) {
		return json.RawMessage(s), nil
	}

	s = normalizeQuotes(extractSpan(s))
	if s == "" {
		return nil, &ErrInvalidResponse{Content: rawText(text), Err: errNoJSON}
	}

	s = clean(s)
	if json.Valid([]byte(s)) {
		return json.RawMessage(s), nil
	}

	// Truncated output: close what is open, dropping incomplete trailing
	// elements until the result parses.
	candidate := s
	for range 32 {
		fixed := balance(candidate)
		if json.Valid([]byte(fixed)) {
			return json.RawMessage(fixed), nil
		}
		cut := lastTopComma(candidate)
		if cut <= 0 {
			break
		}
		candidate = candidate[:cut]
	}

	var parsed any
	err := json.Unmarshal([]byte(s), &parsed)
	return nil, &ErrInvalidResponse{Content: rawText(text), Err: fmt.Errorf("repair failed: %w", err)}
}

func stripFence(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	// Drop the info string, e.g. ```json
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		return s
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// normalizeQuotes turns curly double quotes used as JSON delimiters into
// ASCII quotes. Curly quotes inside a string value are kept as text.
func normalizeQuotes(s string) string {
	if !strings.ContainsAny(s, "“”„") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inStr, esc, curly := false, false, false
	for _, r := range s {
		switch {
		case inStr && esc:
			esc = false
		case inStr && r == '\\':
			esc = true
		case inStr && r == '"':
			inStr = false
		case inStr && curly && isCurlyQuote(r):
			inStr, r = false, '"'
		case !inStr && r == '"':
			inStr, curly = true, false
		case !inStr && isCurlyQuote(r):
			inStr, curly, r = true, true, '"'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isCurlyQuote(r rune) bool {
	return r == '“' || r == '”' || r == '„'
}

// extractSpan returns the text from the first opener to the last closer of
// the same kind. When there is no closer the tail is kept for balance to
// finish.
func extractSpan(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// clean drops trailing commas and // comments outside strings.
func clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inStr, esc := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			b.WriteByte(c)
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
			b.WriteByte(c)
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				for i < len(s) && s[i] != '\n' {
					i++
				}
				if i < len(s) {
					b.WriteByte('\n')
				}
				continue
			}
			b.WriteByte(c)
		case ',':
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// balance closes an unterminated string and any open brackets.
func balance(s string) string {
	var stack []byte
	inStr, esc := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inStr {
		if esc {
			s = s[:len(s)-1]
		}
		s += `"`
	}
	s = strings.TrimRight(s, ", :\n\t\r")
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}

// lastTopComma returns the index of the last comma outside strings, or -1.
func lastTopComma(s string) int {
	last := -1
	inStr, esc := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		if c == '"' {
			inStr = true
		} else if c == ',' {
			last = i
		}
	}
	return last
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

func rawText(text string) json.RawMessage {
	b, _ := json.Marshal(text)
	return b
}

// Unwrap reshapes a repaired value toward an object with the array field
// key: a bare array becomes {key: array}, and an object whose only field
// wraps the expected object is replaced by that inner object.
func Unwrap(raw json.RawMessage, key string) json.RawMessage {
	if key == "" {
		return raw
	}
	r := gjson.ParseBytes(raw)
	if r.IsArray() {
		out, err := json.Marshal(map[string]json.RawMessage{key: json.RawMessage(r.Raw)})
		if err != nil {
			return raw
		}
		return out
	}
	if !r.IsObject() || r.Get(key).Exists() {
		return raw
	}
	var fields []gjson.Result
	r.ForEach(func(_, v gjson.Result) bool {
		fields = append(fields, v)
		return len(fields) < 2
	})
	if len(fields) != 1 {
		return raw
	}
	inner := fields[0]
	switch {
	case inner.IsObject() && inner.Get(key).Exists():
		return json.RawMessage(inner.Raw)
	case inner.IsArray():
		return Unwrap(json.RawMessage(inner.Raw), key)
	}
	return raw
}

// wrapperKey returns the name of the single required array property of an
// object schema, or "" when the schema has another shape.
func wrapperKey(schema *Schema) string {
	if schema == nil || schema.Definition["type"] != "object" {
		return ""
	}
	props, _ := schema.Definition["properties"].(map[string]any)
	var req []string
	switch v := schema.Definition["required"].(type) {
	case []string:
		req = v
	case []any:
		for _, r := range v {
			if s, ok := r.(string); ok {
				req = append(req, s)
			}
		}
	}
	if len(req) != 1 {
		return ""
	}
	p, _ := props[req[0]].(map[string]any)
	if p["type"] != "array" {
		return ""
	}
	return req[0]
}

// decodeContent runs model text through repair, unwrap and schema
// validation. Without a schema the text is returned as a JSON string.
func decodeContent(schema *Schema, text string) (json.RawMessage, error) {
	if schema == nil {
		return rawText(text), nil
	}
	raw, err := RepairJSON(text)
	if err != nil {
		return nil, err
	}
	raw = Unwrap(raw, wrapperKey(schema))
	if err := validateResponse(schema, raw); err != nil {
		var inv *ErrInvalidResponse
		if errors.As(err, &inv) {
			inv.Content = rawText(text)
		}
		return nil, err
	}
	return raw, nil
}

// finishContent decodes provider text, reporting a truncation as
// ErrMaxTokensExceeded when repair could not recover it.
func finishContent(schema *Schema, text, stopReason string) (json.RawMessage, error) {
	content, err := decodeContent(schema, text)
	if err != nil && stopReason == stopMaxTokens {
		return nil, &ErrMaxTokensExceeded{Content: rawText(text), Err: err}
	}
	return content, err
}
