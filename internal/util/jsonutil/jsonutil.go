package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoObject is returned when no JSON object can be located in a model reply.
var ErrNoObject = errors.New("jsonutil: no JSON object in text")

// ExtractObject returns the JSON object embedded in a model reply. It accepts
// bare JSON, JSON wrapped in a ```json fence, and JSON surrounded by prose.
func ExtractObject(text string) ([]byte, error) {
	s := strings.TrimSpace(StripCodeFence(text))
	if s == "" {
		return nil, ErrNoObject
	}
	if json.Valid([]byte(s)) {
		return []byte(s), nil
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return nil, ErrNoObject
	}
	candidate := s[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, ErrNoObject
	}
	return []byte(candidate), nil
}

// StripCodeFence removes one surrounding markdown code fence, if present.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the info string ("json", "JSON", ...)
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// UnmarshalFlex tries to unmarshal JSON bytes into v with best effort:
// 1) Direct unmarshal
// 2) Normalize double-escaped unicode and unmarshal
func UnmarshalFlex(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err == nil {
		return nil
	}
	norm, err := NormalizeJSONUnicode(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(norm, v)
}

// MarshalNoEscape encodes v into JSON without escaping <, >, & into <, etc.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// NormalizeJSONUnicode parses JSON bytes and recursively unescapes any remaining
// double-escaped unicode sequences (e.g. "\\u003e") inside string values.
// A payload that is itself a quoted JSON document is unwrapped once.
func NormalizeJSONUnicode(raw []byte) ([]byte, error) {
	var anyVal any
	if err := json.Unmarshal(raw, &anyVal); err != nil {
		return nil, err
	}
	if s, ok := anyVal.(string); ok {
		if err := json.Unmarshal([]byte(s), &anyVal); err != nil {
			return nil, errors.New("jsonutil: cannot parse JSON payload")
		}
	}
	return MarshalNoEscape(deepUnescape(anyVal))
}

// unescapeUnicodeString converts JSON unicode escapes like ">" into actual characters.
func unescapeUnicodeString(s string) (string, error) {
	if !strings.Contains(s, `\u`) {
		return s, nil
	}
	esc := strings.ReplaceAll(s, `"`, `\"`)
	var out string
	if err := json.Unmarshal([]byte(`"`+esc+`"`), &out); err != nil {
		return "", err
	}
	return out, nil
}

func deepUnescape(v any) any {
	switch x := v.(type) {
	case string:
		if s, err := unescapeUnicodeString(x); err == nil {
			return s
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = deepUnescape(x[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = deepUnescape(vv)
		}
		return out
	default:
		return v
	}
}
