package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const truncatedMarker = "...(truncated)"

var errEmptyBody = errors.New("empty response body")

// Decoded is the layered decode of a response body. Text is always set;
// Value is only meaningful when Err is nil.
type Decoded struct {
	Text  string
	Value any
	Err   error
}

// OK reports whether the body decoded as JSON
func (d Decoded) OK() bool {
	return d.Err == nil
}

// DecodeBody turns raw bytes into text and then JSON. It never fails; a JSON
// failure is recorded in the returned value. Numbers are kept as json.Number.
func DecodeBody(raw []byte) Decoded {
	text := string(raw)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}

	if strings.TrimSpace(text) == "" {
		return Decoded{Text: text, Err: errEmptyBody}
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Decoded{Text: text, Err: err}
	}
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		return Decoded{Text: text, Err: fmt.Errorf("unexpected data after JSON value")}
	}

	return Decoded{Text: text, Value: v}
}

// Excerpt truncates text to at most limit runes
func Excerpt(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + truncatedMarker
}

// lookup walks nested JSON objects by key
func lookup(v any, path ...string) (any, bool) {
	cur := v
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// scalarString renders a JSON scalar as text. Objects, arrays and null give "".
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// stringAt returns the scalar at path rendered as text, or "" when absent
func stringAt(v any, path ...string) string {
	found, ok := lookup(v, path...)
	if !ok {
		return ""
	}
	return scalarString(found)
}
