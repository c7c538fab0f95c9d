package analysis

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBody(t *testing.T) {
	tests := []struct {
		name   string
		raw    []byte
		wantOK bool
	}{
		{name: "object", raw: []byte(`{"data":{"id":"abc-1"}}`), wantOK: true},
		{name: "null literal", raw: []byte(`null`), wantOK: true},
		{name: "html", raw: []byte(`<html>bad gateway</html>`), wantOK: false},
		{name: "empty", raw: nil, wantOK: false},
		{name: "whitespace", raw: []byte("  \n"), wantOK: false},
		{name: "trailing garbage", raw: []byte(`{"a":1} {"b":2}`), wantOK: false},
		{name: "truncated", raw: []byte(`{"data":`), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DecodeBody(tt.raw)

			assert.Equal(t, tt.wantOK, d.OK())
			assert.Equal(t, string(tt.raw), d.Text)
			if !tt.wantOK {
				assert.Error(t, d.Err)
				assert.Nil(t, d.Value)
			}
		})
	}
}

func TestDecodeBody_InvalidUTF8StillYieldsText(t *testing.T) {
	d := DecodeBody([]byte{'o', 'k', 0xff, 0xfe})

	assert.False(t, d.OK())
	assert.Equal(t, "ok�", d.Text)
}

func TestDecodeBody_KeepsNumbers(t *testing.T) {
	d := DecodeBody([]byte(`{"id": 12345678901234567890}`))
	require.True(t, d.OK())

	found, ok := lookup(d.Value, "id")
	require.True(t, ok)
	assert.Equal(t, json.Number("12345678901234567890"), found)
	assert.Equal(t, "12345678901234567890", stringAt(d.Value, "id"))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 10))
	assert.Equal(t, "exactly10!", Excerpt("exactly10!", 10))
	assert.Equal(t, "abc"+truncatedMarker, Excerpt("abcdef", 3))
	assert.Equal(t, "가나"+truncatedMarker, Excerpt("가나다라", 2))
	assert.Equal(t, "unbounded", Excerpt("unbounded", 0))

	long := strings.Repeat("x", 5000)
	assert.Len(t, Excerpt(long, 1000), 1000+len(truncatedMarker))
}

func TestStringAt(t *testing.T) {
	v := DecodeBody([]byte(`{"a":{"s":"x","n":1.5,"b":true,"o":{},"l":[1],"z":null}}`)).Value

	assert.Equal(t, "x", stringAt(v, "a", "s"))
	assert.Equal(t, "1.5", stringAt(v, "a", "n"))
	assert.Equal(t, "true", stringAt(v, "a", "b"))
	assert.Equal(t, "", stringAt(v, "a", "o"))
	assert.Equal(t, "", stringAt(v, "a", "l"))
	assert.Equal(t, "", stringAt(v, "a", "z"))
	assert.Equal(t, "", stringAt(v, "a", "missing"))
	assert.Equal(t, "", stringAt(v, "a", "s", "deeper"))
}
