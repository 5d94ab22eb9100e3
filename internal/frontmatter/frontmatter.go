// Package frontmatter splits content files into decoded frontmatter fields and
// a Markdown body. YAML (---), TOML (+++) and JSON (;;;) blocks are recognised.
package frontmatter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	adrg "github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// Format names the frontmatter syntax of a document.
type Format string

const (
	FormatNone Format = ""
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// ErrMissingClosingDelimiter indicates the document opened a frontmatter block
// but never closed it.
var ErrMissingClosingDelimiter = errors.New("frontmatter start delimiter found but closing delimiter is missing")

// Document is a parsed content file.
type Document struct {
	Fields map[string]any
	Body   []byte
	Format Format
}

type delimiter struct {
	format    Format
	start     string
	end       string
	unmarshal func([]byte, any) error
}

var delimiters = []delimiter{
	{FormatYAML, "---", "---", yaml.Unmarshal},
	{FormatTOML, "+++", "+++", toml.Unmarshal},
	{FormatJSON, ";;;", ";;;", json.Unmarshal},
}

// Parse decodes the frontmatter block of content. Field values are normalized
// to JSON-compatible types (see Normalize). A document without frontmatter
// yields empty Fields and the whole content as Body.
func Parse(content []byte) (*Document, error) {
	var (
		raw     map[string]any
		matched Format
	)
	formats := make([]*adrg.Format, 0, len(delimiters))
	for _, d := range delimiters {
		formats = append(formats, adrg.NewFormat(d.start, d.end, func(data []byte, v any) error {
			matched = d.format
			if err := d.unmarshal(data, v); err != nil {
				return fmt.Errorf("decode %s frontmatter: %w", d.format, err)
			}
			return nil
		}))
	}

	body, err := adrg.Parse(bytes.NewReader(content), &raw, formats...)
	if err != nil {
		return nil, err
	}
	if matched == FormatNone && opensBlock(content) {
		return nil, ErrMissingClosingDelimiter
	}

	fields, _ := Normalize(raw).(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	return &Document{Fields: fields, Body: body, Format: matched}, nil
}

// opensBlock reports whether the first non-blank line is a start delimiter.
func opensBlock(content []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := string(bytes.TrimSpace(scanner.Bytes()))
		if line == "" {
			continue
		}
		for _, d := range delimiters {
			if line == d.start {
				return true
			}
		}
		return false
	}
	return false
}

// Normalize converts decoded frontmatter values into the types a JSON Schema
// validator accepts: integers become int64, timestamps become "2006-01-02"
// (midnight UTC) or RFC 3339 strings, and typed slices become []any.
func Normalize(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[k] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = Normalize(val)
		}
		return out
	case []string:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = val
		}
		return out
	case []map[string]any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = Normalize(val)
		}
		return out
	case time.Time:
		return formatTime(vv)
	case int:
		return int64(vv)
	case int32:
		return int64(vv)
	case uint64:
		return int64(vv)
	case float32:
		return float64(vv)
	default:
		return v
	}
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		if _, offset := t.Zone(); offset == 0 {
			return t.Format(time.DateOnly)
		}
	}
	return t.Format(time.RFC3339)
}
