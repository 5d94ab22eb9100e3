package schema

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"git.home.luguber.info/inful/contentbuilder/internal/frontmatter"
)

// dateFormat accepts a calendar date or an RFC 3339 timestamp.
const dateFormat = "date-or-datetime"

// JSONSchema renders the type declaration as a draft 2020-12 JSON Schema.
// Undeclared properties are allowed.
func (d *DocumentType) JSONSchema() map[string]any {
	out := objectSchema(d.Fields)
	out["$schema"] = "https://json-schema.org/draft/2020-12/schema"
	out["title"] = d.Name
	return out
}

func objectSchema(fields []FieldDef) map[string]any {
	properties := make(map[string]any, len(fields))
	required := make([]any, 0)
	for _, f := range fields {
		properties[f.Name] = fieldSchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func fieldSchema(f FieldDef) map[string]any {
	var out map[string]any
	switch f.Type {
	case TypeList:
		item := f.Of
		if item == "" {
			item = TypeString
		}
		out = map[string]any{
			"type":  "array",
			"items": fieldSchema(FieldDef{Type: item}),
		}
	case TypeEnum:
		options := make([]any, len(f.Options))
		for i, o := range f.Options {
			options[i] = o
		}
		out = map[string]any{"type": "string", "enum": options}
	case TypeObject:
		out = objectSchema(f.Fields)
	case TypeDate:
		out = map[string]any{"type": "string", "format": dateFormat}
	default:
		out = map[string]any{"type": string(f.Type)}
	}
	if f.Description != "" {
		out["description"] = f.Description
	}
	if f.Default != nil {
		out["default"] = frontmatter.Normalize(f.Default)
	}
	return out
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	encoded, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	compiler.Formats[dateFormat] = isDateValue
	url := strings.ToLower(name) + ".schema.json"
	if err := compiler.AddResource(url, bytes.NewReader(encoded)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

func isDateValue(v any) bool {
	s, ok := v.(string)
	if !ok {
		return true
	}
	_, err := ParseDate(s)
	return err == nil
}

// ParseDate parses a frontmatter date: "2006-01-02" or RFC 3339.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
