// Package schema declares document types and validates frontmatter against them.
//
// A DocumentType is compiled into a JSON Schema (draft 2020-12) once; Validate
// then checks a document's fields, applies declared defaults and coerces the
// result into typed Go values (dates become time.Time, string lists []string).
package schema

import (
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
)

// FieldType is the declared type of a frontmatter field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
	TypeList    FieldType = "list"
	TypeEnum    FieldType = "enum"
	TypeObject  FieldType = "object"
)

// ContentType selects how a document body is parsed.
type ContentType string

const (
	ContentMarkdown ContentType = "markdown"
	// ContentMDX bodies are parsed as Markdown; embedded JSX passes through untouched.
	ContentMDX ContentType = "mdx"
)

// FieldDef declares one frontmatter field.
type FieldDef struct {
	Name        string
	Type        FieldType
	Required    bool
	Description string
	// Options lists the allowed values of an enum field.
	Options []string
	// Of is the item type of a list field. Empty means string.
	Of FieldType
	// Fields declares the members of an object field.
	Fields []FieldDef
	// Default is applied when an optional field is absent.
	Default any
}

// DocumentType declares a kind of content and where its files live.
type DocumentType struct {
	Name string
	// Pattern is a directory or glob relative to the content root, e.g. "blog/**".
	Pattern     string
	ContentType ContentType
	// URLPrefix is prepended to slugAsParams to form the document URL.
	URLPrefix string
	Fields    []FieldDef

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

// Post is the built-in blog post type.
func Post() *DocumentType {
	return &DocumentType{
		Name:        "Post",
		Pattern:     "blog/**",
		ContentType: ContentMDX,
		URLPrefix:   "/blog",
		Fields: []FieldDef{
			{Name: "title", Type: TypeString, Required: true},
			{Name: "publishedDate", Type: TypeDate, Required: true},
			{Name: "lastUpdatedDate", Type: TypeDate},
			{Name: "description", Type: TypeString},
			{Name: "tags", Type: TypeList, Of: TypeString},
			{Name: "status", Type: TypeEnum, Options: []string{"draft", "published"}, Default: "published"},
			{Name: "series", Type: TypeObject, Fields: []FieldDef{
				{Name: "title", Type: TypeString, Required: true},
				{Name: "order", Type: TypeInteger, Required: true},
			}},
		},
	}
}

// Page is the built-in standalone page type.
func Page() *DocumentType {
	return &DocumentType{
		Name:        "Page",
		Pattern:     "pages/**",
		ContentType: ContentMDX,
		Fields: []FieldDef{
			{Name: "title", Type: TypeString, Required: true},
			{Name: "description", Type: TypeString},
			{Name: "lastUpdatedDate", Type: TypeDate},
		},
	}
}

// Defaults returns the built-in document types.
func Defaults() []*DocumentType {
	return []*DocumentType{Post(), Page()}
}

// FromConfig builds document types from configuration. An empty declaration
// list yields the built-in types.
func FromConfig(decls []config.DocumentTypeConfig) ([]*DocumentType, error) {
	if len(decls) == 0 {
		return Defaults(), nil
	}
	types := make([]*DocumentType, 0, len(decls))
	for _, d := range decls {
		ct := ContentType(d.ContentType)
		if ct == "" {
			ct = ContentMarkdown
		}
		dt := &DocumentType{
			Name:        d.Name,
			Pattern:     d.Pattern,
			ContentType: ct,
			URLPrefix:   d.URLPrefix,
			Fields:      fieldsFromConfig(d.Fields),
		}
		if err := dt.Compile(); err != nil {
			return nil, err
		}
		types = append(types, dt)
	}
	return types, nil
}

func fieldsFromConfig(fields []config.FieldConfig) []FieldDef {
	out := make([]FieldDef, 0, len(fields))
	for _, f := range fields {
		out = append(out, FieldDef{
			Name:        f.Name,
			Type:        FieldType(f.Type),
			Required:    f.Required,
			Description: f.Description,
			Options:     f.Options,
			Of:          FieldType(f.Of),
			Fields:      fieldsFromConfig(f.Fields),
			Default:     f.Default,
		})
	}
	return out
}

// Compile compiles the JSON Schema for the type. It is safe to call repeatedly.
func (d *DocumentType) Compile() error {
	d.once.Do(func() {
		d.compiled, d.err = compileSchema(d.Name, d.JSONSchema())
		if d.err != nil {
			d.err = errors.WrapError(d.err, errors.CategoryConfig, fmt.Sprintf("document type %q has an invalid schema", d.Name)).
				Fatal().Build()
		}
	})
	return d.err
}

// Field returns the declaration of a top-level field.
func (d *DocumentType) Field(name string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}
