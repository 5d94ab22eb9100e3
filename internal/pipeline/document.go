package pipeline

import (
	"time"

	"git.home.luguber.info/inful/contentbuilder/internal/markdown"
)

// Document is one rendered content file. It is immutable once the build pass
// that produced it returns.
type Document struct {
	Type string `json:"type"`
	Slug string `json:"slug"`
	// SourcePath is slash-separated and relative to the content root.
	SourcePath string `json:"sourcePath"`
	// FlattenedPath is SourcePath without its extension.
	FlattenedPath string         `json:"flattenedPath"`
	ContentType   string         `json:"contentType"`
	Fields        map[string]any `json:"fields"`
	Body          Body           `json:"body"`
	Computed      Computed       `json:"computed"`
	// Digest fingerprints the frontmatter and raw body.
	Digest   string             `json:"digest"`
	Headings []markdown.Heading `json:"headings"`
	Links    []markdown.Link    `json:"links"`
}

// Body holds the raw and rendered document body.
type Body struct {
	Raw  string `json:"raw"`
	HTML string `json:"html"`
}

// Computed holds the fields derived from the path, the body and the history
// of a document.
type Computed struct {
	SlugAsParams string     `json:"slugAsParams"`
	URL          string     `json:"url"`
	WordCount    int        `json:"wordCount"`
	ReadingTime  int        `json:"readingTime"`
	TagSlugs     []string   `json:"tagSlugs"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// Summary is a document's entry in its type index.
type Summary struct {
	Slug         string     `json:"slug"`
	URL          string     `json:"url"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	Date         *time.Time `json:"date,omitempty"`
	TagSlugs     []string   `json:"tagSlugs"`
	ReadingTime  int        `json:"readingTime"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// Field date keys read by the builder.
const (
	fieldTitle           = "title"
	fieldDescription     = "description"
	fieldPublishedDate   = "publishedDate"
	fieldLastUpdatedDate = "lastUpdatedDate"
	fieldStatus          = "status"
	fieldTags            = "tags"
	statusDraft          = "draft"
)

// String returns a string field, or "".
func (d *Document) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

// Time returns a date field.
func (d *Document) Time(field string) (time.Time, bool) {
	t, ok := d.Fields[field].(time.Time)
	return t, ok
}

// Title is a shorthand for the title field.
func (d *Document) Title() string { return d.String(fieldTitle) }

// IsDraft reports whether the document's status field is draft.
func (d *Document) IsDraft() bool { return d.String(fieldStatus) == statusDraft }

// Summary returns the document's type index entry.
func (d *Document) Summary() Summary {
	s := Summary{
		Slug:         d.Slug,
		URL:          d.Computed.URL,
		Title:        d.Title(),
		Description:  d.String(fieldDescription),
		TagSlugs:     d.Computed.TagSlugs,
		ReadingTime:  d.Computed.ReadingTime,
		LastModified: d.Computed.LastModified,
	}
	if t, ok := d.Time(fieldPublishedDate); ok {
		s.Date = &t
	}
	return s
}
