// Package slug derives URL slugs from content paths and tag names.
package slug

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	goslug "github.com/goliatone/go-slug"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// indexName marks a directory's own document: blog/post/index.md has slug blog/post.
const indexName = "index"

// Segment slugifies one path segment: diacritics are folded, letters
// lowercased, and every run of other characters becomes a single '-'.
func Segment(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingDash = true
			continue
		}
		if pendingDash && b.Len() > 0 {
			b.WriteByte('-')
		}
		pendingDash = false
		b.WriteRune(r)
	}
	return b.String()
}

// FromPath derives the slug of a content file from its path relative to the
// content root ("blog/My Post.mdx" -> "blog/my-post"). The extension is
// dropped, a trailing index segment is dropped, and every segment is
// slugified. Slugs are the flattened path, so they are unique per file.
func FromPath(rel string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	if clean == "." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("path %q is not relative to the content root", rel)
	}
	clean = strings.TrimSuffix(clean, path.Ext(clean))

	parts := strings.Split(clean, "/")
	if len(parts) > 1 && strings.EqualFold(parts[len(parts)-1], indexName) {
		parts = parts[:len(parts)-1]
	}
	for i, p := range parts {
		seg := Segment(p)
		if seg == "" {
			return "", fmt.Errorf("path %q has segment %q with no slug characters", rel, p)
		}
		parts[i] = seg
	}
	return strings.Join(parts, "/"), nil
}

// AsParams strips the document type directory from a slug ("blog/a/b" -> "a/b").
// A slug that is only the type directory yields "".
func AsParams(slug string) string {
	_, rest, found := strings.Cut(slug, "/")
	if !found {
		return ""
	}
	return rest
}

// Normalizer turns free text into a slug.
type Normalizer interface {
	Normalize(string) (string, error)
}

// Tagger slugifies tag names.
type Tagger struct {
	normalizer Normalizer
}

// NewTagger returns a Tagger backed by n, or by the go-slug defaults when n is nil.
func NewTagger(n Normalizer) *Tagger {
	if n == nil {
		n = goslug.Default()
	}
	return &Tagger{normalizer: n}
}

// Tag slugifies a tag name. When the normalizer rejects the tag, Segment is used.
func (t *Tagger) Tag(tag string) string {
	normalized, err := t.normalizer.Normalize(strings.TrimSpace(tag))
	if err != nil || normalized == "" {
		return Segment(tag)
	}
	return normalized
}

// Tags slugifies each tag, dropping empties and duplicates while keeping order.
func (t *Tagger) Tags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		s := t.Tag(tag)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
