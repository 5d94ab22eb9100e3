// Package output writes the rendered collection to disk as JSON.
//
// Layout:
//
//	<dir>/index.json             document count per type
//	<dir>/<Type>/_index.json     summaries of every document of the type, by slug
//	<dir>/<Type>/<slug>.json     one file per document
//
// Files are written with sorted keys and no timestamps, so rebuilding
// unchanged content produces byte-identical output. Files whose bytes did not
// change are left untouched.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/logfields"
)

const (
	// IndexFile lists the document count per type.
	IndexFile = "index.json"
	// TypeIndexFile lists the summaries of one type.
	TypeIndexFile = "_index.json"
)

// Record is one document to write.
type Record struct {
	Type string
	Slug string
	// Data is serialized into <Type>/<slug>.json.
	Data any
	// Summary is the entry for the type's _index.json.
	Summary any
}

// Manifest describes a completed write.
type Manifest struct {
	// Files lists every file of the collection, slash-separated and relative to the output directory.
	Files []string
	// Changed counts files whose bytes differ from what was on disk.
	Changed int
	// Removed lists stale files that were deleted.
	Removed []string
}

// Writer writes collections into one output directory.
type Writer struct {
	dir   string
	clean bool
	keep  map[string]bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithClean removes JSON files under the output directory that the current
// collection did not produce.
func WithClean(clean bool) Option {
	return func(w *Writer) { w.clean = clean }
}

// WithKeep protects output-relative paths from stale cleanup.
func WithKeep(paths ...string) Option {
	return func(w *Writer) {
		for _, p := range paths {
			w.keep[filepath.ToSlash(p)] = true
		}
	}
}

// NewWriter returns a writer for dir.
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{dir: dir, clean: true, keep: make(map[string]bool)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Write writes records and the indexes. counts is written to index.json as
// is; types listed there without records still get an empty _index.json.
func (w *Writer) Write(ctx context.Context, records []Record, counts map[string]int) (*Manifest, error) {
	files, err := layout(records, counts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "create output directory").
			WithPath(w.dir).Fatal().Build()
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	manifest := &Manifest{Files: names}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		changed, err := writeFileIfChanged(filepath.Join(w.dir, filepath.FromSlash(name)), files[name])
		if err != nil {
			return nil, err
		}
		if changed {
			manifest.Changed++
		}
	}

	if w.clean {
		removed, err := w.removeStale(files)
		if err != nil {
			return nil, err
		}
		manifest.Removed = removed
	}

	slog.Debug("Wrote output collection",
		logfields.OutputDir(w.dir),
		logfields.Count(len(names)),
		slog.Int("changed", manifest.Changed),
		slog.Int("removed", len(manifest.Removed)))
	return manifest, nil
}

// layout maps every output-relative path to its encoded contents.
func layout(records []Record, counts map[string]int) (map[string][]byte, error) {
	files := make(map[string][]byte, len(records)+len(counts)+1)
	summaries := make(map[string][]Record)
	for typ := range counts {
		summaries[typ] = nil
	}

	for _, rec := range records {
		name, err := DocumentPath(rec.Type, rec.Slug)
		if err != nil {
			return nil, err
		}
		if _, dup := files[name]; dup {
			return nil, errors.ValidationError("two documents map to the same output file").
				WithPath(name).Build()
		}
		data, err := Encode(rec.Data)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryInternal, "encode document").WithPath(name).Build()
		}
		files[name] = data
		summaries[rec.Type] = append(summaries[rec.Type], rec)
	}

	for typ, recs := range summaries {
		sort.Slice(recs, func(i, j int) bool { return recs[i].Slug < recs[j].Slug })
		entries := make([]any, 0, len(recs))
		for _, rec := range recs {
			entries = append(entries, rec.Summary)
		}
		data, err := Encode(entries)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryInternal, "encode type index").WithPath(typ).Build()
		}
		files[path.Join(typ, TypeIndexFile)] = data
	}

	if counts == nil {
		counts = map[string]int{}
	}
	data, err := Encode(counts)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "encode index").Build()
	}
	files[IndexFile] = data
	return files, nil
}

// DocumentPath returns the output-relative path of a document.
func DocumentPath(docType, slug string) (string, error) {
	clean := path.Clean(slug)
	if docType == "" || strings.ContainsAny(docType, `/\`) || docType == "." || docType == ".." {
		return "", errors.ValidationError("invalid document type name").WithContext("type", docType).Build()
	}
	if slug == "" || clean != slug || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." || path.IsAbs(clean) {
		return "", errors.ValidationError("invalid document slug").WithContext("slug", slug).Build()
	}
	return path.Join(docType, slug+".json"), nil
}

// Encode serializes v as indented JSON with a trailing newline. HTML is not escaped.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFileIfChanged(target string, data []byte) (bool, error) {
	existing, err := os.ReadFile(target)
	if err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return false, errors.WrapError(err, errors.CategoryFileSystem, "create output directory").
			WithPath(filepath.Dir(target)).Build()
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return false, errors.WrapError(err, errors.CategoryFileSystem, "write temp output file").
			WithPath(tmp).Build()
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return false, errors.WrapError(err, errors.CategoryFileSystem, "atomic rename output file").
			WithPath(target).Build()
	}
	return true, nil
}

// removeStale deletes JSON files not in files and prunes directories left empty.
func (w *Writer) removeStale(files map[string][]byte) ([]string, error) {
	var (
		removed []string
		dirs    []string
	)
	err := filepath.WalkDir(w.dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(w.dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." {
				dirs = append(dirs, p)
			}
			return nil
		}
		if path.Ext(rel) != ".json" || w.keep[rel] {
			return nil
		}
		if _, ok := files[rel]; ok {
			return nil
		}
		if err := os.Remove(p); err != nil {
			return err
		}
		removed = append(removed, rel)
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "remove stale output").
			WithPath(w.dir).Build()
	}

	// Deepest first so parents empty out after their children.
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) == 0 {
			_ = os.Remove(dir)
		}
	}
	for _, rel := range removed {
		slog.Debug("Removed stale output file", logfields.Path(rel))
	}
	return removed, nil
}
