// Package source locates content files and assigns each to a document type.
package source

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/logfields"
	"git.home.luguber.info/inful/contentbuilder/internal/schema"
)

// File is a located content file.
type File struct {
	Path         string // Absolute path to the file
	RelativePath string // Slash-separated path relative to the content root
	Name         string // File name without extension
	Extension    string // Lowercased extension including the dot
	Type         *schema.DocumentType
	Content      []byte // Loaded on demand
}

// LoadContent reads the file once.
func (f *File) LoadContent() error {
	if f.Content != nil {
		return nil
	}
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to read content file").
			WithPath(f.RelativePath).Fatal().Build()
	}
	f.Content = content
	return nil
}

// Locator maps a content directory onto declared document types.
type Locator struct {
	root       string
	types      []*schema.DocumentType
	extensions map[string]bool
}

// NewLocator creates a locator for root. Files are matched against types in
// declaration order; the first matching type wins.
func NewLocator(root string, types []*schema.DocumentType, extensions []string) (*Locator, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid content directory").
			WithPath(root).Fatal().Build()
	}
	if len(types) == 0 {
		return nil, errors.ConfigError("no document types declared").Build()
	}
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = true
	}
	return &Locator{root: abs, types: types, extensions: exts}, nil
}

// Root returns the absolute content directory.
func (l *Locator) Root() string { return l.root }

// Types returns the declared document types.
func (l *Locator) Types() []*schema.DocumentType { return l.types }

// Match returns the document type owning a slash-separated relative path.
func (l *Locator) Match(rel string) (*schema.DocumentType, bool) {
	for _, dt := range l.types {
		if MatchPattern(dt.Pattern, rel) {
			return dt, true
		}
	}
	return nil, false
}

// Accepts reports whether rel has a content extension and is not hidden.
func (l *Locator) Accepts(rel string) bool {
	if !l.extensions[strings.ToLower(path.Ext(rel))] {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return false
		}
	}
	return true
}

// Locate walks the content directory and returns every content file that
// belongs to a document type, in lexical path order. Files outside every
// pattern are skipped.
func (l *Locator) Locate(ctx context.Context) ([]File, error) {
	info, err := os.Stat(l.root)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "content directory is not readable").
			WithPath(l.root).Fatal().Build()
	}
	if !info.IsDir() {
		return nil, errors.FileSystemError("content path is not a directory").WithPath(l.root).Build()
	}

	var files []File
	err = filepath.WalkDir(l.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != l.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		relOS, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		rel := filepath.ToSlash(relOS)
		if !l.Accepts(rel) {
			return nil
		}
		dt, ok := l.Match(rel)
		if !ok {
			slog.Debug("Skipping file outside every document type", logfields.Path(rel))
			return nil
		}

		ext := path.Ext(rel)
		files = append(files, File{
			Path:         p,
			RelativePath: rel,
			Name:         strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Extension:    strings.ToLower(ext),
			Type:         dt,
		})
		slog.Debug("Located content file", logfields.Path(rel), logfields.DocType(dt.Name))
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.IsClassified(err) {
			return nil, err
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to walk content directory").
			WithPath(l.root).Fatal().Build()
	}
	return files, nil
}

// MatchPattern matches a slash-separated relative path against a document
// type pattern. "**" matches any number of directories; a pattern without
// glob characters matches everything below that directory.
func MatchPattern(pattern, rel string) bool {
	pattern = strings.Trim(pattern, "/")
	if pattern == "" || pattern == "**" {
		return true
	}
	if !strings.ContainsAny(pattern, "*?[") {
		return strings.HasPrefix(rel, pattern+"/")
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

func matchSegments(pattern, parts []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			if len(rest) == 0 {
				return len(parts) > 0
			}
			for i := 0; i <= len(parts); i++ {
				if matchSegments(rest, parts[i:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		if ok, err := path.Match(pattern[0], parts[0]); err != nil || !ok {
			return false
		}
		pattern, parts = pattern[1:], parts[1:]
	}
	return len(parts) == 0
}

// BaseDir returns the directory part of a pattern before its first glob
// segment: "blog/**" gives "blog", "**" gives "".
func BaseDir(pattern string) string {
	var dirs []string
	for _, seg := range strings.Split(strings.Trim(pattern, "/"), "/") {
		if seg == "" || strings.ContainsAny(seg, "*?[") {
			break
		}
		dirs = append(dirs, seg)
	}
	return strings.Join(dirs, "/")
}
