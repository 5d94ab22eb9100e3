package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/frontmatter"
	"git.home.luguber.info/inful/contentbuilder/internal/schema"
	"git.home.luguber.info/inful/contentbuilder/internal/slug"
	"git.home.luguber.info/inful/contentbuilder/internal/source"
)

// now is replaced in tests.
var now = time.Now

// NewCmd implements the 'new' command.
type NewCmd struct {
	Type  string `arg:"" help:"Document type name, e.g. Post"`
	Title string `arg:"" help:"Document title"`
	Force bool   `help:"Overwrite an existing file"`
}

func (n *NewCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfigOrDefault(g, root)
	if err != nil {
		return err
	}
	types, err := schema.FromConfig(cfg.DocumentTypes)
	if err != nil {
		return err
	}
	dt, err := findType(types, n.Type)
	if err != nil {
		return err
	}

	name := slug.Segment(n.Title)
	if name == "" {
		return errors.ValidationError("title has no characters usable in a file name").
			WithContext("title", n.Title).Build()
	}
	ext := ".md"
	if dt.ContentType == schema.ContentMDX {
		ext = ".mdx"
	}
	path := filepath.Join(cfg.Content.Dir, filepath.FromSlash(source.BaseDir(dt.Pattern)), name+ext)

	fields, err := dt.Validate(path, dt.Example(n.Title, now()))
	if err != nil {
		return err
	}
	data, err := frontmatter.Render(fields, nil)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "render frontmatter").WithPath(path).Build()
	}

	if _, err := os.Stat(path); err == nil && !n.Force {
		return errors.FileSystemError("file already exists (use --force to overwrite)").WithPath(path).Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "create content directory").WithPath(path).Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "write content file").WithPath(path).Build()
	}
	_, _ = fmt.Fprintf(g.Stdout, "Created %s %s\n", dt.Name, path)
	return nil
}

func findType(types []*schema.DocumentType, name string) (*schema.DocumentType, error) {
	names := make([]string, 0, len(types))
	for _, dt := range types {
		if strings.EqualFold(dt.Name, name) {
			return dt, nil
		}
		names = append(names, dt.Name)
	}
	return nil, errors.ValidationError("unknown document type").
		WithContext("type", name).
		WithContext("known", strings.Join(names, ", ")).
		Build()
}
