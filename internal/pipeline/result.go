package pipeline

import (
	"sort"
	"time"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
)

// Status is the final outcome of a build.
type Status string

const (
	StatusSuccess Status = "success"
	// StatusPartial means skip-invalid dropped at least one document.
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// State is the lifecycle position of a build invocation.
type State string

const (
	StateNotStarted   State = "not started"
	StateTransforming State = "transforming"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
)

// Failure is a document that did not make it into the collection.
type Failure struct {
	Path     string               `json:"path"`
	Type     string               `json:"type,omitempty"`
	Step     string               `json:"step,omitempty"`
	Category errors.ErrorCategory `json:"category"`
	Message  string               `json:"message"`
	Err      error                `json:"-"`
}

// Skip is a valid document left out by the publish filters.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is produced once per build.
type Result struct {
	BuildID   string               `json:"buildId"`
	Status    Status               `json:"status"`
	Policy    config.FailurePolicy `json:"policy"`
	StartedAt time.Time            `json:"startedAt"`
	Duration  time.Duration        `json:"duration"`
	// Documents is sorted by slug.
	Documents []*Document `json:"documents"`
	Failures  []Failure   `json:"failures,omitempty"`
	Skipped   []Skip      `json:"skipped,omitempty"`
	// Counts holds the number of documents per declared type, zero included.
	Counts    map[string]int `json:"counts"`
	CacheHits int            `json:"cacheHits"`
	// Commit is the content repository HEAD when git history is enabled.
	Commit    string `json:"commit,omitempty"`
	OutputDir string `json:"outputDir,omitempty"`
	// Written lists the output files, relative to OutputDir.
	Written []string `json:"written,omitempty"`
}

// ByType returns the documents of one type in slug order.
func (r *Result) ByType(name string) []*Document {
	var out []*Document
	for _, d := range r.Documents {
		if d.Type == name {
			out = append(out, d)
		}
	}
	return out
}

// Document returns the document with the given slug.
func (r *Result) Document(slug string) (*Document, bool) {
	i := sort.Search(len(r.Documents), func(i int) bool { return r.Documents[i].Slug >= slug })
	if i < len(r.Documents) && r.Documents[i].Slug == slug {
		return r.Documents[i], true
	}
	return nil, false
}

// Types returns the declared type names in sorted order.
func (r *Result) Types() []string {
	names := make([]string, 0, len(r.Counts))
	for name := range r.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newFailure(path, docType string, err error) Failure {
	f := Failure{Path: path, Type: docType, Category: errors.CategoryInternal, Message: err.Error(), Err: err}
	if ce, ok := errors.AsClassified(err); ok {
		f.Category = ce.Category()
		if step, ok := ce.Context().GetString(errors.ContextStep); ok {
			f.Step = step
		}
	}
	return f
}
