package pipeline

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"math"
	"path"
	"strings"
	"sync"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/frontmatter"
	"git.home.luguber.info/inful/contentbuilder/internal/frontmatterops"
	"git.home.luguber.info/inful/contentbuilder/internal/git"
	"git.home.luguber.info/inful/contentbuilder/internal/hast"
	"git.home.luguber.info/inful/contentbuilder/internal/logfields"
	"git.home.luguber.info/inful/contentbuilder/internal/markdown"
	"git.home.luguber.info/inful/contentbuilder/internal/metrics"
	"git.home.luguber.info/inful/contentbuilder/internal/schema"
	"git.home.luguber.info/inful/contentbuilder/internal/slug"
	"git.home.luguber.info/inful/contentbuilder/internal/source"
)

// errFailFast cancels outstanding work once a document failed under fail-fast.
var errFailFast = stderrors.New("build aborted by fail-fast policy")

// outcome is the result of processing one file. Exactly one of doc, failure
// and skip is set unless the file was never processed.
type outcome struct {
	doc      *Document
	failure  *Failure
	skip     *Skip
	cacheHit bool
}

// processAll runs every file through processFile in a bounded worker pool.
// Outcomes are stored by file index, so the collection does not depend on
// scheduling.
func (b *Builder) processAll(ctx context.Context, files []source.File, history *git.History, m mode, result *Result) ([]*Document, error) {
	failFast := b.cfg.Build.FailurePolicy != config.FailurePolicySkipInvalid
	workCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	concurrency := b.cfg.Build.Workers
	if concurrency > len(files) {
		concurrency = len(files)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	b.recorder.SetWorkers(concurrency)

	outcomes := make([]outcome, len(files))
	tasks := make(chan int)
	var wg sync.WaitGroup
	worker := func(id int) {
		defer wg.Done()
		for i := range tasks {
			if workCtx.Err() != nil {
				continue
			}
			o := b.processFile(workCtx, &files[i], history, m)
			outcomes[i] = o
			if o.failure != nil {
				b.logger.DebugContext(workCtx, "Document failed",
					logfields.Worker(id),
					logfields.Path(o.failure.Path),
					logfields.Error(o.failure.Err))
				if failFast {
					cancel(errFailFast)
				}
			}
		}
	}
	wg.Add(concurrency)
	for id := range concurrency {
		go worker(id)
	}
	for i := range files {
		if workCtx.Err() != nil {
			break
		}
		tasks <- i
	}
	close(tasks)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var docs []*Document
	for i, o := range outcomes {
		switch {
		case o.failure != nil:
			if failFast {
				// The lowest failing index is reported; later files may not have run.
				result.Failures = append(result.Failures, *o.failure)
				return nil, o.failure.Err
			}
			result.Failures = append(result.Failures, *o.failure)
			b.recorder.IncDocumentResult(o.failure.Type, resultLabel(o.failure.Category))
		case o.skip != nil:
			result.Skipped = append(result.Skipped, *o.skip)
			b.recorder.IncDocumentResult(files[i].Type.Name, metrics.ResultSkipped)
		case o.doc != nil:
			docs = append(docs, o.doc)
			if o.cacheHit {
				result.CacheHits++
				b.recorder.IncDocumentResult(o.doc.Type, metrics.ResultCached)
			} else {
				b.recorder.IncDocumentResult(o.doc.Type, metrics.ResultSuccess)
			}
		}
	}
	return docs, nil
}

func resultLabel(c errors.ErrorCategory) metrics.ResultLabel {
	if c == errors.CategoryValidation {
		return metrics.ResultInvalid
	}
	return metrics.ResultFailed
}

// processFile parses, validates, filters and renders one file.
func (b *Builder) processFile(ctx context.Context, f *source.File, history *git.History, m mode) outcome {
	rel := f.RelativePath
	typeName := f.Type.Name
	fail := func(err error) outcome {
		failure := newFailure(rel, typeName, err)
		return outcome{failure: &failure}
	}

	if err := f.LoadContent(); err != nil {
		return fail(err)
	}
	parsed, err := frontmatter.Parse(f.Content)
	if err != nil {
		return fail(errors.WrapError(err, errors.CategoryValidation, "invalid frontmatter").WithPath(rel).Build())
	}
	fields, err := f.Type.Validate(rel, parsed.Fields)
	if err != nil {
		return fail(schema.Classify(err))
	}
	docSlug, err := slug.FromPath(rel)
	if err != nil {
		return fail(errors.WrapError(err, errors.CategoryValidation, "cannot derive slug").WithPath(rel).Build())
	}
	digest, err := frontmatterops.ComputeFingerprint(parsed.Fields, parsed.Body)
	if err != nil {
		return fail(errors.WrapError(err, errors.CategoryInternal, "cannot fingerprint document").WithPath(rel).Build())
	}

	doc := &Document{
		Type:          typeName,
		Slug:          docSlug,
		SourcePath:    rel,
		FlattenedPath: strings.TrimSuffix(rel, path.Ext(rel)),
		ContentType:   string(f.Type.ContentType),
		Fields:        fields,
		Body:          Body{Raw: string(parsed.Body)},
		Digest:        digest,
	}

	if reason := b.excluded(doc); reason != "" {
		b.logger.DebugContext(ctx, "Excluded document", logfields.Path(rel), slog.String("reason", reason))
		return outcome{skip: &Skip{Path: rel, Reason: reason}}
	}

	var hit bool
	if m == modeBuild {
		var r *rendered
		r, hit, err = b.render(ctx, doc)
		if err != nil {
			return fail(err)
		}
		doc.Body.HTML = r.HTML
		doc.Headings = r.Headings
		doc.Links = r.Links
		doc.Computed.WordCount = r.WordCount
	}

	if err := b.compute(doc, f.Type, f.Path, history); err != nil {
		return fail(err)
	}
	b.logger.DebugContext(ctx, "Processed document",
		logfields.Path(rel),
		logfields.Slug(doc.Slug),
		logfields.DocType(doc.Type),
		logfields.CacheHit(hit))
	return outcome{doc: doc, cacheHit: hit}
}

// excluded returns why the publish filters drop doc, or "".
func (b *Builder) excluded(doc *Document) string {
	if b.cfg.Publish.ExcludeDrafts && doc.IsDraft() {
		return "draft"
	}
	if b.cfg.Publish.ExcludeFuture {
		if t, ok := doc.Time(fieldPublishedDate); ok && t.After(b.now()) {
			return "future"
		}
	}
	return ""
}

// rendered is the cacheable part of a render.
type rendered struct {
	HTML      string             `json:"html"`
	Headings  []markdown.Heading `json:"headings"`
	Links     []markdown.Link    `json:"links"`
	WordCount int                `json:"wordCount"`
}

// render runs the body through the chain, going through the render cache when
// one is configured. Cache failures are logged and never fail the document.
func (b *Builder) render(ctx context.Context, doc *Document) (*rendered, bool, error) {
	var key string
	if b.cache != nil {
		key = frontmatterops.CombineFingerprints(doc.Digest, b.chain.Signature())
		payload, ok, err := b.cache.GetRendered(ctx, key)
		switch {
		case err != nil:
			b.logger.WarnContext(ctx, "Render cache lookup failed", logfields.Path(doc.SourcePath), logfields.Error(err))
		case ok:
			var r rendered
			if err := json.Unmarshal(payload, &r); err == nil {
				b.recorder.IncCacheLookup(true)
				return &r, true, nil
			}
			b.logger.WarnContext(ctx, "Discarding corrupt render cache entry", logfields.Path(doc.SourcePath))
		}
		b.recorder.IncCacheLookup(false)
	}

	out, err := b.chain.Render(doc.SourcePath, []byte(doc.Body.Raw))
	if err != nil {
		return nil, false, err
	}
	r := &rendered{
		HTML:      out.HTML,
		Headings:  out.Headings,
		Links:     out.Links,
		WordCount: len(strings.Fields(hast.TextContent(out.Tree))),
	}

	if b.cache != nil {
		payload, err := json.Marshal(r)
		if err == nil {
			err = b.cache.PutRendered(ctx, key, payload)
		}
		if err != nil {
			b.logger.WarnContext(ctx, "Render cache store failed", logfields.Path(doc.SourcePath), logfields.Error(err))
		}
	}
	return r, false, nil
}

// compute fills the derived fields other than the word count.
func (b *Builder) compute(doc *Document, dt *schema.DocumentType, absPath string, history *git.History) error {
	c := &doc.Computed
	c.SlugAsParams = slug.AsParams(doc.Slug)
	c.URL = documentURL(dt.URLPrefix, c.SlugAsParams, doc.Slug)
	c.ReadingTime = readingTime(c.WordCount, b.cfg.Build.WordsPerMinute)
	c.TagSlugs = b.tagger.Tags(stringList(doc.Fields[fieldTags]))

	if history != nil {
		t, ok, err := history.LastModified(absPath)
		if err != nil {
			return err
		}
		if ok {
			c.LastModified = &t
			return nil
		}
	}
	for _, field := range []string{fieldLastUpdatedDate, fieldPublishedDate} {
		if t, ok := doc.Time(field); ok {
			t = t.UTC()
			c.LastModified = &t
			break
		}
	}
	return nil
}

// documentURL joins the type's URL prefix and slugAsParams. A type without a
// prefix is served from the root with its full slug params.
func documentURL(prefix, params, fullSlug string) string {
	prefix = strings.TrimRight(prefix, "/")
	if params == "" && prefix == "" {
		params = fullSlug
	}
	if params == "" {
		return prefix
	}
	return prefix + "/" + params
}

func readingTime(words, wordsPerMinute int) int {
	if words == 0 {
		return 0
	}
	if wordsPerMinute <= 0 {
		wordsPerMinute = config.DefaultWordsPerMinute
	}
	return int(math.Ceil(float64(words) / float64(wordsPerMinute)))
}

func stringList(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
