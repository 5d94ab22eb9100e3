package hooks

import (
	"context"

	"git.home.luguber.info/inful/contentbuilder/internal/pipeline"
	"git.home.luguber.info/inful/contentbuilder/internal/store"
)

// BuildRecorder persists build records.
type BuildRecorder interface {
	RecordBuild(ctx context.Context, rec store.BuildRecord) error
}

// History records every completed build in the build history.
type History struct {
	store BuildRecorder
}

// NewHistory returns the history hook.
func NewHistory(s BuildRecorder) *History {
	return &History{store: s}
}

func (h *History) Name() string { return NameHistory }

func (h *History) OnBuildComplete(ctx context.Context, result *pipeline.Result) error {
	return h.store.RecordBuild(ctx, Record(result, nil))
}

// Record converts a result into a history row. buildErr, when set, is stored
// as the failure reason.
func Record(result *pipeline.Result, buildErr error) store.BuildRecord {
	rec := store.BuildRecord{
		ID:        result.BuildID,
		StartedAt: result.StartedAt,
		Duration:  result.Duration,
		Status:    string(result.Status),
		Policy:    string(result.Policy),
		Documents: len(result.Documents),
		Failures:  len(result.Failures),
		CacheHits: result.CacheHits,
		Commit:    result.Commit,
		Counts:    result.Counts,
	}
	if buildErr != nil {
		rec.Error = buildErr.Error()
	}
	return rec
}
