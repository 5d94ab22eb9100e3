package hooks

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/contentbuilder/internal/logfields"
	"git.home.luguber.info/inful/contentbuilder/internal/pipeline"
)

// LogCount logs how many documents of each type the build produced.
type LogCount struct {
	logger *slog.Logger
}

// NewLogCount returns the log-count hook. A nil logger means slog.Default().
func NewLogCount(logger *slog.Logger) *LogCount {
	return &LogCount{logger: logger}
}

func (h *LogCount) Name() string { return NameLogCount }

func (h *LogCount) OnBuildComplete(ctx context.Context, result *pipeline.Result) error {
	logger := h.logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, name := range result.Types() {
		logger.InfoContext(ctx, "Documents built",
			logfields.DocType(name),
			logfields.Count(result.Counts[name]))
	}
	if len(result.Failures) > 0 {
		logger.WarnContext(ctx, "Documents skipped as invalid", logfields.Failures(len(result.Failures)))
	}
	return nil
}
