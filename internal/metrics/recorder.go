package metrics

import "time"

// ResultLabel enumerates per-document result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultCached  ResultLabel = "cached"
	ResultInvalid ResultLabel = "invalid"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// BuildOutcomeLabel is the final status of a build.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess  BuildOutcomeLabel = "success"
	BuildOutcomePartial  BuildOutcomeLabel = "partial"
	BuildOutcomeFailed   BuildOutcomeLabel = "failed"
	BuildOutcomeCanceled BuildOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for build, stage and transform step
// metrics. Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveStepDuration(step string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncDocumentResult(docType string, result ResultLabel)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	IncCacheLookup(hit bool)
	ObserveHookDuration(hook string, d time.Duration, success bool)
	SetWorkers(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)      {}
func (NoopRecorder) ObserveStepDuration(string, time.Duration)       {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)              {}
func (NoopRecorder) IncDocumentResult(string, ResultLabel)           {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)               {}
func (NoopRecorder) IncCacheLookup(bool)                             {}
func (NoopRecorder) ObserveHookDuration(string, time.Duration, bool) {}
func (NoopRecorder) SetWorkers(int)                                  {}
