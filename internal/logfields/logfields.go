package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID     = "build_id"
	KeyStatus      = "status"
	KeyStage       = "stage"
	KeyStep        = "step"
	KeyDurationMS  = "duration_ms"
	KeyPath        = "path"
	KeySlug        = "slug"
	KeyDocType     = "doc_type"
	KeyCount       = "count"
	KeyHook        = "hook"
	KeyWorker      = "worker"
	KeyCacheHit    = "cache_hit"
	KeySubject     = "subject"
	KeyFailures    = "failures"
	KeyPolicy      = "failure_policy"
	KeyTrigger     = "trigger"
	KeyConfigPath  = "config_path"
	KeyOutputDir   = "output_dir"
	KeyContentRoot = "content_root"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Step(name string) slog.Attr      { return slog.String(KeyStep, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Slug(s string) slog.Attr         { return slog.String(KeySlug, s) }
func DocType(t string) slog.Attr      { return slog.String(KeyDocType, t) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Hook(name string) slog.Attr      { return slog.String(KeyHook, name) }
func Worker(id int) slog.Attr         { return slog.Int(KeyWorker, id) }
func CacheHit(hit bool) slog.Attr     { return slog.Bool(KeyCacheHit, hit) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func Failures(n int) slog.Attr        { return slog.Int(KeyFailures, n) }
func Policy(p string) slog.Attr       { return slog.String(KeyPolicy, p) }
func Trigger(t string) slog.Attr      { return slog.String(KeyTrigger, t) }
func ConfigPath(p string) slog.Attr   { return slog.String(KeyConfigPath, p) }
func OutputDir(p string) slog.Attr    { return slog.String(KeyOutputDir, p) }
func ContentRoot(p string) slog.Attr  { return slog.String(KeyContentRoot, p) }

// Elapsed reports the time since start as DurationMS.
func Elapsed(start time.Time) slog.Attr {
	return DurationMS(float64(time.Since(start).Microseconds()) / 1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
