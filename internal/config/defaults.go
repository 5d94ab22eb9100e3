package config

import (
	"runtime"
	"strings"
	"time"
)

// Defaults shared with `init` and the CLI help.
const (
	DefaultContentDir       = "content"
	DefaultOutputDir        = "out"
	DefaultTheme            = "github-dark"
	DefaultLineClass        = "line"
	DefaultHighlightClass   = "line--highlighted"
	DefaultHeadingLinkClass = "anchor"
	DefaultSearchIndexPath  = "search-index.json"
	DefaultNATSSubject      = "contentbuilder.build.complete"
	DefaultNATSTimeout      = 5 * time.Second
	DefaultHistoryPath      = ".contentbuilder/history.db"
	DefaultWatchDebounce    = 300 * time.Millisecond
	DefaultWordsPerMinute   = 200
	DefaultSnippetLength    = 160
)

// DefaultExtensions lists the content file extensions picked up when none are configured.
var DefaultExtensions = []string{".md", ".mdx"}

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{
		&contentDefaultApplier{},
		&buildDefaultApplier{},
		&markdownDefaultApplier{},
		&hooksDefaultApplier{},
		&observabilityDefaultApplier{},
	}
}

func applyDefaults(cfg *Config) error {
	for _, applier := range defaultAppliers() {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

type contentDefaultApplier struct{}

func (contentDefaultApplier) Domain() string { return "content" }

func (contentDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Content.Dir == "" {
		cfg.Content.Dir = DefaultContentDir
	}
	if len(cfg.Content.Extensions) == 0 {
		cfg.Content.Extensions = append([]string(nil), DefaultExtensions...)
	}
	for i, ext := range cfg.Content.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Content.Extensions[i] = ext
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	return nil
}

type buildDefaultApplier struct{}

func (buildDefaultApplier) Domain() string { return "build" }

func (buildDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Build.Workers <= 0 {
		cfg.Build.Workers = runtime.GOMAXPROCS(0)
	}
	// Unknown spellings are left in place for validation to report.
	if cfg.Build.FailurePolicy == "" {
		cfg.Build.FailurePolicy = FailurePolicyFailFast
	} else if p := NormalizeFailurePolicy(string(cfg.Build.FailurePolicy)); p != "" {
		cfg.Build.FailurePolicy = p
	}
	if cfg.Build.WordsPerMinute <= 0 {
		cfg.Build.WordsPerMinute = DefaultWordsPerMinute
	}
	return nil
}

type markdownDefaultApplier struct{}

func (markdownDefaultApplier) Domain() string { return "markdown" }

func (markdownDefaultApplier) ApplyDefaults(cfg *Config) error {
	md := &cfg.Markdown
	if md.Theme == "" {
		md.Theme = DefaultTheme
	}
	if md.LineClass == "" {
		md.LineClass = DefaultLineClass
	}
	if md.HighlightClass == "" {
		md.HighlightClass = DefaultHighlightClass
	}
	if md.HeadingLinkClass == "" {
		md.HeadingLinkClass = DefaultHeadingLinkClass
	}
	return nil
}

type hooksDefaultApplier struct{}

func (hooksDefaultApplier) Domain() string { return "hooks" }

func (hooksDefaultApplier) ApplyDefaults(cfg *Config) error {
	h := &cfg.Hooks
	if h.SearchIndex.Path == "" {
		h.SearchIndex.Path = DefaultSearchIndexPath
	}
	if h.SearchIndex.SnippetLen <= 0 {
		h.SearchIndex.SnippetLen = DefaultSnippetLength
	}
	if h.NATS.Subject == "" {
		h.NATS.Subject = DefaultNATSSubject
	}
	if h.NATS.Timeout <= 0 {
		h.NATS.Timeout = DefaultNATSTimeout
	}
	if h.NATS.Name == "" {
		h.NATS.Name = "contentbuilder"
	}
	if h.History.Path == "" {
		h.History.Path = DefaultHistoryPath
	}
	return nil
}

type observabilityDefaultApplier struct{}

func (observabilityDefaultApplier) Domain() string { return "observability" }

func (observabilityDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	} else if l := NormalizeLogLevel(string(cfg.Logging.Level)); l != "" {
		cfg.Logging.Level = l
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
	return nil
}
