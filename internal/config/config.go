package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
)

// DefaultPath is the configuration file name looked up when no path is given.
const DefaultPath = "contentbuilder.yaml"

// Config represents the application configuration.
type Config struct {
	Content       ContentConfig        `yaml:"content"`
	Output        OutputConfig         `yaml:"output"`
	Build         BuildConfig          `yaml:"build"`
	Markdown      MarkdownConfig       `yaml:"markdown"`
	DocumentTypes []DocumentTypeConfig `yaml:"documentTypes,omitempty"`
	Publish       PublishConfig        `yaml:"publish"`
	Hooks         HooksConfig          `yaml:"hooks"`
	Metrics       MetricsConfig        `yaml:"metrics"`
	Logging       LoggingConfig        `yaml:"logging"`
	Watch         WatchConfig          `yaml:"watch"`
}

// ContentConfig locates the content tree.
type ContentConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions,omitempty"`
}

// OutputConfig represents output configuration.
type OutputConfig struct {
	Dir string `yaml:"dir"`
	// Clean removes generated files not produced by the current build. Defaults to true.
	Clean *bool `yaml:"clean,omitempty"`
}

// ShouldClean reports whether stale output files are removed.
func (o OutputConfig) ShouldClean() bool {
	return o.Clean == nil || *o.Clean
}

// BuildConfig tunes the build pass.
type BuildConfig struct {
	Workers         int           `yaml:"workers,omitempty"`
	FailurePolicy   FailurePolicy `yaml:"failurePolicy,omitempty"`
	GitLastModified bool          `yaml:"gitLastModified,omitempty"`
	CachePath       string        `yaml:"cachePath,omitempty"`
	WordsPerMinute  int           `yaml:"wordsPerMinute,omitempty"`
}

// MarkdownConfig configures the transform chain.
type MarkdownConfig struct {
	Theme            string   `yaml:"theme,omitempty"`
	LineClass        string   `yaml:"lineClass,omitempty"`
	HighlightClass   string   `yaml:"highlightClass,omitempty"`
	HeadingLinkClass string   `yaml:"headingLinkClass,omitempty"`
	Steps            []string `yaml:"steps,omitempty"`
}

// DocumentTypeConfig declares a document type in configuration.
type DocumentTypeConfig struct {
	Name        string        `yaml:"name"`
	Pattern     string        `yaml:"pattern"`
	ContentType string        `yaml:"contentType,omitempty"`
	URLPrefix   string        `yaml:"urlPrefix,omitempty"`
	Fields      []FieldConfig `yaml:"fields"`
}

// FieldConfig declares one frontmatter field.
type FieldConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	Required    bool          `yaml:"required,omitempty"`
	Description string        `yaml:"description,omitempty"`
	Options     []string      `yaml:"options,omitempty"`
	Of          string        `yaml:"of,omitempty"`
	Fields      []FieldConfig `yaml:"fields,omitempty"`
	Default     any           `yaml:"default,omitempty"`
}

// PublishConfig filters the collection before output.
type PublishConfig struct {
	ExcludeDrafts bool `yaml:"excludeDrafts,omitempty"`
	ExcludeFuture bool `yaml:"excludeFuture,omitempty"`
}

// HooksConfig configures the build-completion hooks. log-count is always on.
type HooksConfig struct {
	Order       []string          `yaml:"order,omitempty"`
	SearchIndex SearchIndexConfig `yaml:"searchIndex"`
	NATS        NATSConfig        `yaml:"nats"`
	History     HistoryConfig     `yaml:"history"`
}

// SearchIndexConfig configures the search-index hook.
type SearchIndexConfig struct {
	Enabled bool `yaml:"enabled"`
	// Path is relative to the output directory unless absolute.
	Path       string `yaml:"path,omitempty"`
	SnippetLen int    `yaml:"snippetLength,omitempty"`
}

// NATSConfig configures the build event publisher.
type NATSConfig struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url,omitempty"`
	Subject string        `yaml:"subject,omitempty"`
	Name    string        `yaml:"name,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// HistoryConfig configures the sqlite build history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level LogLevel `yaml:"level,omitempty"`
	File  string   `yaml:"file,omitempty"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce,omitempty"`
	// Interval schedules an additional periodic rebuild ("15m"). Cron takes precedence.
	Interval time.Duration `yaml:"interval,omitempty"`
	Cron     string        `yaml:"cron,omitempty"`
}

// Load reads, expands, defaults and validates the configuration at configPath.
func Load(configPath string) (*Config, error) {
	loadEnvFiles(configPath)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithPath(configPath).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithPath(configPath).Fatal().Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		if classified, ok := errors.AsClassified(err); ok {
			return nil, classified.WithContext(errors.ContextPath, configPath)
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes configuration bytes, expanding ${VAR} references first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	// Defaults never fail on an empty config.
	_ = applyDefaults(&cfg)
	return &cfg
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithPath(configPath).Build()
	}

	clean := true
	example := Config{
		Content: ContentConfig{Dir: "content", Extensions: []string{".md", ".mdx"}},
		Output:  OutputConfig{Dir: "out", Clean: &clean},
		Build: BuildConfig{
			FailurePolicy:   FailurePolicyFailFast,
			GitLastModified: true,
			CachePath:       ".contentbuilder/cache.db",
		},
		Markdown: MarkdownConfig{
			Theme:            DefaultTheme,
			LineClass:        DefaultLineClass,
			HighlightClass:   DefaultHighlightClass,
			HeadingLinkClass: DefaultHeadingLinkClass,
		},
		Publish: PublishConfig{ExcludeDrafts: true},
		Hooks: HooksConfig{
			SearchIndex: SearchIndexConfig{Enabled: true, Path: DefaultSearchIndexPath},
			NATS:        NATSConfig{URL: "${NATS_URL}", Subject: DefaultNATSSubject},
			History:     HistoryConfig{Enabled: true, Path: DefaultHistoryPath},
		},
		Logging: LoggingConfig{Level: LogLevelInfo},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithPath(configPath).Fatal().Build()
	}
	return nil
}
