package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/logfields"
	"git.home.luguber.info/inful/contentbuilder/internal/observability"
)

// EnvLogLevel overrides the configured log level.
const EnvLogLevel = "CONTENTBUILDER_LOG_LEVEL"

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"contentbuilder.yaml" env:"CONTENTBUILDER_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" help:"Build the content collection"`
	Validate ValidateCmd `cmd:"" help:"Validate frontmatter of every content file without rendering"`
	Watch    WatchCmd    `cmd:"" help:"Rebuild on content or configuration changes"`
	Chain    ChainCmd    `cmd:"" help:"Print the ordered transform steps"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
	New      NewCmd      `cmd:"" help:"Create a content file with starter frontmatter"`
	History  HistoryCmd  `cmd:"" help:"List recorded builds"`
}

// Global carries process state shared by every command.
type Global struct {
	Logger *slog.Logger
	// Stdout receives user-facing command output.
	Stdout io.Writer
	// Stderr receives log records. Nil means os.Stderr.
	Stderr io.Writer

	closeLog func() error
}

// NewGlobal sets up logging from the -v flag and CONTENTBUILDER_LOG_LEVEL.
// The configuration file may refine it later (see loadConfig).
func NewGlobal(root *CLI) (*Global, error) {
	g := &Global{Stdout: os.Stdout}
	if err := g.configureLogging(observability.Options{
		Level:   os.Getenv(EnvLogLevel),
		Verbose: root.Verbose,
	}); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Global) configureLogging(opts observability.Options) error {
	opts.Stderr = g.Stderr
	logger, closer, err := observability.NewLogger(opts)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid logging configuration").Build()
	}
	if g.closeLog != nil {
		_ = g.closeLog()
	}
	g.Logger, g.closeLog = logger, closer
	slog.SetDefault(logger)
	return nil
}

// Close releases the log file, if any.
func (g *Global) Close() error {
	if g.closeLog == nil {
		return nil
	}
	err := g.closeLog()
	g.closeLog = nil
	return err
}

// HandleError reports err through the classified error adapter and exits with
// the mapped code. A nil err is a no-op.
func (g *Global) HandleError(root *CLI, err error) {
	if err == nil {
		return
	}
	adapter := errors.NewCLIErrorAdapter(root.Verbose, g.Logger)
	_ = g.Close()
	adapter.HandleError(err)
}

// loadConfig reads the configuration file and applies its logging section
// unless -v or CONTENTBUILDER_LOG_LEVEL already decided the level.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	level := os.Getenv(EnvLogLevel)
	if level == "" {
		level = string(cfg.Logging.Level)
	}
	if level != "" || cfg.Logging.File != "" {
		if err := g.configureLogging(observability.Options{
			Level:   level,
			Verbose: root.Verbose,
			File:    cfg.Logging.File,
		}); err != nil {
			return nil, err
		}
	}
	g.Logger.Debug("Configuration loaded", logfields.ConfigPath(root.Config))
	return cfg, nil
}

// loadConfigOrDefault falls back to the default configuration when the file
// does not exist. Commands that only inspect declarations use it.
func loadConfigOrDefault(g *Global, root *CLI) (*config.Config, error) {
	if _, err := os.Stat(root.Config); os.IsNotExist(err) {
		g.Logger.Debug("No configuration file, using defaults", logfields.ConfigPath(root.Config))
		return config.Default(), nil
	}
	return loadConfig(g, root)
}
