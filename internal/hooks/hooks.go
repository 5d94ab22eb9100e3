// Package hooks provides the build-completion hooks.
//
// Hooks run once per successful build, after the collection has been
// written, in configuration order. log-count is always enabled.
package hooks

import (
	"slices"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/pipeline"
	"git.home.luguber.info/inful/contentbuilder/internal/store"
)

// Hook is the build-completion hook contract.
type Hook = pipeline.Hook

// Hook names accepted in hooks.order.
const (
	NameLogCount    = "log-count"
	NameSearchIndex = "search-index"
	NameNATS        = "nats"
	NameHistory     = "history"
)

// DefaultOrder is used for enabled hooks that hooks.order does not list.
var DefaultOrder = []string{NameLogCount, NameSearchIndex, NameNATS, NameHistory}

// Set is the configured hooks plus the resources they hold.
type Set struct {
	Hooks   []Hook
	closers []func() error
}

// Close releases every resource the hooks hold.
func (s *Set) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Names lists the hooks in execution order.
func (s *Set) Names() []string {
	names := make([]string, len(s.Hooks))
	for i, h := range s.Hooks {
		names[i] = h.Name()
	}
	return names
}

// Option adjusts how FromConfig builds hooks.
type Option func(*factory)

type factory struct {
	history   *store.SQLiteStore
	publisher Publisher
}

// WithHistoryStore reuses an open store for the history hook. The caller keeps ownership.
func WithHistoryStore(s *store.SQLiteStore) Option {
	return func(f *factory) { f.history = s }
}

// WithPublisher replaces the NATS connection of the nats hook.
func WithPublisher(p Publisher) Option {
	return func(f *factory) { f.publisher = p }
}

// FromConfig builds the enabled hooks in the order hooks.order gives,
// followed by enabled hooks it omits in DefaultOrder.
func FromConfig(cfg *config.Config, opts ...Option) (*Set, error) {
	f := &factory{}
	for _, opt := range opts {
		opt(f)
	}

	order := slices.Clone(cfg.Hooks.Order)
	for _, name := range DefaultOrder {
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}

	set := &Set{}
	for _, name := range order {
		hook, closer, err := f.build(name, cfg)
		if err != nil {
			_ = set.Close()
			return nil, err
		}
		if hook == nil {
			continue
		}
		set.Hooks = append(set.Hooks, hook)
		if closer != nil {
			set.closers = append(set.closers, closer)
		}
	}
	return set, nil
}

func (f *factory) build(name string, cfg *config.Config) (Hook, func() error, error) {
	switch name {
	case NameLogCount:
		return NewLogCount(nil), nil, nil
	case NameSearchIndex:
		if !cfg.Hooks.SearchIndex.Enabled {
			return nil, nil, nil
		}
		return NewSearchIndex(cfg.Output.Dir, cfg.Hooks.SearchIndex), nil, nil
	case NameNATS:
		if !cfg.Hooks.NATS.Enabled {
			return nil, nil, nil
		}
		if f.publisher != nil {
			return NewNATS(f.publisher, cfg.Hooks.NATS), nil, nil
		}
		hook, err := ConnectNATS(cfg.Hooks.NATS)
		if err != nil {
			return nil, nil, err
		}
		return hook, hook.Close, nil
	case NameHistory:
		if !cfg.Hooks.History.Enabled {
			return nil, nil, nil
		}
		if f.history != nil {
			return NewHistory(f.history), nil, nil
		}
		s, err := store.Open(cfg.Hooks.History.Path)
		if err != nil {
			return nil, nil, err
		}
		return NewHistory(s), s.Close, nil
	default:
		return nil, nil, errors.ConfigError("unknown build hook").
			WithContext(errors.ContextHook, name).
			WithContext(errors.ContextField, "hooks.order").
			Build()
	}
}
