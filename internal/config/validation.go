package config

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
)

var (
	fieldTypes   = []any{"string", "number", "integer", "boolean", "date", "list", "enum", "object"}
	listItems    = []any{"", "string", "number", "integer", "boolean", "date"}
	contentTypes = []any{"", "markdown", "mdx"}
	hookNames    = []any{"log-count", "search-index", "nats", "history"}
)

func init() {
	// Report yaml keys, not Go field names.
	validation.ErrorTag = "yaml"
}

// ValidateConfig validates the complete configuration, one domain at a time.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	checks := []struct {
		section string
		check   func() error
	}{
		{"content", cv.validateContent},
		{"build", cv.validateBuild},
		{"markdown", cv.validateMarkdown},
		{"documentTypes", cv.validateDocumentTypes},
		{"hooks", cv.validateHooks},
		{"logging", cv.validateLogging},
		{"watch", cv.validateWatch},
	}
	for _, c := range checks {
		if err := c.check(); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid configuration").
				WithContext(errors.ContextField, c.section+"."+firstField(err)).
				Fatal().
				Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateContent() error {
	c := &cv.config.Content
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Extensions, validation.Each(validation.Required, validation.By(extensionRule))),
	)
}

func extensionRule(value any) error {
	ext, _ := value.(string)
	if !strings.HasPrefix(ext, ".") || strings.ContainsAny(ext, `/\`) {
		return validation.NewError("validation_extension", "must look like .md")
	}
	return nil
}

func (cv *configurationValidator) validateBuild() error {
	b := &cv.config.Build
	return validation.ValidateStruct(b,
		validation.Field(&b.Workers, validation.Min(1)),
		validation.Field(&b.FailurePolicy, validation.In(FailurePolicyFailFast, FailurePolicySkipInvalid).
			Error("must be fail-fast or skip-invalid")),
		validation.Field(&b.WordsPerMinute, validation.Min(1)),
	)
}

func (cv *configurationValidator) validateMarkdown() error {
	md := &cv.config.Markdown
	return validation.ValidateStruct(md,
		validation.Field(&md.Theme, validation.Required),
		validation.Field(&md.LineClass, validation.Required, validation.By(classRule)),
		validation.Field(&md.HighlightClass, validation.Required, validation.By(classRule)),
		validation.Field(&md.HeadingLinkClass, validation.Required, validation.By(classRule)),
		validation.Field(&md.Steps, validation.By(uniqueStrings)),
	)
}

func classRule(value any) error {
	class, _ := value.(string)
	if strings.ContainsAny(class, " \t\n\"'<>") {
		return validation.NewError("validation_css_class", "must be a single CSS class name")
	}
	return nil
}

func uniqueStrings(value any) error {
	items, _ := value.([]string)
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item] {
			return validation.NewError("validation_duplicate", fmt.Sprintf("duplicate entry %q", item))
		}
		seen[item] = true
	}
	return nil
}

func (cv *configurationValidator) validateDocumentTypes() error {
	names := make(map[string]bool)
	for i := range cv.config.DocumentTypes {
		dt := &cv.config.DocumentTypes[i]
		err := validation.ValidateStruct(dt,
			validation.Field(&dt.Name, validation.Required),
			validation.Field(&dt.Pattern, validation.Required, validation.By(patternRule)),
			validation.Field(&dt.ContentType, validation.In(contentTypes...)),
			validation.Field(&dt.Fields, validation.By(fieldsRule)),
		)
		if err != nil {
			return validation.Errors{fmt.Sprintf("%d", i): err}
		}
		if names[dt.Name] {
			return validation.Errors{fmt.Sprintf("%d", i): validation.NewError("validation_duplicate_type",
				fmt.Sprintf("duplicate document type %q", dt.Name))}
		}
		names[dt.Name] = true
	}
	return nil
}

func patternRule(value any) error {
	pattern, _ := value.(string)
	if strings.HasPrefix(pattern, "/") || strings.Contains(pattern, "..") {
		return validation.NewError("validation_pattern", "must be relative to the content directory")
	}
	if _, err := path.Match(strings.ReplaceAll(pattern, "**", "*"), ""); err != nil {
		return validation.NewError("validation_pattern", "malformed glob")
	}
	return nil
}

func fieldsRule(value any) error {
	fields, _ := value.([]FieldConfig)
	seen := make(map[string]bool, len(fields))
	for i := range fields {
		f := &fields[i]
		err := validation.ValidateStruct(f,
			validation.Field(&f.Name, validation.Required),
			validation.Field(&f.Type, validation.Required, validation.In(fieldTypes...)),
			validation.Field(&f.Options, validation.When(f.Type == "enum", validation.Required)),
			validation.Field(&f.Of, validation.When(f.Type == "list", validation.In(listItems...))),
			validation.Field(&f.Fields, validation.By(fieldsRule)),
		)
		if err != nil {
			return validation.Errors{fmt.Sprintf("%d", i): err}
		}
		if seen[f.Name] {
			return validation.NewError("validation_duplicate_field", fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true
	}
	return nil
}

func (cv *configurationValidator) validateHooks() error {
	h := &cv.config.Hooks
	return validation.ValidateStruct(h,
		validation.Field(&h.Order, validation.Each(validation.In(hookNames...)), validation.By(uniqueStrings)),
		validation.Field(&h.NATS, validation.By(func(any) error {
			if !h.NATS.Enabled {
				return nil
			}
			if h.NATS.URL == "" {
				return validation.NewError("validation_nats_url", "url is required when nats is enabled")
			}
			if _, err := url.Parse(h.NATS.URL); err != nil {
				return validation.NewError("validation_nats_url", "url is malformed")
			}
			if strings.ContainsAny(h.NATS.Subject, " \t*>") {
				return validation.NewError("validation_nats_subject", "subject must be a literal subject")
			}
			return nil
		})),
	)
}

func (cv *configurationValidator) validateLogging() error {
	l := &cv.config.Logging
	return validation.ValidateStruct(l,
		validation.Field(&l.Level, validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError)),
	)
}

func (cv *configurationValidator) validateWatch() error {
	w := &cv.config.Watch
	return validation.ValidateStruct(w,
		validation.Field(&w.Interval, validation.When(w.Interval != 0, validation.Min(w.Debounce))),
		validation.Field(&w.Cron, validation.When(w.Cron != "", validation.By(func(any) error {
			if n := len(strings.Fields(w.Cron)); n != 5 && n != 6 {
				return validation.NewError("validation_cron", "cron must have 5 or 6 fields")
			}
			return nil
		}))),
	)
}

// firstField returns the yaml key of the first failing field in an ozzo error.
func firstField(err error) string {
	var errs validation.Errors
	if !stderrors.As(err, &errs) {
		return ""
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	if nested := firstField(errs[keys[0]]); nested != "" {
		return keys[0] + "." + nested
	}
	return keys[0]
}
