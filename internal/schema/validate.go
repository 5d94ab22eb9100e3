package schema

import (
	stderrors "errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/frontmatter"
)

// Issue is one schema violation. Field is a dotted path ("series.order");
// it is empty for violations of the document as a whole.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every schema violation of one content file.
type ValidationError struct {
	Type   string
	Path   string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Field == "" {
			parts = append(parts, issue.Message)
			continue
		}
		parts = append(parts, issue.Field+": "+issue.Message)
	}
	return fmt.Sprintf("%s: invalid %s frontmatter: %s", e.Path, e.Type, strings.Join(parts, "; "))
}

// Fields lists the offending field paths.
func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		out = append(out, issue.Field)
	}
	return out
}

// Classify wraps a validation failure in the build's error taxonomy.
func Classify(err error) error {
	var ve *ValidationError
	if !stderrors.As(err, &ve) {
		return err
	}
	b := errors.WrapError(ve, errors.CategoryValidation, "frontmatter does not match "+ve.Type+" schema").
		WithPath(ve.Path)
	if len(ve.Issues) > 0 && ve.Issues[0].Field != "" {
		b = b.WithContext(errors.ContextField, ve.Issues[0].Field)
	}
	return b.Build()
}

// Validate checks fields against the type's schema. On success it returns a
// new map holding the declared defaults and typed values; undeclared fields are
// kept as they were. path only labels errors.
func (d *DocumentType) Validate(path string, fields map[string]any) (map[string]any, error) {
	if err := d.Compile(); err != nil {
		return nil, err
	}

	withDefaults := applyDefaults(d.Fields, normalizeMap(fields))
	if err := d.compiled.Validate(withDefaults); err != nil {
		var ve *jsonschema.ValidationError
		if stderrors.As(err, &ve) {
			return nil, &ValidationError{Type: d.Name, Path: path, Issues: collectValidationIssues(ve)}
		}
		return nil, &ValidationError{Type: d.Name, Path: path, Issues: []Issue{{Message: err.Error()}}}
	}

	typed, err := coerceObject(d.Fields, withDefaults, "")
	if err != nil {
		return nil, &ValidationError{Type: d.Name, Path: path, Issues: []Issue{*err}}
	}
	return typed, nil
}

func normalizeMap(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	out, _ := frontmatter.Normalize(fields).(map[string]any)
	return out
}

func applyDefaults(defs []FieldDef, fields map[string]any) map[string]any {
	for _, def := range defs {
		value, present := fields[def.Name]
		switch {
		case !present && def.Default != nil:
			fields[def.Name] = frontmatter.Normalize(def.Default)
		case present && def.Type == TypeObject:
			if nested, ok := value.(map[string]any); ok {
				fields[def.Name] = applyDefaults(def.Fields, nested)
			}
		}
	}
	return fields
}

var quotedName = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'`)

func collectValidationIssues(err *jsonschema.ValidationError) []Issue {
	issues := []Issue{}
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if node == nil {
			return
		}
		if len(node.Causes) > 0 {
			for _, cause := range node.Causes {
				walk(cause)
			}
			return
		}
		field := pointerToField(node.InstanceLocation)
		message := strings.TrimSpace(node.Message)
		if strings.HasSuffix(node.KeywordLocation, "/required") {
			// One issue per missing property so each names its field.
			for _, m := range quotedName.FindAllStringSubmatch(message, -1) {
				issues = append(issues, Issue{Field: joinField(field, m[1]), Message: "is required"})
			}
			return
		}
		issues = append(issues, Issue{Field: field, Message: message})
	}
	walk(err)
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Field < issues[j].Field })
	return issues
}

func pointerToField(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~")
	}
	return strings.Join(parts, ".")
}

func joinField(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func coerceObject(defs []FieldDef, fields map[string]any, prefix string) (map[string]any, *Issue) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for _, def := range defs {
		value, ok := fields[def.Name]
		if !ok || value == nil {
			continue
		}
		typed, issue := coerceValue(def, value, joinField(prefix, def.Name))
		if issue != nil {
			return nil, issue
		}
		out[def.Name] = typed
	}
	return out, nil
}

func coerceValue(def FieldDef, value any, field string) (any, *Issue) {
	switch def.Type {
	case TypeDate:
		s, _ := value.(string)
		t, err := ParseDate(s)
		if err != nil {
			return nil, &Issue{Field: field, Message: "is not a valid date"}
		}
		return t, nil
	case TypeInteger:
		return toInt64(value), nil
	case TypeNumber:
		return toFloat64(value), nil
	case TypeObject:
		nested, _ := value.(map[string]any)
		return coerceObject(def.Fields, nested, field)
	case TypeList:
		items, _ := value.([]any)
		return coerceList(def, items, field)
	default:
		return value, nil
	}
}

func coerceList(def FieldDef, items []any, field string) (any, *Issue) {
	switch def.Of {
	case "", TypeString:
		out := make([]string, len(items))
		for i, item := range items {
			out[i], _ = item.(string)
		}
		return out, nil
	case TypeDate:
		out := make([]time.Time, len(items))
		for i, item := range items {
			v, issue := coerceValue(FieldDef{Type: TypeDate}, item, fmt.Sprintf("%s.%d", field, i))
			if issue != nil {
				return nil, issue
			}
			out[i], _ = v.(time.Time)
		}
		return out, nil
	default:
		out := make([]any, len(items))
		for i, item := range items {
			v, issue := coerceValue(FieldDef{Type: def.Of}, item, fmt.Sprintf("%s.%d", field, i))
			if issue != nil {
				return nil, issue
			}
			out[i] = v
		}
		return out, nil
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(math.Round(n))
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
