package schema

import "time"

// Example returns starter frontmatter for a new document of this type. Every
// required field gets a placeholder that passes validation; optional fields
// with a default get the default.
func (d *DocumentType) Example(title string, now time.Time) map[string]any {
	return exampleObject(d.Fields, title, now)
}

func exampleObject(defs []FieldDef, title string, now time.Time) map[string]any {
	out := make(map[string]any)
	for _, def := range defs {
		switch {
		case def.Name == "title" && def.Type == TypeString && title != "":
			out[def.Name] = title
		case def.Required:
			out[def.Name] = exampleValue(def, title, now)
		case def.Default != nil:
			out[def.Name] = def.Default
		}
	}
	return out
}

func exampleValue(def FieldDef, title string, now time.Time) any {
	if def.Default != nil {
		return def.Default
	}
	switch def.Type {
	case TypeDate:
		return now.Format(time.DateOnly)
	case TypeInteger:
		return int64(1)
	case TypeNumber:
		return float64(0)
	case TypeBoolean:
		return false
	case TypeEnum:
		if len(def.Options) > 0 {
			return def.Options[0]
		}
		return ""
	case TypeList:
		return []any{}
	case TypeObject:
		return exampleObject(def.Fields, "", now)
	default:
		if title != "" {
			return title
		}
		return def.Name
	}
}
