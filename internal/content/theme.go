package content

import (
	"fmt"
	"strconv"
	"strings"
)

// ThemeFieldKind tags the variant of a theme variable.
type ThemeFieldKind string

const (
	ThemeFieldString  ThemeFieldKind = "string"
	ThemeFieldBoolean ThemeFieldKind = "boolean"
	ThemeFieldNumber  ThemeFieldKind = "number"
	ThemeFieldSelect  ThemeFieldKind = "select"
)

// ThemeField describes one configurable theme variable.
type ThemeField struct {
	Key     string         `json:"key"`
	Label   string         `json:"label"`
	Kind    ThemeFieldKind `json:"type"`
	Default any            `json:"default"`
	Min     *float64       `json:"min,omitempty"`
	Max     *float64       `json:"max,omitempty"`
	Options []string       `json:"options,omitempty"`
}

// ThemeSchema is the variable schema of one theme.
type ThemeSchema struct {
	Title  string       `json:"title"`
	Fields []ThemeField `json:"fields"`
}

// Theme pairs a theme id with its schema and defaults.
type Theme struct {
	ID       string         `json:"id"`
	Schema   ThemeSchema    `json:"schema"`
	Defaults map[string]any `json:"defaults"`
}

// Built-in themes. The rendering side lives in the SPA; the service only
// needs the schemas to normalize stored vars.
var themes = []Theme{
	{
		ID: "minimal",
		Schema: ThemeSchema{
			Title: "Minimal",
			Fields: []ThemeField{
				{Key: "brandName", Label: "Brand name", Kind: ThemeFieldString, Default: "BlogHub"},
				{Key: "showTagline", Label: "Show tagline", Kind: ThemeFieldBoolean, Default: true},
				{Key: "layout", Label: "Layout", Kind: ThemeFieldSelect, Options: []string{"centered", "wide"}, Default: "centered"},
			},
		},
		Defaults: map[string]any{
			"brandName":   "BlogHub",
			"showTagline": true,
			"layout":      "centered",
		},
	},
	{
		ID: "clean",
		Schema: ThemeSchema{
			Title: "Clean",
			Fields: []ThemeField{
				{Key: "brandName", Label: "Brand name", Kind: ThemeFieldString, Default: "Clean Blog"},
				{Key: "cardStyle", Label: "Card style", Kind: ThemeFieldSelect, Options: []string{"border", "shadow"}, Default: "shadow"},
			},
		},
		Defaults: map[string]any{
			"brandName": "Clean Blog",
			"cardStyle": "shadow",
		},
	},
}

// ListThemes returns the known themes.
func ListThemes() []Theme {
	return themes
}

// ThemeByID looks up a theme; second return is false for unknown ids.
func ThemeByID(id string) (Theme, bool) {
	for _, t := range themes {
		if t.ID == id {
			return t, true
		}
	}
	return Theme{}, false
}

// NormalizeThemeVars validates stored vars against a theme schema.
// The result always covers every schema field: missing or mistyped values
// fall back to the defaults, mild coercions (numeric and boolean strings)
// are accepted, unknown keys are dropped. Problems come back as warnings,
// never errors.
func NormalizeThemeVars(theme Theme, stored map[string]any) (map[string]any, []string) {
	var warnings []string

	out := make(map[string]any, len(theme.Defaults))
	for k, v := range theme.Defaults {
		out[k] = v
	}

	for _, field := range theme.Schema.Fields {
		value, warning := coerceThemeValue(field, stored[field.Key], theme.Defaults[field.Key])
		out[field.Key] = value
		if warning != "" {
			warnings = append(warnings, warning)
		}
	}

	for k := range stored {
		if _, known := fieldByKey(theme.Schema.Fields, k); !known {
			warnings = append(warnings, fmt.Sprintf("unknown theme var %q ignored", k))
		}
	}
	return out, warnings
}

func fieldByKey(fields []ThemeField, key string) (ThemeField, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f, true
		}
	}
	return ThemeField{}, false
}

func coerceThemeValue(field ThemeField, value, fallback any) (any, string) {
	if value == nil {
		return fallback, ""
	}

	switch field.Kind {
	case ThemeFieldString:
		if s, ok := value.(string); ok {
			return s, ""
		}
		return fallback, fmt.Sprintf("theme var %q expected string", field.Key)

	case ThemeFieldBoolean:
		if b, ok := value.(bool); ok {
			return b, ""
		}
		if s, ok := value.(string); ok {
			switch strings.ToLower(s) {
			case "true":
				return true, fmt.Sprintf("theme var %q coerced from string", field.Key)
			case "false":
				return false, fmt.Sprintf("theme var %q coerced from string", field.Key)
			}
		}
		return fallback, fmt.Sprintf("theme var %q expected boolean", field.Key)

	case ThemeFieldNumber:
		if n, ok := numericValue(value); ok {
			return clampNumber(field, n), ""
		}
		if s, ok := value.(string); ok {
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return clampNumber(field, n), fmt.Sprintf("theme var %q coerced from string", field.Key)
			}
		}
		return fallback, fmt.Sprintf("theme var %q expected number", field.Key)

	case ThemeFieldSelect:
		if s, ok := value.(string); ok {
			for _, opt := range field.Options {
				if s == opt {
					return s, ""
				}
			}
		}
		return fallback, fmt.Sprintf("theme var %q expected one of: %s", field.Key, strings.Join(field.Options, ", "))
	}

	return fallback, fmt.Sprintf("theme var %q has unknown kind %q", field.Key, field.Kind)
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func clampNumber(field ThemeField, n float64) float64 {
	if field.Min != nil && n < *field.Min {
		n = *field.Min
	}
	if field.Max != nil && n > *field.Max {
		n = *field.Max
	}
	return n
}

// NormalizeSettings applies the defensive normalizations the admin applies
// before persisting settings: anchored permalink pattern and schema-checked
// theme vars. Unknown themes keep their vars untouched but produce a
// warning.
func NormalizeSettings(settings SiteSettings) (SiteSettings, []string) {
	var warnings []string

	if settings.Permalinks.Post == "" {
		settings.Permalinks.Post = "/:slug/"
	}
	settings.Permalinks.Post = NormalizePermalinkPattern(settings.Permalinks.Post)

	theme, ok := ThemeByID(settings.Theme.Active)
	if !ok {
		warnings = append(warnings, fmt.Sprintf("unknown theme %q; vars left as-is", settings.Theme.Active))
		return settings, warnings
	}
	vars, varWarnings := NormalizeThemeVars(theme, settings.Theme.Vars)
	settings.Theme.Vars = vars
	return settings, append(warnings, varWarnings...)
}
