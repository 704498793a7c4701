package content

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Draft is a post document as edited in the admin: frontmatter fields
// plus the markdown body.
type Draft struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Slug           string   `json:"slug"`
	Date           string   `json:"date"`
	Status         string   `json:"status"`
	Excerpt        string   `json:"excerpt,omitempty"`
	Tags           []string `json:"tags"`
	Categories     []string `json:"categories"`
	SEOTitle       string   `json:"seo_title,omitempty"`
	SEODescription string   `json:"seo_description,omitempty"`
	SEOImage       string   `json:"seo_image,omitempty"`
	Body           string   `json:"body"`
}

// frontmatterKeys is the serialization order. Keeping it fixed makes
// diffs against existing posts stable.
var frontmatterKeys = []string{
	"id",
	"title",
	"slug",
	"date",
	"status",
	"excerpt",
	"tags",
	"categories",
	"seo_title",
	"seo_description",
	"seo_image",
}

var numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// ParseFrontmatter splits a markdown document into its frontmatter block
// and body. Documents without a leading "---" block have empty
// frontmatter. The dialect is line-oriented "key: value" with JSON-encoded
// strings and inline JSON arrays, not full YAML.
func ParseFrontmatter(markdown string) (map[string]any, string) {
	if !strings.HasPrefix(markdown, "---") {
		return map[string]any{}, markdown
	}
	end := strings.Index(markdown[3:], "\n---")
	if end == -1 {
		return map[string]any{}, markdown
	}
	raw := strings.TrimSpace(markdown[3 : 3+end])
	body := strings.TrimLeft(markdown[3+end+len("\n---"):], " \t\r\n")

	frontmatter := map[string]any{}
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		idx := strings.Index(trimmed, ":")
		if idx == -1 {
			continue
		}
		key := strings.TrimSpace(trimmed[:idx])
		frontmatter[key] = parseScalar(trimmed[idx+1:])
	}
	return frontmatter, body
}

func parseScalar(raw string) any {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}
	if strings.HasPrefix(v, "[") || strings.HasPrefix(v, "{") {
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			return parsed
		}
		return v
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if numberPattern.MatchString(v) {
		var n float64
		if err := json.Unmarshal([]byte(v), &n); err == nil {
			return n
		}
	}
	return stripQuotes(v)
}

func stripQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		if s[0] == '"' {
			var unquoted string
			if err := json.Unmarshal([]byte(s), &unquoted); err == nil {
				return unquoted
			}
		}
		return s[1 : len(s)-1]
	}
	return s
}

// ParseDraft reads a stored markdown post into a Draft.
func ParseDraft(markdown string) (Draft, error) {
	fm, body := ParseFrontmatter(markdown)
	draft := Draft{
		ID:             stringValue(fm["id"]),
		Title:          stringValue(fm["title"]),
		Slug:           stringValue(fm["slug"]),
		Date:           stringValue(fm["date"]),
		Status:         stringValue(fm["status"]),
		Excerpt:        stringValue(fm["excerpt"]),
		Tags:           stringSlice(fm["tags"]),
		Categories:     stringSlice(fm["categories"]),
		SEOTitle:       stringValue(fm["seo_title"]),
		SEODescription: stringValue(fm["seo_description"]),
		SEOImage:       stringValue(fm["seo_image"]),
		Body:           body,
	}
	if draft.ID == "" {
		return Draft{}, fmt.Errorf("post frontmatter has no id")
	}
	return draft, nil
}

// BuildMarkdownFile serializes a draft back to the stored document format:
// frontmatter in fixed key order, blank line, trimmed body, trailing
// newline.
func BuildMarkdownFile(draft Draft) string {
	values := map[string]any{
		"id":              draft.ID,
		"title":           draft.Title,
		"slug":            draft.Slug,
		"date":            draft.Date,
		"status":          draft.Status,
		"excerpt":         draft.Excerpt,
		"tags":            draft.Tags,
		"categories":      draft.Categories,
		"seo_title":       draft.SEOTitle,
		"seo_description": draft.SEODescription,
		"seo_image":       draft.SEOImage,
	}

	var lines []string
	for _, key := range frontmatterKeys {
		v := values[key]
		switch tv := v.(type) {
		case string:
			// title and slug are always written, even blank; other
			// optional strings are omitted when empty.
			if strings.TrimSpace(tv) == "" && key != "title" && key != "slug" && key != "id" {
				continue
			}
			lines = append(lines, key+": "+encodeScalar(tv))
		case []string:
			if tv == nil {
				tv = []string{}
			}
			lines = append(lines, key+": "+encodeScalar(tv))
		default:
			if v == nil {
				continue
			}
			lines = append(lines, key+": "+encodeScalar(v))
		}
	}

	body := strings.TrimRight(draft.Body, " \t\r\n")
	return "---\n" + strings.Join(lines, "\n") + "\n---\n\n" + body + "\n"
}

func encodeScalar(v any) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(encoded)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func stringSlice(v any) []string {
	switch tv := v.(type) {
	case []string:
		return tv
	case []any:
		out := make([]string, 0, len(tv))
		for _, item := range tv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
