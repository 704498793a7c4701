package content

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var multiSlash = regexp.MustCompile(`/{2,}`)

// NormalizePermalinkPattern anchors a permalink pattern with slashes and
// collapses runs of them.
func NormalizePermalinkPattern(pattern string) string {
	s := strings.TrimSpace(pattern)
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return multiSlash.ReplaceAllString(s, "/")
}

// ResolvePermalink expands the settings permalink pattern for a post.
// Supported tokens: :year :month :day :slug :category :id. Date parts use
// UTC, matching the generator.
func ResolvePermalink(draft Draft, settings SiteSettings) (string, error) {
	date, err := parsePostDate(draft.Date)
	if err != nil {
		return "", fmt.Errorf("invalid date for post %s: %w", draft.ID, err)
	}

	category := ""
	if len(draft.Categories) > 0 {
		category = draft.Categories[0]
	}

	replacer := strings.NewReplacer(
		":year", fmt.Sprintf("%04d", date.UTC().Year()),
		":month", fmt.Sprintf("%02d", int(date.UTC().Month())),
		":day", fmt.Sprintf("%02d", date.UTC().Day()),
		":slug", draft.Slug,
		":category", category,
		":id", draft.ID,
	)
	url := replacer.Replace(settings.Permalinks.Post)

	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	// an empty token (no category) can leave a double slash behind
	return multiSlash.ReplaceAllString(url, "/"), nil
}

func parsePostDate(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}
