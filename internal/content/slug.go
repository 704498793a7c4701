package content

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NewPostID generates a fresh post id. Generated once at creation; the id
// is stable for the life of the post.
func NewPostID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return "post_" + hex.EncodeToString(buf)
}

// ShortID derives a short human-usable identifier from a post id: strip
// everything non-alphanumeric, keep the first 8 characters, fall back to
// "untitled" when nothing survives.
func ShortID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 8 {
		s = s[:8]
	}
	if s == "" {
		return "untitled"
	}
	return s
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns a title into a URL slug: diacritics stripped, lowercased,
// non-alphanumeric runs collapsed to single hyphens, hyphens trimmed.
func Slugify(title string) string {
	folded, _, err := transform.String(stripMarks, title)
	if err != nil {
		folded = title
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	lastHyphen := true // swallow leading separators
	for _, r := range folded {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// NormalizeDraft fills the deterministic fallbacks for a draft that lacks
// a title or slug. Pure: the same (id, title, slug) always yields the
// same result.
func NormalizeDraft(draft Draft) Draft {
	short := ShortID(draft.ID)
	if strings.TrimSpace(draft.Title) == "" {
		draft.Title = "Untitled - " + short
	}
	if strings.TrimSpace(draft.Slug) == "" {
		slug := Slugify(draft.Title)
		if slug == "" {
			slug = "untitled-" + short
		}
		draft.Slug = slug
	}
	if draft.Status == "" {
		draft.Status = "draft"
	}
	if draft.Tags == nil {
		draft.Tags = []string{}
	}
	if draft.Categories == nil {
		draft.Categories = []string{}
	}
	return draft
}
