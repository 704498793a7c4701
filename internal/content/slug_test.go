package content

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello-world"},
		{"  Spaces   everywhere  ", "spaces-everywhere"},
		{"Crème brûlée & Éclair", "creme-brulee-eclair"},
		{"már 10% off!", "mar-10-off"},
		{"---", ""},
		{"", ""},
		{"UPPER-case_mixed", "upper-case-mixed"},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestShortID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"abc12345", "abc12345"},
		{"post_ab12cd34", "postab12"},
		{"___", "untitled"},
		{"", "untitled"},
		{"a", "a"},
	}
	for _, tc := range cases {
		if got := ShortID(tc.in); got != tc.want {
			t.Fatalf("ShortID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeDraftFallbacks(t *testing.T) {
	draft := NormalizeDraft(Draft{ID: "abc12345"})
	if draft.Title != "Untitled - abc12345" {
		t.Fatalf("Title = %q", draft.Title)
	}
	if draft.Slug != "untitled-abc12345" {
		t.Fatalf("Slug = %q", draft.Slug)
	}
	if draft.Status != "draft" {
		t.Fatalf("Status = %q", draft.Status)
	}

	// deterministic: same input, same output
	again := NormalizeDraft(Draft{ID: "abc12345"})
	if again.Title != draft.Title || again.Slug != draft.Slug {
		t.Fatal("NormalizeDraft is not deterministic")
	}
}

func TestNormalizeDraftSlugFromTitle(t *testing.T) {
	draft := NormalizeDraft(Draft{ID: "p1", Title: "Hello, World!"})
	if draft.Slug != "hello-world" {
		t.Fatalf("Slug = %q", draft.Slug)
	}
	if draft.Title != "Hello, World!" {
		t.Fatalf("Title changed: %q", draft.Title)
	}
}

func TestNormalizeDraftKeepsExplicitSlug(t *testing.T) {
	draft := NormalizeDraft(Draft{ID: "p1", Title: "Hello", Slug: "custom-slug"})
	if draft.Slug != "custom-slug" {
		t.Fatalf("Slug = %q", draft.Slug)
	}
}

func TestNewPostID(t *testing.T) {
	id := NewPostID()
	if !strings.HasPrefix(id, "post_") || len(id) != len("post_")+8 {
		t.Fatalf("unexpected id format: %q", id)
	}
	if NewPostID() == id {
		t.Fatal("ids should not repeat")
	}
}
