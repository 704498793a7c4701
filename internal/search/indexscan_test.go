package search

import (
	"context"
	"errors"
	"testing"

	"bloghub/api/internal/content"
)

func fixedIndex(posts ...content.PostsIndexItem) IndexLoader {
	return func(context.Context) (content.PostsIndex, error) {
		return content.PostsIndex{Version: 1, Posts: posts}, nil
	}
}

func TestIndexScanMatchesSearchBlob(t *testing.T) {
	scan := NewIndexScan(fixedIndex(
		content.PostsIndexItem{ID: "p1", Title: "Brewing Coffee", Status: "published", Search: "brewing coffee chemex pour-over"},
		content.PostsIndexItem{ID: "p2", Title: "Tea Notes", Status: "published", Search: "tea oolong"},
	))

	results, total, err := scan.Search(context.Background(), Query{Text: "Chemex"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 1 || len(results) != 1 || results[0].ID != "p1" {
		t.Fatalf("results = %+v, total = %d", results, total)
	}
}

func TestIndexScanFallsBackToVisibleFields(t *testing.T) {
	// older generators did not emit the search blob
	scan := NewIndexScan(fixedIndex(
		content.PostsIndexItem{ID: "p1", Title: "Garden Update", Excerpt: "tomatoes again", Tags: []string{"garden"}},
	))

	for _, text := range []string{"garden", "tomatoes", "update"} {
		_, total, err := scan.Search(context.Background(), Query{Text: text})
		if err != nil {
			t.Fatalf("Search(%q) error = %v", text, err)
		}
		if total != 1 {
			t.Errorf("Search(%q) total = %d, want 1", text, total)
		}
	}
}

func TestIndexScanFilters(t *testing.T) {
	scan := NewIndexScan(fixedIndex(
		content.PostsIndexItem{ID: "p1", Status: "published", Tags: []string{"go"}, Search: "x"},
		content.PostsIndexItem{ID: "p2", Status: "draft", Tags: []string{"go"}, Search: "x"},
		content.PostsIndexItem{ID: "p3", Status: "published", Tags: []string{"rust"}, Search: "x"},
	))
	ctx := context.Background()

	_, total, err := scan.Search(ctx, Query{Text: "x", FilterStatus: "published"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 2 {
		t.Errorf("status filter total = %d, want 2", total)
	}

	results, total, err := scan.Search(ctx, Query{Text: "x", FilterStatus: "published", FilterTag: "Go"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 1 || results[0].ID != "p1" {
		t.Errorf("tag filter results = %+v, total = %d", results, total)
	}
}

func TestIndexScanPaging(t *testing.T) {
	items := make([]content.PostsIndexItem, 5)
	for i := range items {
		items[i] = content.PostsIndexItem{ID: string(rune('a' + i)), Search: "match"}
	}
	scan := NewIndexScan(fixedIndex(items...))
	ctx := context.Background()

	results, total, err := scan.Search(ctx, Query{Text: "match", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 5 || len(results) != 2 || results[0].ID != "c" {
		t.Fatalf("results = %+v, total = %d", results, total)
	}

	results, total, err = scan.Search(ctx, Query{Text: "match", Offset: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 5 || len(results) != 0 {
		t.Fatalf("past-the-end results = %+v, total = %d", results, total)
	}
}

func TestIndexScanClampsHostileBounds(t *testing.T) {
	// offset and limit come straight off query params and can be negative
	scan := NewIndexScan(fixedIndex(
		content.PostsIndexItem{ID: "p1", Search: "match"},
		content.PostsIndexItem{ID: "p2", Search: "match"},
	))
	ctx := context.Background()

	results, total, err := scan.Search(ctx, Query{Text: "match", Offset: -1})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 2 || len(results) != 2 {
		t.Fatalf("negative offset results = %+v, total = %d", results, total)
	}

	results, total, err = scan.Search(ctx, Query{Text: "match", Limit: -5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 2 || len(results) != 2 {
		t.Fatalf("negative limit results = %+v, total = %d", results, total)
	}
}

func TestServiceFallsBackWithoutMeili(t *testing.T) {
	svc := NewService(nil, NewIndexScan(fixedIndex(
		content.PostsIndexItem{ID: "p1", Title: "Hello", Search: "hello world"},
	)))

	resp := svc.Search(context.Background(), Query{Text: "hello"})
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Query != "hello" {
		t.Errorf("query echo = %q", resp.Query)
	}
}

func TestServiceNeverReturnsNilResults(t *testing.T) {
	failing := NewIndexScan(func(context.Context) (content.PostsIndex, error) {
		return content.PostsIndex{}, errors.New("boom")
	})
	svc := NewService(nil, failing)

	resp := svc.Search(context.Background(), Query{Text: "anything"})
	if resp.Results == nil {
		t.Fatal("results slice is nil")
	}
	if resp.Total != 0 {
		t.Errorf("total = %d, want 0", resp.Total)
	}
}
