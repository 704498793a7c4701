package search

import (
	"context"
	"fmt"
	"strings"

	"bloghub/api/internal/content"
)

// IndexLoader fetches the generated posts index from the content repository.
type IndexLoader func(ctx context.Context) (content.PostsIndex, error)

// IndexScan is the fallback searcher. It scans the generated posts index
// that already lives in the repository, so search keeps working with no
// external engine at all.
type IndexScan struct {
	load IndexLoader
}

// NewIndexScan creates the fallback searcher over the posts index.
func NewIndexScan(load IndexLoader) *IndexScan {
	return &IndexScan{load: load}
}

// Healthy always reports true; the scan has no external dependency.
func (s *IndexScan) Healthy() bool {
	return true
}

// Search runs a substring match over each post's search blob.
func (s *IndexScan) Search(ctx context.Context, q Query) ([]Result, int, error) {
	index, err := s.load(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load posts index: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(q.Text))
	var matched []Result
	for _, item := range index.Posts {
		if q.FilterStatus != "" && item.Status != q.FilterStatus {
			continue
		}
		if q.FilterTag != "" && !containsFold(item.Tags, q.FilterTag) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(haystack(item)), needle) {
			continue
		}
		matched = append(matched, Result{
			ID:      item.ID,
			Title:   item.Title,
			Slug:    item.Slug,
			URL:     item.URL,
			Snippet: item.Excerpt,
			Date:    item.Date,
			Status:  item.Status,
			Tags:    item.Tags,
		})
	}

	total := len(matched)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []Result{}, total, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// haystack prefers the generator's precomputed search blob and falls back
// to the visible fields for indexes produced by older generators.
func haystack(item content.PostsIndexItem) string {
	if item.Search != "" {
		return item.Search
	}
	parts := append([]string{item.Title, item.Excerpt}, item.Tags...)
	parts = append(parts, item.Categories...)
	return strings.Join(parts, " ")
}

func containsFold(values []string, want string) bool {
	for _, value := range values {
		if strings.EqualFold(value, want) {
			return true
		}
	}
	return false
}
