// Package search fronts post search with Meilisearch when configured and
// falls back to scanning the repository's generated posts index otherwise.
package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to
// scanning the generated posts index.
type Service struct {
	meili *Meili
	scan  *IndexScan
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, scan *IndexScan) *Service {
	return &Service{meili: meili, scan: scan}
}

// Search tries Meilisearch if healthy, otherwise scans the posts index.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to index scan: %v", err)
	}

	results, total, err := s.scan.Search(ctx, q)
	if err != nil {
		log.Printf("search: index scan error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexPost indexes a post (fire-and-forget to Meilisearch). A failed index
// write never fails the save that triggered it.
func (s *Service) IndexPost(post PostRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexPost(post); err != nil {
			log.Printf("search: index post %s: %v", post.ID, err)
		}
	}()
}

// DeletePost removes a post from the search index (fire-and-forget).
func (s *Service) DeletePost(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeletePost(id); err != nil {
			log.Printf("search: delete post %s: %v", id, err)
		}
	}()
}

// Reindex pushes the whole posts index into Meilisearch. Called after a
// session opens when Meilisearch is healthy.
func (s *Service) Reindex(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	index, err := s.scan.load(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	records := make([]PostRecord, 0, len(index.Posts))
	for _, item := range index.Posts {
		records = append(records, PostRecord{
			ID:         item.ID,
			Title:      item.Title,
			Slug:       item.Slug,
			URL:        item.URL,
			Excerpt:    item.Excerpt,
			Date:       item.Date,
			Status:     item.Status,
			Tags:       item.Tags,
			Categories: item.Categories,
		})
	}
	if err := s.meili.IndexPosts(records); err != nil {
		log.Printf("search: reindex posts: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
