package githost

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"bloghub/api/internal/gitstore"
)

type repoInfo struct {
	DefaultBranch string `json:"default_branch"`
	Permissions   struct {
		Push  bool `json:"push"`
		Admin bool `json:"admin"`
	} `json:"permissions"`
}

type gitRef struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA  string `json:"sha"`
		Type string `json:"type"`
	} `json:"object"`
}

type mergeResponse struct {
	SHA string `json:"sha"`
}

// DefaultBranch reads the repository's configured default branch.
func (c *Client) DefaultBranch(ctx context.Context) (string, error) {
	var info repoInfo
	if err := c.repoRequest(ctx, http.MethodGet, "", nil, &info); err != nil {
		return "", fmt.Errorf("read repo info: %w", err)
	}
	return info.DefaultBranch, nil
}

// BranchHead returns the head revision marker of a branch, or
// gitstore.ErrNotFound when the branch does not exist.
func (c *Client) BranchHead(ctx context.Context, branch string) (string, error) {
	var ref gitRef
	err := c.repoRequest(ctx, http.MethodGet, "/git/ref/heads/"+url.PathEscape(branch), nil, &ref)
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return "", fmt.Errorf("branch %s: %w", branch, gitstore.ErrNotFound)
		}
		return "", fmt.Errorf("read branch head %s: %w", branch, err)
	}
	return ref.Object.SHA, nil
}

// CreateBranch creates a branch pointing at a revision marker.
func (c *Client) CreateBranch(ctx context.Context, branch, sha string) error {
	body := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": sha,
	}
	if err := c.repoRequest(ctx, http.MethodPost, "/git/refs", body, nil); err != nil {
		return fmt.Errorf("create branch %s: %w", branch, err)
	}
	return nil
}

// ForceSetBranch force-moves a branch head. Used only for rollback.
func (c *Client) ForceSetBranch(ctx context.Context, branch, sha string) error {
	body := map[string]any{
		"sha":   sha,
		"force": true,
	}
	err := c.repoRequest(ctx, http.MethodPatch, "/git/refs/heads/"+url.PathEscape(branch), body, nil)
	if err != nil {
		return fmt.Errorf("reset branch %s to %s: %w", branch, sha, err)
	}
	return nil
}

// Merge merges head into base on the host. A 409 means the host could not
// merge cleanly and surfaces as gitstore.ErrMergeConflict; a 204 means
// base already contained head.
func (c *Client) Merge(ctx context.Context, base, head, message string) (gitstore.MergeResult, error) {
	body := map[string]string{
		"base":           base,
		"head":           head,
		"commit_message": message,
	}
	var res mergeResponse
	err := c.repoRequest(ctx, http.MethodPost, "/merges", body, &res)
	if err != nil {
		if IsStatus(err, http.StatusConflict) {
			return gitstore.MergeResult{}, fmt.Errorf("merge %s into %s: %w", head, base, gitstore.ErrMergeConflict)
		}
		return gitstore.MergeResult{}, fmt.Errorf("merge %s into %s: %w", head, base, err)
	}
	if res.SHA == "" {
		// 204: nothing to merge
		return gitstore.MergeResult{Merged: false}, nil
	}
	return gitstore.MergeResult{SHA: res.SHA, Merged: true}, nil
}
