package githost

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"bloghub/api/internal/content"
	"bloghub/api/internal/gitstore"
)

type contentResponse struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
	Path     string `json:"path"`
}

type putContentsResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// ReadFile fetches a file's decoded content and revision marker at a ref.
// Absence surfaces as gitstore.ErrNotFound.
func (c *Client) ReadFile(ctx context.Context, path, ref string) (gitstore.FileInfo, error) {
	tail := "/contents/" + escapePath(path)
	if ref != "" {
		tail += "?ref=" + url.QueryEscape(ref)
	}

	var res contentResponse
	if err := c.repoRequest(ctx, http.MethodGet, tail, nil, &res); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return gitstore.FileInfo{}, fmt.Errorf("file %s (ref %s): %w", path, ref, gitstore.ErrNotFound)
		}
		return gitstore.FileInfo{}, fmt.Errorf("read file %s: %w", path, err)
	}
	if res.Type != "" && res.Type != "file" {
		return gitstore.FileInfo{}, fmt.Errorf("expected a file at %s, got %s", path, res.Type)
	}

	data, err := content.DecodeBase64(res.Content)
	if err != nil {
		return gitstore.FileInfo{}, fmt.Errorf("decode file %s: %w", path, err)
	}
	return gitstore.FileInfo{Path: path, SHA: res.SHA, Content: data}, nil
}

// WriteFile creates or updates a file. The revision marker in opts.SHA is
// the optimistic-concurrency token: omitted on create, required on
// update; a stale marker surfaces as gitstore.ErrWriteConflict. Never
// retried here.
func (c *Client) WriteFile(ctx context.Context, opts gitstore.WriteFileOptions) (gitstore.PutResult, error) {
	body := map[string]any{
		"message": opts.Message,
		"content": content.EncodeBase64(opts.Content),
		"branch":  opts.Branch,
	}
	if opts.SHA != "" {
		body["sha"] = opts.SHA
	}

	var res putContentsResponse
	err := c.repoRequest(ctx, http.MethodPut, "/contents/"+escapePath(opts.Path), body, &res)
	if err != nil {
		if IsStatus(err, http.StatusConflict) {
			return gitstore.PutResult{}, fmt.Errorf("write %s on %s: %w", opts.Path, opts.Branch, gitstore.ErrWriteConflict)
		}
		return gitstore.PutResult{}, fmt.Errorf("write %s on %s: %w", opts.Path, opts.Branch, err)
	}
	return gitstore.PutResult{ContentSHA: res.Content.SHA, CommitSHA: res.Commit.SHA}, nil
}

// DeleteFile removes a file. The caller must supply the current revision
// marker; there is no blind delete.
func (c *Client) DeleteFile(ctx context.Context, path, message, sha, branch string) error {
	body := map[string]string{
		"message": message,
		"sha":     sha,
		"branch":  branch,
	}
	err := c.repoRequest(ctx, http.MethodDelete, "/contents/"+escapePath(path), body, nil)
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return fmt.Errorf("delete %s on %s: %w", path, branch, gitstore.ErrNotFound)
		}
		if IsStatus(err, http.StatusConflict) {
			return fmt.Errorf("delete %s on %s: %w", path, branch, gitstore.ErrWriteConflict)
		}
		return fmt.Errorf("delete %s on %s: %w", path, branch, err)
	}
	return nil
}
