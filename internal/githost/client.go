// Package githost talks to the git-hosting REST API that stores the
// site's content. It implements gitstore.Store for a configured
// repository plus the credential validation used at login.
package githost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bloghub/api/internal/gitstore"
)

// DefaultBaseURL targets the public GitHub API; self-hosted installations
// override it via configuration.
const DefaultBaseURL = "https://api.github.com"

// ErrNotAuthenticated is raised before any network call when no
// credential is present.
var ErrNotAuthenticated = errors.New("not authenticated: missing git host token")

// APIError is any non-2xx response from the host. Status 404 is mapped to
// gitstore.ErrNotFound by the callers that treat absence as a non-error.
type APIError struct {
	Status int
	Body   string
	URL    string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("git host API error (%d): %s", e.Status, msg)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client is a store client bound to one repository and one credential.
// Construction is cheap; the orchestrator builds one per session.
type Client struct {
	baseURL string
	repo    gitstore.RepoRef
	token   string
	http    *http.Client
}

func New(baseURL string, repo gitstore.RepoRef, token string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		repo:    repo,
		token:   token,
		http:    httpClient,
	}
}

// Repo returns the repository this client is bound to.
func (c *Client) Repo() gitstore.RepoRef {
	return c.repo
}

// request performs one authenticated JSON call. Non-2xx responses become
// an *APIError; out may be nil for calls whose body is irrelevant.
func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	if strings.TrimSpace(c.token) == "" {
		return ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	fullURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call git host: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &APIError{Status: res.StatusCode, Body: string(data), URL: fullURL}
	}

	// some endpoints (merge up-to-date, ref delete) return an empty body
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", fullURL, err)
	}
	return nil
}

// repoRequest prefixes a repo-scoped path tail.
func (c *Client) repoRequest(ctx context.Context, method, tail string, body, out any) error {
	return c.request(ctx, method, "/repos/"+c.repo.Owner+"/"+c.repo.Name+tail, body, out)
}

// escapePath escapes each path segment, keeping the separators.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
