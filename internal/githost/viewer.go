package githost

import (
	"context"
	"fmt"
	"net/http"

	"bloghub/api/internal/gitstore"
)

type userResponse struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// Viewer returns the identity behind the client's credential.
func (c *Client) Viewer(ctx context.Context) (gitstore.Viewer, error) {
	var user userResponse
	if err := c.request(ctx, http.MethodGet, "/user", nil, &user); err != nil {
		return gitstore.Viewer{}, fmt.Errorf("fetch viewer: %w", err)
	}
	return gitstore.Viewer{
		Login:     user.Login,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		HTMLURL:   user.HTMLURL,
	}, nil
}

// ValidateRepoAccess checks that the credential can see the configured
// repo and holds write permission on it. Called at login, before any
// branch work starts.
func (c *Client) ValidateRepoAccess(ctx context.Context) error {
	var info repoInfo
	if err := c.repoRequest(ctx, http.MethodGet, "", nil, &info); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return fmt.Errorf("token has no access to %s", c.repo)
		}
		return fmt.Errorf("validate repo access: %w", err)
	}
	if !info.Permissions.Push && !info.Permissions.Admin {
		return fmt.Errorf("token does not have write permission on %s", c.repo)
	}
	return nil
}
