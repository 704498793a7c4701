// Package content maps logical content to repository paths and payload
// encodings, and holds the document shapes the admin reads and writes.
// Everything here is pure.
package content

import (
	"path"
	"strings"
)

// Canonical repository paths. The generator owns everything under
// public/generated; this service only reads those files.
const (
	SettingsPath       = "public/site/settings.json"
	PostsDir           = "content/posts"
	PostsIndexPath     = "public/generated/posts-index.json"
	RoutesManifestPath = "public/generated/routes-manifest.json"
	MediaIndexPath     = "public/generated/media-index.json"
	MediaUsagePath     = "public/generated/media-usage.json"
)

// RepoPathFromPublicURL maps a public-facing path to its repository path.
// Media URLs ("/media/foo.png") live under public/ so the static site can
// serve them as-is; anything else is already repo-relative. The path is
// cleaned against the repository root, so ".." segments cannot climb out.
func RepoPathFromPublicURL(publicPath string) string {
	p := strings.TrimPrefix(path.Clean("/"+publicPath), "/")
	if strings.HasPrefix(p, "media/") {
		return "public/" + p
	}
	return p
}

// PostPath returns the markdown path for a post created by this service.
// Existing posts keep whatever path the routes manifest recorded for them.
func PostPath(id string) string {
	return PostsDir + "/" + id + ".md"
}
