package content

// SiteSettings is the persisted site configuration
// (public/site/settings.json).
type SiteSettings struct {
	SiteName   string        `json:"siteName"`
	Tagline    string        `json:"tagline,omitempty"`
	SiteURL    string        `json:"siteUrl,omitempty"`
	Permalinks Permalinks    `json:"permalinks"`
	Theme      ThemeSettings `json:"theme"`
	CD         bool          `json:"cd,omitempty"`
}

type Permalinks struct {
	Post string `json:"post"`
}

type ThemeSettings struct {
	Active string         `json:"active"`
	Vars   map[string]any `json:"vars"`
}

// WriteBranch returns the branch content mutations should target. With
// continuous deployment on, edits land straight on production.
func (s SiteSettings) WriteBranch() string {
	if s.CD {
		return "main"
	}
	return "develop"
}

// ShouldShowDeploy reports whether a manual deploy step exists. Deploy
// only makes sense when commits land on develop.
func (s SiteSettings) ShouldShowDeploy() bool {
	return !s.CD
}

// PostsIndexItem is one generated index entry for a post.
type PostsIndexItem struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	URL        string   `json:"url"`
	Date       string   `json:"date"`
	Excerpt    string   `json:"excerpt,omitempty"`
	Tags       []string `json:"tags"`
	Categories []string `json:"categories"`
	Status     string   `json:"status"`
	Search     string   `json:"search"`
}

// PostsIndex is the generator's post listing (read-only here).
type PostsIndex struct {
	Version     int              `json:"version"`
	GeneratedAt string           `json:"generatedAt"`
	Posts       []PostsIndexItem `json:"posts"`
}

// RoutesManifest maps public URLs to markdown paths (read-only here).
type RoutesManifest struct {
	Version     int               `json:"version"`
	GeneratedAt string            `json:"generatedAt"`
	Routes      map[string]string `json:"routes"`
}

// MediaIndexItem is one generated media entry.
type MediaIndexItem struct {
	Path      string `json:"path"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// MediaIndex is the generator's media listing (read-only here).
type MediaIndex struct {
	Version     int              `json:"version"`
	GeneratedAt string           `json:"generatedAt"`
	Items       []MediaIndexItem `json:"items"`
}

// MediaUsage maps media paths to the posts referencing them.
type MediaUsage struct {
	Version     int                 `json:"version"`
	GeneratedAt string              `json:"generatedAt"`
	Usage       map[string][]string `json:"usage"`
}
