package githost

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"bloghub/api/internal/gitstore"
)

var (
	directRepoPattern = regexp.MustCompile(`^([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)$`)
	sshRepoPattern    = regexp.MustCompile(`^git@[^:]+:([^/]+)/([^/]+)$`)
)

// ParseRepoRef extracts owner/name from the configured repository
// identity. Accepted forms: "owner/repo", an https URL, or an ssh remote.
func ParseRepoRef(raw string) (gitstore.RepoRef, error) {
	cleaned := strings.TrimSuffix(strings.TrimRight(strings.TrimSpace(raw), "/"), ".git")
	cleaned = strings.TrimRight(cleaned, "/")
	if cleaned == "" {
		return gitstore.RepoRef{}, fmt.Errorf("repo identity is empty")
	}

	if m := directRepoPattern.FindStringSubmatch(cleaned); m != nil {
		return gitstore.RepoRef{Owner: m[1], Name: m[2]}, nil
	}

	if u, err := url.Parse(cleaned); err == nil && u.Host != "" {
		parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
		if len(parts) < 2 {
			return gitstore.RepoRef{}, fmt.Errorf("repo URL %q must include /OWNER/REPO", raw)
		}
		return gitstore.RepoRef{Owner: parts[0], Name: parts[1]}, nil
	}

	if m := sshRepoPattern.FindStringSubmatch(cleaned); m != nil {
		return gitstore.RepoRef{Owner: m[1], Name: m[2]}, nil
	}

	return gitstore.RepoRef{}, fmt.Errorf("invalid repo identity %q (use OWNER/REPO or an https URL)", raw)
}
