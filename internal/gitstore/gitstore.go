// Package gitstore defines the storage surface shared by the hosted and
// local git backends, plus the models that cross package boundaries.
package gitstore

import (
	"context"
	"errors"
)

const (
	// ProductionBranch is the published branch.
	ProductionBranch = "main"
	// StagingBranch is the default write target.
	StagingBranch = "develop"
)

var (
	// ErrNotFound reports an absent branch or file.
	ErrNotFound = errors.New("not found")
	// ErrMergeConflict reports that the store could not merge cleanly.
	ErrMergeConflict = errors.New("merge conflict")
	// ErrWriteConflict reports a stale revision marker on a file write.
	ErrWriteConflict = errors.New("write conflict")
)

// RepoRef identifies the remote content repository.
type RepoRef struct {
	Owner string
	Name  string
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// Viewer is the identity behind a credential.
type Viewer struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
	HTMLURL   string `json:"htmlUrl"`
}

// FileInfo is a file read from the store at a ref. SHA is the revision
// marker used for optimistic writes.
type FileInfo struct {
	Path    string
	SHA     string
	Content []byte
}

// WriteFileOptions describes a create or update. SHA is empty on create
// and must carry the current revision marker on update.
type WriteFileOptions struct {
	Path    string
	Content []byte
	Message string
	Branch  string
	SHA     string
}

// PutResult reports the markers produced by a write.
type PutResult struct {
	ContentSHA string
	CommitSHA  string
}

// MergeResult reports a merge. Merged is false when there was nothing to
// merge (the base already contained the head).
type MergeResult struct {
	SHA    string
	Merged bool
}

// Store is the versioned content store. Implemented by githost over the
// hosting API and by localgit over an on-disk repository.
type Store interface {
	DefaultBranch(ctx context.Context) (string, error)
	BranchHead(ctx context.Context, branch string) (string, error)
	CreateBranch(ctx context.Context, branch, sha string) error
	ForceSetBranch(ctx context.Context, branch, sha string) error
	Merge(ctx context.Context, base, head, message string) (MergeResult, error)
	ReadFile(ctx context.Context, path, ref string) (FileInfo, error)
	WriteFile(ctx context.Context, opts WriteFileOptions) (PutResult, error)
	DeleteFile(ctx context.Context, path, message, sha, branch string) error
}
