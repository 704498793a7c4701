// Package localgit implements gitstore.Store over an on-disk repository.
// It exists for development without a hosted remote and as the realistic
// fixture for the sync engine's tests.
//
// Merge support is ref-level only: a merge fast-forwards when one head
// already contains the other and reports a conflict on any true
// divergence, where a hosted store might still merge cleanly. Good enough
// for a dev-mode backend.
package localgit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"bloghub/api/internal/content"
	"bloghub/api/internal/gitstore"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type Service struct {
	path        string
	authorName  string
	authorEmail string
	mu          sync.Mutex
}

func New(path string) *Service {
	return &Service{
		path:        path,
		authorName:  "BlogHub Admin",
		authorEmail: "admin@bloghub.local",
	}
}

// Init creates the repository with an initial commit on main carrying the
// given seed files. No-op when the repository already exists.
func (s *Service) Init(seed map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := git.PlainOpen(s.path); err == nil {
		return nil
	} else if !errors.Is(err, git.ErrRepositoryNotExists) {
		return fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(s.path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	for path, data := range seed {
		full := filepath.Join(s.path, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", path, err)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			return fmt.Errorf("write seed file %s: %w", path, err)
		}
		if _, err := worktree.Add(path); err != nil {
			return fmt.Errorf("git add %s: %w", path, err)
		}
	}

	hash, err := worktree.Commit("Initial content", &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            s.signature(),
	})
	if err != nil {
		return fmt.Errorf("commit seed content: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

func (s *Service) signature() *object.Signature {
	return &object.Signature{
		Name:  s.authorName,
		Email: s.authorEmail,
		When:  time.Now(),
	}
}

// workPath resolves a repo-relative path on disk and rejects anything
// that would land outside the repository directory.
func (s *Service) workPath(path string) (string, error) {
	root := filepath.Clean(s.path)
	full := filepath.Join(root, filepath.FromSlash(path))
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes the repository", path)
	}
	return full, nil
}

func (s *Service) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.path)
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) DefaultBranch(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	return head.Target().Short(), nil
}

func (s *Service) BranchHead(ctx context.Context, branch string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return "", err
	}
	return s.branchHead(repo, branch)
}

func (s *Service) branchHead(repo *git.Repository, branch string) (string, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", fmt.Errorf("branch %s: %w", branch, gitstore.ErrNotFound)
		}
		return "", fmt.Errorf("resolve branch %s: %w", branch, err)
	}
	return ref.Hash().String(), nil
}

func (s *Service) CreateBranch(ctx context.Context, branch, sha string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return err
	}
	refName := plumbing.NewBranchReferenceName(branch)
	if _, err := repo.Reference(refName, true); err == nil {
		return fmt.Errorf("branch %s already exists", branch)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(refName, plumbing.NewHash(sha))); err != nil {
		return fmt.Errorf("create branch ref %s: %w", branch, err)
	}
	return nil
}

func (s *Service) ForceSetBranch(ctx context.Context, branch, sha string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return err
	}
	refName := plumbing.NewBranchReferenceName(branch)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(refName, plumbing.NewHash(sha))); err != nil {
		return fmt.Errorf("force-set branch ref %s: %w", branch, err)
	}
	return nil
}

// Merge merges head into base at ref level: fast-forward when base is an
// ancestor of head, no-op when base already contains head, conflict
// otherwise.
func (s *Service) Merge(ctx context.Context, base, head, message string) (gitstore.MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return gitstore.MergeResult{}, err
	}

	baseSHA, err := s.branchHead(repo, base)
	if err != nil {
		return gitstore.MergeResult{}, err
	}
	headSHA, err := s.branchHead(repo, head)
	if err != nil {
		return gitstore.MergeResult{}, err
	}
	if baseSHA == headSHA {
		return gitstore.MergeResult{Merged: false}, nil
	}

	baseCommit, err := repo.CommitObject(plumbing.NewHash(baseSHA))
	if err != nil {
		return gitstore.MergeResult{}, fmt.Errorf("load base commit: %w", err)
	}
	headCommit, err := repo.CommitObject(plumbing.NewHash(headSHA))
	if err != nil {
		return gitstore.MergeResult{}, fmt.Errorf("load head commit: %w", err)
	}

	headInBase, err := headCommit.IsAncestor(baseCommit)
	if err != nil {
		return gitstore.MergeResult{}, fmt.Errorf("walk ancestry: %w", err)
	}
	if headInBase {
		return gitstore.MergeResult{Merged: false}, nil
	}

	baseInHead, err := baseCommit.IsAncestor(headCommit)
	if err != nil {
		return gitstore.MergeResult{}, fmt.Errorf("walk ancestry: %w", err)
	}
	if !baseInHead {
		return gitstore.MergeResult{}, fmt.Errorf("merge %s into %s: %w", head, base, gitstore.ErrMergeConflict)
	}

	refName := plumbing.NewBranchReferenceName(base)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(refName, plumbing.NewHash(headSHA))); err != nil {
		return gitstore.MergeResult{}, fmt.Errorf("fast-forward %s: %w", base, err)
	}
	return gitstore.MergeResult{SHA: headSHA, Merged: true}, nil
}

func (s *Service) ReadFile(ctx context.Context, path, ref string) (gitstore.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return gitstore.FileInfo{}, err
	}
	file, err := s.fileAtBranch(repo, path, ref)
	if err != nil {
		return gitstore.FileInfo{}, err
	}

	reader, err := file.Reader()
	if err != nil {
		return gitstore.FileInfo{}, fmt.Errorf("open file reader: %w", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return gitstore.FileInfo{}, fmt.Errorf("read file bytes: %w", err)
	}

	return gitstore.FileInfo{Path: path, SHA: file.Hash.String(), Content: data}, nil
}

func (s *Service) fileAtBranch(repo *git.Repository, path, branch string) (*object.File, error) {
	sha, err := s.branchHead(repo, branch)
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("load commit object: %w", err)
	}
	file, err := commit.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf("file %s (ref %s): %w", path, branch, gitstore.ErrNotFound)
		}
		return nil, fmt.Errorf("load file %s: %w", path, err)
	}
	return file, nil
}

func (s *Service) WriteFile(ctx context.Context, opts gitstore.WriteFileOptions) (gitstore.PutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return gitstore.PutResult{}, err
	}

	currentSHA := ""
	if file, err := s.fileAtBranch(repo, opts.Path, opts.Branch); err == nil {
		currentSHA = file.Hash.String()
	} else if !errors.Is(err, gitstore.ErrNotFound) {
		return gitstore.PutResult{}, err
	}
	if opts.SHA != currentSHA {
		return gitstore.PutResult{}, fmt.Errorf("write %s on %s: %w", opts.Path, opts.Branch, gitstore.ErrWriteConflict)
	}

	full, err := s.workPath(opts.Path)
	if err != nil {
		return gitstore.PutResult{}, err
	}

	commitSHA, err := s.commitChange(repo, opts.Branch, opts.Message, func(worktree *git.Worktree) error {
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", opts.Path, err)
		}
		if err := os.WriteFile(full, opts.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.Path, err)
		}
		if _, err := worktree.Add(opts.Path); err != nil {
			return fmt.Errorf("git add %s: %w", opts.Path, err)
		}
		return nil
	})
	if err != nil {
		return gitstore.PutResult{}, err
	}

	file, err := s.fileAtBranch(repo, opts.Path, opts.Branch)
	if err != nil {
		return gitstore.PutResult{}, err
	}
	return gitstore.PutResult{ContentSHA: file.Hash.String(), CommitSHA: commitSHA}, nil
}

func (s *Service) DeleteFile(ctx context.Context, path, message, sha, branch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return err
	}

	file, err := s.fileAtBranch(repo, path, branch)
	if err != nil {
		return err
	}
	if sha != file.Hash.String() {
		return fmt.Errorf("delete %s on %s: %w", path, branch, gitstore.ErrWriteConflict)
	}

	_, err = s.commitChange(repo, branch, message, func(worktree *git.Worktree) error {
		if _, err := worktree.Remove(path); err != nil {
			return fmt.Errorf("git rm %s: %w", path, err)
		}
		return nil
	})
	return err
}

// commitChange checks out the branch, applies mutate, and commits.
func (s *Service) commitChange(repo *git.Repository, branch, message string, mutate func(*git.Worktree) error) (string, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	branchRef := plumbing.NewBranchReferenceName(branch)
	if err := worktree.Checkout(&git.CheckoutOptions{Branch: branchRef, Force: true}); err != nil {
		return "", fmt.Errorf("checkout branch %s: %w", branch, err)
	}
	if err := mutate(worktree); err != nil {
		return "", err
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{Author: s.signature()})
	if err != nil {
		return "", fmt.Errorf("commit change: %w", err)
	}
	return hash.String(), nil
}

// Path reports the on-disk location, for log lines at startup.
func (s *Service) Path() string {
	return s.path
}

var _ gitstore.Store = (*Service)(nil)

// SeedContent is a minimal starter tree for a fresh local repository.
func SeedContent(siteName string) map[string][]byte {
	settings := content.SiteSettings{
		SiteName:   siteName,
		Permalinks: content.Permalinks{Post: "/:slug/"},
		Theme:      content.ThemeSettings{Active: "minimal", Vars: map[string]any{}},
	}
	payload, _ := json.MarshalIndent(settings, "", "  ")
	return map[string][]byte{
		content.SettingsPath: append(payload, '\n'),
	}
}
