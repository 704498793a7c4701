package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"bloghub/api/internal/content"
	"bloghub/api/internal/gitstore"
	"bloghub/api/internal/session"
)

type fakeFile struct {
	content []byte
	sha     string
}

// fakeStore is an in-memory content repository with per-branch file trees
// and optimistic write markers.
type fakeStore struct {
	mu            sync.Mutex
	branches      map[string]string
	files         map[string]map[string]fakeFile
	mergeConflict bool
	writeConflict bool
	forceSets     []string
	writeCalls    int
	commits       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		branches: map[string]string{"main": "main-0"},
		files:    map[string]map[string]fakeFile{"main": {}},
	}
}

func fakeSHA(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func (f *fakeStore) DefaultBranch(ctx context.Context) (string, error) {
	return "main", nil
}

func (f *fakeStore) BranchHead(ctx context.Context, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	head, ok := f.branches[branch]
	if !ok {
		return "", fmt.Errorf("head %s: %w", branch, gitstore.ErrNotFound)
	}
	return head, nil
}

func (f *fakeStore) CreateBranch(ctx context.Context, branch, sha string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.branches[branch]; ok {
		return fmt.Errorf("branch %s exists", branch)
	}
	f.branches[branch] = sha
	tree := map[string]fakeFile{}
	for path, file := range f.files["main"] {
		tree[path] = file
	}
	f.files[branch] = tree
	return nil
}

func (f *fakeStore) ForceSetBranch(ctx context.Context, branch, sha string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forceSets = append(f.forceSets, branch+":"+sha)
	f.branches[branch] = sha
	return nil
}

func (f *fakeStore) Merge(ctx context.Context, base, head, message string) (gitstore.MergeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeConflict {
		return gitstore.MergeResult{}, fmt.Errorf("merge %s into %s: %w", head, base, gitstore.ErrMergeConflict)
	}
	if f.branches[base] == f.branches[head] {
		return gitstore.MergeResult{}, nil
	}
	for path, file := range f.files[head] {
		f.files[base][path] = file
	}
	f.commits++
	merged := fmt.Sprintf("merge-%d", f.commits)
	f.branches[base] = merged
	return gitstore.MergeResult{SHA: merged, Merged: true}, nil
}

func (f *fakeStore) ReadFile(ctx context.Context, path, ref string) (gitstore.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ref == "" {
		ref = "develop"
	}
	file, ok := f.files[ref][path]
	if !ok {
		return gitstore.FileInfo{}, fmt.Errorf("read %s at %s: %w", path, ref, gitstore.ErrNotFound)
	}
	return gitstore.FileInfo{Path: path, SHA: file.sha, Content: file.content}, nil
}

func (f *fakeStore) WriteFile(ctx context.Context, opts gitstore.WriteFileOptions) (gitstore.PutResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls++
	tree, ok := f.files[opts.Branch]
	if !ok {
		return gitstore.PutResult{}, fmt.Errorf("write on %s: %w", opts.Branch, gitstore.ErrNotFound)
	}
	if f.writeConflict {
		// another editor moved the marker between the read and this write
		return gitstore.PutResult{}, fmt.Errorf("write %s: %w", opts.Path, gitstore.ErrWriteConflict)
	}
	current := ""
	if existing, ok := tree[opts.Path]; ok {
		current = existing.sha
	}
	if opts.SHA != current {
		return gitstore.PutResult{}, fmt.Errorf("write %s: %w", opts.Path, gitstore.ErrWriteConflict)
	}
	sha := fakeSHA(opts.Content)
	tree[opts.Path] = fakeFile{content: opts.Content, sha: sha}
	f.commits++
	commit := fmt.Sprintf("commit-%d", f.commits)
	f.branches[opts.Branch] = commit
	return gitstore.PutResult{ContentSHA: sha, CommitSHA: commit}, nil
}

func (f *fakeStore) DeleteFile(ctx context.Context, path, message, sha, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tree := f.files[branch]
	existing, ok := tree[path]
	if !ok {
		return fmt.Errorf("delete %s: %w", path, gitstore.ErrNotFound)
	}
	if sha != existing.sha {
		return fmt.Errorf("delete %s: %w", path, gitstore.ErrWriteConflict)
	}
	delete(tree, path)
	f.commits++
	f.branches[branch] = fmt.Sprintf("commit-%d", f.commits)
	return nil
}

var _ gitstore.Store = (*fakeStore)(nil)

type fakeBackend struct {
	store       *fakeStore
	credentials []string
	openErr     error
}

func (b *fakeBackend) Open(ctx context.Context, credential string) (gitstore.Store, gitstore.Viewer, error) {
	if b.openErr != nil {
		return nil, gitstore.Viewer{}, b.openErr
	}
	b.credentials = append(b.credentials, credential)
	return b.store, gitstore.Viewer{Login: "avery", Name: "Avery"}, nil
}

func (b *fakeBackend) Reopen(credential string) gitstore.Store {
	return b.store
}

func newTestService(t *testing.T) (*Service, *fakeBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	sessions := session.NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	backend := &fakeBackend{store: newFakeStore()}
	return NewService(backend, sessions, nil, nil), backend, mr
}

func mustLogin(t *testing.T, svc *Service) Session {
	t.Helper()
	ctx := context.Background()
	result, err := svc.Login(ctx, "ghp_secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	sess, err := svc.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	return sess
}

func TestLoginRequiresCredential(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Login(context.Background(), "  ")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnauthorized {
		t.Fatalf("error = %v, want 401 DomainError", err)
	}
	if domainErr.Code != "NOT_AUTHENTICATED" {
		t.Fatalf("code = %q", domainErr.Code)
	}
}

func TestLoginCreatesStagingAndSession(t *testing.T) {
	svc, backend, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Login(ctx, "ghp_secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token == "" {
		t.Fatal("no session token issued")
	}
	if result.Token == "ghp_secret" {
		t.Fatal("session token must not be the credential")
	}
	if result.Viewer.Login != "avery" {
		t.Fatalf("viewer = %+v", result.Viewer)
	}
	if !result.ShowDeploy {
		t.Fatal("default settings should show the deploy step")
	}
	if _, ok := backend.store.branches["develop"]; !ok {
		t.Fatal("develop branch not created")
	}

	sess, err := svc.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if sess.Viewer.Login != "avery" {
		t.Fatalf("session viewer = %+v", sess.Viewer)
	}
}

func TestLoginSurfacesBranchConflict(t *testing.T) {
	svc, backend, _ := newTestService(t)
	backend.store.branches["develop"] = "develop-5"
	backend.store.files["develop"] = map[string]fakeFile{}
	backend.store.mergeConflict = true

	_, err := svc.Login(context.Background(), "ghp_secret")
	status, code, _, _ := mapError(err)
	if status != http.StatusConflict || code != "BRANCH_CONFLICT" {
		t.Fatalf("error = %v mapped to %d %s", err, status, code)
	}
}

func TestLoginMissingMain(t *testing.T) {
	svc, backend, _ := newTestService(t)
	delete(backend.store.branches, "main")

	_, err := svc.Login(context.Background(), "ghp_secret")
	status, code, _, _ := mapError(err)
	if status != http.StatusPreconditionFailed || code != "MISSING_MAIN_BRANCH" {
		t.Fatalf("error = %v mapped to %d %s", err, status, code)
	}
}

func TestLoginRollsBackWhenSessionPersistFails(t *testing.T) {
	svc, backend, mr := newTestService(t)
	ctx := context.Background()

	// develop exists and lags main, so login merges and records a rollback
	// point before the session save fails
	backend.store.branches["develop"] = "develop-old"
	backend.store.files["develop"] = map[string]fakeFile{}
	mr.SetError("redis is down")

	if _, err := svc.Login(ctx, "ghp_secret"); err == nil {
		t.Fatal("expected login to fail")
	}
	if backend.store.branches["develop"] != "develop-old" {
		t.Fatalf("develop = %q, want restored to develop-old", backend.store.branches["develop"])
	}
	if len(backend.store.forceSets) != 1 {
		t.Fatalf("force sets = %v", backend.store.forceSets)
	}
}

func TestSavePostAssignsIdentityAndWritesStaging(t *testing.T) {
	svc, backend, _ := newTestService(t)
	sess := mustLogin(t, svc)
	ctx := context.Background()

	result, err := svc.SavePost(ctx, sess, content.Draft{Title: "Hello, World!", Body: "hi"})
	if err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}
	if !strings.HasPrefix(result.Post.ID, "post_") {
		t.Fatalf("post id = %q, want a generated post_ id", result.Post.ID)
	}
	if result.Post.Slug != "hello-world" {
		t.Fatalf("post = %+v", result.Post)
	}

	path := content.PostPath(result.Post.ID)
	if _, ok := backend.store.files["develop"][path]; !ok {
		t.Fatalf("post not written to develop: %v", backend.store.files["develop"])
	}
	if _, ok := backend.store.files["main"][path]; ok {
		t.Fatal("post written to main with continuous deployment off")
	}
}

func TestSavePostTargetsMainWithContinuousDeployment(t *testing.T) {
	svc, backend, _ := newTestService(t)
	sess := mustLogin(t, svc)
	ctx := context.Background()

	if _, err := svc.SaveSettings(ctx, sess, content.SiteSettings{SiteName: "Blog", CD: true}); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	// CD settings land on main; re-seed the read path the writer uses
	backend.store.files["develop"][content.SettingsPath] = backend.store.files["main"][content.SettingsPath]

	result, err := svc.SavePost(ctx, sess, content.Draft{Title: "Live"})
	if err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}
	path := content.PostPath(result.Post.ID)
	if _, ok := backend.store.files["main"][path]; !ok {
		t.Fatal("post not written to main with continuous deployment on")
	}
}

func TestSavePostConflictSurfacesWithoutRetry(t *testing.T) {
	svc, backend, _ := newTestService(t)
	sess := mustLogin(t, svc)
	ctx := context.Background()

	first, err := svc.SavePost(ctx, sess, content.Draft{Title: "Original"})
	if err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}

	// the marker moves between the read and the write
	path := content.PostPath(first.Post.ID)
	contentBefore := backend.store.files["develop"][path].content
	backend.store.writeConflict = true

	callsBefore := backend.store.writeCalls
	draft := first.Post
	draft.Title = "Mine"
	_, err = svc.SavePost(ctx, sess, draft)
	if err == nil {
		t.Fatal("expected write conflict")
	}
	status, code, _, _ := mapError(err)
	if status != http.StatusConflict || code != "WRITE_CONFLICT" {
		t.Fatalf("error = %v mapped to %d %s", err, status, code)
	}
	if string(backend.store.files["develop"][path].content) != string(contentBefore) {
		t.Fatal("conflicting write clobbered the file")
	}
	if backend.store.writeCalls != callsBefore+1 {
		t.Fatalf("write attempted %d times, want exactly 1", backend.store.writeCalls-callsBefore)
	}
}

func TestGetPostRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := mustLogin(t, svc)
	ctx := context.Background()

	saved, err := svc.SavePost(ctx, sess, content.Draft{Title: "Round Trip", Body: "body text"})
	if err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}

	got, err := svc.GetPost(ctx, sess, saved.Post.ID)
	if err != nil {
		t.Fatalf("GetPost() error = %v", err)
	}
	if got.Post.Title != "Round Trip" || got.Post.Body != "body text" {
		t.Fatalf("post = %+v", got.Post)
	}
	if got.SHA == "" {
		t.Fatal("missing revision marker")
	}
}

func TestDeletePostAbsent(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := mustLogin(t, svc)

	err := svc.DeletePost(context.Background(), sess, "post_missing1")
	status, code, _, _ := mapError(err)
	if status != http.StatusNotFound || code != "NOT_FOUND" {
		t.Fatalf("error = %v mapped to %d %s", err, status, code)
	}
}

func TestDeployPromotesStaging(t *testing.T) {
	svc, backend, _ := newTestService(t)
	sess := mustLogin(t, svc)
	ctx := context.Background()

	saved, err := svc.SavePost(ctx, sess, content.Draft{Title: "Ship It"})
	if err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}

	result, err := svc.Deploy(ctx, sess)
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	if !result.Merged {
		t.Fatal("expected a merge")
	}
	if _, ok := backend.store.files["main"][content.PostPath(saved.Post.ID)]; !ok {
		t.Fatal("post did not reach main")
	}

	// nothing new to promote
	result, err = svc.Deploy(ctx, sess)
	if err != nil {
		t.Fatalf("second Deploy() error = %v", err)
	}
	if result.Merged {
		t.Fatal("expected no-op deploy")
	}
}

func TestDeployRejectedWithContinuousDeployment(t *testing.T) {
	svc, backend, _ := newTestService(t)
	sess := mustLogin(t, svc)
	ctx := context.Background()

	if _, err := svc.SaveSettings(ctx, sess, content.SiteSettings{SiteName: "Blog", CD: true}); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	backend.store.files["develop"][content.SettingsPath] = backend.store.files["main"][content.SettingsPath]

	_, err := svc.Deploy(ctx, sess)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "DEPLOY_DISABLED" {
		t.Fatalf("error = %v, want DEPLOY_DISABLED", err)
	}
}

func TestSaveSettingsNormalizesTheme(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := mustLogin(t, svc)

	result, err := svc.SaveSettings(context.Background(), sess, content.SiteSettings{
		SiteName: "Blog",
		Theme: content.ThemeSettings{
			Active: "minimal",
			Vars:   map[string]any{"brandName": 42},
		},
	})
	if err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a coercion warning")
	}
	if result.Settings.Theme.Active != "minimal" {
		t.Fatalf("settings = %+v", result.Settings)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Login(ctx, "ghp_secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := svc.Logout(ctx, result.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, result.Token); err == nil {
		t.Fatal("expected authentication to fail after logout")
	}
}

func TestListPostsEmptyRepo(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := mustLogin(t, svc)

	index, err := svc.ListPosts(context.Background(), sess)
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if index.Posts == nil || len(index.Posts) != 0 {
		t.Fatalf("index = %+v", index)
	}
}
