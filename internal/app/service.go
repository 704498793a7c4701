package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"bloghub/api/internal/audit"
	"bloghub/api/internal/auth"
	"bloghub/api/internal/branchsync"
	"bloghub/api/internal/content"
	"bloghub/api/internal/gitstore"
	"bloghub/api/internal/search"
	"bloghub/api/internal/session"
	"bloghub/api/internal/writer"
)

// Session is an authenticated request's view of who is acting and which
// store their credential opens.
type Session struct {
	Token  string
	Viewer gitstore.Viewer

	store gitstore.Store
}

// LoginResult is returned to the admin UI after a session opens.
type LoginResult struct {
	Token      string          `json:"token"`
	Viewer     gitstore.Viewer `json:"viewer"`
	ShowDeploy bool            `json:"showDeploy"`
	Synced     bool            `json:"synced"`
}

// PostResult reports a successful post write.
type PostResult struct {
	Post      content.Draft `json:"post"`
	Permalink string        `json:"permalink,omitempty"`
	SHA       string        `json:"sha"`
	Commit    string        `json:"commit"`
}

// SettingsResult reports a settings save, including any coercion warnings.
type SettingsResult struct {
	Settings content.SiteSettings `json:"settings"`
	Warnings []string             `json:"warnings"`
}

// MediaLibrary bundles the generator's media listing with which posts
// reference each file.
type MediaLibrary struct {
	Index content.MediaIndex `json:"index"`
	Usage content.MediaUsage `json:"usage"`
}

// MediaResult reports a media upload.
type MediaResult struct {
	Path   string `json:"path"`
	URL    string `json:"url"`
	SHA    string `json:"sha"`
	Commit string `json:"commit"`
}

// DeployResult reports a develop-to-main promotion.
type DeployResult struct {
	Merged bool   `json:"merged"`
	SHA    string `json:"sha,omitempty"`
}

type Service struct {
	backend  Backend
	sessions *session.RedisStore
	meili    *search.Meili // nil when search engine not configured
	audit    *audit.Log    // nil when audit log not configured
}

func NewService(backend Backend, sessions *session.RedisStore, meili *search.Meili, auditLog *audit.Log) *Service {
	return &Service{
		backend:  backend,
		sessions: sessions,
		meili:    meili,
		audit:    auditLog,
	}
}

// Ping reports whether the session store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

// AuditHealthy reports whether the audit log is configured and, if so,
// whether its database answers.
func (s *Service) AuditHealthy(ctx context.Context) (bool, error) {
	if s.audit == nil {
		return false, nil
	}
	return true, s.audit.Ping(ctx)
}

// Login validates a git host credential, brings the staging branch in sync
// with production, and opens a session. The credential never leaves the
// server after this call.
func (s *Service) Login(ctx context.Context, credential string) (LoginResult, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return LoginResult{}, domainError(http.StatusUnauthorized, "NOT_AUTHENTICATED", "A git host token is required", nil)
	}

	store, viewer, err := s.backend.Open(ctx, credential)
	if err != nil {
		return LoginResult{}, err
	}

	engine := branchsync.New(store)
	syncResult, err := engine.EnsureDevelopSynced(ctx)
	if err != nil {
		s.record(ctx, viewer.Login, "session.login", "", outcomeFor(err), nil)
		return LoginResult{}, err
	}

	bearer, err := auth.NewSessionToken()
	if err == nil {
		err = s.sessions.Save(ctx, auth.HashToken(bearer), session.Session{
			Token:  credential,
			Viewer: viewer,
		})
	}
	if err != nil {
		// The sync may already have moved develop. Put it back so a failed
		// login leaves no trace, then drop the credential.
		if rbErr := engine.Rollback(ctx, syncResult.PreviousDevelopSHA); rbErr != nil {
			log.Printf("app: rollback after failed login: %v", rbErr)
		}
		return LoginResult{}, fmt.Errorf("open session: %w", err)
	}

	settings, err := s.loadSettings(ctx, store)
	if err != nil {
		log.Printf("app: load settings on login: %v", err)
		settings, _ = content.NormalizeSettings(content.SiteSettings{})
	}

	go s.reindex(store)
	s.record(ctx, viewer.Login, "session.login", "", audit.OutcomeOK, nil)

	return LoginResult{
		Token:      bearer,
		Viewer:     viewer,
		ShowDeploy: settings.ShouldShowDeploy(),
		Synced:     syncResult.DevelopExisted,
	}, nil
}

// Authenticate resolves a bearer token to a session and rebuilds the store
// client for its credential.
func (s *Service) Authenticate(ctx context.Context, bearer string) (Session, error) {
	if strings.TrimSpace(bearer) == "" {
		return Session{}, domainError(http.StatusUnauthorized, "NOT_AUTHENTICATED", "Unauthorized", nil)
	}
	stored, err := s.sessions.Lookup(ctx, auth.HashToken(bearer))
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:  bearer,
		Viewer: stored.Viewer,
		store:  s.backend.Reopen(stored.Token),
	}, nil
}

// Logout revokes the session. Revoking an already-dead session succeeds.
func (s *Service) Logout(ctx context.Context, bearer string) error {
	if strings.TrimSpace(bearer) == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, auth.HashToken(bearer))
}

// ShowDeploy reports whether the manual deploy step applies for the
// current settings.
func (s *Service) ShowDeploy(ctx context.Context, sess Session) bool {
	settings, err := s.loadSettings(ctx, sess.store)
	if err != nil {
		return true
	}
	return settings.ShouldShowDeploy()
}

// Settings returns the site settings at a ref, normalized. An empty ref
// reads staging, where pending edits live.
func (s *Service) Settings(ctx context.Context, sess Session, ref string) (content.SiteSettings, error) {
	if ref == "" {
		return s.loadSettings(ctx, sess.store)
	}
	var settings content.SiteSettings
	err := writer.New(sess.store).ReadJSON(ctx, content.SettingsPath, ref, &settings)
	if errors.Is(err, gitstore.ErrNotFound) {
		normalized, _ := content.NormalizeSettings(content.SiteSettings{})
		return normalized, nil
	}
	if err != nil {
		return content.SiteSettings{}, err
	}
	normalized, _ := content.NormalizeSettings(settings)
	return normalized, nil
}

// Routes returns the generator's URL-to-markdown routing table.
func (s *Service) Routes(ctx context.Context, sess Session) (content.RoutesManifest, error) {
	var manifest content.RoutesManifest
	err := writer.New(sess.store).ReadJSON(ctx, content.RoutesManifestPath, "", &manifest)
	if errors.Is(err, gitstore.ErrNotFound) {
		return content.RoutesManifest{Version: 1, Routes: map[string]string{}}, nil
	}
	if err != nil {
		return content.RoutesManifest{}, err
	}
	if manifest.Routes == nil {
		manifest.Routes = map[string]string{}
	}
	return manifest, nil
}

// SaveSettings normalizes and persists the site settings.
func (s *Service) SaveSettings(ctx context.Context, sess Session, settings content.SiteSettings) (SettingsResult, error) {
	normalized, warnings := content.NormalizeSettings(settings)
	w := writer.New(sess.store)
	_, err := w.WriteJSON(ctx, content.SettingsPath, normalized, "settings: update site settings", normalized.WriteBranch())
	s.record(ctx, sess.Viewer.Login, "settings.save", content.SettingsPath, outcomeFor(err), nil)
	if err != nil {
		return SettingsResult{}, err
	}
	if warnings == nil {
		warnings = []string{}
	}
	return SettingsResult{Settings: normalized, Warnings: warnings}, nil
}

// ListPosts returns the generated posts index. A repository with no index
// yet lists as empty.
func (s *Service) ListPosts(ctx context.Context, sess Session) (content.PostsIndex, error) {
	var index content.PostsIndex
	w := writer.New(sess.store)
	err := w.ReadJSON(ctx, content.PostsIndexPath, "", &index)
	if errors.Is(err, gitstore.ErrNotFound) {
		return content.PostsIndex{Version: 1, Posts: []content.PostsIndexItem{}}, nil
	}
	if err != nil {
		return content.PostsIndex{}, err
	}
	if index.Posts == nil {
		index.Posts = []content.PostsIndexItem{}
	}
	return index, nil
}

// GetPost loads one post's markdown and parses it back into a draft.
func (s *Service) GetPost(ctx context.Context, sess Session, id string) (PostResult, error) {
	w := writer.New(sess.store)
	markdown, sha, err := w.ReadText(ctx, content.PostPath(id), "")
	if err != nil {
		return PostResult{}, err
	}
	draft, err := content.ParseDraft(markdown)
	if err != nil {
		return PostResult{}, domainError(http.StatusUnprocessableEntity, "INVALID_POST", err.Error(), nil)
	}
	return PostResult{Post: draft, Permalink: s.permalink(ctx, sess, draft), SHA: sha}, nil
}

// SavePost writes a post draft to the content repository. Missing IDs and
// slugs are assigned here, so a create and an update are the same call.
func (s *Service) SavePost(ctx context.Context, sess Session, draft content.Draft) (PostResult, error) {
	if strings.TrimSpace(draft.ID) == "" {
		draft.ID = content.NewPostID()
	}
	draft = content.NormalizeDraft(draft)
	settings, err := s.loadSettings(ctx, sess.store)
	if err != nil {
		return PostResult{}, err
	}

	w := writer.New(sess.store)
	path := content.PostPath(draft.ID)
	message := fmt.Sprintf("content: save post %s", draft.ID)
	res, err := w.WriteText(ctx, path, content.BuildMarkdownFile(draft), message, settings.WriteBranch())
	s.record(ctx, sess.Viewer.Login, "post.save", path, outcomeFor(err), map[string]string{"branch": settings.WriteBranch()})
	if err != nil {
		return PostResult{}, err
	}

	permalink, _ := content.ResolvePermalink(draft, settings)
	s.indexPost(draft, permalink)

	return PostResult{
		Post:      draft,
		Permalink: permalink,
		SHA:       res.ContentSHA,
		Commit:    res.CommitSHA,
	}, nil
}

// DeletePost removes a post's markdown file.
func (s *Service) DeletePost(ctx context.Context, sess Session, id string) error {
	settings, err := s.loadSettings(ctx, sess.store)
	if err != nil {
		return err
	}
	w := writer.New(sess.store)
	path := content.PostPath(id)
	err = w.Delete(ctx, path, fmt.Sprintf("content: delete post %s", id), settings.WriteBranch())
	s.record(ctx, sess.Viewer.Login, "post.delete", path, outcomeFor(err), nil)
	if err != nil {
		return err
	}
	s.searchService(sess).DeletePost(id)
	return nil
}

// MediaLibrary returns the generated media index and usage map. A repo
// the generator has not run against yet lists as empty.
func (s *Service) MediaLibrary(ctx context.Context, sess Session) (MediaLibrary, error) {
	w := writer.New(sess.store)
	var lib MediaLibrary

	err := w.ReadJSON(ctx, content.MediaIndexPath, "", &lib.Index)
	if err != nil && !errors.Is(err, gitstore.ErrNotFound) {
		return MediaLibrary{}, err
	}
	if lib.Index.Items == nil {
		lib.Index.Items = []content.MediaIndexItem{}
	}

	err = w.ReadJSON(ctx, content.MediaUsagePath, "", &lib.Usage)
	if err != nil && !errors.Is(err, gitstore.ErrNotFound) {
		return MediaLibrary{}, err
	}
	if lib.Usage.Usage == nil {
		lib.Usage.Usage = map[string][]string{}
	}
	return lib, nil
}

// UploadMedia stores a media file under the public media directory. The
// payload arrives base64-encoded from the admin UI.
func (s *Service) UploadMedia(ctx context.Context, sess Session, publicPath, encoded string) (MediaResult, error) {
	data, err := content.DecodeBase64(encoded)
	if err != nil {
		return MediaResult{}, domainError(http.StatusBadRequest, "INVALID_MEDIA", "media payload is not valid base64", nil)
	}
	settings, err := s.loadSettings(ctx, sess.store)
	if err != nil {
		return MediaResult{}, err
	}

	repoPath := content.RepoPathFromPublicURL(publicPath)
	w := writer.New(sess.store)
	res, err := w.WriteBinary(ctx, repoPath, data, fmt.Sprintf("media: upload %s", publicPath), settings.WriteBranch())
	s.record(ctx, sess.Viewer.Login, "media.upload", repoPath, outcomeFor(err), nil)
	if err != nil {
		return MediaResult{}, err
	}
	return MediaResult{Path: repoPath, URL: publicPath, SHA: res.ContentSHA, Commit: res.CommitSHA}, nil
}

// DeleteMedia removes a media file.
func (s *Service) DeleteMedia(ctx context.Context, sess Session, publicPath string) error {
	settings, err := s.loadSettings(ctx, sess.store)
	if err != nil {
		return err
	}
	repoPath := content.RepoPathFromPublicURL(publicPath)
	w := writer.New(sess.store)
	err = w.Delete(ctx, repoPath, fmt.Sprintf("media: delete %s", publicPath), settings.WriteBranch())
	s.record(ctx, sess.Viewer.Login, "media.delete", repoPath, outcomeFor(err), nil)
	return err
}

// Deploy promotes staging to production. With continuous deployment on
// there is nothing to promote and the call is rejected.
func (s *Service) Deploy(ctx context.Context, sess Session) (DeployResult, error) {
	settings, err := s.loadSettings(ctx, sess.store)
	if err != nil {
		return DeployResult{}, err
	}
	if !settings.ShouldShowDeploy() {
		return DeployResult{}, domainError(http.StatusConflict, "DEPLOY_DISABLED", "Continuous deployment is on; edits publish automatically", nil)
	}

	engine := branchsync.New(sess.store)
	res, err := engine.Deploy(ctx)
	s.record(ctx, sess.Viewer.Login, "site.deploy", "", outcomeFor(err), nil)
	if err != nil {
		return DeployResult{}, err
	}
	return DeployResult{Merged: res.Merged, SHA: res.SHA}, nil
}

// SearchPosts queries the search engine, falling back to a scan of the
// generated posts index.
func (s *Service) SearchPosts(ctx context.Context, sess Session, q search.Query) search.Response {
	return s.searchService(sess).Search(ctx, q)
}

// AuditEvents lists recent admin actions.
func (s *Service) AuditEvents(ctx context.Context, limit int) ([]audit.Event, error) {
	if s.audit == nil {
		return nil, domainError(http.StatusServiceUnavailable, "AUDIT_DISABLED", "Audit log is not configured", nil)
	}
	events, err := s.audit.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []audit.Event{}
	}
	return events, nil
}

func (s *Service) loadSettings(ctx context.Context, store gitstore.Store) (content.SiteSettings, error) {
	var settings content.SiteSettings
	w := writer.New(store)
	err := w.ReadJSON(ctx, content.SettingsPath, "", &settings)
	if errors.Is(err, gitstore.ErrNotFound) {
		normalized, _ := content.NormalizeSettings(content.SiteSettings{})
		return normalized, nil
	}
	if err != nil {
		return content.SiteSettings{}, err
	}
	normalized, _ := content.NormalizeSettings(settings)
	return normalized, nil
}

func (s *Service) permalink(ctx context.Context, sess Session, draft content.Draft) string {
	settings, err := s.loadSettings(ctx, sess.store)
	if err != nil {
		return ""
	}
	permalink, err := content.ResolvePermalink(draft, settings)
	if err != nil {
		return ""
	}
	return permalink
}

func (s *Service) searchService(sess Session) *search.Service {
	store := sess.store
	scan := search.NewIndexScan(func(ctx context.Context) (content.PostsIndex, error) {
		var index content.PostsIndex
		if err := writer.New(store).ReadJSON(ctx, content.PostsIndexPath, "", &index); err != nil {
			if errors.Is(err, gitstore.ErrNotFound) {
				return content.PostsIndex{}, nil
			}
			return content.PostsIndex{}, err
		}
		return index, nil
	})
	return search.NewService(s.meili, scan)
}

func (s *Service) indexPost(draft content.Draft, permalink string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexPost(search.PostRecord{
			ID:         draft.ID,
			Title:      draft.Title,
			Slug:       draft.Slug,
			URL:        permalink,
			Excerpt:    draft.Excerpt,
			Body:       draft.Body,
			Date:       draft.Date,
			Status:     draft.Status,
			Tags:       draft.Tags,
			Categories: draft.Categories,
		}); err != nil {
			log.Printf("app: index post %s: %v", draft.ID, err)
		}
	}()
}

// reindex pushes the whole posts index into the search engine after a
// session opens. Runs off the request context.
func (s *Service) reindex(store gitstore.Store) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.searchService(Session{store: store}).Reindex(ctx)
}

func (s *Service) record(ctx context.Context, actor, action, target, outcome string, details map[string]string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, audit.Event{
		Actor:   actor,
		Action:  action,
		Target:  target,
		Outcome: outcome,
		Details: details,
	}); err != nil {
		log.Printf("app: record audit event %s: %v", action, err)
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return audit.OutcomeOK
	case errors.Is(err, gitstore.ErrWriteConflict), errors.Is(err, gitstore.ErrMergeConflict):
		return audit.OutcomeConflict
	default:
		return audit.OutcomeError
	}
}
