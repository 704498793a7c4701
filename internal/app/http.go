package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bloghub/api/internal/branchsync"
	"bloghub/api/internal/content"
	"bloghub/api/internal/githost"
	"bloghub/api/internal/gitstore"
	"bloghub/api/internal/search"
	"bloghub/api/internal/session"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"sessions": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["sessions"] = map[string]any{"status": "error", "error": err.Error()}
		}
		if configured, err := s.service.AuditHealthy(ctx); configured {
			if err != nil {
				status = "not_ready"
				statusCode = http.StatusServiceUnavailable
				checks["audit"] = map[string]any{"status": "error", "error": err.Error()}
			} else {
				checks["audit"] = map[string]any{"status": "ok"}
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		var body struct {
			Token string `json:"token"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.Login(r.Context(), body.Token)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		_ = s.service.Logout(r.Context(), bearerToken(r))
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		sess, err := s.service.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "viewer": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"viewer":        sess.Viewer,
			"showDeploy":    s.service.ShowDeploy(r.Context(), sess),
		})
		return
	}

	// Everything below requires a session.
	sess, err := s.service.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	segments := splitPath(r.URL.Path)
	if len(segments) < 2 || segments[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/settings":
		settings, err := s.service.Settings(r.Context(), sess, r.URL.Query().Get("ref"))
		respond(w, map[string]any{"settings": settings}, err)

	case r.Method == http.MethodPut && r.URL.Path == "/api/settings":
		var settings content.SiteSettings
		if err := decodeBody(r, &settings); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.SaveSettings(r.Context(), sess, settings)
		respond(w, result, err)

	case r.Method == http.MethodGet && r.URL.Path == "/api/posts":
		index, err := s.service.ListPosts(r.Context(), sess)
		respond(w, index, err)

	case r.Method == http.MethodPost && r.URL.Path == "/api/posts":
		var draft content.Draft
		if err := decodeBody(r, &draft); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.SavePost(r.Context(), sess, draft)
		respond(w, result, err)

	case len(segments) == 3 && segments[1] == "posts":
		s.handlePost(w, r, sess, segments[2])

	case r.Method == http.MethodGet && r.URL.Path == "/api/media":
		library, err := s.service.MediaLibrary(r.Context(), sess)
		respond(w, library, err)

	case r.Method == http.MethodGet && r.URL.Path == "/api/routes":
		manifest, err := s.service.Routes(r.Context(), sess)
		respond(w, manifest, err)

	case r.Method == http.MethodPost && r.URL.Path == "/api/media":
		var body struct {
			Path string `json:"path"`
			Data string `json:"data"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.Path) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "path is required", nil)
			return
		}
		result, err := s.service.UploadMedia(r.Context(), sess, body.Path, body.Data)
		respond(w, result, err)

	case r.Method == http.MethodDelete && r.URL.Path == "/api/media":
		path := r.URL.Query().Get("path")
		if strings.TrimSpace(path) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "path is required", nil)
			return
		}
		err := s.service.DeleteMedia(r.Context(), sess, path)
		respond(w, map[string]any{"ok": true}, err)

	case r.Method == http.MethodPost && r.URL.Path == "/api/deploy":
		result, err := s.service.Deploy(r.Context(), sess)
		respond(w, result, err)

	case r.Method == http.MethodGet && r.URL.Path == "/api/search":
		query := r.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))
		resp := s.service.SearchPosts(r.Context(), sess, search.Query{
			Text:         query.Get("q"),
			FilterStatus: query.Get("status"),
			FilterTag:    query.Get("tag"),
			Limit:        limit,
			Offset:       offset,
		})
		writeJSON(w, http.StatusOK, resp)

	case r.Method == http.MethodGet && r.URL.Path == "/api/audit":
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		events, err := s.service.AuditEvents(r.Context(), limit)
		respond(w, map[string]any{"events": events}, err)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handlePost(w http.ResponseWriter, r *http.Request, sess Session, id string) {
	switch r.Method {
	case http.MethodGet:
		result, err := s.service.GetPost(r.Context(), sess, id)
		respond(w, result, err)
	case http.MethodPut:
		var draft content.Draft
		if err := decodeBody(r, &draft); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if draft.ID == "" {
			draft.ID = id
		}
		if draft.ID != id {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "post id does not match path", nil)
			return
		}
		result, err := s.service.SavePost(r.Context(), sess, draft)
		respond(w, result, err)
	case http.MethodDelete:
		err := s.service.DeletePost(r.Context(), sess, id)
		respond(w, map[string]any{"ok": true}, err)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func respond(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var conflictErr *branchsync.ConflictError
	if errors.As(err, &conflictErr) {
		return http.StatusConflict, "BRANCH_CONFLICT", conflictErr.Message, map[string]any{
			"base": conflictErr.Base,
			"head": conflictErr.Head,
		}
	}
	if errors.Is(err, branchsync.ErrMissingMainBranch) {
		return http.StatusPreconditionFailed, "MISSING_MAIN_BRANCH", "The repository has no main branch", nil
	}
	if errors.Is(err, gitstore.ErrWriteConflict) {
		return http.StatusConflict, "WRITE_CONFLICT", "The file changed since it was loaded; reload and try again", nil
	}
	if errors.Is(err, gitstore.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, githost.ErrNotAuthenticated) || errors.Is(err, session.ErrNotFound) {
		return http.StatusUnauthorized, "NOT_AUTHENTICATED", "Unauthorized", nil
	}
	var apiErr *githost.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden {
			return http.StatusUnauthorized, "NOT_AUTHENTICATED", "The git host rejected the credential", nil
		}
		return http.StatusBadGateway, "STORE_ERROR", "The git host rejected the request", map[string]any{"status": apiErr.Status}
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
