package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bloghub/api/internal/app"
	"bloghub/api/internal/audit"
	"bloghub/api/internal/config"
	"bloghub/api/internal/githost"
	"bloghub/api/internal/localgit"
	"bloghub/api/internal/search"
	"bloghub/api/internal/session"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var backend app.Backend
	if strings.TrimSpace(cfg.RepoURL) != "" {
		repo, err := githost.ParseRepoRef(cfg.RepoURL)
		if err != nil {
			log.Fatalf("invalid repo url %q: %v", cfg.RepoURL, err)
		}
		log.Printf("Using hosted content repository %s", repo)
		backend = &app.HostBackend{BaseURL: cfg.GitHostURL, Repo: repo}
	} else {
		log.Printf("Using local content repository at %s", cfg.LocalRepoDir)
		local := localgit.New(cfg.LocalRepoDir)
		if err := local.Init(localgit.SeedContent(cfg.SiteName)); err != nil {
			log.Fatalf("local repository init failed: %v", err)
		}
		backend = &app.LocalBackend{Service: local}
	}

	sessions, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer sessions.Close()

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}

	var auditLog *audit.Log
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		auditLog, err = audit.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("audit log connection failed: %v", err)
		}
		defer auditLog.Close()
	} else {
		log.Printf("DATABASE_URL not set; audit log disabled")
	}

	service := app.NewService(backend, sessions, meiliClient, auditLog)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("BlogHub API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
