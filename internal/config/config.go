package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	CORSOrigin string

	// Content repository. RepoURL selects the hosted backend; when it is
	// empty the server runs against a local repository under LocalRepoDir.
	RepoURL      string
	GitHostURL   string
	LocalRepoDir string
	SiteName     string

	// Sessions
	RedisURL   string
	SessionTTL time.Duration

	// Optional services. Empty URL disables the feature.
	DatabaseURL    string
	MeiliURL       string
	MeiliMasterKey string
}

func Load() Config {
	return Config{
		Addr:       getenv("API_ADDR", ":8787"),
		CORSOrigin: getenv("BLOGHUB_CORS_ORIGIN", "*"),

		RepoURL:      getenv("BLOGHUB_REPO_URL", ""),
		GitHostURL:   getenv("BLOGHUB_GITHOST_URL", "https://api.github.com"),
		LocalRepoDir: getenv("BLOGHUB_LOCAL_REPO_DIR", "./data/site"),
		SiteName:     getenv("BLOGHUB_SITE_NAME", "My Blog"),

		RedisURL:   getenv("REDIS_URL", "redis://localhost:6379/0"),
		SessionTTL: time.Duration(getenvInt("BLOGHUB_SESSION_TTL_SECONDS", 43200)) * time.Second,

		// Audit log is disabled unless DATABASE_URL is set
		DatabaseURL:    getenv("DATABASE_URL", ""),
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
