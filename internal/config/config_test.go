package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("API_BASE_URL", "http://localhost:8080")
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, "http://localhost:8080")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Remote API defaults
	if cfg.CommentsBaseURL != cfg.APIBaseURL {
		t.Errorf("CommentsBaseURL = %q, want API_BASE_URL %q", cfg.CommentsBaseURL, cfg.APIBaseURL)
	}

	// Session storage defaults
	if cfg.SessionStoreURL != "file://.donorlink/session.json" {
		t.Errorf("SessionStoreURL = %q, want %q", cfg.SessionStoreURL, "file://.donorlink/session.json")
	}
	if cfg.SessionNamespace != "default" {
		t.Errorf("SessionNamespace = %q, want %q", cfg.SessionNamespace, "default")
	}

	// Outbound request defaults
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want %v", cfg.RequestTimeout, 10*time.Second)
	}
	if cfg.RateLimitRPS != 10 {
		t.Errorf("RateLimitRPS = %v, want %v", cfg.RateLimitRPS, 10)
	}
	if cfg.RateLimitBurst != 20 {
		t.Errorf("RateLimitBurst = %d, want %d", cfg.RateLimitBurst, 20)
	}
	if cfg.FanOutMaxConcurrent != 6 {
		t.Errorf("FanOutMaxConcurrent = %d, want %d", cfg.FanOutMaxConcurrent, 6)
	}

	// Refresh defaults
	if cfg.RefreshSchedule != "@every 5m" {
		t.Errorf("RefreshSchedule = %q, want %q", cfg.RefreshSchedule, "@every 5m")
	}

	// Server defaults
	if cfg.ServerPort != "8090" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8090")
	}
	if cfg.CORSAllowedOrigin != "http://localhost:4200" {
		t.Errorf("CORSAllowedOrigin = %q, want %q", cfg.CORSAllowedOrigin, "http://localhost:4200")
	}

	// Image proxy defaults
	if cfg.ImageMaxSize != 5242880 {
		t.Errorf("ImageMaxSize = %d, want %d", cfg.ImageMaxSize, 5242880)
	}
	if cfg.ImageFetchTimeout != 10*time.Second {
		t.Errorf("ImageFetchTimeout = %v, want %v", cfg.ImageFetchTimeout, 10*time.Second)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnvVars(t)

	t.Setenv("COMMENTS_BASE_URL", "http://localhost:8082")
	t.Setenv("SESSION_STORE_URL", "redis://localhost:6379/0")
	t.Setenv("SESSION_NAMESPACE", "kiosk")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("FANOUT_MAX_CONCURRENT", "2")
	t.Setenv("REFRESH_SCHEDULE", "*/10 * * * *")
	t.Setenv("SERVER_PORT", "3000")
	t.Setenv("IMAGE_MAX_SIZE", "1048576")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.CommentsBaseURL != "http://localhost:8082" {
		t.Errorf("CommentsBaseURL = %q, want %q", cfg.CommentsBaseURL, "http://localhost:8082")
	}
	if cfg.SessionStoreURL != "redis://localhost:6379/0" {
		t.Errorf("SessionStoreURL = %q", cfg.SessionStoreURL)
	}
	if cfg.SessionNamespace != "kiosk" {
		t.Errorf("SessionNamespace = %q, want %q", cfg.SessionNamespace, "kiosk")
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want %v", cfg.RequestTimeout, 3*time.Second)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Errorf("RateLimitRPS = %v, want %v", cfg.RateLimitRPS, 2.5)
	}
	if cfg.RateLimitBurst != 5 {
		t.Errorf("RateLimitBurst = %d, want %d", cfg.RateLimitBurst, 5)
	}
	if cfg.FanOutMaxConcurrent != 2 {
		t.Errorf("FanOutMaxConcurrent = %d, want %d", cfg.FanOutMaxConcurrent, 2)
	}
	if cfg.RefreshSchedule != "*/10 * * * *" {
		t.Errorf("RefreshSchedule = %q", cfg.RefreshSchedule)
	}
	if cfg.ServerPort != "3000" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "3000")
	}
	if cfg.ImageMaxSize != 1048576 {
		t.Errorf("ImageMaxSize = %d, want %d", cfg.ImageMaxSize, 1048576)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("RATE_LIMIT_RPS", "fast")
	t.Setenv("FANOUT_MAX_CONCURRENT", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want default", cfg.RequestTimeout)
	}
	if cfg.RateLimitRPS != 10 {
		t.Errorf("RateLimitRPS = %v, want default", cfg.RateLimitRPS)
	}
	if cfg.FanOutMaxConcurrent != 6 {
		t.Errorf("FanOutMaxConcurrent = %d, want default", cfg.FanOutMaxConcurrent)
	}
}

func TestLoad_MissingAPIBaseURL_ReturnsError(t *testing.T) {
	t.Setenv("API_BASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing API_BASE_URL, got nil")
	}
	if !strings.Contains(err.Error(), "API_BASE_URL") {
		t.Errorf("error should name the missing variable: %v", err)
	}
}

func TestLoad_ReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	dir := t.TempDir()
	env := "API_BASE_URL=http://dotenv.example.com\nSESSION_NAMESPACE=from-file\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatalf("write .env failed: %v", err)
	}
	t.Chdir(dir)

	// godotenv は既存の値を上書きしないため、API_BASE_URL は環境変数側が優先される。
	t.Setenv("API_BASE_URL", "http://env.example.com")
	t.Setenv("SESSION_NAMESPACE", "")
	os.Unsetenv("SESSION_NAMESPACE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APIBaseURL != "http://env.example.com" {
		t.Errorf("APIBaseURL = %q, want environment value", cfg.APIBaseURL)
	}
	if cfg.SessionNamespace != "from-file" {
		t.Errorf("SessionNamespace = %q, want %q from .env", cfg.SessionNamespace, "from-file")
	}
}
