package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	t.Setenv("SND_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("port default: %d", cfg.Port)
	}
	if cfg.UploadsDir != "/var/lib/snd/uploads" {
		t.Fatalf("uploads dir not derived: %s", cfg.UploadsDir)
	}
	if cfg.LoginRateLimit != 10 || cfg.LoginRateWindow != time.Minute {
		t.Fatalf("rate defaults: %d %v", cfg.LoginRateLimit, cfg.LoginRateWindow)
	}
	if cfg.LogRetentionDays != 30 {
		t.Fatalf("retention default: %d", cfg.LogRetentionDays)
	}
}

func TestYAMLAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	data := []byte("" +
		"port: 9999\n" +
		"data_dir: /tmp/snd-test\n" +
		"jwt_secret: from-file\n" +
		"cors_origins: [http://example.com]\n" +
		"login_rate_limit: 7\n" +
		"log_retention_days: 14\n")
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		t.Fatal(err)
	}

	// baseline from file
	t.Setenv("SND_CONFIG", cfgPath)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9999 {
		t.Fatalf("port from yaml: %d", cfg.Port)
	}
	if cfg.JWTSecret != "from-file" {
		t.Fatalf("secret from yaml: %s", cfg.JWTSecret)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://example.com" {
		t.Fatalf("cors from yaml: %v", cfg.CORSOrigins)
	}
	if cfg.LoginRateLimit != 7 || cfg.LogRetentionDays != 14 {
		t.Fatalf("knobs from yaml: %d %d", cfg.LoginRateLimit, cfg.LogRetentionDays)
	}
	if cfg.UploadsDir != "/tmp/snd-test/uploads" {
		t.Fatalf("uploads derived from yaml data_dir: %s", cfg.UploadsDir)
	}

	// env overrides file
	t.Setenv("SND_PORT", "8080")
	t.Setenv("SND_LOG", "warn")
	t.Setenv("SND_JWT_SECRET", "from-env")
	t.Setenv("SND_CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("SND_UPLOADS_DIR", "/mnt/uploads")
	t.Setenv("SND_LOGIN_RATE_WINDOW", "90s")

	cfg2, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg2.Port != 8080 {
		t.Fatalf("port env override: %d", cfg2.Port)
	}
	if cfg2.LogLevel.String() != "warn" {
		t.Fatalf("log env override: %s", cfg2.LogLevel)
	}
	if cfg2.JWTSecret != "from-env" {
		t.Fatalf("secret env override: %s", cfg2.JWTSecret)
	}
	if len(cfg2.CORSOrigins) != 2 || cfg2.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("cors env override: %v", cfg2.CORSOrigins)
	}
	if cfg2.UploadsDir != "/mnt/uploads" {
		t.Fatalf("uploads env override: %s", cfg2.UploadsDir)
	}
	if cfg2.LoginRateWindow != 90*time.Second {
		t.Fatalf("rate window env override: %v", cfg2.LoginRateWindow)
	}
}

func TestMissingConfigFileFails(t *testing.T) {
	t.Setenv("SND_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unreadable config file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("SND_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Port = 1234
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	t.Setenv("SND_CONFIG", path)
	got, err := Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Port != 1234 {
		t.Fatalf("port after round trip: %d", got.Port)
	}
}
