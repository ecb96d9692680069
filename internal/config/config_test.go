package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

func TestGetEnvString(t *testing.T) {
	key := "TEST_ENV_STRING"
	val := "test_value"
	t.Setenv(key, val)

	if got := getEnvString(key, "default"); got != val {
		t.Errorf("getEnvString() = %q, want %q", got, val)
	}

	if got := getEnvString("NON_EXISTENT", "default"); got != "default" {
		t.Errorf("getEnvString() = %q, want %q", got, "default")
	}
}

func TestGetEnvDuration(t *testing.T) {
	key := "TEST_ENV_DURATION"

	tests := []struct {
		name       string
		envVal     string
		defaultVal time.Duration
		want       time.Duration
	}{
		{"ValidDuration", "1m", time.Second, time.Minute},
		{"ValidSeconds", "60", time.Second, 60 * time.Second},
		{"Invalid", "invalid", time.Second, time.Second},
		{"Empty", "", time.Second, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.envVal)
			if got := getEnvDuration(key, tt.defaultVal); got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_ENV_INT"

	tests := []struct {
		name   string
		envVal string
		want   int
	}{
		{"Plain", "250", 250},
		{"MiB", "2MiB", 2 << 20},
		{"KiB", "64 KiB", 64 << 10},
		{"Invalid", "lots", 7},
		{"Empty", "", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.envVal)
			if got := getEnvInt(key, 7); got != tt.want {
				t.Errorf("getEnvInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_ENV_BOOL"
	t.Setenv(key, "no")
	if getEnvBool(key, true) {
		t.Error("getEnvBool(no) = true")
	}
	t.Setenv(key, "garbage")
	if !getEnvBool(key, true) {
		t.Error("getEnvBool(garbage) should fall back to default")
	}
}

func TestEnsureDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "dir")

	if err := ensureDir(path); err != nil {
		t.Fatalf("ensureDir() failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("directory was not created")
	}

	if err := ensureDir(""); err != nil {
		t.Error("ensureDir(\"\") should not error")
	}
}

func TestGetDefaultBaseDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Skipping test because user home dir cannot be found")
	}

	if got, want := getDefaultBaseDir(), filepath.Join(home, ".config", "policydash"); got != want {
		t.Errorf("getDefaultBaseDir() = %q, want %q", got, want)
	}
}

func TestGetEnvPaths(t *testing.T) {
	paths := getEnvPaths()
	if len(paths) == 0 {
		t.Error("getEnvPaths() returned empty list")
	}

	cwd, _ := os.Getwd()
	found := false
	for _, p := range paths {
		if p == filepath.Join(cwd, ".env") {
			found = true
			break
		}
	}
	if !found {
		t.Error("getEnvPaths() missing current directory .env")
	}
}

// isolate points HOME and the working directory at an empty temp dir so no
// developer .env file leaks into Load.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Chdir(tmpDir)
	return tmpDir
}

func TestLoad(t *testing.T) {
	tmpDir := isolate(t)
	t.Setenv("DATABASE_PATH", filepath.Join(tmpDir, "db", "policies.db"))
	t.Setenv("DATA_DIR", filepath.Join(tmpDir, "drop"))
	t.Setenv("CACHE_TTL", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 90s", cfg.CacheTTL)
	}
	if cfg.CatalogCacheTTL != defaultCatalogCacheTTL {
		t.Errorf("CatalogCacheTTL = %v, want %v", cfg.CatalogCacheTTL, defaultCatalogCacheTTL)
	}
	if cfg.CacheMaxEntries != defaultCacheMaxEntries || cfg.CacheMaxBytes != defaultCacheMaxBytes {
		t.Errorf("cache bounds = %d/%d", cfg.CacheMaxEntries, cfg.CacheMaxBytes)
	}
	if cfg.Thresholds != models.DefaultThresholds() {
		t.Errorf("Thresholds = %+v, want defaults", cfg.Thresholds)
	}
	if cfg.LogPath != filepath.Join(tmpDir, "db", "policydash.log") {
		t.Errorf("LogPath = %q", cfg.LogPath)
	}
	if _, err := os.Stat(cfg.DataDir); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestLoad_FromDotEnv(t *testing.T) {
	tmpDir := isolate(t)
	env := "DATABASE_PATH=" + filepath.Join(tmpDir, "x.db") + "\nPAGE_SIZE=25\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_PATH")
		os.Unsetenv("PAGE_SIZE")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.PageSize != 25 {
		t.Errorf("PageSize = %d, want 25", cfg.PageSize)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"LogLevel", "LOG_LEVEL", "verbose"},
		{"LogFormat", "LOG_FORMAT", "xml"},
		{"Entries", "CACHE_MAX_ENTRIES", "-1"},
		{"PageSize", "PAGE_SIZE", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := isolate(t)
			t.Setenv("DATABASE_PATH", filepath.Join(tmpDir, "db.sqlite"))
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("Load() should fail for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_BadThresholds(t *testing.T) {
	tmpDir := isolate(t)
	path := filepath.Join(tmpDir, "thresholds.yaml")
	if err := os.WriteFile(path, []byte("thresholds: [oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATABASE_PATH", filepath.Join(tmpDir, "db.sqlite"))
	t.Setenv("THRESHOLDS_PATH", path)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "thresholds") {
		t.Errorf("Load() error = %v, want thresholds parse error", err)
	}
}
