package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestCacheBase_XDGSet(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	got := cacheBase()
	want := filepath.Join("/custom/cache", "rbxdocs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCacheBase_HomeDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	got := cacheBase()
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		t.Skip("cannot determine home dir")
	}
	want := filepath.Join(home, ".cache", "rbxdocs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCacheBase_TmpFallback(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "")
	got := cacheBase()
	// Should use os.TempDir() when HOME is unset
	if !strings.Contains(got, "rbxdocs") {
		t.Errorf("expected rbxdocs in path, got %q", got)
	}
}

func TestDerivedPaths(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/c")
	t.Setenv("XDG_RUNTIME_DIR", "/r")

	cases := map[string]string{
		DBPath():       filepath.Join("/c", "rbxdocs", "builds.db"),
		DumpCacheDir(): filepath.Join("/c", "rbxdocs", "dumps"),
		LogPath():      filepath.Join("/c", "rbxdocs", "daemon.log"),
		SocketPath():   filepath.Join("/r", "rbxdocs", "daemon.sock"),
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Search.ShowDeprecated {
		t.Error("show_deprecated should default to false")
	}
	if cfg.Search.ScoreThreshold != 30 {
		t.Errorf("score_threshold = %d, want 30", cfg.Search.ScoreThreshold)
	}
	if cfg.Search.MaxResults != 25 {
		t.Errorf("max_results = %d, want 25", cfg.Search.MaxResults)
	}
	if cfg.Sources.DumpURLTemplate != DefaultDumpURLTemplate {
		t.Errorf("dump template = %q", cfg.Sources.DumpURLTemplate)
	}
	if cfg.Icons.EnumItemKey != "EnumMember" {
		t.Errorf("enum item key = %q", cfg.Icons.EnumItemKey)
	}
	if cfg.FetchTimeout() != 5*time.Minute {
		t.Errorf("fetch timeout = %s", cfg.FetchTimeout())
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir())

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "rbxdocs"), 0755); err != nil {
		t.Fatal(err)
	}
	toml := "[search]\nscore_threshold = 150\nmax_results = 0\n\n[icons]\ndir = \"/icons\"\n"
	if err := os.WriteFile(filepath.Join(dir, "rbxdocs", "config.toml"), []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RBXDOCS_SEARCH_SHOW_DEPRECATED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if !cfg.Search.ShowDeprecated {
		t.Error("env override for show_deprecated not applied")
	}
	if cfg.Search.ScoreThreshold != 100 {
		t.Errorf("threshold should clamp to 100, got %d", cfg.Search.ScoreThreshold)
	}
	if cfg.Search.MaxResults != 25 {
		t.Errorf("non-positive max_results should fall back to 25, got %d", cfg.Search.MaxResults)
	}
	if cfg.Icons.Dir != "/icons" {
		t.Errorf("icons.dir = %q", cfg.Icons.Dir)
	}
}

func TestFetchTimeout_Floor(t *testing.T) {
	cfg := &Config{Fetch: FetchConfig{TimeoutSeconds: 5}}
	if got := cfg.FetchTimeout(); got != time.Minute {
		t.Errorf("got %s, want 1m", got)
	}
}
