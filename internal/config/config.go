package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	DefaultVersionURL      = "https://clientsettings.roblox.com/v1/client-version/WindowsStudio"
	DefaultDumpURLTemplate = "https://s3.amazonaws.com/setup.roblox.com/%s-API-Dump.json"
	DefaultDocsURL         = "https://raw.githubusercontent.com/MaximumADHD/Roblox-Client-Tracker/roblox/api-docs/en-us.json"
	DefaultIconListURL     = "https://api.github.com/repos/Cens-r/flow-roblox-docs/contents/Flow.Launcher.Plugin.RobloxDocs/images"
	DefaultIconURLTemplate = "https://cdn.jsdelivr.net/gh/MaximumADHD/Roblox-Client-Tracker/QtResources/icons/Dark/Roblox/16/2x/%s.png"
)

// SearchConfig holds the per-query tunables. A copy is handed to every query.
type SearchConfig struct {
	ShowDeprecated bool `mapstructure:"show_deprecated"`
	ScoreThreshold int  `mapstructure:"score_threshold"`
	MaxResults     int  `mapstructure:"max_results"`
}

type SourcesConfig struct {
	VersionURL      string `mapstructure:"version_url"`
	DumpURLTemplate string `mapstructure:"dump_url_template"`
	DocsURL         string `mapstructure:"docs_url"`
	IconListURL     string `mapstructure:"icon_list_url"`
}

type IconsConfig struct {
	// Dir switches icon resolution to a local directory of <name>.png files.
	Dir         string `mapstructure:"dir"`
	URLTemplate string `mapstructure:"url_template"`
	EnumItemKey string `mapstructure:"enum_item_key"`
}

type FetchConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

type DaemonConfig struct {
	ExpirationSeconds int `mapstructure:"expiration_seconds"`
}

type Config struct {
	Search  SearchConfig  `mapstructure:"search"`
	Sources SourcesConfig `mapstructure:"sources"`
	Icons   IconsConfig   `mapstructure:"icons"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`
}

// FetchTimeout is the overall per-request timeout. Dumps are tens of megabytes,
// so anything under a minute is raised to one.
func (c *Config) FetchTimeout() time.Duration {
	sec := c.Fetch.TimeoutSeconds
	if sec <= 0 {
		sec = 300
	}
	if sec < 60 {
		sec = 60
	}
	return time.Duration(sec) * time.Second
}

// cacheBase returns the base cache directory for rbxdocs.
// Checks XDG_CACHE_HOME, then ~/.cache, then /tmp/rbxdocs as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "rbxdocs")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".cache", "rbxdocs")
	}
	return filepath.Join(os.TempDir(), "rbxdocs")
}

// DBPath returns the path to the build history database.
func DBPath() string {
	return filepath.Join(cacheBase(), "builds.db")
}

// DumpCacheDir returns the directory holding compressed API dumps, one per client version.
func DumpCacheDir() string {
	return filepath.Join(cacheBase(), "dumps")
}

// LogPath returns the path to the daemon's log file.
func LogPath() string {
	return filepath.Join(cacheBase(), "daemon.log")
}

// SocketPath returns the path to the daemon's unix socket.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "rbxdocs", "daemon.sock")
	}
	return filepath.Join(fmt.Sprintf("/run/user/%d", os.Getuid()), "rbxdocs", "daemon.sock")
}

func setDefaults() {
	viper.SetDefault("search.show_deprecated", false)
	viper.SetDefault("search.score_threshold", 30)
	viper.SetDefault("search.max_results", 25)

	viper.SetDefault("sources.version_url", DefaultVersionURL)
	viper.SetDefault("sources.dump_url_template", DefaultDumpURLTemplate)
	viper.SetDefault("sources.docs_url", DefaultDocsURL)
	viper.SetDefault("sources.icon_list_url", DefaultIconListURL)

	viper.SetDefault("icons.dir", "")
	viper.SetDefault("icons.url_template", DefaultIconURLTemplate)
	viper.SetDefault("icons.enum_item_key", "EnumMember")

	viper.SetDefault("fetch.timeout_seconds", 300)
	viper.SetDefault("fetch.user_agent", "rbxdocs/0.1.0")

	viper.SetDefault("daemon.expiration_seconds", 600)
}

func InitializeViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		viper.AddConfigPath(filepath.Join(xdg, "rbxdocs"))
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "rbxdocs"))
	}

	setDefaults()

	viper.SetEnvPrefix("RBXDOCS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	if err := InitializeViper(); err != nil {
		return nil, err
	}
	return decode()
}

func decode() (*Config, error) {
	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Search = config.Search.normalized()
	return &config, nil
}

// normalized clamps the tunables into their valid ranges.
func (s SearchConfig) normalized() SearchConfig {
	if s.MaxResults <= 0 {
		s.MaxResults = 25
	}
	if s.ScoreThreshold < 0 {
		s.ScoreThreshold = 0
	}
	if s.ScoreThreshold > 100 {
		s.ScoreThreshold = 100
	}
	return s
}
