package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch re-decodes the config whenever the config file changes on disk and hands
// the fresh snapshot to onChange. Decoding failures keep the old snapshot.
// It is a no-op when no config file was found.
func Watch(onChange func(*Config)) {
	if viper.ConfigFileUsed() == "" {
		return
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode()
		if err != nil {
			slog.Warn("config reload failed, keeping previous settings", "file", e.Name, "error", err)
			return
		}
		slog.Info("config reloaded", "file", e.Name,
			"threshold", cfg.Search.ScoreThreshold,
			"max_results", cfg.Search.MaxResults,
			"show_deprecated", cfg.Search.ShowDeprecated)
		onChange(cfg)
	})
	viper.WatchConfig()
}
