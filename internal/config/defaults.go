package config

import (
	"os"
	"path/filepath"

	"subtitle-studio/internal/domain"
)

// DefaultConcurrency is the translate-many limit used when settings carry none.
const DefaultConcurrency = 4

// AppDir returns the per-user directory holding settings and models.
func AppDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".subtitle-studio")
}

// DefaultSettingsPath is the settings file location for the desktop app.
func DefaultSettingsPath() string {
	return filepath.Join(AppDir(), "settings.json")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		ModelPath:      filepath.Join(AppDir(), "models"),
		WhisperPath:    "whisper-cli",
		FFmpegPath:     "ffmpeg",
		Language:       "auto",
		TargetLanguage: "English",
		Concurrency:    DefaultConcurrency,
	}
}

// withDefaults fills fields left empty by older settings files.
func withDefaults(cfg domain.Settings) domain.Settings {
	def := DefaultSettings()
	if cfg.WhisperPath == "" {
		cfg.WhisperPath = def.WhisperPath
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = def.FFmpegPath
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = def.TargetLanguage
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	return cfg
}
