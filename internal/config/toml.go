// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Practice   PracticeConfig   `toml:"practice"`
	Thresholds ThresholdsConfig `toml:"thresholds"`
}

// PracticeConfig maps practice-related settings.
type PracticeConfig struct {
	User       *string `toml:"user"`
	Lang       *string `toml:"lang"`
	Duration   *int    `toml:"duration"`
	Mic        *bool   `toml:"mic"`
	SampleRate *int    `toml:"sample-rate"`
	LogFile    *string `toml:"log-file"`
}

// ThresholdsConfig maps speech alert limits.
type ThresholdsConfig struct {
	MaxWPM             *float64 `toml:"max-wpm"`
	PauseWindow        *string  `toml:"pause-window"`
	MinTranscriptChars *int     `toml:"min-transcript-chars"`
	StressVolume       *float64 `toml:"stress-volume"`
}

// PauseWindowDuration parses pause-window. Unset returns zero.
func (t ThresholdsConfig) PauseWindowDuration() (time.Duration, error) {
	if t.PauseWindow == nil || *t.PauseWindow == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(*t.PauseWindow)
	if err != nil {
		return 0, fmt.Errorf("invalid pause-window %q: %w", *t.PauseWindow, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("pause-window must not be negative")
	}
	return d, nil
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if _, err := cfg.Thresholds.PauseWindowDuration(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// Template is written by `pitchcoach config` when no file exists yet.
const Template = `# pitchcoach configuration

[practice]
# user = "me"
# lang = "en-US"
# duration = 5
# mic = true
# sample-rate = 16000
# log-file = ""

[thresholds]
# max-wpm = 200
# pause-window = "30s"
# min-transcript-chars = 100
# stress-volume = 150
`
