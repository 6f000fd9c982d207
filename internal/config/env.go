package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const envPrefix = "PITCHCOACH_"

// LoadDotenv loads variables from the given dotenv files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotenv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overlays PITCHCOACH_* variables onto cfg. Environment wins over
// the TOML file; CLI flags still win over both.
func ApplyEnv(cfg *FileConfig) error {
	var errs []error
	if v, ok := lookup("USER"); ok {
		cfg.Practice.User = &v
	}
	if v, ok := lookup("LANG"); ok {
		cfg.Practice.Lang = &v
	}
	if v, ok := lookup("LOG_FILE"); ok {
		cfg.Practice.LogFile = &v
	}
	if v, ok := lookup("PAUSE_WINDOW"); ok {
		cfg.Thresholds.PauseWindow = &v
		if _, err := cfg.Thresholds.PauseWindowDuration(); err != nil {
			errs = append(errs, err)
		}
	}
	envInt(&errs, "DURATION", &cfg.Practice.Duration)
	envInt(&errs, "SAMPLE_RATE", &cfg.Practice.SampleRate)
	envInt(&errs, "MIN_TRANSCRIPT_CHARS", &cfg.Thresholds.MinTranscriptChars)
	envFloat(&errs, "MAX_WPM", &cfg.Thresholds.MaxWPM)
	envFloat(&errs, "STRESS_VOLUME", &cfg.Thresholds.StressVolume)
	if v, ok := lookup("MIC"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMIC: %w", envPrefix, err))
		} else {
			cfg.Practice.Mic = &b
		}
	}
	return errors.Join(errs...)
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func envInt(errs *[]error, name string, dst **int) {
	v, ok := lookup(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
		return
	}
	*dst = &n
}

func envFloat(errs *[]error, name string, dst **float64) {
	v, ok := lookup(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
		return
	}
	*dst = &f
}
