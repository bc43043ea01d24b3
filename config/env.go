package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvString returns the trimmed value of key and whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvDuration parses key as a Go duration such as "1500ms" or "2s".
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, true, nil
}

// ApplyEnv overlays SCRAPER_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	if value, ok := EnvString("SCRAPER_URL"); ok {
		c.TargetURL = value
	}
	if value, ok, err := EnvInt("SCRAPER_MAX_RECORDS"); err != nil {
		return err
	} else if ok {
		c.MaxRecords = value
	}
	if value, ok, err := EnvDuration("SCRAPER_TIMEOUT"); err != nil {
		return err
	} else if ok {
		c.Timeout = value
	}
	if value, ok, err := EnvDuration("SCRAPER_ROBOTS_TIMEOUT"); err != nil {
		return err
	} else if ok {
		c.RobotsTimeout = value
	}
	if value, ok, err := EnvDuration("SCRAPER_DELAY"); err != nil {
		return err
	} else if ok {
		c.CourtesyDelay = value
	}
	if value, ok := EnvString("SCRAPER_USER_AGENT"); ok {
		c.UserAgent = value
	}
	if value, ok := EnvString("SCRAPER_OUTPUT_DIR"); ok {
		c.OutputDir = value
	}
	if value, ok := EnvString("SCRAPER_OUTPUT_PREFIX"); ok {
		c.OutputPrefix = value
	}
	if value, ok := EnvString("SCRAPER_FORMAT"); ok {
		c.OutputFormat = strings.ToLower(value)
	}
	if value, ok := EnvString("SCRAPER_METRICS_FILE"); ok {
		c.MetricsFile = value
	}
	return nil
}

// LoadFile overlays the YAML document at path onto c. Keys missing from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("decode config file %q: %w", path, err)
	}
	c.OutputFormat = strings.ToLower(c.OutputFormat)
	return nil
}
