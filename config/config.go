package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	TargetURL     string        `yaml:"target_url"`
	MaxRecords    int           `yaml:"max_records"`
	Timeout       time.Duration `yaml:"timeout"`
	RobotsTimeout time.Duration `yaml:"robots_timeout"`
	CourtesyDelay time.Duration `yaml:"courtesy_delay"`
	UserAgent     string        `yaml:"user_agent"`
	OutputDir     string        `yaml:"output_dir"`
	OutputPrefix  string        `yaml:"output_prefix"`
	OutputFormat  string        `yaml:"output_format"` // csv, json, or dual
	MetricsFile   string        `yaml:"metrics_file"`
	Verbose       bool          `yaml:"verbose"`
}

// DefaultConfig returns the defaults for the popular-by-date listing.
func DefaultConfig() *Config {
	return &Config{
		TargetURL:     "https://www.goodreads.com/book/popular_by_date",
		MaxRecords:    20,
		Timeout:       10 * time.Second,
		RobotsTimeout: 5 * time.Second,
		CourtesyDelay: 2 * time.Second,
		UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		OutputDir:     ".",
		OutputPrefix:  "books_data",
		OutputFormat:  "csv",
		Verbose:       false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.TargetURL == "" {
		return fmt.Errorf("target URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.TargetURL)
	if err != nil {
		return fmt.Errorf("invalid target URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("target URL must include a host")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("target URL scheme must be http or https")
	}

	if c.MaxRecords <= 0 {
		return fmt.Errorf("max records must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RobotsTimeout <= 0 {
		return fmt.Errorf("robots timeout must be positive")
	}
	if c.CourtesyDelay < 0 {
		return fmt.Errorf("courtesy delay cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.OutputPrefix == "" {
		return fmt.Errorf("output prefix cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}

	return nil
}

// OutputPath returns the dated output file for the run started at now, e.g.
// books_data_20261017.csv. The json format uses a .jsonl extension; dual
// output derives its JSON sibling from the CSV path.
func (c *Config) OutputPath(now time.Time) string {
	ext := ".csv"
	if c.OutputFormat == "json" {
		ext = ".jsonl"
	}
	name := fmt.Sprintf("%s_%s%s", c.OutputPrefix, now.Format("20060102"), ext)
	if c.OutputDir == "" {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}
