package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-goodreads/config"
	"github.com/aluiziolira/go-scrape-goodreads/models"
	"github.com/aluiziolira/go-scrape-goodreads/scraper"
)

type options struct {
	configFile   string
	url          string
	maxRecords   int
	timeout      time.Duration
	delay        time.Duration
	outputDir    string
	outputPrefix string
	format       string
	metricsFile  string
	verbose      bool
}

func newRootCmd() *cobra.Command {
	cmd, _ := newCommand()
	return cmd
}

func newCommand() (*cobra.Command, *options) {
	opts := &options{}
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "scraper",
		Short: "Scrape a Goodreads book list into a dated CSV file",
		Long: `scraper checks robots.txt, fetches one Goodreads listing page, extracts
title, author, rating and publication date for each book, and writes them to
books_data_YYYYMMDD.csv.

Settings are read from defaults, an optional YAML file (--config), a .env file,
SCRAPER_* environment variables and finally flags.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	flags.StringVar(&opts.url, "url", defaults.TargetURL, "Listing page to scrape")
	flags.IntVarP(&opts.maxRecords, "max", "n", defaults.MaxRecords, "Maximum books to extract")
	flags.DurationVar(&opts.timeout, "timeout", defaults.Timeout, "Page request timeout")
	flags.DurationVar(&opts.delay, "delay", defaults.CourtesyDelay, "Pause after the run")
	flags.StringVarP(&opts.outputDir, "output-dir", "o", defaults.OutputDir, "Directory for the output file")
	flags.StringVar(&opts.outputPrefix, "prefix", defaults.OutputPrefix, "Output file name prefix")
	flags.StringVarP(&opts.format, "format", "f", defaults.OutputFormat, "Output format: csv, json, or dual")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	return cmd, opts
}

// buildConfig layers defaults, the config file, the environment and flags
// that were set explicitly.
func buildConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configFile != "" {
		if err := cfg.LoadFile(opts.configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.TargetURL = opts.url
	}
	if flags.Changed("max") {
		cfg.MaxRecords = opts.maxRecords
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("delay") {
		cfg.CourtesyDelay = opts.delay
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = opts.outputDir
	}
	if flags.Changed("prefix") {
		cfg.OutputPrefix = opts.outputPrefix
	}
	if flags.Changed("format") {
		cfg.OutputFormat = strings.ToLower(opts.format)
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = opts.metricsFile
	}
	if flags.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, cfg *config.Config) error {
	slog.SetDefault(newLogger(os.Stderr, cfg.Verbose))

	slog.Info("starting scrape",
		slog.String("url", cfg.TargetURL),
		slog.Int("max_records", cfg.MaxRecords),
		slog.String("format", cfg.OutputFormat),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	ctx := cmd.Context()
	result := s.Run(ctx)

	if cfg.MetricsFile != "" {
		if err := s.Metrics.WriteFile(cfg.MetricsFile); err != nil {
			slog.Error("writing metrics", slog.Any("error", err))
		}
	}

	printSummary(cmd, result)

	if cfg.CourtesyDelay > 0 {
		slog.Debug("courtesy delay", slog.Duration("delay", cfg.CourtesyDelay))
		timer := time.NewTimer(cfg.CourtesyDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			slog.Info("shutdown signal received, skipping delay")
		}
	}
	return nil
}

func printSummary(cmd *cobra.Command, result *models.ScrapeResult) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetTitle("Scrape complete")

	output := result.OutputFile
	if output == "" {
		output = "(none)"
	}

	t.AppendRows([]table.Row{
		{"Permitted", result.Permitted},
		{"Fetched", result.Fetched},
		{"Entities found", result.EntityCount},
		{"Books extracted", len(result.Books)},
		{"Skipped", result.SkippedCount},
		{"Rows written", result.WrittenCount},
		{"Duration", result.EndTime.Sub(result.StartTime).Round(time.Millisecond)},
		{"Output file", output},
	})
	if len(result.ErrorsByType) > 0 {
		t.AppendRow(table.Row{"Errors", fmt.Sprint(result.ErrorsByType)})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
