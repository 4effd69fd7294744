package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/katharinadi0523-create/ai-news-radar/internal/cli"
	"github.com/katharinadi0523-create/ai-news-radar/internal/config"
	"github.com/katharinadi0523-create/ai-news-radar/internal/db"
	"github.com/katharinadi0523-create/ai-news-radar/internal/fetch"
	"github.com/katharinadi0523-create/ai-news-radar/internal/globaltime"
	"github.com/katharinadi0523-create/ai-news-radar/internal/langdetect"
	"github.com/katharinadi0523-create/ai-news-radar/internal/logging"
	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
	watchschema "github.com/katharinadi0523-create/ai-news-radar/schema"
)

func runBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	input := fs.String("input", "", "Input latest JSON file (default from RADAR_INPUT)")
	archive := fs.String("archive", "", "Input archive JSON file (default from RADAR_ARCHIVE)")
	configPath := fs.String("config", "", "Watchlist configuration JSON (default from RADAR_WATCHLISTS)")
	outputSpecial := fs.String("output-special", "", "Output JSON for special focus (default from RADAR_OUTPUT_SPECIAL)")
	outputCompetitor := fs.String("output-competitor", "", "Output JSON for competitor monitor (default from RADAR_OUTPUT_COMPETITOR)")
	specialWindowDays := fs.Int("special-window-days", 0, "Window days for special focus (default from RADAR_SPECIAL_WINDOW_DAYS)")
	competitorWindowDays := fs.Int("competitor-window-days", 0, "Window days for competitor monitor (default from RADAR_COMPETITOR_WINDOW_DAYS)")
	skipOfficial := fs.Bool("skip-official", false, "Skip official channel fetching (archive records only)")
	timeout := fs.Duration("timeout", 0, "Per-request fetch timeout (default from RADAR_FETCH_TIMEOUT)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	applyStringFlag(input, &cfg.InputPath)
	applyStringFlag(archive, &cfg.ArchivePath)
	applyStringFlag(configPath, &cfg.WatchlistConfigPath)
	applyStringFlag(outputSpecial, &cfg.OutputSpecialPath)
	applyStringFlag(outputCompetitor, &cfg.OutputCompetitorPath)
	if *specialWindowDays > 0 {
		cfg.SpecialWindowDays = *specialWindowDays
	}
	if *competitorWindowDays > 0 {
		cfg.CompetitorWindowDays = *competitorWindowDays
	}
	if *timeout > 0 {
		cfg.FetchTimeout = *timeout
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	rawConfig, err := os.ReadFile(cfg.WatchlistConfigPath)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.WatchlistConfigPath).Msg("read watchlist config failed")
		return 1
	}
	watchlists, err := watchschema.ValidateWatchlistConfig(rawConfig)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.WatchlistConfigPath).Msg("watchlist config invalid")
		return 1
	}

	archiveItems, err := watch.LoadArchive(cfg.ArchivePath)
	if err != nil {
		logger.Error().Err(err).Msg("load archive failed")
		return 1
	}
	meta, err := watch.LoadLatestMeta(cfg.InputPath)
	if err != nil {
		logger.Error().Err(err).Msg("load latest metadata failed")
		return 1
	}

	if cfg.DetectLanguage {
		archiveItems = fillLanguages(archiveItems)
	}

	var fetcher watch.OfficialFetcher
	if !*skipOfficial {
		fetcher = fetch.NewOfficials(fetch.NewClient(cfg.FetchTimeout), cfg.FetchWorkers, logger)
	}

	var ledger *db.Ledger
	if cfg.LedgerEnabled() {
		dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
		ledger, err = db.Open(dbCtx, cfg.DatabaseURL, cfg.LogLevel, cfg.Environment)
		dbCancel()
		if err != nil {
			logger.Warn().Err(err).Msg("run ledger unavailable, continuing without it")
			ledger = nil
		} else {
			defer ledger.Close()
		}
	}

	ctx := context.Background()
	outputs := []struct {
		name       string
		path       string
		windowDays int
		categories []watch.Category
	}{
		{
			name:       watch.OutputSpecialFocus,
			path:       cfg.OutputSpecialPath,
			windowDays: cfg.SpecialWindowDays,
			categories: watch.NormalizeCategories(watchlists.SpecialFocus),
		},
		{
			name:       watch.OutputCompetitorMonitor,
			path:       cfg.OutputCompetitorPath,
			windowDays: cfg.CompetitorWindowDays,
			categories: watch.NormalizeCategories(watchlists.CompetitorMonitor),
		},
	}

	for _, out := range outputs {
		started := globaltime.UTC()
		payload := watch.BuildPayload(ctx, started, watch.PayloadRequest{
			SourceGeneratedAt: meta.GeneratedAt,
			SourceWindowHours: meta.WindowHours,
			SourceTopicFilter: meta.TopicFilter,
			ArchiveItems:      archiveItems,
			Categories:        out.categories,
			MaxItems:          watchlists.MaxItems(),
			OutputName:        out.name,
			WindowDays:        out.windowDays,
			Fetcher:           fetcher,
		})

		if err := writeDataset(out.path, payload); err != nil {
			logger.Error().Err(err).Str("output", out.name).Msg("write dataset failed")
			return 1
		}
		logger.Info().
			Str("output", out.name).
			Str("path", out.path).
			Int("total_items", payload.TotalItems).
			Int("official_errors", payload.OfficialErrorCount).
			Msg("dataset written")
		fmt.Printf("Wrote: %s (%d items)\n", out.path, payload.TotalItems)

		if ledger != nil {
			run := &db.WatchRun{
				OutputName:    payload.OutputName,
				GeneratedAt:   started,
				WindowDays:    payload.WindowDays,
				SectionCount:  payload.SectionCount,
				TotalItems:    payload.TotalItems,
				OfficialError: payload.OfficialErrorCount,
				DurationMS:    globaltime.UTC().Sub(started).Milliseconds(),
			}
			if err := ledger.RecordRun(ctx, run); err != nil {
				logger.Warn().Err(err).Str("output", out.name).Msg("record run failed")
			}
		}
	}

	return 0
}

func applyStringFlag(value *string, target *string) {
	if value != nil && *value != "" {
		*target = *value
	}
}

// fillLanguages tags records that carry no language with a detected
// title language. Detection failures leave the field empty.
func fillLanguages(items []watch.Record) []watch.Record {
	out := make([]watch.Record, 0, len(items))
	for _, item := range items {
		if item.Language == "" {
			item.Language = langdetect.DetectISO6391(item.Title)
		}
		out = append(out, item)
	}
	return out
}

// writeDataset renders the payload the way the downstream viewers
// expect: two-space indent, unescaped non-ASCII and HTML.
func writeDataset(path string, payload watch.Payload) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
