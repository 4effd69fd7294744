package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/katharinadi0523-create/ai-news-radar/internal/cli"
	"github.com/katharinadi0523-create/ai-news-radar/internal/config"
	"github.com/katharinadi0523-create/ai-news-radar/internal/db"
)

func runRuns(args []string) int {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	limit := fs.Int("limit", 20, "Maximum number of runs to list")

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
	if !cfg.LedgerEnabled() {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; the run ledger is disabled")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	ledger, err := db.Open(ctx, cfg.DatabaseURL, cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open run ledger: %v\n", err)
		return 1
	}
	defer ledger.Close()

	rows, err := ledger.RecentRuns(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return 1
	}
	if len(rows) == 0 {
		fmt.Println("no runs recorded")
		return 0
	}

	fmt.Printf("%-6s %-20s %-20s %-8s %-8s %-8s %-10s\n",
		"RUN", "OUTPUT", "GENERATED", "WINDOW", "ITEMS", "ERRORS", "DURATION")
	for _, row := range rows {
		fmt.Printf("%-6d %-20s %-20s %-8d %-8d %-8d %-10s\n",
			row.RunID,
			row.OutputName,
			row.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
			row.WindowDays,
			row.TotalItems,
			row.OfficialError,
			(time.Duration(row.DurationMS) * time.Millisecond).String(),
		)
	}
	return 0
}
