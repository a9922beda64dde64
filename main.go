package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"nba-stats-scraper/config"
	"nba-stats-scraper/db"
	"nba-stats-scraper/fetcher"
	"nba-stats-scraper/notify"
	"nba-stats-scraper/pipeline"
	"nba-stats-scraper/sheets"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	workers := flag.Int("workers", 1, "Number of browser sessions to run side by side")
	anonymizePath := flag.String("anonymize", "", "Only anonymize a previously written dataset (CSV path)")
	spreadsheetURL := flag.String("spreadsheet", "", "Google Sheets URL to export the synthetic dataset to (optional)")
	credentialsPath := flag.String("credentials", "", "Path to Google service account credentials JSON file (or use GOOGLE_SHEETS_CREDENTIALS env var)")
	useDB := flag.Bool("db", false, "Record the run in Postgres (DATABASE_URL or DB_* env vars)")
	flag.Parse()

	cfg := loadConfig(*configPath)
	if *spreadsheetURL != "" {
		cfg.Sheets.SpreadsheetURL = *spreadsheetURL
	}
	if *credentialsPath != "" {
		cfg.Sheets.Credentials = *credentialsPath
	}

	start := time.Now()

	if *anonymizePath != "" {
		paths, err := pipeline.AnonymizeFile(cfg, *anonymizePath)
		if err != nil {
			log.Fatalf("Anonymization failed: %v\n", err)
		}
		for _, p := range paths {
			fmt.Printf("Saved %s\n", p)
		}
		fmt.Printf("Elapsed time: %s\n", time.Since(start).Round(time.Millisecond))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg, pipeline.RodSessions(cfg), fetcher.NewRobotsChecker(cfg.Site.UserAgent, cfg.Proxy.ProbeTimeout), *workers)

	if *useDB {
		database, err := db.NewDB()
		if err != nil {
			log.Fatalf("Error: Failed to initialize database: %v\n", err)
		}
		defer database.Close()
		log.Println("Database initialized successfully")
		p.Store = database
	}

	if cfg.Sheets.SpreadsheetURL != "" {
		spreadsheetID := sheets.ExtractSpreadsheetID(cfg.Sheets.SpreadsheetURL)
		if spreadsheetID == "" {
			log.Printf("Warning: Could not extract spreadsheet ID from URL: %s\n", cfg.Sheets.SpreadsheetURL)
		} else if writer, err := sheets.NewWriter(ctx, spreadsheetID, cfg.Sheets.Credentials); err != nil {
			log.Printf("Warning: Failed to initialize Google Sheets writer: %v\n", err)
		} else {
			p.Exporter = writer
			p.SpreadsheetURL = cfg.Sheets.SpreadsheetURL
		}
	}

	if token := config.GetEnvOrDefault("TELEGRAM_BOT_TOKEN", ""); token != "" && cfg.Telegram.ChatID != 0 {
		notifier, err := notify.NewTelegram(token, cfg.Telegram.ChatID)
		if err != nil {
			log.Printf("Warning: Telegram notifications disabled: %v\n", err)
		} else {
			p.Notifier = notifier
		}
	}

	result, err := p.Run(ctx)
	if result != nil {
		for _, f := range result.Files {
			fmt.Printf("Saved %s\n", f)
		}
		if result.SheetURL != "" {
			fmt.Printf("View spreadsheet: %s\n", result.SheetURL)
		}
		if n := result.Skipped(); n > 0 {
			fmt.Printf("%d filter combinations were skipped\n", n)
		}
	}
	fmt.Printf("Elapsed time: %s\n", time.Since(start).Round(time.Millisecond))
	if err != nil {
		log.Fatalf("Run failed: %v\n", err)
	}
}

// loadConfig reads the configuration file, falling back to defaults, and
// applies environment overrides
func loadConfig(configPath string) *config.Config {
	var cfg *config.Config
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			log.Printf("Warning: Failed to load config file: %v. Using defaults.\n", err)
			cfg = config.GetDefaultConfig()
		}
	} else {
		log.Println("Config file not found. Using default configuration.")
		cfg = config.GetDefaultConfig()
	}

	cfg.Site.BaseURL = config.GetEnvOrDefault("NBA_BASE_URL", cfg.Site.BaseURL)
	cfg.Output.Dir = config.GetEnvOrDefault("OUTPUT_DIR", cfg.Output.Dir)
	if chatID := config.GetEnvOrDefault("TELEGRAM_CHAT_ID", ""); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			log.Printf("Warning: Invalid TELEGRAM_CHAT_ID %q: %v\n", chatID, err)
		} else {
			cfg.Telegram.ChatID = id
		}
	}
	return cfg
}
