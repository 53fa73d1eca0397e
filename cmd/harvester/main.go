package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"postharvest/internal/browser"
	"postharvest/internal/checkpoint"
	"postharvest/internal/config"
	"postharvest/internal/domain"
	"postharvest/internal/extract"
	"postharvest/internal/sqlite"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		credsPath  string
		startDate  string
		endDate    string
		noResume   bool
	)

	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvest search-matched posts from an infinite-scroll feed",
		Long: `harvester walks a search feed backward through time, extracting
structured post records, deduplicating them, and checkpointing progress so an
interrupted crawl can resume where it stopped.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, credsPath, startDate, endDate, noResume)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "harvest.yaml", "crawl configuration file")
	cmd.Flags().StringVar(&credsPath, "credentials", "Credentials/twitter.json", "credentials JSON file")
	cmd.Flags().StringVar(&startDate, "start-date", "", "override start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "override end date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&noResume, "no-resume", false, "ignore existing savepoints and start fresh")
	return cmd
}

func run(parent context.Context, configPath, credsPath, startDate, endDate string, noResume bool) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if startDate != "" {
		cfg.Crawl.StartDate = startDate
	}
	if endDate != "" {
		cfg.Crawl.EndDate = endDate
	}

	creds, err := config.LoadCredentials(credsPath)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if creds.Email == "" {
		logger.Warn("no email configured, a suspicious-login challenge will be fatal")
	}

	query, err := domain.NewQuery(cfg.Filters.Domain())
	if err != nil {
		return fmt.Errorf("compile filters: %w", err)
	}

	store, err := checkpoint.NewStore(cfg.Output.ProcessDir, checkpoint.Format(cfg.Output.Format))
	if err != nil {
		return fmt.Errorf("create checkpoint store: %w", err)
	}

	start, err := cfg.StartUnix()
	if err != nil {
		return fmt.Errorf("resolve start date: %w", err)
	}
	end, err := cfg.EndUnix()
	if err != nil {
		return fmt.Errorf("resolve end date: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session, err := browser.NewSession(ctx, browser.Options{Headless: cfg.Output.Headless}, logger)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}

	if err := session.Login(ctx, creds.Username, creds.Password, creds.Email); err != nil {
		session.Close()
		return fmt.Errorf("login: %w", err)
	}
	logger.Info("logged in", "username", creds.Username)

	params := domain.Params{
		StartDate:        start,
		EndDate:          end,
		WaitShort:        time.Duration(cfg.Crawl.WaitShortSec) * time.Second,
		WaitLong:         time.Duration(cfg.Crawl.WaitLongSec) * time.Second,
		DetectionWait:    time.Duration(cfg.Crawl.DetectionWaitSec) * time.Second,
		MaxEmptyPages:    cfg.Crawl.MaxEmptyPages,
		AutoSave:         cfg.Output.AutoSave,
		AutoSaveInterval: cfg.Output.AutoSaveInterval,
		OnInterruption:   domain.InterruptionPolicy(cfg.Crawl.OnInterruption),
	}

	crawler := domain.NewCrawler(session, extract.New(), store, query, params, logger)

	if cfg.Resume() && !noResume {
		if _, err := crawler.Resume(); err != nil {
			session.Close()
			return fmt.Errorf("resume: %w", err)
		}
	}

	// The crawler owns the session from here; it releases it on every exit
	// path, including cancellation.
	if err := crawler.Run(ctx); err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	if cfg.Output.ArchivePath != "" {
		if err := archive(ctx, cfg.Output.ArchivePath, crawler.Collection(), logger); err != nil {
			return err
		}
	}
	return nil
}

func archive(ctx context.Context, path string, col *domain.Collection, logger *slog.Logger) error {
	repo, err := sqlite.NewRepository(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer repo.Close()

	if err := repo.SaveCollection(ctx, col); err != nil {
		return fmt.Errorf("archive collection: %w", err)
	}
	total, err := repo.CountPosts(ctx)
	if err != nil {
		return fmt.Errorf("archive collection: %w", err)
	}
	logger.Info("archived collection", "path", path, "records", col.Len(), "archive_total", total)
	return nil
}
