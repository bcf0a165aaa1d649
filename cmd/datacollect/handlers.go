package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/elonfeng/datacollect/internal/config"
	"github.com/elonfeng/datacollect/internal/logging"
	"github.com/elonfeng/datacollect/internal/pipeline"
	"github.com/elonfeng/datacollect/internal/scheduler"
	"github.com/elonfeng/datacollect/internal/store"
	"github.com/elonfeng/datacollect/pkg/alert"
	"github.com/elonfeng/datacollect/pkg/server"
	"github.com/elonfeng/datacollect/pkg/source"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type runOpts struct {
	parallel    bool
	parallelSet bool
	outputDir   string
}

func loadConfig() (*config.Config, error) {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildFetchers(cfg *config.Config) pipeline.Fetchers {
	var social source.SocialFetcher
	if cfg.Social.Mode == "feed" {
		social = source.NewRedditFeed(cfg.Social.UserAgent)
	} else {
		social = source.NewReddit(cfg.Social.Credentials())
	}

	var prices source.PriceFetcher
	if cfg.TimeSeries.Provider == "finnhub" {
		prices = source.NewFinnhub(cfg.TimeSeries.APIKey, cfg.TimeSeries.ServerURL)
	} else {
		prices = source.NewYahoo()
	}

	return pipeline.Fetchers{
		Social: social,
		Prices: prices,
		Remote: source.NewRemote(),
	}
}

func buildPipeline(cfg *config.Config, db store.Store) (*pipeline.Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dateRange, err := cfg.TimeSeries.ParseRange()
	if err != nil {
		return nil, err
	}

	params := pipeline.Params{
		Communities: cfg.Social.Communities,
		Keyword:     cfg.Social.Keyword,
		Limit:       cfg.Social.Limit,
		Symbols:     cfg.TimeSeries.Symbols,
		Range:       dateRange,
		RemoteURL:   cfg.Remote.URL,
		OutputDir:   cfg.Output.Dir,
		Parallel:    cfg.Pipeline.Parallel,
		Timeout:     cfg.Pipeline.ParseTimeout(),
	}
	return pipeline.New(params, buildFetchers(cfg), db), nil
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

// openStore opens the run ledger, or returns nil when it is disabled.
func openStore(cfg *config.Config) (store.Store, func(), error) {
	if cfg.Database.Path == "" {
		return nil, func() {}, nil
	}
	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return db, func() { db.Close() }, nil
}

func withLogger(ctx context.Context, cfg *config.Config) (context.Context, zerolog.Logger) {
	log := logging.New(cfg.Log)
	return log.WithContext(ctx), log
}

func runOnce(ctx context.Context, opts runOpts) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.parallelSet {
		cfg.Pipeline.Parallel = opts.parallel
	}
	if opts.outputDir != "" {
		cfg.Output.Dir = opts.outputDir
	}

	ctx, log := withLogger(ctx, cfg)

	db, closeDB, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	p, err := buildPipeline(cfg, db)
	if err != nil {
		return err
	}

	res, runErr := p.Run(ctx)

	if mgr := buildAlertManager(cfg); mgr.HasNotifiers() {
		if err := mgr.Broadcast(ctx, scheduler.Notification(res, runErr)); err != nil {
			log.Warn().Err(err).Msg("alert failed")
		}
	}
	return runErr
}

func listRuns(ctx context.Context, jsonOutput bool, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, closeDB, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeDB()
	if db == nil {
		return fmt.Errorf("run ledger disabled (database.path is empty)")
	}

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("no runs recorded (try: datacollect run)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tDURATION\tOUTPUT\tERROR")
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt.Valid {
			duration = r.FinishedAt.Time.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, r.StartedAt.Format(time.RFC3339), duration, r.OutputDir, r.Error)
	}
	return w.Flush()
}

func runServe(ctx context.Context, port int, interval time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	ctx, log := withLogger(ctx, cfg)
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, closeDB, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	p, err := buildPipeline(cfg, db)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if interval > 0 {
		sched := scheduler.New(p, buildAlertManager(cfg), interval)
		g.Go(func() error {
			if err := sched.Run(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("scheduler: %w", err)
			}
			return nil
		})
	}

	srv := server.New(db, p, port, log)
	g.Go(func() error { return srv.ListenAndServe(gctx) })

	err = g.Wait()
	log.Info().Msg("shutting down")
	return err
}
