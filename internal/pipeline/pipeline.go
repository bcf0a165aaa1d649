// Package pipeline runs one fetch, clean and export pass over the three datasets.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/elonfeng/datacollect/internal/store"
	"github.com/elonfeng/datacollect/pkg/clean"
	"github.com/elonfeng/datacollect/pkg/export"
	"github.com/elonfeng/datacollect/pkg/source"
	"github.com/elonfeng/datacollect/pkg/table"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Output file names inside the output directory.
const (
	SocialFile = "reddit_data.csv"
	RemoteFile = "public_data.csv"
	PricesFile = "finance_data.csv"
)

// Dataset names used in results and the run ledger.
const (
	DatasetSocial = "social"
	DatasetRemote = "remote"
	DatasetPrices = "prices"
)

// Params are the fixed inputs of a run.
type Params struct {
	Communities []string
	Keyword     string
	Limit       int
	Symbols     []string
	Range       source.DateRange
	RemoteURL   string
	OutputDir   string
	Parallel    bool
	Timeout     time.Duration
}

// Fetchers are the three dataset clients.
type Fetchers struct {
	Social source.SocialFetcher
	Prices source.PriceFetcher
	Remote source.TableFetcher
}

// DatasetResult summarizes one written dataset.
type DatasetResult struct {
	Name      string            `json:"name"`
	Source    source.SourceType `json:"source"`
	RawRows   int               `json:"raw_rows"`
	CleanRows int               `json:"clean_rows"`
	Path      string            `json:"path"`
}

// Result summarizes a completed run.
type Result struct {
	RunID     int64           `json:"run_id,omitempty"`
	OutputDir string          `json:"output_dir"`
	Datasets  []DatasetResult `json:"datasets"`
	Duration  time.Duration   `json:"duration"`
}

// Pipeline wires fetchers, cleaning and export together.
type Pipeline struct {
	params   Params
	fetchers Fetchers
	store    store.Store // optional, nil = no ledger

	mu sync.Mutex // one run at a time; runs share output files
}

// New creates a pipeline. A nil store disables run recording.
func New(params Params, fetchers Fetchers, s store.Store) *Pipeline {
	return &Pipeline{params: params, fetchers: fetchers, store: s}
}

// fetched holds the raw output of the fetch stage.
type fetched struct {
	posts  []source.SocialPost
	prices []source.PriceRecord
	remote *table.Table
}

// Run executes fetch, clean and export once.
//
// A social or price fetch error aborts the run before any file is written.
// Export errors stop at the failing dataset; files already written stay on disk.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.params.Timeout)
		defer cancel()
	}

	log := zerolog.Ctx(ctx)
	started := time.Now()
	result := &Result{OutputDir: p.params.OutputDir}

	if p.store != nil {
		run, err := p.store.CreateRun(ctx, p.params.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
		result.RunID = run.ID
	}

	err := p.run(ctx, result)
	result.Duration = time.Since(started)
	runDuration.Observe(result.Duration.Seconds())

	if p.store != nil {
		// Record the outcome even when ctx has been cancelled.
		if ferr := p.store.FinishRun(context.WithoutCancel(ctx), result.RunID, err); ferr != nil {
			log.Error().Err(ferr).Int64("run_id", result.RunID).Msg("failed to record run outcome")
		}
	}
	if err != nil {
		runsTotal.WithLabelValues(store.StatusFailed).Inc()
		return result, err
	}
	runsTotal.WithLabelValues(store.StatusSucceeded).Inc()

	log.Info().
		Str("output_dir", p.params.OutputDir).
		Dur("duration", result.Duration).
		Msgf("data collection and processing complete, files saved in %q", p.params.OutputDir)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, result *Result) error {
	raw, err := p.fetch(ctx)
	if err != nil {
		return err
	}

	posts := clean.Posts(raw.posts)
	remote := clean.Table(raw.remote)
	pricesRaw := source.PricesTable(raw.prices)
	prices := clean.Table(pricesRaw)

	dir := p.params.OutputDir
	steps := []struct {
		res   DatasetResult
		write func(path string) error
	}{
		{
			res:   DatasetResult{Name: DatasetSocial, Source: p.fetchers.Social.Name(), RawRows: len(raw.posts), CleanRows: len(posts), Path: filepath.Join(dir, SocialFile)},
			write: func(path string) error { return export.Posts(path, posts) },
		},
		{
			res:   DatasetResult{Name: DatasetRemote, Source: p.fetchers.Remote.Name(), RawRows: raw.remote.Len(), CleanRows: remote.Len(), Path: filepath.Join(dir, RemoteFile)},
			write: func(path string) error { return export.Table(path, remote) },
		},
		{
			res:   DatasetResult{Name: DatasetPrices, Source: p.fetchers.Prices.Name(), RawRows: pricesRaw.Len(), CleanRows: prices.Len(), Path: filepath.Join(dir, PricesFile)},
			write: func(path string) error { return export.Table(path, prices) },
		},
	}

	for _, step := range steps {
		if err := step.write(step.res.Path); err != nil {
			return fmt.Errorf("export %s: %w", step.res.Name, err)
		}
		result.Datasets = append(result.Datasets, step.res)
		datasetRows.WithLabelValues(step.res.Name, "raw").Set(float64(step.res.RawRows))
		datasetRows.WithLabelValues(step.res.Name, "clean").Set(float64(step.res.CleanRows))
		zerolog.Ctx(ctx).Info().
			Str("dataset", step.res.Name).
			Int("raw_rows", step.res.RawRows).
			Int("clean_rows", step.res.CleanRows).
			Str("path", step.res.Path).
			Msg("dataset written")

		if p.store != nil {
			stat := &store.DatasetStat{
				RunID:     result.RunID,
				Dataset:   step.res.Name,
				Source:    string(step.res.Source),
				RawRows:   step.res.RawRows,
				CleanRows: step.res.CleanRows,
				Path:      step.res.Path,
			}
			if err := p.store.AddDatasetStat(ctx, stat); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("dataset", step.res.Name).Msg("failed to record dataset stat")
			}
		}
	}
	return nil
}

func (p *Pipeline) fetch(ctx context.Context) (*fetched, error) {
	var out fetched
	params := p.params

	fetchSocial := func(ctx context.Context) error {
		posts, err := p.fetchers.Social.FetchPosts(ctx, params.Communities, params.Keyword, params.Limit)
		if err != nil {
			fetchErrorsTotal.WithLabelValues(string(p.fetchers.Social.Name())).Inc()
			return fmt.Errorf("fetch %s: %w", p.fetchers.Social.Name(), err)
		}
		out.posts = posts
		return nil
	}
	fetchPrices := func(ctx context.Context) error {
		prices, err := p.fetchers.Prices.FetchPrices(ctx, params.Symbols, params.Range)
		if err != nil {
			fetchErrorsTotal.WithLabelValues(string(p.fetchers.Prices.Name())).Inc()
			return fmt.Errorf("fetch %s: %w", p.fetchers.Prices.Name(), err)
		}
		out.prices = prices
		return nil
	}
	fetchRemote := func(ctx context.Context) error {
		t, err := p.fetchers.Remote.FetchTable(ctx, params.RemoteURL)
		if err != nil {
			fetchErrorsTotal.WithLabelValues(string(p.fetchers.Remote.Name())).Inc()
			return fmt.Errorf("fetch %s: %w", p.fetchers.Remote.Name(), err)
		}
		out.remote = t
		return nil
	}

	steps := []func(context.Context) error{fetchSocial, fetchPrices, fetchRemote}

	if !params.Parallel {
		for _, step := range steps {
			if err := step(ctx); err != nil {
				return nil, err
			}
		}
		return &out, nil
	}

	// Each step writes only its own field of out.
	g, gctx := errgroup.WithContext(ctx)
	for _, step := range steps {
		g.Go(func() error { return step(gctx) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}
