package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/elonfeng/datacollect/internal/pipeline"
	"github.com/elonfeng/datacollect/pkg/alert"
	"github.com/rs/zerolog"
)

// Runner executes one pipeline pass.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// Scheduler runs the pipeline periodically.
type Scheduler struct {
	runner   Runner
	alertMgr *alert.Manager
	interval time.Duration
}

// New creates a new scheduler.
func New(runner Runner, alertMgr *alert.Manager, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		runner:   runner,
		alertMgr: alertMgr,
		interval: interval,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Msg("scheduler: initial run")
	s.runOnce(ctx)

	log.Info().Dur("interval", s.interval).Msg("scheduler: running")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	log := zerolog.Ctx(ctx)

	res, err := s.runner.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduler: run failed")
	}

	if !s.alertMgr.HasNotifiers() {
		return
	}
	if aerr := s.alertMgr.Broadcast(ctx, Notification(res, err)); aerr != nil {
		log.Warn().Err(aerr).Msg("scheduler: alert failed")
	}
}

// Notification builds the alert for a finished run. res may be nil.
func Notification(res *pipeline.Result, err error) *alert.Notification {
	n := &alert.Notification{
		Title:     "datacollect run succeeded",
		Succeeded: err == nil,
	}
	if err != nil {
		n.Title = "datacollect run failed"
		n.Body = err.Error()
	}
	if res == nil {
		return n
	}

	n.RunID = res.RunID
	if err == nil {
		n.Body = fmt.Sprintf("%d datasets written to %s in %s",
			len(res.Datasets), res.OutputDir, res.Duration.Round(time.Millisecond))
	}
	for _, d := range res.Datasets {
		n.Datasets = append(n.Datasets, alert.DatasetSummary{
			Name:      d.Name,
			CleanRows: d.CleanRows,
			Path:      d.Path,
		})
	}
	return n
}
