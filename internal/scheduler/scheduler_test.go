package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/elonfeng/datacollect/internal/pipeline"
	"github.com/elonfeng/datacollect/pkg/alert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRunner) Run(ctx context.Context) (*pipeline.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return &pipeline.Result{RunID: int64(r.calls)}, r.err
	}
	return &pipeline.Result{
		RunID:     int64(r.calls),
		OutputDir: "datasets",
		Datasets:  []pipeline.DatasetResult{{Name: pipeline.DatasetSocial, CleanRows: 2, Path: "datasets/reddit_data.csv"}},
		Duration:  1500 * time.Millisecond,
	}, nil
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type recorder struct {
	mu   sync.Mutex
	sent []*alert.Notification
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Send(ctx context.Context, n *alert.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) notifications() []*alert.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*alert.Notification(nil), r.sent...)
}

func TestNotificationSuccess(t *testing.T) {
	n := Notification(&pipeline.Result{
		RunID:     4,
		OutputDir: "datasets",
		Datasets:  []pipeline.DatasetResult{{Name: "social", CleanRows: 5, Path: "datasets/reddit_data.csv"}},
		Duration:  2 * time.Second,
	}, nil)

	assert.True(t, n.Succeeded)
	assert.Equal(t, int64(4), n.RunID)
	assert.Equal(t, "1 datasets written to datasets in 2s", n.Body)
	assert.Equal(t, []alert.DatasetSummary{{Name: "social", CleanRows: 5, Path: "datasets/reddit_data.csv"}}, n.Datasets)
}

func TestNotificationFailure(t *testing.T) {
	n := Notification(nil, errors.New("fetch reddit: network error"))
	assert.False(t, n.Succeeded)
	assert.Equal(t, "datacollect run failed", n.Title)
	assert.Equal(t, "fetch reddit: network error", n.Body)
	assert.Zero(t, n.RunID)
}

func TestRunInitialPassThenStops(t *testing.T) {
	runner := &countingRunner{}
	rec := &recorder{}
	s := New(runner, alert.NewManager([]alert.Notifier{rec}), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}

	sent := rec.notifications()
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Succeeded)
}

func TestRunRepeatsOnInterval(t *testing.T) {
	runner := &countingRunner{err: errors.New("boom")}
	rec := &recorder{}
	s := New(runner, alert.NewManager([]alert.Notifier{rec}), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, func() bool { return runner.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	for _, n := range rec.notifications() {
		assert.False(t, n.Succeeded)
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	assert.Equal(t, 24*time.Hour, New(&countingRunner{}, nil, 0).interval)
}
