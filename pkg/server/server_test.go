package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/elonfeng/datacollect/internal/pipeline"
	"github.com/elonfeng/datacollect/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	res     *pipeline.Result
	err     error
	started chan struct{}
	release chan struct{}
}

func (r *stubRunner) Run(ctx context.Context) (*pipeline.Result, error) {
	if r.started != nil {
		close(r.started)
		<-r.release
	}
	return r.res, r.err
}

func newTestServer(t *testing.T, s store.Store, runner Runner) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(s, runner, 0, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func newLedger(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil, &stubRunner{})

	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRunsEndpoints(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)
	run, err := ledger.CreateRun(ctx, "datasets")
	require.NoError(t, err)
	require.NoError(t, ledger.AddDatasetStat(ctx, &store.DatasetStat{
		RunID: run.ID, Dataset: "social", Source: "reddit", RawRows: 4, CleanRows: 3, Path: "datasets/reddit_data.csv",
	}))
	require.NoError(t, ledger.FinishRun(ctx, run.ID, nil))

	srv := newTestServer(t, ledger, &stubRunner{})

	var list struct {
		Data  []store.Run `json:"data"`
		Count int         `json:"count"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/runs?limit=5", &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, store.StatusSucceeded, list.Data[0].Status)

	var detail struct {
		Run      store.Run           `json:"run"`
		Datasets []store.DatasetStat `json:"datasets"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/runs/1", &detail))
	assert.Equal(t, run.ID, detail.Run.ID)
	require.Len(t, detail.Datasets, 1)
	assert.Equal(t, 3, detail.Datasets[0].CleanRows)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/v1/runs/99", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/v1/runs/abc", nil))
}

func TestRunsWithoutLedger(t *testing.T) {
	srv := newTestServer(t, nil, &stubRunner{})
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/api/v1/runs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/api/v1/runs/1", nil))
}

func TestTrigger(t *testing.T) {
	runner := &stubRunner{res: &pipeline.Result{RunID: 9, OutputDir: "datasets"}}
	srv := newTestServer(t, nil, runner)

	resp, err := http.Post(srv.URL+"/api/v1/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Result pipeline.Result `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(9), body.Result.RunID)

	assert.Equal(t, http.StatusMethodNotAllowed, getJSON(t, srv.URL+"/api/v1/run", nil))
}

func TestTriggerFailure(t *testing.T) {
	srv := newTestServer(t, nil, &stubRunner{err: errors.New("fetch reddit: authentication failed")})

	resp, err := http.Post(srv.URL+"/api/v1/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "fetch reddit: authentication failed", body["error"])
}

func TestTriggerConflict(t *testing.T) {
	runner := &stubRunner{
		res:     &pipeline.Result{},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	srv := newTestServer(t, nil, runner)

	first := make(chan int, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/api/v1/run", "application/json", nil)
		if err != nil {
			first <- 0
			return
		}
		resp.Body.Close()
		first <- resp.StatusCode
	}()

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never started")
	}

	resp, err := http.Post(srv.URL+"/api/v1/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(runner.release)
	assert.Equal(t, http.StatusOK, <-first)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, &stubRunner{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}
