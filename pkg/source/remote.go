package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/elonfeng/datacollect/pkg/table"
	"github.com/rs/zerolog"
)

// Remote downloads a JSON array of flat objects and tabulates it.
type Remote struct {
	client *http.Client
}

// NewRemote creates a new remote table client.
func NewRemote() *Remote {
	return &Remote{client: &http.Client{Timeout: 30 * time.Second}}
}

func (r *Remote) Name() SourceType { return SourceRemote }

// FetchTable issues one GET against url.
//
// A non-200 response is logged and yields an empty table with a nil error so the
// run can continue; the social and price fetchers fail instead. Callers rely on
// this asymmetry.
func (r *Remote) FetchTable(ctx context.Context, url string) (*table.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create remote request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		zerolog.Ctx(ctx).Warn().Str("url", url).Int("status", resp.StatusCode).Msg("error fetching remote data")
		return table.New(), nil
	}

	t, err := table.DecodeRecords(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrParse, url, err)
	}
	return t, nil
}
