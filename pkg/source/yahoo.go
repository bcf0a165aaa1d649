package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo fetches daily closes from the Yahoo Finance chart API.
type Yahoo struct {
	client  *http.Client
	baseURL string
}

// NewYahoo creates a new Yahoo Finance client.
func NewYahoo() *Yahoo {
	return &Yahoo{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: yahooBaseURL,
	}
}

func (y *Yahoo) Name() SourceType { return SourceYahoo }

func (y *Yahoo) FetchPrices(ctx context.Context, symbols []string, r DateRange) ([]PriceRecord, error) {
	var records []PriceRecord
	for _, sym := range symbols {
		rows, err := y.fetchSymbol(ctx, sym, r)
		if err != nil {
			return nil, err
		}
		zerolog.Ctx(ctx).Debug().Str("symbol", sym).Int("rows", len(rows)).Msg("yahoo history")
		records = append(records, rows...)
	}
	return records, nil
}

func (y *Yahoo) fetchSymbol(ctx context.Context, symbol string, r DateRange) ([]PriceRecord, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(r.Start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(r.End.Unix(), 10))
	params.Set("interval", "1d")
	params.Set("events", "history")

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(symbol), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create yahoo request %s: %w", symbol, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s history: %w", ErrNetwork, symbol, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Unknown or delisted symbol: no data, not a failure.
		zerolog.Ctx(ctx).Warn().Str("symbol", symbol).Msg("yahoo: no data found, symbol may be delisted")
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, networkErr("yahoo %s status %d", symbol, resp.StatusCode)
	}

	var chart yahooChart
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("%w: decode %s history: %w", ErrParse, symbol, err)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, nil
	}

	res := chart.Chart.Result[0]
	var closes []*float64
	if len(res.Indicators.Quote) > 0 {
		closes = res.Indicators.Quote[0].Close
	}
	loc := time.FixedZone(res.Meta.ExchangeTimezoneName, res.Meta.GMTOffset)

	var records []PriceRecord
	for i, ts := range res.Timestamp {
		local := time.Unix(ts, 0).In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		if !r.Contains(day) {
			continue
		}

		rec := PriceRecord{Date: day, Symbol: symbol}
		if i < len(closes) && closes[i] != nil {
			rec.Close = decimal.NewNullDecimal(decimal.NewFromFloat(*closes[i]))
		}
		records = append(records, rec)
	}
	return records, nil
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string `json:"symbol"`
				GMTOffset            int    `json:"gmtoffset"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}
