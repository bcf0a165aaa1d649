package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Finnhub fetches daily closes from the Finnhub stock candles endpoint.
type Finnhub struct {
	client *finnhub.DefaultApiService
}

// NewFinnhub creates a Finnhub client. An empty serverURL uses the public API.
func NewFinnhub(apiKey, serverURL string) *Finnhub {
	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	if serverURL != "" {
		cfg.Servers = finnhub.ServerConfigurations{{URL: serverURL}}
	}
	return &Finnhub{client: finnhub.NewAPIClient(cfg).DefaultApi}
}

func (f *Finnhub) Name() SourceType { return SourceFinnhub }

func (f *Finnhub) FetchPrices(ctx context.Context, symbols []string, r DateRange) ([]PriceRecord, error) {
	var records []PriceRecord
	for _, sym := range symbols {
		rows, err := f.fetchSymbol(ctx, sym, r)
		if err != nil {
			return nil, err
		}
		zerolog.Ctx(ctx).Debug().Str("symbol", sym).Int("rows", len(rows)).Msg("finnhub candles")
		records = append(records, rows...)
	}
	return records, nil
}

func (f *Finnhub) fetchSymbol(ctx context.Context, symbol string, r DateRange) ([]PriceRecord, error) {
	candles, resp, err := f.client.StockCandles(ctx).
		Symbol(symbol).
		Resolution("D").
		From(r.Start.Unix()).
		To(r.End.Unix() - 1).
		Execute()
	if err != nil {
		if resp == nil {
			return nil, fmt.Errorf("%w: fetch %s candles: %w", ErrNetwork, symbol, err)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: finnhub %s status %d", ErrAuthentication, symbol, resp.StatusCode)
		}
		return nil, networkErr("finnhub %s status %d", symbol, resp.StatusCode)
	}

	if candles.GetS() == "no_data" {
		return nil, nil
	}

	closes := candles.GetC()
	var records []PriceRecord
	for i, ts := range candles.GetT() {
		t := time.Unix(ts, 0).UTC()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if !r.Contains(day) {
			continue
		}

		rec := PriceRecord{Date: day, Symbol: symbol}
		if i < len(closes) {
			rec.Close = decimal.NewNullDecimal(decimal.NewFromFloat32(closes[i]))
		}
		records = append(records, rec)
	}
	return records, nil
}
