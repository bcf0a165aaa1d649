package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elonfeng/datacollect/pkg/table"
	"github.com/shopspring/decimal"
)

// SourceType identifies which platform a dataset came from.
type SourceType string

const (
	SourceReddit     SourceType = "reddit"
	SourceRedditFeed SourceType = "reddit-feed"
	SourceYahoo      SourceType = "yahoo"
	SourceFinnhub    SourceType = "finnhub"
	SourceRemote     SourceType = "remote"
)

var (
	// ErrAuthentication means API credentials were missing or rejected.
	ErrAuthentication = errors.New("authentication failed")
	// ErrNetwork means an API could not be reached or answered with an unexpected status.
	ErrNetwork = errors.New("network error")
	// ErrParse means a response body could not be decoded.
	ErrParse = errors.New("parse error")
)

const userAgent = "datacollect/1.0"

// SocialPost is one post returned by a community keyword search.
type SocialPost struct {
	Title     string
	Body      string
	Author    *string // nil when the platform reports no author
	Timestamp float64 // epoch seconds
	Score     int
	Community string
}

// HasMissing reports whether any field holds the missing marker.
func (p SocialPost) HasMissing() bool {
	return p.Author == nil
}

// PriceRecord is one daily close for one symbol.
type PriceRecord struct {
	Date   time.Time
	Close  decimal.NullDecimal
	Symbol string
}

// DateRange is the half-open interval [Start, End) of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// SocialFetcher searches communities for posts matching a keyword.
type SocialFetcher interface {
	Name() SourceType
	FetchPosts(ctx context.Context, communities []string, keyword string, limit int) ([]SocialPost, error)
}

// PriceFetcher retrieves daily closing prices.
type PriceFetcher interface {
	Name() SourceType
	FetchPrices(ctx context.Context, symbols []string, r DateRange) ([]PriceRecord, error)
}

// TableFetcher retrieves a remote JSON array as a table.
type TableFetcher interface {
	Name() SourceType
	FetchTable(ctx context.Context, url string) (*table.Table, error)
}

// PriceColumns is the column schema of a price table.
var PriceColumns = []string{"Date", "Close", "Ticker"}

// PricesTable flattens price records into a table with PriceColumns.
// A null close becomes a missing cell.
func PricesTable(records []PriceRecord) *table.Table {
	t := table.New(PriceColumns...)
	for _, rec := range records {
		var closeCell any
		if rec.Close.Valid {
			closeCell = rec.Close.Decimal.String()
		}
		t.Rows = append(t.Rows, table.Row{rec.Date.Format(time.DateOnly), closeCell, rec.Symbol})
	}
	return t
}

func networkErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNetwork, fmt.Sprintf(format, args...))
}
