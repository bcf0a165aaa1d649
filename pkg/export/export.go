// Package export writes cleaned datasets to CSV files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/elonfeng/datacollect/pkg/source"
	"github.com/elonfeng/datacollect/pkg/table"
	"github.com/gocarina/gocsv"
)

// ErrIO means the destination file could not be created or written.
var ErrIO = errors.New("io error")

var postHeader = []string{"title", "text", "author", "date", "upvotes", "subreddit"}

// PostRow is the on-disk layout of the social dataset.
type PostRow struct {
	Title     string       `csv:"title"`
	Text      string       `csv:"text"`
	Author    string       `csv:"author"`
	Date      EpochSeconds `csv:"date"`
	Upvotes   int          `csv:"upvotes"`
	Subreddit string       `csv:"subreddit"`
}

// EpochSeconds is a Unix timestamp written in plain decimal notation.
type EpochSeconds float64

func (e EpochSeconds) MarshalCSV() (string, error) {
	return strconv.FormatFloat(float64(e), 'f', -1, 64), nil
}

func (e *EpochSeconds) UnmarshalCSV(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*e = EpochSeconds(v)
	return nil
}

// Posts writes posts with the fixed header title,text,author,date,upvotes,subreddit.
// The destination is created or truncated; its directory must already exist.
func Posts(path string, posts []source.SocialPost) error {
	rows := make([]*PostRow, 0, len(posts))
	for _, p := range posts {
		row := &PostRow{
			Title:     p.Title,
			Text:      p.Body,
			Date:      EpochSeconds(p.Timestamp),
			Upvotes:   p.Score,
			Subreddit: p.Community,
		}
		if p.Author != nil {
			row.Author = *p.Author
		}
		rows = append(rows, row)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	if len(rows) == 0 {
		w := csv.NewWriter(f)
		w.Write(postHeader)
		w.Flush()
		if err := w.Error(); err != nil {
			return fmt.Errorf("%w: write %s: %w", ErrIO, path, err)
		}
		return f.Close()
	}

	if err := gocsv.Marshal(rows, f); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, path, err)
	}
	return f.Close()
}

// Table writes t with a header taken from its columns and no index column.
// A table with no columns produces an empty file.
func Table(path string, t *table.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	if t == nil || len(t.Columns) == 0 {
		return f.Close()
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, path, err)
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = table.FormatCell(row[i])
			}
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("%w: write %s: %w", ErrIO, path, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, path, err)
	}
	return f.Close()
}
