package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/elonfeng/datacollect/pkg/source"
	"github.com/elonfeng/datacollect/pkg/table"
	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestPostsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reddit_data.csv")
	posts := []source.SocialPost{
		{
			Title:     "BTC, ETH and \"alts\"",
			Body:      "line one\nline two, with comma",
			Author:    strPtr("satoshi"),
			Timestamp: 1700000000,
			Score:     42,
			Community: "Bitcoin",
		},
		{
			Title:     "plain",
			Body:      "",
			Author:    strPtr("hal"),
			Timestamp: 1700000123.5,
			Score:     -3,
			Community: "CryptoCurrency",
		},
	}

	require.NoError(t, Posts(path, posts))

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"title", "text", "author", "date", "upvotes", "subreddit"}, records[0])
	assert.Equal(t, "1700000000", records[1][3])

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var rows []*PostRow
	require.NoError(t, gocsv.Unmarshal(f, &rows))
	require.Len(t, rows, 2)
	for i, p := range posts {
		assert.Equal(t, p.Title, rows[i].Title)
		assert.Equal(t, p.Body, rows[i].Text)
		assert.Equal(t, *p.Author, rows[i].Author)
		assert.Equal(t, p.Timestamp, float64(rows[i].Date))
		assert.Equal(t, p.Score, rows[i].Upvotes)
		assert.Equal(t, p.Community, rows[i].Subreddit)
	}
}

func TestPostsEmptyWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reddit_data.csv")
	require.NoError(t, Posts(path, nil))

	records := readCSV(t, path)
	assert.Equal(t, [][]string{{"title", "text", "author", "date", "upvotes", "subreddit"}}, records)
}

func TestTableRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public_data.csv")
	tbl := &table.Table{
		Columns: []string{"currency", "rate", "note"},
		Rows: []table.Row{
			{"USD", json.Number("1.0"), "base"},
			{"EUR", json.Number("0.92"), "multi\nline, quoted \"text\""},
		},
	}

	require.NoError(t, Table(path, tbl))

	records := readCSV(t, path)
	assert.Equal(t, [][]string{
		{"currency", "rate", "note"},
		{"USD", "1.0", "base"},
		{"EUR", "0.92", "multi\nline, quoted \"text\""},
	}, records)
}

func TestTableHeaderOnlyWhenNoRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finance_data.csv")
	require.NoError(t, Table(path, table.New(source.PriceColumns...)))

	assert.Equal(t, [][]string{{"Date", "Close", "Ticker"}}, readCSV(t, path))
}

func TestTableEmptyProducesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public_data.csv")
	require.NoError(t, Table(path, table.New()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestTableOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public_data.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale,content\n1,2\n3,4\n"), 0o644))

	require.NoError(t, Table(path, &table.Table{Columns: []string{"a"}, Rows: []table.Row{{"x"}}}))
	assert.Equal(t, [][]string{{"a"}, {"x"}}, readCSV(t, path))
}

func TestMissingDirectoryIsIOError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")

	err := Table(filepath.Join(dir, "public_data.csv"), table.New("a"))
	assert.ErrorIs(t, err, ErrIO)

	err = Posts(filepath.Join(dir, "reddit_data.csv"), nil)
	assert.ErrorIs(t, err, ErrIO)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "exporter must not create the directory")
}
