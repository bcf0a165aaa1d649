// Package clean removes incomplete and duplicate records from fetched datasets.
//
// All functions return new values and keep surviving records in their original
// relative order.
package clean

import (
	"github.com/elonfeng/datacollect/pkg/source"
	"github.com/elonfeng/datacollect/pkg/table"
)

// Posts drops every post that has a missing field.
//
// Unlike Table, it does not remove duplicates. The asymmetry matches the
// historical output of the social dataset and is kept on purpose.
func Posts(posts []source.SocialPost) []source.SocialPost {
	out := make([]source.SocialPost, 0, len(posts))
	for _, p := range posts {
		if p.HasMissing() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Table drops exact-duplicate rows, then rows containing a missing cell.
func Table(t *table.Table) *table.Table {
	return DropMissing(DropDuplicates(t))
}

// DropDuplicates keeps the first occurrence of each distinct row.
func DropDuplicates(t *table.Table) *table.Table {
	out := table.New()
	if t == nil {
		return out
	}
	out.Columns = append(out.Columns, t.Columns...)

	seen := make(map[string]struct{}, len(t.Rows))
	for _, r := range t.Rows {
		key := r.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.Rows = append(out.Rows, append(table.Row(nil), r...))
	}
	return out
}

// DropMissing removes rows with at least one missing cell.
func DropMissing(t *table.Table) *table.Table {
	out := table.New()
	if t == nil {
		return out
	}
	out.Columns = append(out.Columns, t.Columns...)

	for _, r := range t.Rows {
		if r.HasMissing() {
			continue
		}
		out.Rows = append(out.Rows, append(table.Row(nil), r...))
	}
	return out
}
