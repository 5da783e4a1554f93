package pipeline

import "github.com/ppiankov/iwacpipe/internal/model"

// Classify labels every row with the first category table (in
// model.CategoryPriority order) containing its resource id, or null, and
// drops the join key.
func Classify(rows []model.FlatRow, tables model.CategoryTables) []model.ObservationRow {
	out := make([]model.ObservationRow, len(rows))
	for i, row := range rows {
		obs := row.ObservationRow
		obs.Category = nil
		if category, ok := tables.Lookup(row.ResourceID); ok {
			obs.Category = &category
		}
		out[i] = obs
	}
	return out
}

// CategoryCounts tallies rows per category; unclassified rows are
// counted under the empty category.
func CategoryCounts(rows []model.ObservationRow) map[model.Category]int {
	counts := make(map[model.Category]int)
	for _, row := range rows {
		if row.Category == nil {
			counts[""]++
			continue
		}
		counts[*row.Category]++
	}
	return counts
}
