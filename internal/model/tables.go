package model

import (
	"fmt"
	"sort"
)

// CategoryTable maps a resource identifier to its title
type CategoryTable map[string]string

// CategoryTables holds one table per category. It is built once per run
// and only read afterwards.
type CategoryTables struct {
	tables map[Category]CategoryTable
}

// NewCategoryTables wraps the given tables. Missing categories behave
// as empty tables.
func NewCategoryTables(tables map[Category]CategoryTable) CategoryTables {
	copied := make(map[Category]CategoryTable, len(tables))
	for c, t := range tables {
		copied[c] = t
	}
	return CategoryTables{tables: copied}
}

// Lookup resolves an identifier in priority order.
func (t CategoryTables) Lookup(id string) (Category, bool) {
	if id == "" {
		return "", false
	}
	for _, c := range CategoryPriority {
		if _, ok := t.tables[c][id]; ok {
			return c, true
		}
	}
	return "", false
}

// Overlap describes an identifier found in more than one table
type Overlap struct {
	ID         string
	Categories []Category
}

func (o Overlap) String() string {
	return fmt.Sprintf("%s in %v", o.ID, o.Categories)
}

// Overlaps lists identifiers present in more than one table, sorted by id.
// Categories of each overlap follow CategoryPriority, so the first one is
// the label Lookup returns.
func (t CategoryTables) Overlaps() []Overlap {
	seen := make(map[string][]Category)
	for _, c := range CategoryPriority {
		for id := range t.tables[c] {
			seen[id] = append(seen[id], c)
		}
	}

	var overlaps []Overlap
	for id, cats := range seen {
		if len(cats) > 1 {
			overlaps = append(overlaps, Overlap{ID: id, Categories: cats})
		}
	}
	sort.Slice(overlaps, func(i, j int) bool { return overlaps[i].ID < overlaps[j].ID })
	return overlaps
}

// CountryTable is an immutable item-set id to country lookup
type CountryTable struct {
	byItemSet map[string]string
}

// NewCountryTable builds the lookup from the configured countries.
// An item set listed under two different countries is an error.
func NewCountryTable(countries []CountryConfig) (CountryTable, error) {
	byItemSet := make(map[string]string)
	for _, c := range countries {
		for _, id := range c.ItemSets {
			if prev, exists := byItemSet[id]; exists && prev != c.Name {
				return CountryTable{}, fmt.Errorf("item set %s assigned to both %q and %q", id, prev, c.Name)
			}
			byItemSet[id] = c.Name
		}
	}
	return CountryTable{byItemSet: byItemSet}, nil
}

// Country returns the country an item set belongs to.
func (t CountryTable) Country(itemSetID string) (string, bool) {
	name, ok := t.byItemSet[itemSetID]
	return name, ok
}
