package pipeline

import "github.com/ppiankov/iwacpipe/internal/model"

// Flatten expands one item into one row per subject that has a label.
// Defaults for absent fields:
//   - Date: null when the item has no dated value; a supplied "" is kept
//   - Newspaper: "" when the item has no publisher title
//   - Country: "" when the item's item set is not in countries
//   - ResourceID: "" when the subject links to no resource; such rows
//     never match a category table
func Flatten(item model.RemoteItem, countries model.CountryTable) []model.FlatRow {
	if len(item.Subjects) == 0 {
		return nil
	}

	var date *string
	if d, ok := item.Date(); ok {
		date = &d
	}

	newspaper, _ := item.PublisherTitle()

	var country string
	if itemSetID, ok := item.ItemSetID(); ok {
		country, _ = countries.Country(itemSetID)
	}

	rows := make([]model.FlatRow, 0, len(item.Subjects))
	for _, subject := range item.Subjects {
		label, ok := subject.Label()
		if !ok {
			continue
		}
		rows = append(rows, model.FlatRow{
			ObservationRow: model.ObservationRow{
				Subject:   label,
				Date:      date,
				Country:   country,
				Newspaper: newspaper,
			},
			ResourceID: subject.ResourceID.String(),
		})
	}

	return rows
}
