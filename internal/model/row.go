package model

// Category is the kind of resource a subject links to
type Category string

const (
	CategoryAssociation Category = "Association"
	CategoryLocation    Category = "Emplacement"
	CategoryEvent       Category = "Évènement"
	CategorySubject     Category = "Sujet"
	CategoryPerson      Category = "Individu"
)

// CategoryPriority is the order in which category tables are consulted.
// An identifier present in several tables gets the first matching label.
var CategoryPriority = []Category{
	CategoryAssociation,
	CategoryLocation,
	CategoryEvent,
	CategorySubject,
	CategoryPerson,
}

// ObservationRow is one subject occurrence within one item.
// Field names are part of the output file format.
type ObservationRow struct {
	Subject   string    `json:"Subject"`
	Date      *string   `json:"Date"`
	Country   string    `json:"Country"`
	Newspaper string    `json:"Newspaper"`
	Category  *Category `json:"Category"`
}

// FlatRow is an observation before classification. ResourceID is the
// join key into the category tables and never leaves the pipeline.
type FlatRow struct {
	ObservationRow
	ResourceID string
}
