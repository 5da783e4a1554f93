package model

import (
	"bytes"
	"encoding/json"
)

// RemoteItem is one Omeka S item as returned by the /items endpoint.
// Only the fields the pipeline reads are decoded; everything is optional.
type RemoteItem struct {
	ID        json.Number `json:"o:id"`
	Titles    []Value     `json:"dcterms:title"`
	Subjects  []Value     `json:"dcterms:subject"`
	Dates     []Value     `json:"dcterms:date"`
	Publisher []Value     `json:"dcterms:publisher"`
	ItemSets  []Reference `json:"o:item_set"`
}

// Value is a JSON-LD property value. Literal values carry @value, linked
// resources carry display_title and value_resource_id.
type Value struct {
	Literal      Literal     `json:"@value"`
	DisplayTitle string      `json:"display_title"`
	ResourceID   json.Number `json:"value_resource_id"`
}

// Literal is a raw @value. Most data types emit strings, numeric ones
// emit JSON numbers; non-string values keep their JSON text. Valid is
// false when @value is absent or null.
type Literal struct {
	Text  string
	Valid bool
}

// NewLiteral returns a present literal
func NewLiteral(text string) Literal {
	return Literal{Text: text, Valid: true}
}

func (l *Literal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = Literal{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = NewLiteral(s)
		return nil
	}
	*l = NewLiteral(string(data))
	return nil
}

// Reference points at another resource by id (e.g. an item set)
type Reference struct {
	ID json.Number `json:"o:id"`
}

// Label returns the human-readable text of a value: display_title first,
// then the raw @value. ok is false when both are empty.
func (v Value) Label() (string, bool) {
	if v.DisplayTitle != "" {
		return v.DisplayTitle, true
	}
	if v.Literal.Text != "" {
		return v.Literal.Text, true
	}
	return "", false
}

// Identifier returns the id of the item as a string, or false if absent.
func (i RemoteItem) Identifier() (string, bool) {
	return i.ID.String(), i.ID != ""
}

// Title returns the @value of the first dcterms:title.
func (i RemoteItem) Title() (string, bool) {
	if len(i.Titles) == 0 || i.Titles[0].Literal.Text == "" {
		return "", false
	}
	return i.Titles[0].Literal.Text, true
}

// Date returns the first dcterms:date literal exactly as supplied, an
// empty string included. ok is false only when there is no @value.
func (i RemoteItem) Date() (string, bool) {
	if len(i.Dates) == 0 || !i.Dates[0].Literal.Valid {
		return "", false
	}
	return i.Dates[0].Literal.Text, true
}

// PublisherTitle returns the display title of the first dcterms:publisher.
func (i RemoteItem) PublisherTitle() (string, bool) {
	if len(i.Publisher) == 0 || i.Publisher[0].DisplayTitle == "" {
		return "", false
	}
	return i.Publisher[0].DisplayTitle, true
}

// ItemSetID returns the id of the first item set the item belongs to.
func (i RemoteItem) ItemSetID() (string, bool) {
	if len(i.ItemSets) == 0 || i.ItemSets[0].ID == "" {
		return "", false
	}
	return i.ItemSets[0].ID.String(), true
}
