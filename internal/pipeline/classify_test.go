package pipeline

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ppiankov/iwacpipe/internal/model"
)

func flatRow(subject, resourceID string) model.FlatRow {
	return model.FlatRow{
		ObservationRow: model.ObservationRow{Subject: subject, Country: "Togo"},
		ResourceID:     resourceID,
	}
}

func testTables() model.CategoryTables {
	return model.NewCategoryTables(map[model.Category]model.CategoryTable{
		model.CategoryAssociation: {"7": "AMI", "10": "UIB"},
		model.CategoryLocation:    {"20": "Cotonou"},
		model.CategoryEvent:       {"30": "Tabaski"},
		model.CategorySubject:     {"7": "Islam", "40": "Éducation"},
		model.CategoryPerson:      {"50": "El Hadj Oumarou"},
	})
}

func TestClassify(t *testing.T) {
	rows := []model.FlatRow{
		flatRow("AMI", "7"),
		flatRow("Cotonou", "20"),
		flatRow("Tabaski", "30"),
		flatRow("Éducation", "40"),
		flatRow("El Hadj Oumarou", "50"),
		flatRow("Unknown", "999"),
		flatRow("Literal", ""),
	}

	got := Classify(rows, testTables())
	if len(got) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(got))
	}

	want := []string{"Association", "Emplacement", "Évènement", "Sujet", "Individu", "", ""}
	for i, w := range want {
		var c string
		if got[i].Category != nil {
			c = string(*got[i].Category)
		}
		if c != w {
			t.Errorf("row %d (%s): category = %q, want %q", i, rows[i].Subject, c, w)
		}
		if got[i].Subject != rows[i].Subject || got[i].Country != "Togo" {
			t.Errorf("row %d fields changed: %+v", i, got[i])
		}
	}
}

func TestClassify_PriorityOnOverlap(t *testing.T) {
	got := Classify([]model.FlatRow{flatRow("Islam", "7")}, testTables())
	if got[0].Category == nil || *got[0].Category != model.CategoryAssociation {
		t.Errorf("expected Association for id in Association and Sujet tables, got %v", got[0].Category)
	}
}

func TestClassify_RowsDoNotShareCategory(t *testing.T) {
	got := Classify([]model.FlatRow{flatRow("a", "20"), flatRow("b", "30")}, testTables())
	if got[0].Category == got[1].Category {
		t.Fatal("rows share a Category pointer")
	}
}

func TestClassify_StripsJoinKey(t *testing.T) {
	got := Classify([]model.FlatRow{flatRow("Cotonou", "20")}, testTables())

	data, err := json.Marshal(got[0])
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if strings.Contains(s, "ResourceID") || strings.Contains(s, "value_resource_id") {
		t.Errorf("join key leaked into output: %s", s)
	}

	var fields map[string]any
	_ = json.Unmarshal(data, &fields)
	for _, k := range []string{"Subject", "Date", "Country", "Newspaper", "Category"} {
		if _, ok := fields[k]; !ok {
			t.Errorf("missing field %s in %s", k, s)
		}
	}
	if len(fields) != 5 {
		t.Errorf("expected exactly 5 fields, got %d: %s", len(fields), s)
	}
}

func TestClassify_EmptyTables(t *testing.T) {
	got := Classify([]model.FlatRow{flatRow("a", "1")}, model.NewCategoryTables(nil))
	if got[0].Category != nil {
		t.Errorf("expected null category, got %v", *got[0].Category)
	}
}

func TestCategoryCounts(t *testing.T) {
	rows := Classify([]model.FlatRow{
		flatRow("a", "7"), flatRow("b", "10"), flatRow("c", "50"), flatRow("d", "0"),
	}, testTables())

	counts := CategoryCounts(rows)
	if counts[model.CategoryAssociation] != 2 || counts[model.CategoryPerson] != 1 || counts[""] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}
