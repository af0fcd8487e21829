package koha

import (
	"resource-hub/models"
)

// MARCRecord ist ein Datensatz im MARC-in-JSON-Format.
type MARCRecord struct {
	Leader string                 `json:"leader"`
	Fields []map[string]MARCField `json:"fields"`
}

// MARCField ist ein Datenfeld mit Indikatoren und geordneten Unterfeldern.
type MARCField struct {
	Ind1      string              `json:"ind1"`
	Ind2      string              `json:"ind2"`
	Subfields []map[string]string `json:"subfields"`
}

const marcLeader = "00000nam a22000007a 4500"

// tagOf gibt die Feldnummer zurück (jedes Feld-Map hat genau einen Schlüssel).
func tagOf(field map[string]MARCField) string {
	for tag := range field {
		return tag
	}
	return ""
}

// Field sucht das erste Feld mit tag.
func (r MARCRecord) Field(tag string) (MARCField, bool) {
	for _, f := range r.Fields {
		if tagOf(f) == tag {
			return f[tag], true
		}
	}
	return MARCField{}, false
}

// Count zählt die Felder mit tag.
func (r MARCRecord) Count(tag string) int {
	n := 0
	for _, f := range r.Fields {
		if tagOf(f) == tag {
			n++
		}
	}
	return n
}

func (r *MARCRecord) add(tag, ind1, ind2 string, subfields ...map[string]string) {
	r.Fields = append(r.Fields, map[string]MARCField{
		tag: {Ind1: ind1, Ind2: ind2, Subfields: subfields},
	})
}

// BuildMARC erzeugt den Titelsatz für eine Veröffentlichung. Leere optionale
// Angaben erzeugen kein Feld. locator ist der Link auf das Repository-Objekt.
func BuildMARC(meta models.PublishMetadata, locator string) MARCRecord {
	rec := MARCRecord{Leader: marcLeader}

	if meta.Language != "" && meta.Language != "en" {
		rec.add("041", "0", " ", map[string]string{"a": meta.Language})
	}
	if meta.ISSN != "" {
		rec.add("022", " ", " ", map[string]string{"a": meta.ISSN})
	}
	if meta.Authors != "" {
		rec.add("100", "1", " ", map[string]string{"a": meta.Authors})
	}
	rec.add("245", "1", "0", map[string]string{"a": meta.Title})
	if meta.OtherTitles != "" {
		rec.add("246", "3", " ", map[string]string{"a": meta.OtherTitles})
	}

	var imprint []map[string]string
	if meta.Publisher != "" {
		imprint = append(imprint, map[string]string{"b": meta.Publisher})
	}
	if meta.DateYear != "" {
		imprint = append(imprint, map[string]string{"c": meta.DateYear})
	}
	if len(imprint) > 0 {
		rec.add("260", " ", " ", imprint...)
	}

	if meta.Series != "" {
		rec.add("490", "0", " ", map[string]string{"a": meta.Series})
	}

	note := "Imported from the institutional repository"
	if locator != "" {
		note += " - Digital version: " + locator
	}
	rec.add("500", " ", " ", map[string]string{"a": note})

	if summary := meta.Summary(); summary != "" {
		rec.add("520", " ", " ", map[string]string{"a": summary})
	}
	if meta.Citation != "" {
		rec.add("524", " ", " ", map[string]string{"a": meta.Citation})
	}
	if meta.Sponsors != "" {
		rec.add("536", " ", " ", map[string]string{"a": meta.Sponsors})
	}
	for _, kw := range meta.Keywords() {
		rec.add("650", " ", "0", map[string]string{"a": kw})
	}
	rec.add("655", " ", "7", map[string]string{"a": meta.Type()})
	if locator != "" {
		rec.add("856", "4", "0",
			map[string]string{"u": locator},
			map[string]string{"z": "Access digital resource"})
	}
	return rec
}
