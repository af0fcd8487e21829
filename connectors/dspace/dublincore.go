package dspace

import "resource-hub/models"

// DCField ist ein Dublin-Core-Feld mit seinen Werten und dem Formularabschnitt,
// in dem es bei der Einreichung gesetzt wird.
type DCField struct {
	Name    string
	Section string
	Values  []string
}

const (
	sectionPageOne = "traditionalpageone"
	sectionPageTwo = "traditionalpagetwo"
)

// BuildDublinCore bildet die Upload-Angaben auf Dublin Core ab. dc.title und
// dc.type werden immer gesetzt, alle anderen Felder nur mit Wert.
func BuildDublinCore(meta models.PublishMetadata) []DCField {
	fields := []DCField{
		{Name: "dc.title", Section: sectionPageOne, Values: []string{meta.Title}},
		{Name: "dc.type", Section: sectionPageOne, Values: []string{meta.Type()}},
	}
	add := func(name, section string, values ...string) {
		var vals []string
		for _, v := range values {
			if v != "" {
				vals = append(vals, v)
			}
		}
		if len(vals) > 0 {
			fields = append(fields, DCField{Name: name, Section: section, Values: vals})
		}
	}

	add("dc.contributor.author", sectionPageOne, meta.Authors)
	add("dc.title.alternative", sectionPageOne, meta.OtherTitles)
	add("dc.date.issued", sectionPageOne, meta.IssuedDate())
	add("dc.publisher", sectionPageOne, meta.Publisher)
	add("dc.identifier.citation", sectionPageOne, meta.Citation)
	add("dc.relation.ispartofseries", sectionPageOne, joinSeries(meta.Series, meta.ReportNo))
	add("dc.identifier.issn", sectionPageOne, meta.ISSN)
	add("dc.language.iso", sectionPageOne, meta.Language)
	add("dc.subject", sectionPageTwo, meta.Keywords()...)
	add("dc.description.abstract", sectionPageTwo, meta.Abstract)
	add("dc.description.sponsorship", sectionPageTwo, meta.Sponsors)
	add("dc.description", sectionPageTwo, meta.Description)
	return fields
}

// joinSeries folgt der DSpace-Konvention "Reihe;Nummer".
func joinSeries(series, number string) string {
	switch {
	case series == "":
		return ""
	case number == "":
		return series
	default:
		return series + ";" + number
	}
}

// patchOps übersetzt die Felder in Patch-Operationen für den Workspace-Eintrag.
func patchOps(fields []DCField) []patchOp {
	ops := make([]patchOp, 0, len(fields))
	for _, f := range fields {
		vals := make([]MetadataValue, 0, len(f.Values))
		for _, v := range f.Values {
			vals = append(vals, MetadataValue{Value: v})
		}
		ops = append(ops, patchOp{Op: "add", Path: "/sections/" + f.Section + "/" + f.Name, Value: vals})
	}
	return ops
}
