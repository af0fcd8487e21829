package dspace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"resource-hub/models"
)

func fieldNames(fields []DCField) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

func TestBuildDublinCoreTitleOnly(t *testing.T) {
	fields := BuildDublinCore(models.PublishMetadata{Title: "T"})

	assert.Equal(t, []string{"dc.title", "dc.type"}, fieldNames(fields))
	assert.Equal(t, []string{"T"}, fields[0].Values)
	assert.Equal(t, []string{"Text"}, fields[1].Values)
}

func TestBuildDublinCoreOptionalFields(t *testing.T) {
	fields := BuildDublinCore(models.PublishMetadata{
		Title:           "T",
		ResourceType:    "Report",
		DateYear:        "2023",
		DateMonth:       "4",
		DateDay:         "9",
		Series:          "Working papers",
		ReportNo:        "12",
		SubjectKeywords: "energy, water",
		Abstract:        "A",
		Description:     "D",
	})

	byName := map[string]DCField{}
	for _, f := range fields {
		byName[f.Name] = f
	}
	assert.Equal(t, []string{"Report"}, byName["dc.type"].Values)
	assert.Equal(t, []string{"2023-04-09"}, byName["dc.date.issued"].Values)
	assert.Equal(t, []string{"Working papers;12"}, byName["dc.relation.ispartofseries"].Values)
	assert.Equal(t, []string{"energy", "water"}, byName["dc.subject"].Values)
	assert.Equal(t, sectionPageTwo, byName["dc.subject"].Section)
	assert.Equal(t, []string{"A"}, byName["dc.description.abstract"].Values)
	assert.Equal(t, []string{"D"}, byName["dc.description"].Values)
	assert.NotContains(t, byName, "dc.publisher")
	assert.NotContains(t, byName, "dc.identifier.issn")
}

func TestJoinSeries(t *testing.T) {
	assert.Equal(t, "", joinSeries("", "3"))
	assert.Equal(t, "S", joinSeries("S", ""))
	assert.Equal(t, "S;3", joinSeries("S", "3"))
}
