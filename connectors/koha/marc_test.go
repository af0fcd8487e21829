package koha

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-hub/models"
)

func TestBuildMARCMinimal(t *testing.T) {
	rec := BuildMARC(models.PublishMetadata{Title: "T"}, "")

	var tags []string
	for _, f := range rec.Fields {
		tags = append(tags, tagOf(f))
	}
	assert.Equal(t, []string{"245", "500", "655"}, tags)

	f655, _ := rec.Field("655")
	assert.Equal(t, "Text", f655.Subfields[0]["a"])
}

func TestBuildMARCFull(t *testing.T) {
	meta := models.PublishMetadata{
		Title:           "Energy policy",
		Authors:         "Alemu, S.",
		Publisher:       "MInT",
		DateYear:        "2022",
		Series:          "Policy papers",
		Abstract:        "Abstract text",
		Description:     "ignored when abstract present",
		SubjectKeywords: "energy, policy, ,solar",
		Language:        "am",
		ISSN:            "1234-5678",
		Citation:        "Alemu 2022",
		Sponsors:        "World Bank",
		ResourceType:    "Report",
	}
	rec := BuildMARC(meta, "http://repo/handle/1/2")

	f260, ok := rec.Field("260")
	require.True(t, ok)
	assert.Equal(t, []map[string]string{{"b": "MInT"}, {"c": "2022"}}, f260.Subfields)

	f520, _ := rec.Field("520")
	assert.Equal(t, "Abstract text", f520.Subfields[0]["a"])
	assert.Equal(t, 3, rec.Count("650"))

	f041, ok := rec.Field("041")
	require.True(t, ok)
	assert.Equal(t, "am", f041.Subfields[0]["a"])

	f500, _ := rec.Field("500")
	assert.Contains(t, f500.Subfields[0]["a"], "http://repo/handle/1/2")

	for _, tag := range []string{"022", "100", "490", "524", "536", "655", "856"} {
		_, ok := rec.Field(tag)
		assert.True(t, ok, tag)
	}
}

func TestBuildMARCEnglishHasNoLanguageField(t *testing.T) {
	rec := BuildMARC(models.PublishMetadata{Title: "T", Language: "en"}, "")
	_, ok := rec.Field("041")
	assert.False(t, ok)
}
