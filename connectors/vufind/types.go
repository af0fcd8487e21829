package vufind

import (
	"encoding/json"
)

// stringList nimmt sowohl einen einzelnen String als auch eine Liste an.
// Solr liefert mehrwertige Felder als Array, einwertige als Skalar.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != "" {
			*l = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

func (l stringList) first() string {
	for _, v := range l {
		if v != "" {
			return v
		}
	}
	return ""
}

// Record ist ein Discovery-Datensatz, egal ob aus der VuFind-API oder aus Solr.
type Record struct {
	ID          string
	Title       string
	Authors     []string
	Format      string
	PublishDate string
	Summary     string
}

type apiResponse struct {
	ResultCount int         `json:"resultCount"`
	Records     []apiRecord `json:"records"`
	Status      string      `json:"status"`
}

type apiRecord struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Formats          stringList `json:"formats"`
	PublicationDates stringList `json:"publicationDates"`
	Summary          stringList `json:"summary"`
	PrimaryAuthors   stringList `json:"primaryAuthors"`
	SecondaryAuthors stringList `json:"secondaryAuthors"`
}

func (a apiRecord) toRecord() Record {
	return Record{
		ID:          a.ID,
		Title:       a.Title,
		Authors:     append(append([]string{}, a.PrimaryAuthors...), a.SecondaryAuthors...),
		Format:      a.Formats.first(),
		PublishDate: a.PublicationDates.first(),
		Summary:     a.Summary.first(),
	}
}

type solrResponse struct {
	Response struct {
		NumFound int       `json:"numFound"`
		Docs     []solrDoc `json:"docs"`
	} `json:"response"`
}

type solrDoc struct {
	ID          string     `json:"id"`
	Title       stringList `json:"title"`
	Author      stringList `json:"author"`
	Format      stringList `json:"format"`
	PublishDate stringList `json:"publishDate"`
	Summary     stringList `json:"summary"`
}

func (d solrDoc) toRecord() Record {
	return Record{
		ID:          d.ID,
		Title:       d.Title.first(),
		Authors:     d.Author,
		Format:      d.Format.first(),
		PublishDate: d.PublishDate.first(),
		Summary:     d.Summary.first(),
	}
}
