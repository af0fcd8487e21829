package koha

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// Biblio ist der native Titelsatz des Katalogs, unabhängig davon, ob er
// über die REST-API oder per SRU gelesen wurde.
type Biblio struct {
	ID              string
	Title           string
	Subtitle        string
	Author          string
	CopyrightDate   string
	PublicationYear string
	Abstract        string
	Notes           string
	ItemType        string
}

// apiBiblio entspricht einem Eintrag aus GET /biblios.
type apiBiblio struct {
	BiblioID        int64  `json:"biblio_id"`
	Title           string `json:"title"`
	Subtitle        string `json:"subtitle"`
	Author          string `json:"author"`
	CopyrightDate   *int   `json:"copyright_date"`
	PublicationYear *int   `json:"publication_year"`
	Abstract        string `json:"abstract"`
	Notes           string `json:"notes"`
	ItemType        string `json:"item_type"`
}

func (a apiBiblio) toBiblio() Biblio {
	b := Biblio{
		ID:              strconv.FormatInt(a.BiblioID, 10),
		Title:           a.Title,
		Subtitle:        a.Subtitle,
		Author:          a.Author,
		Abstract:        a.Abstract,
		Notes:           a.Notes,
		ItemType:        a.ItemType,
	}
	if a.CopyrightDate != nil {
		b.CopyrightDate = strconv.Itoa(*a.CopyrightDate)
	}
	if a.PublicationYear != nil {
		b.PublicationYear = strconv.Itoa(*a.PublicationYear)
	}
	return b
}

// sruResponse ist die searchRetrieve-Antwort mit MARCXML-Datensätzen.
type sruResponse struct {
	XMLName xml.Name `xml:"searchRetrieveResponse"`
	Records []struct {
		RecordData struct {
			Record marcXMLRecord `xml:"record"`
		} `xml:"recordData"`
	} `xml:"records>record"`
}

type marcXMLRecord struct {
	ControlFields []struct {
		Tag   string `xml:"tag,attr"`
		Value string `xml:",chardata"`
	} `xml:"controlfield"`
	DataFields []struct {
		Tag       string `xml:"tag,attr"`
		Subfields []struct {
			Code  string `xml:"code,attr"`
			Value string `xml:",chardata"`
		} `xml:"subfield"`
	} `xml:"datafield"`
}

func (r marcXMLRecord) control(tag string) string {
	for _, cf := range r.ControlFields {
		if cf.Tag == tag {
			return strings.TrimSpace(cf.Value)
		}
	}
	return ""
}

// subfield gibt den ersten Wert von tag$code zurück.
func (r marcXMLRecord) subfield(tag, code string) string {
	for _, df := range r.DataFields {
		if df.Tag != tag {
			continue
		}
		for _, sf := range df.Subfields {
			if sf.Code == code && strings.TrimSpace(sf.Value) != "" {
				return strings.TrimSpace(sf.Value)
			}
		}
	}
	return ""
}

// toBiblio liest die Felder, die der Normalizer braucht. Koha legt die
// Biblionummer in 999$c ab; 001 dient als Ersatz.
func (r marcXMLRecord) toBiblio() Biblio {
	year := r.subfield("260", "c")
	if year == "" {
		year = r.subfield("264", "c")
	}
	return Biblio{
		ID:            firstOf(r.subfield("999", "c"), r.control("001")),
		Title:         r.subfield("245", "a"),
		Subtitle:      r.subfield("245", "b"),
		Author:        r.subfield("100", "a"),
		CopyrightDate: strings.TrimLeft(year, "c©[ "),
		Abstract:      r.subfield("520", "a"),
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
