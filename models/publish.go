package models

import "strings"

// PublishMetadata enthält die Angaben eines Uploads. Nur der Titel ist Pflicht;
// leere optionale Felder werden in keinem Zielsystem ausgegeben.
type PublishMetadata struct {
	Title           string `json:"title" form:"title" validate:"required,max=500"`
	Authors         string `json:"authors,omitempty" form:"authors" validate:"max=500"`
	OtherTitles     string `json:"other_titles,omitempty" form:"other_titles"`
	DateYear        string `json:"date_year,omitempty" form:"date_year" validate:"omitempty,numeric,len=4"`
	DateMonth       string `json:"date_month,omitempty" form:"date_month" validate:"omitempty,numeric,min=1,max=2"`
	DateDay         string `json:"date_day,omitempty" form:"date_day" validate:"omitempty,numeric,min=1,max=2"`
	Publisher       string `json:"publisher,omitempty" form:"publisher" validate:"max=200"`
	Citation        string `json:"citation,omitempty" form:"citation"`
	Series          string `json:"series,omitempty" form:"series"`
	ReportNo        string `json:"report_no,omitempty" form:"report_no"`
	ISSN            string `json:"issn,omitempty" form:"issn"`
	ResourceType    string `json:"resource_type,omitempty" form:"resource_type" validate:"max=50"`
	Language        string `json:"language,omitempty" form:"language"`
	SubjectKeywords string `json:"subject_keywords,omitempty" form:"subject_keywords"`
	Abstract        string `json:"abstract,omitempty" form:"abstract"`
	Sponsors        string `json:"sponsors,omitempty" form:"sponsors"`
	Description     string `json:"description,omitempty" form:"description"`
}

// DefaultResourceType wird verwendet, wenn beim Upload kein Typ angegeben ist.
const DefaultResourceType = "Text"

// Type gibt den Ressourcentyp oder den Standardtyp zurück.
func (m PublishMetadata) Type() string {
	if t := strings.TrimSpace(m.ResourceType); t != "" {
		return t
	}
	return DefaultResourceType
}

// Keywords zerlegt die kommagetrennten Schlagwörter.
func (m PublishMetadata) Keywords() []string {
	var out []string
	for _, kw := range strings.Split(m.SubjectKeywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// Summary bevorzugt den Abstract vor der Beschreibung.
func (m PublishMetadata) Summary() string {
	if m.Abstract != "" {
		return m.Abstract
	}
	return m.Description
}

// IssuedDate setzt Jahr, Monat und Tag zu YYYY[-MM[-DD]] zusammen.
// Ohne Jahr ist das Ergebnis leer.
func (m PublishMetadata) IssuedDate() string {
	if m.DateYear == "" {
		return ""
	}
	parts := []string{m.DateYear}
	if m.DateMonth != "" {
		parts = append(parts, twoDigits(m.DateMonth))
		if m.DateDay != "" {
			parts = append(parts, twoDigits(m.DateDay))
		}
	}
	return strings.Join(parts, "-")
}

func twoDigits(s string) string {
	s = strings.TrimLeft(strings.TrimSpace(s), "0")
	if len(s) < 2 {
		return strings.Repeat("0", 2-len(s)) + s
	}
	return s
}

// PublishFile ist die hochgeladene Binärdatei.
type PublishFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// IntegrationStatus meldet den Erfolg jedes Saga-Schritts.
type IntegrationStatus struct {
	Repository bool `json:"repository"`
	Catalog    bool `json:"catalog"`
	Discovery  bool `json:"discovery"`
}

// PublishReport ist das Ergebnis einer Veröffentlichung über alle Systeme.
type PublishReport struct {
	Resource          *Resource         `json:"resource"`
	RepositoryURL     string            `json:"repository_url"`
	CatalogURL        string            `json:"catalog_url"`
	DiscoveryURL      string            `json:"discovery_url"`
	IntegrationStatus IntegrationStatus `json:"integration_status"`
	Simulated         bool              `json:"simulated"`
}
