package models

// SourceTag kennzeichnet das System, aus dem ein Treffer stammt.
type SourceTag string

const (
	SourceCatalog    SourceTag = "catalog"
	SourceRepository SourceTag = "repository"
	SourceDiscovery  SourceTag = "discovery"
	SourceLocal      SourceTag = "local"
)

// SearchOrder ist die kanonische Reihenfolge, in der Quellen abgefragt und
// ihre Treffer aneinandergehängt werden.
var SearchOrder = []SourceTag{SourceCatalog, SourceRepository, SourceDiscovery, SourceLocal}

// DisplayName gibt die menschenlesbare Bezeichnung der Quelle zurück.
func (s SourceTag) DisplayName() string {
	switch s {
	case SourceCatalog:
		return "Library Catalog"
	case SourceRepository:
		return "Research Repository"
	case SourceDiscovery:
		return "Discovery Layer"
	case SourceLocal:
		return "Local Repository"
	}
	return string(s)
}

// Valid meldet, ob s eine bekannte Quelle ist.
func (s SourceTag) Valid() bool {
	switch s {
	case SourceCatalog, SourceRepository, SourceDiscovery, SourceLocal:
		return true
	}
	return false
}

// CanonicalResult ist der quellenunabhängige Suchtreffer, den jeder Connector liefert.
type CanonicalResult struct {
	CompositeID       string    `json:"id"`
	Title             string    `json:"title"`
	Authors           string    `json:"authors"`
	Description       string    `json:"description"`
	SourceTag         SourceTag `json:"source"`
	SourceDisplayName string    `json:"source_name"`
	ResourceType      string    `json:"resource_type"`
	Year              string    `json:"year"`
	ExternalID        string    `json:"external_id"`
	URL               string    `json:"url"`
	Availability      string    `json:"availability"`
}

// CompositeID bildet die quellenübergreifend eindeutige Kennung {source}_{nativeId}.
func CompositeID(source SourceTag, nativeID string) string {
	return string(source) + "_" + nativeID
}

// SearchFilterSet enthält optionale Filter; ein leeres Feld bedeutet keine Einschränkung.
type SearchFilterSet struct {
	Source       SourceTag `json:"source,omitempty"`
	ResourceType string    `json:"type,omitempty"`
	Year         string    `json:"year,omitempty"`
}

// IsEmpty meldet, ob gar kein Filter gesetzt ist.
func (f SearchFilterSet) IsEmpty() bool {
	return f.Source == "" && f.ResourceType == "" && f.Year == ""
}

// Match prüft einen normalisierten Treffer gegen alle gesetzten Filter.
func (f SearchFilterSet) Match(r CanonicalResult) bool {
	if f.Source != "" && r.SourceTag != f.Source {
		return false
	}
	if f.ResourceType != "" && r.ResourceType != f.ResourceType {
		return false
	}
	if f.Year != "" && r.Year != f.Year {
		return false
	}
	return true
}

// SearchResponse ist die Antwort der vereinheitlichten Suche.
type SearchResponse struct {
	Results []CanonicalResult               `json:"results"`
	Grouped map[SourceTag][]CanonicalResult `json:"grouped"`
	Total   int                             `json:"total"`
	Query   string                          `json:"query"`
	Filters SearchFilterSet                 `json:"filters"`
}
