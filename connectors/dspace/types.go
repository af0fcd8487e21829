package dspace

// MetadataValue ist ein einzelner Wert eines Dublin-Core-Felds.
type MetadataValue struct {
	Value    string `json:"value"`
	Language string `json:"language,omitempty"`
}

// Item ist ein Repository-Objekt, wie es die Discover-API liefert.
type Item struct {
	UUID     string                     `json:"uuid"`
	Name     string                     `json:"name"`
	Handle   string                     `json:"handle"`
	Type     string                     `json:"type"`
	Metadata map[string][]MetadataValue `json:"metadata"`
}

// First gibt den ersten nicht-leeren Wert des Felds zurück.
func (it Item) First(field string) string {
	for _, v := range it.Metadata[field] {
		if v.Value != "" {
			return v.Value
		}
	}
	return ""
}

// All gibt alle nicht-leeren Werte des Felds zurück.
func (it Item) All(field string) []string {
	var out []string
	for _, v := range it.Metadata[field] {
		if v.Value != "" {
			out = append(out, v.Value)
		}
	}
	return out
}

type discoverResponse struct {
	Embedded struct {
		SearchResult struct {
			Embedded struct {
				Objects []struct {
					Embedded struct {
						IndexableObject Item `json:"indexableObject"`
					} `json:"_embedded"`
				} `json:"objects"`
			} `json:"_embedded"`
		} `json:"searchResult"`
	} `json:"_embedded"`
}

type collectionsResponse struct {
	Embedded struct {
		Collections []struct {
			UUID string `json:"uuid"`
			Name string `json:"name"`
		} `json:"collections"`
	} `json:"_embedded"`
}

type workspaceItem struct {
	ID       int `json:"id"`
	Embedded struct {
		Item Item `json:"item"`
	} `json:"_embedded"`
	Sections struct {
		Upload struct {
			Files []struct {
				UUID string `json:"uuid"`
			} `json:"files"`
		} `json:"upload"`
	} `json:"sections"`
}

// patchOp ist eine JSON-Patch-Operation (RFC 6902).
type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}
