package koha

import (
	"net/url"
	"strings"

	"resource-hub/connectors"
	"resource-hub/models"
)

// DetailURL bildet den OPAC-Link eines Titelsatzes.
func DetailURL(opacURL, biblioID string) string {
	return strings.TrimRight(opacURL, "/") + "/cgi-bin/koha/opac-detail.pl?biblionumber=" + url.QueryEscape(biblioID)
}

// Normalize bildet einen Titelsatz auf das kanonische Trefferformat ab.
func Normalize(b Biblio, opacURL string) models.CanonicalResult {
	return models.CanonicalResult{
		CompositeID:       models.CompositeID(models.SourceCatalog, b.ID),
		Title:             connectors.JoinNonEmpty(" ", b.Title, b.Subtitle),
		Authors:           connectors.CleanText(b.Author),
		Description:       connectors.FirstNonEmpty(b.Abstract, b.Notes),
		SourceTag:         models.SourceCatalog,
		SourceDisplayName: models.SourceCatalog.DisplayName(),
		ResourceType:      connectors.OrDefault(strings.ToLower(strings.TrimSpace(b.ItemType)), "book"),
		Year:              connectors.YearOf(connectors.FirstNonEmpty(b.CopyrightDate, b.PublicationYear)),
		ExternalID:        b.ID,
		URL:               DetailURL(opacURL, b.ID),
		Availability:      "Available",
	}
}
