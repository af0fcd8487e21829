package dspace

import (
	"strings"

	"resource-hub/connectors"
	"resource-hub/models"
)

// ViewURL bildet den Link auf die Oberfläche des Repositorys. Ohne Handle
// wird über die UUID verlinkt.
func ViewURL(uiURL string, it Item) string {
	base := strings.TrimRight(uiURL, "/")
	if it.Handle != "" {
		return base + "/handle/" + it.Handle
	}
	return base + "/items/" + it.UUID
}

// Normalize bildet ein Repository-Objekt auf das kanonische Trefferformat ab.
func Normalize(it Item, uiURL string) models.CanonicalResult {
	authors := append(it.All("dc.contributor.author"), it.All("dc.creator")...)
	return models.CanonicalResult{
		CompositeID:       models.CompositeID(models.SourceRepository, it.UUID),
		Title:             connectors.FirstNonEmpty(it.First("dc.title"), it.Name),
		Authors:           connectors.JoinNonEmpty(", ", authors...),
		Description:       connectors.FirstNonEmpty(it.First("dc.description.abstract"), it.First("dc.description")),
		SourceTag:         models.SourceRepository,
		SourceDisplayName: models.SourceRepository.DisplayName(),
		ResourceType:      connectors.OrDefault(connectors.CleanText(it.First("dc.type")), "document"),
		Year:              connectors.YearOf(connectors.FirstNonEmpty(it.First("dc.date.issued"), it.First("dc.date.created"))),
		ExternalID:        it.UUID,
		URL:               ViewURL(uiURL, it),
		Availability:      "Open Access",
	}
}
