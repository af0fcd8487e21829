package vufind

import (
	"net/url"
	"strings"

	"resource-hub/connectors"
	"resource-hub/models"
)

// RecordURL bildet den Link auf die Detailseite in VuFind.
func RecordURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/Record/" + url.PathEscape(id)
}

// Normalize bildet einen Discovery-Datensatz auf das kanonische Trefferformat ab.
func Normalize(r Record, baseURL string) models.CanonicalResult {
	return models.CanonicalResult{
		CompositeID:       models.CompositeID(models.SourceDiscovery, r.ID),
		Title:             connectors.CleanText(r.Title),
		Authors:           connectors.JoinNonEmpty(", ", r.Authors...),
		Description:       connectors.CleanText(r.Summary),
		SourceTag:         models.SourceDiscovery,
		SourceDisplayName: models.SourceDiscovery.DisplayName(),
		ResourceType:      connectors.OrDefault(connectors.CleanText(r.Format), "Unknown"),
		Year:              connectors.YearOf(r.PublishDate),
		ExternalID:        r.ID,
		URL:               RecordURL(baseURL, r.ID),
		Availability:      "Check Availability",
	}
}
