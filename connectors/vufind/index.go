package vufind

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"resource-hub/models"
)

// IndexRequest beschreibt einen Datensatz, der in den Discovery-Index soll.
type IndexRequest struct {
	RecordID string
	Metadata models.PublishMetadata
	Locator  string
}

// IndexResult enthält Kennung und Link des indexierten Datensatzes.
type IndexResult struct {
	RecordID  string `json:"record_id"`
	RecordURL string `json:"record_url"`
}

// BuildSolrDocument bildet die Upload-Angaben auf ein VuFind-Solr-Dokument ab.
// Leere optionale Angaben werden weggelassen.
func BuildSolrDocument(in IndexRequest, institution string) map[string]any {
	meta := in.Metadata
	doc := map[string]any{
		"id":          in.RecordID,
		"title":       meta.Title,
		"title_short": meta.Title,
		"format":      meta.Type(),
		"institution": institution,
	}
	set := func(key, value string) {
		if value != "" {
			doc[key] = value
		}
	}
	set("author", meta.Authors)
	set("publishDate", meta.DateYear)
	set("summary", meta.Summary())
	set("publisher", meta.Publisher)
	set("series", meta.Series)
	set("language", meta.Language)
	set("issn", meta.ISSN)
	set("url", in.Locator)
	if kw := meta.Keywords(); len(kw) > 0 {
		doc["topic"] = kw
	}
	return doc
}

// Index schreibt den Datensatz in den Solr-Kern und committet sofort.
func (c *Connector) Index(ctx context.Context, in IndexRequest) (*IndexResult, error) {
	if in.RecordID == "" {
		return nil, fmt.Errorf("vufind index: record id is required")
	}
	body, err := json.Marshal(map[string]any{
		"add": map[string]any{"doc": BuildSolrDocument(in, c.cfg.Institution)},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s/update?commit=true", strings.TrimRight(c.cfg.SolrURL, "/"), c.cfg.IndexCore),
		bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.remote.DoJSON(req, "index", nil); err != nil {
		return nil, fmt.Errorf("vufind index: %w", err)
	}

	c.logger.Info("Record indexed", zap.String("record_id", in.RecordID), zap.String("core", c.cfg.IndexCore))
	return &IndexResult{RecordID: in.RecordID, RecordURL: RecordURL(c.cfg.URL, in.RecordID)}, nil
}
