// Package vufind implementiert den Connector für die Discovery-Schicht (VuFind
// mit Solr-Index).
package vufind

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"resource-hub/config"
	"resource-hub/connectors"
	"resource-hub/models"
)

var apiFields = []string{"id", "title", "formats", "publicationDates", "summary", "primaryAuthors", "secondaryAuthors"}

const solrFields = "id,title,author,publishDate,format,summary,isbn,subject"

// Connector durchsucht VuFind über die REST-API und fällt auf eine direkte
// Solr-Abfrage zurück. Eine Anmeldung gibt es nicht.
type Connector struct {
	cfg    config.VuFindConfig
	remote *connectors.Remote
	logger *zap.Logger
}

// NewConnector erstellt einen neuen Discovery-Connector.
func NewConnector(cfg config.VuFindConfig, breaker config.BreakerConfig, logger *zap.Logger) *Connector {
	return &Connector{
		cfg: cfg,
		remote: connectors.NewRemote(connectors.RemoteOptions{
			Source:      models.SourceDiscovery,
			Timeout:     cfg.Timeout,
			RateLimit:   cfg.RateLimit,
			MaxFailures: breaker.MaxFailures,
			OpenTimeout: breaker.OpenTimeout,
			Logger:      logger,
		}),
		logger: logger.With(zap.String("source", string(models.SourceDiscovery))),
	}
}

// Source gibt die Quellkennung zurück.
func (c *Connector) Source() models.SourceTag {
	return models.SourceDiscovery
}

// Authenticate prüft nur, ob die Oberfläche erreichbar ist.
func (c *Connector) Authenticate(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.URL, "/")+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.remote.Do(req, "ping")
	if err != nil {
		c.logger.Warn("VuFind not reachable", zap.Error(err))
		return false
	}
	resp.Body.Close()
	return true
}

// Search fragt zuerst die VuFind-API und bei Fehlern die Solr-Kerne ab.
func (c *Connector) Search(ctx context.Context, query string, limit int) ([]models.CanonicalResult, error) {
	if limit <= 0 {
		return []models.CanonicalResult{}, nil
	}
	log := c.logger.With(zap.String("query", query), zap.Int("limit", limit))

	records, err := c.searchAPI(ctx, query, limit)
	if err != nil {
		log.Warn("VuFind API search failed, querying Solr directly", zap.Error(err))
		records, err = c.searchSolr(ctx, query, limit)
		if err != nil {
			return nil, fmt.Errorf("vufind search: %w", err)
		}
	}

	results := make([]models.CanonicalResult, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		results = append(results, Normalize(r, c.cfg.URL))
		if len(results) == limit {
			break
		}
	}
	log.Info("VuFind search finished", zap.Int("count", len(results)))
	return results, nil
}

func (c *Connector) searchAPI(ctx context.Context, query string, limit int) ([]Record, error) {
	params := url.Values{
		"lookfor": {strings.TrimSpace(query)},
		"limit":   {strconv.Itoa(limit)},
		"type":    {"AllFields"},
		"field[]": apiFields,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.cfg.URL, "/")+"/api/v1/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var ar apiResponse
	if err := c.remote.DoJSON(req, "search", &ar); err != nil {
		return nil, err
	}
	if ar.Status != "" && ar.Status != "OK" {
		return nil, fmt.Errorf("vufind api status %q", ar.Status)
	}

	records := make([]Record, 0, len(ar.Records))
	for _, a := range ar.Records {
		records = append(records, a.toRecord())
	}
	return records, nil
}

// searchSolr fragt die Kerne der Reihe nach ab; der erste Kern mit Treffern gewinnt.
// Nur wenn kein Kern antwortet, ist das Ergebnis ein Fehler.
func (c *Connector) searchSolr(ctx context.Context, query string, limit int) ([]Record, error) {
	var errs []error
	for _, core := range c.cfg.SolrCores {
		docs, err := c.selectCore(ctx, core, query, limit)
		if err != nil {
			errs = append(errs, fmt.Errorf("core %s: %w", core, err))
			continue
		}
		if len(docs) > 0 {
			records := make([]Record, 0, len(docs))
			for _, d := range docs {
				records = append(records, d.toRecord())
			}
			return records, nil
		}
	}
	if len(errs) == len(c.cfg.SolrCores) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

func (c *Connector) selectCore(ctx context.Context, core, query string, limit int) ([]solrDoc, error) {
	params := url.Values{
		"q":    {solrQuery(query)},
		"rows": {strconv.Itoa(limit)},
		"wt":   {"json"},
		"fl":   {solrFields},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s/select?%s", strings.TrimRight(c.cfg.SolrURL, "/"), core, params.Encode()), nil)
	if err != nil {
		return nil, err
	}
	var sr solrResponse
	if err := c.remote.DoJSON(req, "search_solr", &sr); err != nil {
		return nil, err
	}
	return sr.Response.Docs, nil
}

// solrQuery sucht in Titel, Verfasser und Schlagwort; leer bedeutet alles.
func solrQuery(query string) string {
	q := strings.TrimSpace(query)
	if q == "" {
		return "*:*"
	}
	q = strings.ReplaceAll(q, `\`, `\\`)
	q = strings.ReplaceAll(q, `"`, `\"`)
	return fmt.Sprintf(`title:"%s" OR author:"%s" OR subject:"%s"`, q, q, q)
}
