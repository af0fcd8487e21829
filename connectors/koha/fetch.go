// Package koha implementiert den Connector für den Bibliothekskatalog (Koha ILS).
package koha

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"resource-hub/config"
	"resource-hub/connectors"
	"resource-hub/models"
)

// tokenSafetyMargin holt ein Token kurz vor Ablauf neu.
const tokenSafetyMargin = 30 * time.Second

// Connector spricht mit der Koha REST-API (OAuth2 Client Credentials) und
// fällt bei Suchfehlern auf SRU zurück.
type Connector struct {
	cfg         config.KohaConfig
	remote      *connectors.Remote
	credentials *clientcredentials.Config
	tokens      *connectors.TokenHolder
	logger      *zap.Logger
}

// NewConnector erstellt einen neuen Katalog-Connector.
func NewConnector(cfg config.KohaConfig, breaker config.BreakerConfig, logger *zap.Logger) *Connector {
	c := &Connector{
		cfg: cfg,
		remote: connectors.NewRemote(connectors.RemoteOptions{
			Source:      models.SourceCatalog,
			Timeout:     cfg.Timeout,
			RateLimit:   cfg.RateLimit,
			MaxFailures: breaker.MaxFailures,
			OpenTimeout: breaker.OpenTimeout,
			Logger:      logger,
		}),
		tokens: connectors.NewTokenHolder(),
		logger: logger.With(zap.String("source", string(models.SourceCatalog))),
	}
	if cfg.ClientID != "" {
		c.credentials = &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     strings.TrimRight(cfg.APIURL, "/") + "/oauth/token",
			AuthStyle:    oauth2.AuthStyleInParams,
		}
	}
	return c
}

// Source gibt die Quellkennung zurück.
func (c *Connector) Source() models.SourceTag {
	return models.SourceCatalog
}

// Authenticate holt (oder verwendet) ein OAuth2-Token.
func (c *Connector) Authenticate(ctx context.Context) bool {
	if _, err := c.token(ctx); err != nil {
		c.logger.Warn("Koha authentication failed", zap.Error(err))
		return false
	}
	return true
}

// token liefert das zwischengespeicherte Access-Token oder holt ein neues
// im Rahmen von ctx.
func (c *Connector) token(ctx context.Context) (string, error) {
	if c.credentials == nil {
		return "", fmt.Errorf("%w: no client credentials configured", connectors.ErrNotAuthenticated)
	}
	return c.tokens.Refresh(func() (string, time.Duration, error) {
		tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, c.remote.HTTPClient())
		tok, err := c.credentials.Token(tokenCtx)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %v", connectors.ErrNotAuthenticated, err)
		}
		return tok.AccessToken, tokenLifetime(tok), nil
	})
}

// tokenLifetime bestimmt, wie lange ein Token verwendet wird. Tokens ohne
// Ablaufdatum gelten eine Stunde.
func tokenLifetime(tok *oauth2.Token) time.Duration {
	if tok.Expiry.IsZero() {
		return time.Hour
	}
	ttl := time.Until(tok.Expiry) - tokenSafetyMargin
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}

// authorize setzt den Bearer-Header.
func authorize(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// forgetRejected verwirft das Token, wenn Koha es abgelehnt hat.
func (c *Connector) forgetRejected(err error) {
	if connectors.IsUnauthorized(err) {
		c.tokens.Invalidate()
	}
}

// Search sucht Titelsätze und normalisiert sie.
func (c *Connector) Search(ctx context.Context, query string, limit int) ([]models.CanonicalResult, error) {
	if limit <= 0 {
		return []models.CanonicalResult{}, nil
	}
	log := c.logger.With(zap.String("query", query), zap.Int("limit", limit))

	biblios, err := c.searchREST(ctx, query, limit)
	if err != nil {
		log.Warn("Koha REST search failed, falling back to SRU", zap.Error(err))
		biblios, err = c.searchSRU(ctx, query, limit)
		if err != nil {
			return nil, fmt.Errorf("koha search: %w", err)
		}
	}

	results := make([]models.CanonicalResult, 0, len(biblios))
	for _, b := range biblios {
		if b.ID == "" {
			continue
		}
		results = append(results, Normalize(b, c.cfg.OPACURL))
		if len(results) == limit {
			break
		}
	}
	log.Info("Koha search finished", zap.Int("count", len(results)))
	return results, nil
}

// searchREST fragt GET /biblios ab. Eine nicht-leere Anfrage wird als
// Teilstring-Filter auf Titel und Verfasser übergeben.
func (c *Connector) searchREST(ctx context.Context, query string, limit int) ([]Biblio, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{"_per_page": {strconv.Itoa(limit)}}
	if q := strings.TrimSpace(query); q != "" {
		like := map[string]string{"-like": "%" + q + "%"}
		filter, err := json.Marshal(map[string]any{
			"-or": []map[string]any{{"title": like}, {"author": like}},
		})
		if err != nil {
			return nil, err
		}
		params.Set("q", string(filter))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.cfg.APIURL, "/")+"/biblios?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	authorize(req, tok)

	var page []apiBiblio
	if err := c.remote.DoJSON(req, "search", &page); err != nil {
		c.forgetRejected(err)
		return nil, err
	}

	biblios := make([]Biblio, 0, len(page))
	for _, a := range page {
		biblios = append(biblios, a.toBiblio())
	}
	return biblios, nil
}

// searchSRU durchsucht den Katalog anonym über SRU und liest MARCXML.
func (c *Connector) searchSRU(ctx context.Context, query string, limit int) ([]Biblio, error) {
	cql := "cql.allRecords=1"
	if q := strings.TrimSpace(query); q != "" {
		q = strings.ReplaceAll(q, `"`, "")
		cql = fmt.Sprintf(`title="%s" or author="%s" or subject="%s"`, q, q, q)
	}
	params := url.Values{
		"version":        {"1.1"},
		"operation":      {"searchRetrieve"},
		"query":          {cql},
		"maximumRecords": {strconv.Itoa(limit)},
		"recordSchema":   {"marcxml"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.cfg.OPACURL, "/")+"/cgi-bin/koha/sru?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.remote.Do(req, "search_sru")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var sr sruResponse
	if err := xml.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing SRU response: %w", err)
	}

	biblios := make([]Biblio, 0, len(sr.Records))
	for _, rec := range sr.Records {
		biblios = append(biblios, rec.RecordData.Record.toBiblio())
	}
	return biblios, nil
}
