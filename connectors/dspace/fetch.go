// Package dspace implementiert den Connector für das Forschungs-Repository (DSpace 7).
package dspace

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"resource-hub/config"
	"resource-hub/connectors"
	"resource-hub/models"
)

const (
	csrfHeader          = "DSPACE-XSRF-TOKEN"
	csrfRequestHeader   = "X-XSRF-TOKEN"
	authorizationHeader = "Authorization"
)

// Connector spricht mit der DSpace REST-API. Lesen geht anonym, Schreiben
// braucht eine Anmeldung mit CSRF-Token.
type Connector struct {
	cfg    config.DSpaceConfig
	remote *connectors.Remote
	tokens *connectors.TokenHolder
	logger *zap.Logger

	csrfMu sync.Mutex
	csrf   string
}

// NewConnector erstellt einen neuen Repository-Connector.
func NewConnector(cfg config.DSpaceConfig, breaker config.BreakerConfig, logger *zap.Logger) *Connector {
	// cookiejar.New liefert ohne PublicSuffixList keinen Fehler.
	jar, _ := cookiejar.New(nil)
	return &Connector{
		cfg: cfg,
		remote: connectors.NewRemote(connectors.RemoteOptions{
			Source:      models.SourceRepository,
			Timeout:     cfg.Timeout,
			RateLimit:   cfg.RateLimit,
			MaxFailures: breaker.MaxFailures,
			OpenTimeout: breaker.OpenTimeout,
			Jar:         jar,
			Logger:      logger,
		}),
		tokens: connectors.NewTokenHolder(),
		logger: logger.With(zap.String("source", string(models.SourceRepository))),
	}
}

// Source gibt die Quellkennung zurück.
func (c *Connector) Source() models.SourceTag {
	return models.SourceRepository
}

// Simulated meldet, ob der Simulationsmodus für Schreibzugriffe aktiv ist.
func (c *Connector) Simulated() bool {
	return c.cfg.SimulateWrites
}

// Mode gibt den Schreibmodus als Text zurück ("live" oder "simulation").
func (c *Connector) Mode() string {
	if c.Simulated() {
		return "simulation"
	}
	return "live"
}

func (c *Connector) api(path string) string {
	return strings.TrimRight(c.cfg.APIURL, "/") + path
}

// Authenticate meldet sich mit den konfigurierten Zugangsdaten an. Ohne
// Zugangsdaten genügt es, dass die API erreichbar ist.
func (c *Connector) Authenticate(ctx context.Context) bool {
	if c.cfg.Email == "" {
		if err := c.ping(ctx); err != nil {
			c.logger.Warn("DSpace not reachable", zap.Error(err))
			return false
		}
		return true
	}
	if _, err := c.bearer(ctx); err != nil {
		c.logger.Warn("DSpace authentication failed", zap.Error(err))
		return false
	}
	return true
}

func (c *Connector) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api(""), nil)
	if err != nil {
		return err
	}
	return c.remote.DoJSON(req, "ping", nil)
}

// bearer liefert ein gültiges Token und meldet sich bei Bedarf neu an.
func (c *Connector) bearer(ctx context.Context) (string, error) {
	if c.cfg.Email == "" {
		return "", fmt.Errorf("%w: no repository credentials configured", connectors.ErrNotAuthenticated)
	}
	return c.tokens.Refresh(func() (string, time.Duration, error) {
		token, err := c.login(ctx)
		return token, c.cfg.TokenTTL, err
	})
}

func (c *Connector) login(ctx context.Context) (string, error) {
	csrf, err := c.csrfToken(ctx, true)
	if err != nil {
		return "", err
	}

	form := url.Values{"user": {c.cfg.Email}, "password": {c.cfg.Password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.api("/authn/login"), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(csrfRequestHeader, csrf)

	resp, err := c.remote.Do(req, "login")
	if err != nil {
		return "", fmt.Errorf("%w: %v", connectors.ErrNotAuthenticated, err)
	}
	defer resp.Body.Close()
	c.rememberCSRF(resp)

	token := strings.TrimSpace(strings.TrimPrefix(resp.Header.Get(authorizationHeader), "Bearer"))
	if token == "" {
		return "", fmt.Errorf("%w: login response carried no bearer token", connectors.ErrNotAuthenticated)
	}
	c.logger.Info("DSpace login successful", zap.String("user", c.cfg.Email))
	return token, nil
}

// csrfToken gibt das aktuelle CSRF-Token zurück. Mit fresh wird es neu geholt.
func (c *Connector) csrfToken(ctx context.Context, fresh bool) (string, error) {
	c.csrfMu.Lock()
	token := c.csrf
	c.csrfMu.Unlock()
	if token != "" && !fresh {
		return token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api("/security/csrf"), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.remote.Do(req, "csrf")
	if err != nil {
		return "", fmt.Errorf("fetching CSRF token: %w", err)
	}
	defer resp.Body.Close()
	if token = c.rememberCSRF(resp); token == "" {
		return "", fmt.Errorf("fetching CSRF token: header %s missing", csrfHeader)
	}
	return token, nil
}

// rememberCSRF übernimmt ein rotiertes CSRF-Token aus einer Antwort.
func (c *Connector) rememberCSRF(resp *http.Response) string {
	token := resp.Header.Get(csrfHeader)
	c.csrfMu.Lock()
	defer c.csrfMu.Unlock()
	if token != "" {
		c.csrf = token
	}
	return c.csrf
}

// Search durchsucht die Discover-API nach Items. Eine leere Anfrage sucht nach "*".
func (c *Connector) Search(ctx context.Context, query string, limit int) ([]models.CanonicalResult, error) {
	if limit <= 0 {
		return []models.CanonicalResult{}, nil
	}
	q := strings.TrimSpace(query)
	if q == "" {
		q = "*"
	}
	params := url.Values{
		"query":   {q},
		"page":    {"0"},
		"size":    {strconv.Itoa(limit)},
		"dsoType": {"ITEM"},
	}

	token, withToken := c.tokens.Get()
	dr, err := c.discover(ctx, params, token)
	if err != nil && withToken && connectors.IsUnauthorized(err) {
		// Ein widerrufenes Token darf die anonyme Suche nicht blockieren.
		c.tokens.Invalidate()
		c.logger.Warn("DSpace rejected cached token, searching anonymously", zap.Error(err))
		dr, err = c.discover(ctx, params, "")
	}
	if err != nil {
		return nil, fmt.Errorf("dspace search: %w", err)
	}

	objects := dr.Embedded.SearchResult.Embedded.Objects
	results := make([]models.CanonicalResult, 0, len(objects))
	for _, obj := range objects {
		it := obj.Embedded.IndexableObject
		if it.UUID == "" {
			continue
		}
		results = append(results, Normalize(it, c.cfg.UIURL))
		if len(results) == limit {
			break
		}
	}
	c.logger.Info("DSpace search finished", zap.String("query", query), zap.Int("count", len(results)))
	return results, nil
}

func (c *Connector) discover(ctx context.Context, params url.Values, token string) (*discoverResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api("/discover/search/objects?"+params.Encode()), nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set(authorizationHeader, "Bearer "+token)
	}
	var dr discoverResponse
	if err := c.remote.DoJSON(req, "search", &dr); err != nil {
		return nil, err
	}
	return &dr, nil
}
