package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"resource-hub/connectors"
	"resource-hub/models"
)

// SearchService verteilt eine Anfrage an alle Connectoren und die lokale
// Tabelle und führt die Treffer zusammen.
type SearchService struct {
	Connectors []connectors.Connector
	Store      *ResourceStore
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewSearchService erstellt eine neue Instanz des SearchService.
func NewSearchService(conns []connectors.Connector, store *ResourceStore, timeout time.Duration, logger *zap.Logger) *SearchService {
	return &SearchService{
		Connectors: conns,
		Store:      store,
		Timeout:    timeout,
		Logger:     logger,
	}
}

// SubLimit gibt an, wie viele Treffer eine Quelle bei Gesamtlimit limit liefern darf.
func SubLimit(source models.SourceTag, limit int) int {
	switch source {
	case models.SourceCatalog, models.SourceRepository:
		return limit / 2
	case models.SourceDiscovery:
		return min(5, limit/4)
	case models.SourceLocal:
		return limit / 4
	}
	return 0
}

// UnifiedSearch fragt alle Quellen parallel ab. Ausfälle einzelner Quellen
// werden nur protokolliert; die Quelle liefert dann keine Treffer. Die Filter
// gelten für die flache Liste, die Gruppen zeigen die ungefilterte Ausbeute.
func (s *SearchService) UnifiedSearch(ctx context.Context, query string, filters models.SearchFilterSet, limit int, requester string) *models.SearchResponse {
	log := s.Logger.With(zap.String("query", query), zap.Int("limit", limit))
	searchesTotal.Inc()

	searchCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	grouped := make(map[models.SourceTag][]models.CanonicalResult, len(models.SearchOrder))
	for _, tag := range models.SearchOrder {
		grouped[tag] = []models.CanonicalResult{}
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	collect := func(tag models.SourceTag, results []models.CanonicalResult) {
		mu.Lock()
		defer mu.Unlock()
		grouped[tag] = append(grouped[tag], results...)
	}

	for _, conn := range s.Connectors {
		wg.Add(1)
		go func(conn connectors.Connector) {
			defer wg.Done()
			tag := conn.Source()
			results, err := s.searchSource(searchCtx, conn, query, SubLimit(tag, limit))
			if err != nil {
				log.Warn("Quelle lieferte keine Treffer", zap.String("source", string(tag)), zap.Error(err))
				sourceSearchTotal.WithLabelValues(string(tag), "failure").Inc()
				return
			}
			sourceSearchTotal.WithLabelValues(string(tag), "success").Inc()
			collect(tag, results)
		}(conn)
	}

	if filters.Source == "" || filters.Source == models.SourceLocal {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resources, err := s.Store.Search(searchCtx, query, filters, SubLimit(models.SourceLocal, limit))
			if err != nil {
				log.Error("Lokale Suche fehlgeschlagen", zap.Error(err))
				sourceSearchTotal.WithLabelValues(string(models.SourceLocal), "failure").Inc()
				return
			}
			sourceSearchTotal.WithLabelValues(string(models.SourceLocal), "success").Inc()
			local := make([]models.CanonicalResult, 0, len(resources))
			for _, r := range resources {
				local = append(local, localResult(r))
			}
			collect(models.SourceLocal, local)
		}()
	}

	wg.Wait()

	results := make([]models.CanonicalResult, 0, limit)
	for _, tag := range models.SearchOrder {
		for _, r := range grouped[tag] {
			if len(results) == limit {
				break
			}
			if filters.Match(r) {
				results = append(results, r)
			}
		}
	}

	// Das Protokoll wird auch geschrieben, wenn der Aufrufer schon weg ist.
	if err := s.Store.LogSearch(context.WithoutCancel(ctx), query, requester, len(results)); err != nil {
		log.Error("Suchprotokoll konnte nicht geschrieben werden", zap.Error(err))
	}
	log.Info("Suche abgeschlossen",
		zap.Int("total", len(results)),
		zap.Int("catalog", len(grouped[models.SourceCatalog])),
		zap.Int("repository", len(grouped[models.SourceRepository])),
		zap.Int("discovery", len(grouped[models.SourceDiscovery])),
		zap.Int("local", len(grouped[models.SourceLocal])))

	return &models.SearchResponse{
		Results: results,
		Grouped: grouped,
		Total:   len(results),
		Query:   query,
		Filters: filters,
	}
}

// searchSource isoliert einen Connector: Anmeldefehler, Fehler und Panics
// werden zu einem Fehlerwert.
func (s *SearchService) searchSource(ctx context.Context, conn connectors.Connector, query string, limit int) (results []models.CanonicalResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("connector panic: %v", r)
		}
	}()
	if limit <= 0 {
		return nil, nil
	}
	if !conn.Authenticate(ctx) {
		return nil, connectors.ErrNotAuthenticated
	}
	results, err = conn.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
