package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"resource-hub/connectors"
	"resource-hub/models"
)

type searchFixture struct {
	store      *ResourceStore
	catalog    *fakeConnector
	repository *fakeConnector
	discovery  *fakeConnector
	svc        *SearchService
}

func newSearchFixture(t *testing.T) *searchFixture {
	f := &searchFixture{
		store:      newTestStore(t),
		catalog:    &fakeConnector{tag: models.SourceCatalog, resType: "book", year: "2001"},
		repository: &fakeConnector{tag: models.SourceRepository, resType: "Dataset", year: "2020"},
		discovery:  &fakeConnector{tag: models.SourceDiscovery, resType: "Book", year: "2001"},
	}
	f.svc = NewSearchService(
		[]connectors.Connector{f.catalog, f.repository, f.discovery},
		f.store, 2*time.Second, zap.NewNop())
	return f
}

func sources(results []models.CanonicalResult) []models.SourceTag {
	out := make([]models.SourceTag, 0, len(results))
	for _, r := range results {
		out = append(out, r.SourceTag)
	}
	return out
}

func TestSubLimit(t *testing.T) {
	assert.Equal(t, 10, SubLimit(models.SourceCatalog, 20))
	assert.Equal(t, 10, SubLimit(models.SourceRepository, 20))
	assert.Equal(t, 5, SubLimit(models.SourceDiscovery, 20))
	assert.Equal(t, 5, SubLimit(models.SourceDiscovery, 100))
	assert.Equal(t, 1, SubLimit(models.SourceDiscovery, 4))
	assert.Equal(t, 5, SubLimit(models.SourceLocal, 20))
	assert.Equal(t, 0, SubLimit(models.SourceLocal, 3))
}

func TestUnifiedSearchConcatenatesInSourceOrder(t *testing.T) {
	f := newSearchFixture(t)
	seedResource(t, f.store, models.Resource{Title: "local water study"})

	resp := f.svc.UnifiedSearch(context.Background(), "water", models.SearchFilterSet{}, 40, "")

	assert.Equal(t, []int{20}, f.catalog.calledLimits())
	assert.Equal(t, []int{20}, f.repository.calledLimits())
	assert.Equal(t, []int{5}, f.discovery.calledLimits())

	require.Len(t, resp.Results, 40)
	assert.Equal(t, len(resp.Results), resp.Total)
	assert.Equal(t, models.SourceCatalog, resp.Results[0].SourceTag)
	assert.Equal(t, models.SourceRepository, resp.Results[20].SourceTag)

	var concatenated []models.CanonicalResult
	for _, tag := range models.SearchOrder {
		concatenated = append(concatenated, resp.Grouped[tag]...)
	}
	assert.Equal(t, concatenated[:40], resp.Results)
	assert.Len(t, resp.Grouped[models.SourceDiscovery], 5)
	require.Len(t, resp.Grouped[models.SourceLocal], 1)
	assert.Equal(t, "local water study", resp.Grouped[models.SourceLocal][0].Title)
	assert.Equal(t, "water", resp.Query)
}

func TestUnifiedSearchTruncatesToLimit(t *testing.T) {
	f := newSearchFixture(t)
	seedResource(t, f.store, models.Resource{Title: "a"})

	resp := f.svc.UnifiedSearch(context.Background(), "", models.SearchFilterSet{}, 4, "")

	assert.Equal(t, []models.SourceTag{
		models.SourceCatalog, models.SourceCatalog, models.SourceRepository, models.SourceRepository,
	}, sources(resp.Results))
	assert.Equal(t, 4, resp.Total)
	assert.Len(t, resp.Grouped[models.SourceDiscovery], 1)
	assert.Len(t, resp.Grouped[models.SourceLocal], 1)
}

func TestUnifiedSearchSourceFilterKeepsGroupedQuirk(t *testing.T) {
	f := newSearchFixture(t)
	seedResource(t, f.store, models.Resource{Title: "local item"})

	resp := f.svc.UnifiedSearch(context.Background(), "", models.SearchFilterSet{Source: models.SourceCatalog}, 20, "")

	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, models.SourceCatalog, r.SourceTag)
	}
	assert.Equal(t, len(resp.Results), resp.Total)
	assert.NotEmpty(t, resp.Grouped[models.SourceRepository])
	assert.NotEmpty(t, resp.Grouped[models.SourceDiscovery])
	assert.Empty(t, resp.Grouped[models.SourceLocal], "local store is skipped for a foreign source filter")
}

func TestUnifiedSearchLocalSourceFilter(t *testing.T) {
	f := newSearchFixture(t)
	seedResource(t, f.store, models.Resource{Title: "local item"})

	resp := f.svc.UnifiedSearch(context.Background(), "", models.SearchFilterSet{Source: models.SourceLocal}, 20, "")

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "local_1", resp.Results[0].CompositeID)
	assert.NotEmpty(t, resp.Grouped[models.SourceCatalog])
}

func TestUnifiedSearchTypeAndYearFilters(t *testing.T) {
	f := newSearchFixture(t)
	seedResource(t, f.store, models.Resource{Title: "old local book", ResourceType: "book", Year: "2001"})
	seedResource(t, f.store, models.Resource{Title: "new local book", ResourceType: "book", Year: "2022"})

	resp := f.svc.UnifiedSearch(context.Background(), "", models.SearchFilterSet{ResourceType: "book", Year: "2001"}, 20, "")

	for _, r := range resp.Results {
		assert.Equal(t, "book", r.ResourceType)
		assert.Equal(t, "2001", r.Year)
	}
	// Katalog (10) plus die passende lokale Ressource; "Book" aus Discovery passt nicht exakt.
	assert.Equal(t, 11, resp.Total)
	assert.Len(t, resp.Grouped[models.SourceDiscovery], 5)
	assert.Len(t, resp.Grouped[models.SourceLocal], 1)
}

func TestUnifiedSearchAllBackendsDown(t *testing.T) {
	f := newSearchFixture(t)
	f.catalog.authFail = true
	f.repository.authFail = true
	f.discovery.authFail = true
	seedResource(t, f.store, models.Resource{Title: "anything at all"})

	resp := f.svc.UnifiedSearch(context.Background(), "anything", models.SearchFilterSet{}, 20, "")

	assert.Equal(t, []models.SourceTag{models.SourceLocal}, sources(resp.Results))
	assert.Equal(t, len(resp.Results), resp.Total)
	assert.Empty(t, f.catalog.calledLimits(), "search is skipped after failed authentication")
	for _, tag := range models.SearchOrder {
		assert.Contains(t, resp.Grouped, tag)
	}

	var logs []models.SearchLog
	require.NoError(t, f.store.DB.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "anything", logs[0].Query)
	assert.Equal(t, AnonymousRequester, logs[0].Requester)
	assert.Equal(t, 1, logs[0].ResultsCount)
}

func TestUnifiedSearchCompositeIDsAreUnique(t *testing.T) {
	f := newSearchFixture(t)
	f.catalog.err = errors.New("timeout")
	mirror := seedResource(t, f.store, models.Resource{
		Title: "published mirror", SourceTag: models.SourceRepository, ExternalID: "1",
	})
	upload := seedResource(t, f.store, models.Resource{Title: "uploaded notes"})

	resp := f.svc.UnifiedSearch(context.Background(), "", models.SearchFilterSet{}, 40, "")

	require.Len(t, resp.Results, 20+5+2)
	seen := make(map[string]struct{}, len(resp.Results))
	for _, r := range resp.Results {
		seen[r.CompositeID] = struct{}{}
	}
	assert.Len(t, seen, len(resp.Results))
	assert.Contains(t, seen, "repository_1")
	assert.Contains(t, seen, fmt.Sprintf("local_%d", mirror.ID))
	assert.Contains(t, seen, fmt.Sprintf("local_%d", upload.ID))
}

func TestUnifiedSearchIsolatesFailures(t *testing.T) {
	f := newSearchFixture(t)
	f.catalog.err = errors.New("timeout")
	f.discovery.panics = true

	resp := f.svc.UnifiedSearch(context.Background(), "x", models.SearchFilterSet{}, 20, "bob")

	assert.Equal(t, 10, resp.Total)
	for _, r := range resp.Results {
		assert.Equal(t, models.SourceRepository, r.SourceTag)
	}
	assert.Empty(t, resp.Grouped[models.SourceCatalog])
	assert.Empty(t, resp.Grouped[models.SourceDiscovery])

	var log models.SearchLog
	require.NoError(t, f.store.DB.First(&log).Error)
	assert.Equal(t, "bob", log.Requester)
}

func TestUnifiedSearchZeroLimitCallsNobody(t *testing.T) {
	f := newSearchFixture(t)

	resp := f.svc.UnifiedSearch(context.Background(), "x", models.SearchFilterSet{}, 0, "")

	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, resp.Total)
	assert.Empty(t, f.catalog.calledLimits())
	assert.Empty(t, f.discovery.calledLimits())
}
