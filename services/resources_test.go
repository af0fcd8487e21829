package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-hub/models"
)

func TestResourceStoreSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedResource(t, s, models.Resource{Title: "Solar Energy Atlas", ResourceType: "Dataset", Year: "2020"})
	seedResource(t, s, models.Resource{Title: "Wind report", Description: "solar and wind", ResourceType: "Report", Year: "2021"})
	seedResource(t, s, models.Resource{Title: "Hydrology", Authors: "Solarz, K.", ResourceType: "Report", Year: "2020"})
	seedResource(t, s, models.Resource{Title: "Unrelated"})

	all, err := s.Search(ctx, "SOLAR", models.SearchFilterSet{}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	reports, err := s.Search(ctx, "solar", models.SearchFilterSet{ResourceType: "Report", Year: "2020"}, 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Hydrology", reports[0].Title)

	limited, err := s.Search(ctx, "", models.SearchFilterSet{}, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := s.Search(ctx, "solar", models.SearchFilterSet{}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResourceStoreUpsertNeverDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := &models.Resource{Title: "v1", SourceTag: models.SourceRepository, ExternalID: "uuid-1"}
	require.NoError(t, s.Upsert(ctx, first))
	require.NoError(t, s.IncrementView(ctx, first.ID))

	second := &models.Resource{Title: "v2", SourceTag: models.SourceRepository, ExternalID: "uuid-1"}
	require.NoError(t, s.Upsert(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "v2", second.Title)
	assert.Equal(t, 1, second.ViewCount, "counters survive an upsert")

	var count int64
	require.NoError(t, s.DB.Model(&models.Resource{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	other := &models.Resource{Title: "v1", SourceTag: models.SourceLocal, ExternalID: "uuid-1"}
	require.NoError(t, s.Upsert(ctx, other))
	assert.NotEqual(t, first.ID, other.ID)
}

func TestResourceStoreConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := seedResource(t, s, models.Resource{Title: "Popular"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementDownload(ctx, r.ID))
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.DownloadCount)
	assert.Equal(t, 0, got.ViewCount)
}

func TestResourceStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.IncrementView(ctx, 99), ErrNotFound)
}

func TestResourceStoreRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for i, title := range []string{"old", "middle", "new"} {
		r := models.Resource{Title: title, SourceTag: models.SourceLocal, ExternalID: title,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.Upsert(ctx, &r))
	}

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "new", recent[0].Title)
	assert.Equal(t, "middle", recent[1].Title)
}

func TestResourceStoreLogs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.LogSearch(ctx, "water", "", 3))
	require.NoError(t, s.LogSearch(ctx, "soil", "alice", 0))
	require.NoError(t, s.LogDownload(ctx, 1, " "))

	var logs []models.SearchLog
	require.NoError(t, s.DB.Order("id").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, AnonymousRequester, logs[0].Requester)
	assert.Equal(t, 3, logs[0].ResultsCount)
	assert.Equal(t, "alice", logs[1].Requester)

	var dl models.DownloadLog
	require.NoError(t, s.DB.First(&dl).Error)
	assert.Equal(t, AnonymousRequester, dl.Requester)
}

func TestResourceStoreLogsAreBounded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.LogSearch(ctx, strings.Repeat("ü", 600), strings.Repeat("r", 200), 0))

	var entry models.SearchLog
	require.NoError(t, s.DB.First(&entry).Error)
	assert.Equal(t, models.MaxLoggedQuery, utf8.RuneCountInString(entry.Query))
	assert.Equal(t, models.MaxLoggedRequester, utf8.RuneCountInString(entry.Requester))
}

func TestResourceStoreDownloadsFor(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := seedResource(t, s, models.Resource{Title: "first"})
	b := seedResource(t, s, models.Resource{Title: "second"})

	require.NoError(t, s.LogDownload(ctx, a.ID, "alice"))
	require.NoError(t, s.LogDownload(ctx, b.ID, "alice"))
	require.NoError(t, s.LogDownload(ctx, b.ID, "bob"))

	entries, err := s.DownloadsFor(ctx, "alice", 20)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].ResourceTitle)
	assert.Equal(t, b.ID, entries[0].ResourceID)
	assert.Equal(t, "first", entries[1].ResourceTitle)

	entries, err = s.DownloadsFor(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = s.DownloadsFor(ctx, "nobody", 20)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestResourceStoreLocalUploads(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedResource(t, s, models.Resource{Title: "Water report", Uploader: "alice"})
	seedResource(t, s, models.Resource{Title: "Soil survey", Uploader: "alice"})
	seedResource(t, s, models.Resource{Title: "Water of bob", Uploader: "bob"})
	seedResource(t, s, models.Resource{Title: "Water mirror", Uploader: "alice", SourceTag: models.SourceRepository})

	all, err := s.LocalUploads(ctx, "alice", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Soil survey", all[0].Title)

	found, err := s.LocalUploads(ctx, "alice", " water ", 20)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Water report", found[0].Title)

	limited, err := s.LocalUploads(ctx, "alice", "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestResourceStorePendingSync(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedResource(t, s, models.Resource{Title: "done", SourceTag: models.SourceRepository, CatalogSynced: true, DiscoverySynced: true})
	seedResource(t, s, models.Resource{Title: "no catalog", SourceTag: models.SourceRepository, DiscoverySynced: true})
	seedResource(t, s, models.Resource{Title: "nothing", SourceTag: models.SourceRepository})
	seedResource(t, s, models.Resource{Title: "local file", SourceTag: models.SourceLocal})

	pending, err := s.PendingSync(ctx, 10)
	require.NoError(t, err)
	var titles []string
	for _, r := range pending {
		titles = append(titles, r.Title)
	}
	assert.ElementsMatch(t, []string{"no catalog", "nothing"}, titles)
}

func TestLocalResultUsesLocalTag(t *testing.T) {
	r := models.Resource{ID: 7, Title: "T", SourceTag: models.SourceRepository, ExternalID: "uuid-7", ViewURL: "http://ui/items/uuid-7"}
	got := localResult(r)
	assert.Equal(t, "local_7", got.CompositeID)
	assert.Equal(t, models.SourceLocal, got.SourceTag)
	assert.Equal(t, "Local Repository", got.SourceDisplayName)
	assert.Equal(t, "http://ui/items/uuid-7", got.URL)
	assert.Equal(t, "Available", got.Availability)

	assert.Equal(t, "/api/resources/8/", localResult(models.Resource{ID: 8}).URL)
}
