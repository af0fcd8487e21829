package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"resource-hub/models"
)

func TestReconcileRetriesFailedSteps(t *testing.T) {
	f := newPublishFixture(t)
	f.catalog.err = errors.New("koha down")
	f.index.err = errors.New("solr down")

	report, err := f.svc.Publish(context.Background(), pdf, models.PublishMetadata{Title: "Energy report", Authors: "MInT"})
	require.NoError(t, err)
	require.False(t, report.IntegrationStatus.Catalog)
	require.False(t, report.IntegrationStatus.Discovery)

	rec := NewReconcileService(f.svc, f.store, 10, zap.NewNop())

	// Katalog wieder erreichbar, Index noch nicht.
	f.catalog.err = nil
	run, err := rec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 1, Catalog: 1}, run)
	assert.Equal(t, "http://ui/handle/123456789/1", f.catalog.lastLocator)

	stored, err := f.store.Get(context.Background(), report.Resource.ID)
	require.NoError(t, err)
	assert.True(t, stored.CatalogSynced)
	assert.False(t, stored.DiscoverySynced)
	errs, _ := stored.Metadata["errors"].(map[string]any)
	assert.NotContains(t, errs, "catalog")
	assert.Contains(t, errs, "discovery")

	f.index.err = nil
	run, err = rec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 1, Discovery: 1}, run)
	assert.Equal(t, "repository-item-1", f.index.lastID)

	run, err = rec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, run)
	assert.Equal(t, 2, f.catalog.calls, "synced steps are not repeated")
}

func TestReconcileFallsBackToResourceTitle(t *testing.T) {
	f := newPublishFixture(t)
	seedResource(t, f.store, models.Resource{
		Title: "Imported item", SourceTag: models.SourceRepository, ExternalID: "legacy-1",
		ViewURL: "http://ui/items/legacy-1", CatalogSynced: false, DiscoverySynced: true,
	})

	run, err := NewReconcileService(f.svc, f.store, 10, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, run.Catalog)
	assert.Equal(t, "http://ui/items/legacy-1", f.catalog.lastLocator)
}
