package services

import (
	"context"

	"go.uber.org/zap"

	"resource-hub/models"
)

// ReconcileService holt fehlgeschlagene Katalog- und Index-Schritte für
// bereits im Repository gespeicherte Ressourcen nach.
type ReconcileService struct {
	Publish   *PublishService
	Store     *ResourceStore
	BatchSize int
	Logger    *zap.Logger
}

// NewReconcileService erstellt eine neue Instanz des ReconcileService.
func NewReconcileService(publish *PublishService, store *ResourceStore, batchSize int, logger *zap.Logger) *ReconcileService {
	return &ReconcileService{Publish: publish, Store: store, BatchSize: batchSize, Logger: logger}
}

// ReconcileReport zählt die Ergebnisse eines Laufs.
type ReconcileReport struct {
	Checked   int `json:"checked"`
	Catalog   int `json:"catalog"`
	Discovery int `json:"discovery"`
	Failed    int `json:"failed"`
}

// Run bearbeitet höchstens BatchSize offene Ressourcen.
func (r *ReconcileService) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	pending, err := r.Store.PendingSync(ctx, r.BatchSize)
	if err != nil {
		r.Logger.Error("Offene Ressourcen konnten nicht geladen werden", zap.Error(err))
		return report, err
	}

	for i := range pending {
		res := &pending[i]
		report.Checked++
		if err := r.reconcile(ctx, res, &report); err != nil {
			report.Failed++
			r.Logger.Error("Abgleich fehlgeschlagen", zap.Uint("resource_id", res.ID), zap.Error(err))
		}
	}
	r.Logger.Info("Abgleich abgeschlossen",
		zap.Int("checked", report.Checked),
		zap.Int("catalog", report.Catalog),
		zap.Int("discovery", report.Discovery),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (r *ReconcileService) reconcile(ctx context.Context, res *models.Resource, report *ReconcileReport) error {
	bag := metadataBag(res.Metadata)
	if bag == nil {
		bag = metadataBag{}
	}
	meta, err := bag.publishMetadata()
	if err != nil {
		return err
	}
	if meta.Title == "" {
		meta.Title = res.Title
	}
	log := r.Logger.With(zap.Uint("resource_id", res.ID), zap.String("uuid", res.ExternalID))
	changed := false

	if !res.CatalogSynced {
		cat, err := r.Publish.catalogize(ctx, meta, res.ViewURL)
		reconciledTotal.WithLabelValues("catalog", outcome(err == nil)).Inc()
		if err != nil {
			log.Warn("Katalogisierung erneut fehlgeschlagen", zap.Error(err))
			bag.recordFailure("catalog", err)
		} else {
			bag.recordCatalog(cat)
			res.CatalogSynced = true
			report.Catalog++
		}
		changed = true
	}

	if !res.DiscoverySynced {
		idx, err := r.Publish.index(ctx, meta, res.ExternalID, res.ViewURL)
		reconciledTotal.WithLabelValues("discovery", outcome(err == nil)).Inc()
		if err != nil {
			log.Warn("Indexierung erneut fehlgeschlagen", zap.Error(err))
			bag.recordFailure("discovery", err)
		} else {
			bag.recordIndex(idx)
			res.DiscoverySynced = true
			report.Discovery++
		}
		changed = true
	}

	if !changed {
		return nil
	}
	res.Metadata = bag.JSONMap()
	return r.Store.UpdateSync(ctx, res)
}
