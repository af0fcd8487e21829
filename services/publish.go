package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"resource-hub/connectors/dspace"
	"resource-hub/connectors/koha"
	"resource-hub/connectors/vufind"
	"resource-hub/models"
	"resource-hub/storage"
)

// RepositoryStorer legt Objekte im Repository an.
type RepositoryStorer interface {
	Store(ctx context.Context, in dspace.StoreRequest) (*dspace.StoreResult, error)
}

// Cataloger legt Titelsätze im Katalog an.
type Cataloger interface {
	Catalogize(ctx context.Context, in koha.CatalogRequest) (*koha.CatalogResult, error)
}

// Indexer schreibt Datensätze in den Discovery-Index.
type Indexer interface {
	Index(ctx context.Context, in vufind.IndexRequest) (*vufind.IndexResult, error)
}

// PublishService veröffentlicht eine Datei nacheinander in Repository, Katalog
// und Discovery-Index. Nur der erste Schritt ist zwingend; spätere Fehler
// werden im Bericht markiert und vom Abgleich-Job nachgeholt.
type PublishService struct {
	Repository RepositoryStorer
	Catalog    Cataloger
	Discovery  Indexer
	Store      *ResourceStore
	Blobs      storage.BlobStore
	Logger     *zap.Logger

	validate *validator.Validate
}

// NewPublishService erstellt eine neue Instanz des PublishService.
func NewPublishService(repo RepositoryStorer, catalog Cataloger, discovery Indexer, store *ResourceStore, blobs storage.BlobStore, logger *zap.Logger) *PublishService {
	return &PublishService{
		Repository: repo,
		Catalog:    catalog,
		Discovery:  discovery,
		Store:      store,
		Blobs:      blobs,
		Logger:     logger,
		validate:   validator.New(),
	}
}

// Validate prüft die Angaben, bevor irgendein Backend angesprochen wird.
func (p *PublishService) Validate(file models.PublishFile, meta models.PublishMetadata) error {
	if strings.TrimSpace(meta.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if err := p.validate.Struct(meta); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: invalid fields: %s", ErrValidation, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if len(file.Content) == 0 {
		return fmt.Errorf("%w: file is required", ErrValidation)
	}
	return nil
}

// Publish führt die Veröffentlichung durch. ErrValidation und ErrStoreFailed
// brechen ab, ohne eine lokale Ressource anzulegen.
func (p *PublishService) Publish(ctx context.Context, file models.PublishFile, meta models.PublishMetadata) (*models.PublishReport, error) {
	if err := p.Validate(file, meta); err != nil {
		return nil, err
	}
	file = withContentType(file)
	log := p.Logger.With(zap.String("title", meta.Title), zap.String("file", file.Name))

	// 1. Repository
	stored, err := p.Repository.Store(ctx, dspace.StoreRequest{Metadata: meta, File: file})
	publishStepsTotal.WithLabelValues("repository", outcome(err == nil)).Inc()
	if err != nil {
		log.Error("Speichern im Repository fehlgeschlagen", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	log = log.With(zap.String("uuid", stored.UUID))
	log.Info("Im Repository gespeichert", zap.Bool("simulated", stored.Simulated))

	report := &models.PublishReport{
		RepositoryURL:     stored.ViewURL,
		IntegrationStatus: models.IntegrationStatus{Repository: true},
		Simulated:         stored.Simulated,
	}
	bag := newMetadataBag(meta, stored)

	// 2. Katalog
	if cat, err := p.catalogize(ctx, meta, stored.ViewURL); err != nil {
		log.Warn("Katalogisierung fehlgeschlagen", zap.Error(err))
		bag.recordFailure("catalog", err)
	} else {
		report.CatalogURL = cat.OPACURL
		report.IntegrationStatus.Catalog = true
		bag.recordCatalog(cat)
	}

	// 3. Discovery-Index
	if idx, err := p.index(ctx, meta, stored.UUID, stored.ViewURL); err != nil {
		log.Warn("Indexierung fehlgeschlagen", zap.Error(err))
		bag.recordFailure("discovery", err)
	} else {
		report.DiscoveryURL = idx.RecordURL
		report.IntegrationStatus.Discovery = true
		bag.recordIndex(idx)
	}

	// Kopie für Vorschau und Download, solange das Item im Workflow liegt.
	blobKey := p.archive(ctx, log, stored.UUID, file)

	// 4. Lokale Ressource
	resource := &models.Resource{
		Title:           meta.Title,
		Authors:         meta.Authors,
		Description:     meta.Summary(),
		SourceTag:       models.SourceRepository,
		ExternalID:      stored.UUID,
		ResourceType:    meta.Type(),
		Year:            meta.DateYear,
		Publisher:       meta.Publisher,
		Availability:    "Open Access",
		DownloadURL:     stored.DownloadURL,
		ViewURL:         stored.ViewURL,
		BlobKey:         blobKey,
		ContentType:     file.ContentType,
		FileSize:        int64(len(file.Content)),
		CatalogSynced:   report.IntegrationStatus.Catalog,
		DiscoverySynced: report.IntegrationStatus.Discovery,
		Metadata:        bag.JSONMap(),
	}
	if err := p.Store.Upsert(ctx, resource); err != nil {
		log.Error("Lokale Ressource konnte nicht gespeichert werden", zap.Error(err))
		return nil, fmt.Errorf("saving local resource: %w", err)
	}
	report.Resource = resource

	log.Info("Veröffentlichung abgeschlossen",
		zap.Uint("resource_id", resource.ID),
		zap.Bool("catalog", report.IntegrationStatus.Catalog),
		zap.Bool("discovery", report.IntegrationStatus.Discovery))
	return report, nil
}

// UploadLocal speichert eine Datei nur im Blob-Speicher und legt eine lokale
// Ressource für uploader an. Die Backend-Systeme werden nicht angesprochen.
func (p *PublishService) UploadLocal(ctx context.Context, file models.PublishFile, meta models.PublishMetadata, uploader string) (*models.Resource, error) {
	if err := p.Validate(file, meta); err != nil {
		return nil, err
	}
	if p.Blobs == nil {
		return nil, errors.New("no blob store configured")
	}
	file = withContentType(file)
	id := uuid.NewString()
	key := BlobKey("uploads", id, file.Name)
	if err := p.Blobs.Put(ctx, key, file.Content, file.ContentType); err != nil {
		return nil, fmt.Errorf("storing file: %w", err)
	}

	resource := &models.Resource{
		Title:        meta.Title,
		Authors:      meta.Authors,
		Description:  meta.Summary(),
		SourceTag:    models.SourceLocal,
		ExternalID:   id,
		ResourceType: meta.Type(),
		Year:         meta.DateYear,
		Publisher:    meta.Publisher,
		Availability: "Available",
		BlobKey:      key,
		ContentType:  file.ContentType,
		FileSize:     int64(len(file.Content)),
		Uploader:     requesterOrAnonymous(uploader),
		Metadata:     datatypes.JSONMap{"publish": toMap(meta), "original_filename": file.Name},
	}
	if err := p.Store.Upsert(ctx, resource); err != nil {
		return nil, fmt.Errorf("saving local resource: %w", err)
	}
	p.Logger.Info("Lokale Datei gespeichert", zap.Uint("resource_id", resource.ID), zap.String("key", key))
	return resource, nil
}

func (p *PublishService) catalogize(ctx context.Context, meta models.PublishMetadata, locator string) (*koha.CatalogResult, error) {
	if p.Catalog == nil {
		return nil, errors.New("catalog connector not configured")
	}
	return p.Catalog.Catalogize(ctx, koha.CatalogRequest{Metadata: meta, Locator: locator})
}

func (p *PublishService) index(ctx context.Context, meta models.PublishMetadata, repositoryUUID, locator string) (*vufind.IndexResult, error) {
	if p.Discovery == nil {
		return nil, errors.New("discovery connector not configured")
	}
	return p.Discovery.Index(ctx, vufind.IndexRequest{
		RecordID: IndexRecordID(repositoryUUID),
		Metadata: meta,
		Locator:  locator,
	})
}

// archive legt die Datei im Blob-Speicher ab. Fehler werden nur protokolliert.
func (p *PublishService) archive(ctx context.Context, log *zap.Logger, id string, file models.PublishFile) string {
	if p.Blobs == nil {
		return ""
	}
	key := BlobKey("publications", id, file.Name)
	if err := p.Blobs.Put(ctx, key, file.Content, file.ContentType); err != nil {
		log.Warn("Datei konnte nicht archiviert werden", zap.String("key", key), zap.Error(err))
		return ""
	}
	return key
}

// IndexRecordID bildet die Kennung im Discovery-Index aus der Repository-UUID.
func IndexRecordID(repositoryUUID string) string {
	return "repository-" + repositoryUUID
}

// maxBlobName begrenzt den Dateinamen im Schlüssel, damit er in die
// Spalte blob_key passt.
const maxBlobName = 200

// BlobKey bildet einen Schlüssel ohne Pfadbestandteile aus dem Dateinamen.
// Zu lange Namen werden unter Erhalt der Endung gekürzt.
func BlobKey(prefix, id, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	if utf8.RuneCountInString(name) > maxBlobName {
		ext := path.Ext(name)
		if utf8.RuneCountInString(ext) > 16 {
			ext = ""
		}
		name = truncateRunes(strings.TrimSuffix(name, ext), maxBlobName-utf8.RuneCountInString(ext)) + ext
	}
	return prefix + "/" + id + "/" + name
}

// withContentType ergänzt Dateiname und Inhaltstyp, wenn der Client sie nicht mitschickt.
func withContentType(file models.PublishFile) models.PublishFile {
	if file.Name == "" {
		file.Name = "upload"
	}
	if file.ContentType == "" || file.ContentType == "application/octet-stream" || len(file.ContentType) > models.MaxContentType {
		file.ContentType = mimetype.Detect(file.Content).String()
	}
	return file
}

// metadataBag sammelt die Veröffentlichungsangaben und alle Kennungen der
// Zielsysteme für die Nachvollziehbarkeit.
type metadataBag map[string]any

func newMetadataBag(meta models.PublishMetadata, stored *dspace.StoreResult) metadataBag {
	bag := metadataBag{
		"publish": toMap(meta),
		"repository": map[string]any{
			"uuid":         stored.UUID,
			"handle":       stored.Handle,
			"view_url":     stored.ViewURL,
			"download_url": stored.DownloadURL,
		},
		"simulated": stored.Simulated,
		"errors":    map[string]any{},
	}
	return bag
}

func (b metadataBag) recordFailure(step string, err error) {
	errs, _ := b["errors"].(map[string]any)
	if errs == nil {
		errs = map[string]any{}
		b["errors"] = errs
	}
	errs[step] = err.Error()
}

func (b metadataBag) clearFailure(step string) {
	if errs, ok := b["errors"].(map[string]any); ok {
		delete(errs, step)
	}
}

func (b metadataBag) recordCatalog(res *koha.CatalogResult) {
	b.clearFailure("catalog")
	b["catalog"] = map[string]any{
		"biblio_id":     res.BiblioID,
		"opac_url":      res.OPACURL,
		"item_attached": res.ItemAttached,
	}
}

func (b metadataBag) recordIndex(res *vufind.IndexResult) {
	b.clearFailure("discovery")
	b["discovery"] = map[string]any{
		"record_id":  res.RecordID,
		"record_url": res.RecordURL,
	}
}

func (b metadataBag) publishMetadata() (models.PublishMetadata, error) {
	var meta models.PublishMetadata
	raw, err := json.Marshal(b["publish"])
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(raw, &meta)
	return meta, err
}

func (b metadataBag) JSONMap() datatypes.JSONMap {
	return datatypes.JSONMap(b)
}

func toMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return out
}
