package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resource-hub/models"
)

// AnonymousRequester wird protokolliert, wenn keine Identität mitgeschickt wurde.
const AnonymousRequester = "anonymous"

// RecentLimit ist die Anzahl der Einträge in der "Neu"-Liste.
const RecentLimit = 10

// ResourceStore kapselt den Zugriff auf die lokale Ressourcentabelle und die Protokolle.
type ResourceStore struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewResourceStore erstellt einen neuen ResourceStore.
func NewResourceStore(db *gorm.DB, logger *zap.Logger) *ResourceStore {
	return &ResourceStore{DB: db, Logger: logger}
}

// Search sucht per Teilstring in Titel, Beschreibung und Verfassern. Typ- und
// Jahresfilter werden direkt auf die Spalten angewendet.
func (s *ResourceStore) Search(ctx context.Context, query string, filters models.SearchFilterSet, limit int) ([]models.Resource, error) {
	if limit <= 0 {
		return []models.Resource{}, nil
	}
	q := s.DB.WithContext(ctx).Model(&models.Resource{})
	if term := strings.ToLower(strings.TrimSpace(query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(authors) LIKE ?", like, like, like)
	}
	if filters.ResourceType != "" {
		q = q.Where("resource_type = ?", filters.ResourceType)
	}
	if filters.Year != "" {
		q = q.Where("year = ?", filters.Year)
	}

	var resources []models.Resource
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

// Upsert legt die Ressource an oder aktualisiert den bestehenden Eintrag mit
// gleicher (source_tag, external_id). Zähler bleiben dabei erhalten.
func (s *ResourceStore) Upsert(ctx context.Context, r *models.Resource) error {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source_tag"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"updated_at", "title", "authors", "description", "resource_type", "year", "publisher",
			"availability", "download_url", "view_url", "blob_key", "content_type", "file_size",
			"catalog_synced", "discovery_synced", "metadata",
		}),
	}).Create(r).Error
	if err != nil {
		return err
	}
	// Bei einem Konflikt liefern nicht alle Treiber die ID zurück.
	return s.DB.WithContext(ctx).
		Where("source_tag = ? AND external_id = ?", r.SourceTag, r.ExternalID).
		First(r).Error
}

// Get lädt eine Ressource.
func (s *ResourceStore) Get(ctx context.Context, id uint) (*models.Resource, error) {
	var r models.Resource
	if err := s.DB.WithContext(ctx).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// IncrementView erhöht view_count atomar in der Datenbank.
func (s *ResourceStore) IncrementView(ctx context.Context, id uint) error {
	return s.increment(ctx, id, "view_count")
}

// IncrementDownload erhöht download_count atomar in der Datenbank.
func (s *ResourceStore) IncrementDownload(ctx context.Context, id uint) error {
	return s.increment(ctx, id, "download_count")
}

func (s *ResourceStore) increment(ctx context.Context, id uint, column string) error {
	res := s.DB.WithContext(ctx).Model(&models.Resource{}).Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Recent liefert die zuletzt angelegten Ressourcen.
func (s *ResourceStore) Recent(ctx context.Context, n int) ([]models.Resource, error) {
	var resources []models.Resource
	err := s.DB.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(n).Find(&resources).Error
	return resources, err
}

// All liefert alle Ressourcen in Anlagereihenfolge.
func (s *ResourceStore) All(ctx context.Context) ([]models.Resource, error) {
	var resources []models.Resource
	err := s.DB.WithContext(ctx).Order("id ASC").Find(&resources).Error
	return resources, err
}

// LogSearch schreibt einen Eintrag ins Suchprotokoll.
func (s *ResourceStore) LogSearch(ctx context.Context, query, requester string, results int) error {
	return s.DB.WithContext(ctx).Create(&models.SearchLog{
		Query:        truncateRunes(query, models.MaxLoggedQuery),
		Requester:    requesterOrAnonymous(requester),
		ResultsCount: results,
	}).Error
}

// LogDownload schreibt einen Eintrag ins Download-Protokoll.
func (s *ResourceStore) LogDownload(ctx context.Context, resourceID uint, requester string) error {
	return s.DB.WithContext(ctx).Create(&models.DownloadLog{
		ResourceID: resourceID,
		Requester:  requesterOrAnonymous(requester),
	}).Error
}

// DownloadsFor liefert den Download-Verlauf eines Nutzers, neueste zuerst.
func (s *ResourceStore) DownloadsFor(ctx context.Context, requester string, limit int) ([]models.DownloadEntry, error) {
	entries := []models.DownloadEntry{}
	err := s.DB.WithContext(ctx).
		Table("download_logs").
		Select("download_logs.id, download_logs.resource_id, resources.title AS resource_title, download_logs.created_at").
		Joins("JOIN resources ON resources.id = download_logs.resource_id").
		Where("download_logs.requester = ?", requesterOrAnonymous(requester)).
		Order("download_logs.created_at DESC").Order("download_logs.id DESC").
		Limit(limit).
		Scan(&entries).Error
	return entries, err
}

// LocalUploads liefert die lokalen Uploads eines Nutzers, neueste zuerst.
// Ein nicht leerer query filtert nach dem Titel; limit <= 0 liefert alle.
func (s *ResourceStore) LocalUploads(ctx context.Context, uploader, query string, limit int) ([]models.Resource, error) {
	resources := []models.Resource{}
	tx := s.DB.WithContext(ctx).
		Where("source_tag = ?", models.SourceLocal).
		Where("uploader = ?", requesterOrAnonymous(uploader))
	if q := strings.TrimSpace(query); q != "" {
		tx = tx.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	err := tx.Order("created_at DESC").Order("id DESC").Find(&resources).Error
	return resources, err
}

// PendingSync liefert veröffentlichte Ressourcen, deren Katalog- oder
// Index-Schritt noch aussteht, älteste zuerst.
func (s *ResourceStore) PendingSync(ctx context.Context, limit int) ([]models.Resource, error) {
	var resources []models.Resource
	err := s.DB.WithContext(ctx).
		Where("source_tag = ?", models.SourceRepository).
		Where(s.DB.Where("catalog_synced = ?", false).Or("discovery_synced = ?", false)).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Find(&resources).Error
	return resources, err
}

// UpdateSync speichert Abgleichstatus und Metadaten.
func (s *ResourceStore) UpdateSync(ctx context.Context, r *models.Resource) error {
	return s.DB.WithContext(ctx).Model(r).
		Select("catalog_synced", "discovery_synced", "metadata").
		Updates(r).Error
}

func requesterOrAnonymous(requester string) string {
	if r := strings.TrimSpace(requester); r != "" {
		return truncateRunes(r, models.MaxLoggedRequester)
	}
	return AnonymousRequester
}

// truncateRunes kürzt s auf höchstens n Zeichen.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// localResult bildet eine lokale Ressource auf das kanonische Trefferformat ab.
// Die Kennung "local_{id}" kollidiert nicht mit Live-Treffern desselben Objekts.
func localResult(r models.Resource) models.CanonicalResult {
	id := strconv.FormatUint(uint64(r.ID), 10)
	url := r.ViewURL
	if url == "" {
		url = "/api/resources/" + id + "/"
	}
	availability := r.Availability
	if availability == "" {
		availability = "Available"
	}
	return models.CanonicalResult{
		CompositeID:       models.CompositeID(models.SourceLocal, id),
		Title:             r.Title,
		Authors:           r.Authors,
		Description:       r.Description,
		SourceTag:         models.SourceLocal,
		SourceDisplayName: models.SourceLocal.DisplayName(),
		ResourceType:      r.ResourceType,
		Year:              r.Year,
		ExternalID:        r.ExternalID,
		URL:               url,
		Availability:      availability,
	}
}
