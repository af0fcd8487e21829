package models

import (
	"time"

	"gorm.io/datatypes"
)

// Resource ist der lokal persistierte Datensatz einer Ressource. Er spiegelt
// veröffentlichte Repository-Objekte und lokal hochgeladene Dateien.
type Resource struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	Title        string    `json:"title" gorm:"size:500;not null"`
	Authors      string    `json:"authors" gorm:"size:500"`
	Description  string    `json:"description" gorm:"type:text"`
	SourceTag    SourceTag `json:"source" gorm:"size:20;not null;uniqueIndex:idx_resources_source_external"`
	ExternalID   string    `json:"external_id" gorm:"size:100;not null;uniqueIndex:idx_resources_source_external"`
	ResourceType string    `json:"resource_type" gorm:"size:50;index"`
	Year         string    `json:"year" gorm:"size:10;index"`
	Publisher    string    `json:"publisher,omitempty" gorm:"size:200"`
	Availability string    `json:"availability" gorm:"size:50"`

	DownloadURL string `json:"download_url,omitempty"`
	ViewURL     string `json:"view_url,omitempty"`
	// BlobKey verweist auf die Datei im Blob-Speicher, falls lokal vorhanden.
	BlobKey     string `json:"-" gorm:"size:300"`
	ContentType string `json:"content_type,omitempty" gorm:"size:100"`
	FileSize    int64  `json:"file_size,omitempty"`
	// Uploader ist nur bei lokalen Uploads gesetzt.
	Uploader string `json:"uploader,omitempty" gorm:"size:150;index"`

	DownloadCount int `json:"download_count" gorm:"default:0"`
	ViewCount     int `json:"view_count" gorm:"default:0"`

	// Abgleichstatus der Veröffentlichung; nur für Repository-Objekte relevant.
	CatalogSynced   bool `json:"catalog_synced" gorm:"index;default:false"`
	DiscoverySynced bool `json:"discovery_synced" gorm:"index;default:false"`

	Metadata datatypes.JSONMap `json:"metadata" gorm:"type:json"`
}

// TableName gibt explizit den Tabellennamen an.
func (Resource) TableName() string {
	return "resources"
}

// Spaltenbreiten, die vor dem Schreiben eingehalten werden.
const (
	MaxLoggedQuery     = 500
	MaxLoggedRequester = 150
	MaxContentType     = 100
)

// SearchLog protokolliert jede Suchanfrage, auch wenn alle Quellen ausfallen.
type SearchLog struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
	Query        string    `json:"query" gorm:"size:500"`
	Requester    string    `json:"requester" gorm:"size:150;index"`
	ResultsCount int       `json:"results_count"`
}

func (SearchLog) TableName() string { return "search_logs" }

// DownloadLog protokolliert Downloads lokaler Ressourcen.
type DownloadLog struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time `json:"created_at"`
	ResourceID uint      `json:"resource_id" gorm:"index;not null"`
	Requester  string    `json:"requester" gorm:"size:150;index"`
}

func (DownloadLog) TableName() string { return "download_logs" }

// DownloadEntry ist ein Eintrag im Download-Verlauf eines Nutzers.
type DownloadEntry struct {
	ID            uint      `json:"id"`
	ResourceID    uint      `json:"resource_id"`
	ResourceTitle string    `json:"resource_title"`
	CreatedAt     time.Time `json:"created_at"`
}
