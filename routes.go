package main

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"resource-hub/config"
	"resource-hub/connectors"
	"resource-hub/models"
	"resource-hub/services"
	"resource-hub/storage"
)

const (
	defaultSearchLimit = 20
	requesterKey       = "requester"
	maxUploadBytes     = 200 << 20
	historyLimit       = 20
)

var errFileTooLarge = errors.New("file too large")

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// requesterMiddleware übernimmt die Identität, die der vorgeschaltete Proxy
// nach der Anmeldung mitschickt.
func requesterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requesterKey, strings.TrimSpace(c.GetHeader("X-Remote-User")))
		c.Next()
	}
}

func requester(c *gin.Context) string {
	return c.GetString(requesterKey)
}

// resourceAPI bündelt die Abhängigkeiten der /api/resources-Endpunkte.
type resourceAPI struct {
	cfg     *config.Config
	store   *services.ResourceStore
	search  *services.SearchService
	publish *services.PublishService
	blobs   storage.BlobStore
	log     *zap.Logger
}

func setupResourceRoutes(router *gin.Engine, api *resourceAPI) {
	rg := router.Group("/api/resources")
	rg.Use(requesterMiddleware())

	rg.GET("/search/", api.handleSearch)
	rg.GET("/recent/", api.handleRecent)
	rg.GET("/:id/", api.handleDetail)
	rg.GET("/:id/download/", api.handleDownload)
	rg.GET("/:id/preview/", api.handlePreview)

	rg.GET("/downloads/", api.handleDownloads)
	rg.GET("/uploaded-files/", api.handleUploadedFiles)
	rg.GET("/search-files/", api.handleSearchFiles)

	write := rg.Group("/", apiKeyAuthMiddleware(api.cfg))
	write.POST("/upload/", api.handleUpload)
	write.POST("/upload-file/", api.handleUploadFile)
}

// parseLimit liest ?limit=, Standard 20, nach oben begrenzt.
func parseLimit(raw string, max int) (int, error) {
	if raw == "" {
		return min(defaultSearchLimit, max), nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return min(limit, max), nil
}

func (api *resourceAPI) handleSearch(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"), api.cfg.SearchMaxLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filters := models.SearchFilterSet{
		Source:       models.SourceTag(strings.TrimSpace(c.Query("source"))),
		ResourceType: strings.TrimSpace(c.Query("type")),
		Year:         strings.TrimSpace(c.Query("year")),
	}
	if filters.Source != "" && !filters.Source.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown source: " + string(filters.Source)})
		return
	}

	resp := api.search.UnifiedSearch(c.Request.Context(), c.Query("q"), filters, limit, requester(c))
	c.JSON(http.StatusOK, resp)
}

func (api *resourceAPI) handleRecent(c *gin.Context) {
	resources, err := api.store.Recent(c.Request.Context(), services.RecentLimit)
	if err != nil {
		api.log.Error("Database query for recent resources failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch resources"})
		return
	}
	c.JSON(http.StatusOK, resources)
}

// resourceID liest :id. Bei Fehlern ist die Antwort bereits geschrieben.
func (api *resourceAPI) resourceID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid resource id"})
		return 0, false
	}
	return uint(id), true
}

func (api *resourceAPI) abortWithStoreError(c *gin.Context, id uint, err error) {
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
		return
	}
	api.log.Error("Database error for resource", zap.Uint("id", id), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
}

func (api *resourceAPI) handleDetail(c *gin.Context) {
	id, ok := api.resourceID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := api.store.IncrementView(ctx, id); err != nil {
		api.abortWithStoreError(c, id, err)
		return
	}
	resource, err := api.store.Get(ctx, id)
	if err != nil {
		api.abortWithStoreError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, resource)
}

// localBlob lädt die lokal gespeicherte Datei, falls es eine gibt.
func (api *resourceAPI) localBlob(ctx context.Context, r *models.Resource) ([]byte, bool) {
	if r.BlobKey == "" || api.blobs == nil {
		return nil, false
	}
	data, err := api.blobs.Get(ctx, r.BlobKey)
	if err != nil {
		api.log.Warn("Stored file missing", zap.Uint("id", r.ID), zap.String("key", r.BlobKey), zap.Error(err))
		return nil, false
	}
	return data, true
}

func (api *resourceAPI) sendBlob(c *gin.Context, r *models.Resource, data []byte, disposition string) {
	contentType := r.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	name := r.BlobKey[strings.LastIndex(r.BlobKey, "/")+1:]
	c.Header("Content-Disposition", disposition+`; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)
	c.Data(http.StatusOK, contentType, data)
}

func externalURL(r *models.Resource) string {
	if r.DownloadURL != "" {
		return r.DownloadURL
	}
	return r.ViewURL
}

func (api *resourceAPI) handleDownload(c *gin.Context) {
	id, ok := api.resourceID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	resource, err := api.store.Get(ctx, id)
	if err != nil {
		api.abortWithStoreError(c, id, err)
		return
	}
	if err := api.store.IncrementDownload(ctx, id); err != nil {
		api.abortWithStoreError(c, id, err)
		return
	}
	if err := api.store.LogDownload(ctx, id, requester(c)); err != nil {
		api.log.Warn("Failed to write download log", zap.Uint("id", id), zap.Error(err))
	}

	if data, ok := api.localBlob(ctx, resource); ok {
		api.sendBlob(c, resource, data, "attachment")
		return
	}
	if url := externalURL(resource); url != "" {
		c.JSON(http.StatusOK, gin.H{
			"download_url": url,
			"external":     true,
			"message":      "This resource is hosted by the " + resource.SourceTag.DisplayName(),
		})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "No file available for this resource"})
}

func (api *resourceAPI) handlePreview(c *gin.Context) {
	id, ok := api.resourceID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	resource, err := api.store.Get(ctx, id)
	if err != nil {
		api.abortWithStoreError(c, id, err)
		return
	}
	if data, ok := api.localBlob(ctx, resource); ok {
		api.sendBlob(c, resource, data, "inline")
		return
	}
	if url := externalURL(resource); url != "" {
		c.JSON(http.StatusOK, gin.H{"preview_url": url, "external": true})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "No preview available for this resource"})
}

// readUpload liest Datei und Metadaten aus einem Multipart-Formular. Eine
// fehlende Datei ist kein Fehler; das prüft die Validierung.
func readUpload(c *gin.Context, limit int64) (models.PublishFile, models.PublishMetadata, error) {
	var meta models.PublishMetadata
	if err := c.ShouldBind(&meta); err != nil {
		return models.PublishFile{}, meta, err
	}
	var file models.PublishFile
	header, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return file, meta, nil
	case err != nil:
		return file, meta, err
	}
	content, err := readFormFile(header, limit)
	if err != nil {
		return file, meta, err
	}
	file.Name = header.Filename
	file.ContentType = header.Header.Get("Content-Type")
	file.Content = content
	return file, meta, nil
}

// readFormFile liest die Datei vollständig. Größere Dateien als limit werden
// abgelehnt, nie gekürzt.
func readFormFile(header *multipart.FileHeader, limit int64) ([]byte, error) {
	if header.Size > limit {
		return nil, errFileTooLarge
	}
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > limit {
		return nil, errFileTooLarge
	}
	return content, nil
}

func (api *resourceAPI) uploadLimit() int64 {
	if api.cfg.UploadMaxBytes > 0 {
		return api.cfg.UploadMaxBytes
	}
	return maxUploadBytes
}

func abortWithUploadError(c *gin.Context, err error) {
	if errors.Is(err, errFileTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errFileTooLarge.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (api *resourceAPI) handleUpload(c *gin.Context) {
	file, meta, err := readUpload(c, api.uploadLimit())
	if err != nil {
		abortWithUploadError(c, err)
		return
	}

	report, err := api.publish.Publish(c.Request.Context(), file, meta)
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, services.ErrStoreFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	case err != nil:
		api.log.Error("Publish failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Publish failed"})
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (api *resourceAPI) handleUploadFile(c *gin.Context) {
	file, meta, err := readUpload(c, api.uploadLimit())
	if err != nil {
		abortWithUploadError(c, err)
		return
	}
	if meta.Title == "" {
		meta.Title = file.Name
	}

	resource, err := api.publish.UploadLocal(c.Request.Context(), file, meta, requester(c))
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		api.log.Error("Local upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}
	c.JSON(http.StatusCreated, resource)
}

// authenticatedRequester liefert die Identität des Aufrufers. Ohne Identität
// ist die Antwort bereits geschrieben.
func authenticatedRequester(c *gin.Context) (string, bool) {
	who := requester(c)
	if who == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return "", false
	}
	return who, true
}

func (api *resourceAPI) handleDownloads(c *gin.Context) {
	who, ok := authenticatedRequester(c)
	if !ok {
		return
	}
	entries, err := api.store.DownloadsFor(c.Request.Context(), who, historyLimit)
	if err != nil {
		api.log.Error("Database query for download history failed", zap.String("requester", who), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch downloads"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (api *resourceAPI) handleUploadedFiles(c *gin.Context) {
	api.listUploads(c, "", 0)
}

func (api *resourceAPI) handleSearchFiles(c *gin.Context) {
	api.listUploads(c, c.Query("q"), historyLimit)
}

func (api *resourceAPI) listUploads(c *gin.Context, query string, limit int) {
	who, ok := authenticatedRequester(c)
	if !ok {
		return
	}
	resources, err := api.store.LocalUploads(c.Request.Context(), who, query, limit)
	if err != nil {
		api.log.Error("Database query for uploaded files failed", zap.String("requester", who), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch files"})
		return
	}
	c.JSON(http.StatusOK, resources)
}

type systemStatus struct {
	Source models.SourceTag `json:"source"`
	Name   string           `json:"name"`
	Status string           `json:"status"`
}

func setupSystemRoutes(router *gin.Engine, conns []connectors.Connector, repositoryMode string, timeout time.Duration, log *zap.Logger) {
	rg := router.Group("/api/systems")

	rg.GET("/status/", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		statuses := make([]systemStatus, len(conns))
		var wg sync.WaitGroup
		for i, conn := range conns {
			wg.Add(1)
			go func(i int, conn connectors.Connector) {
				defer wg.Done()
				status := "offline"
				if conn.Authenticate(ctx) {
					status = "online"
				}
				statuses[i] = systemStatus{Source: conn.Source(), Name: conn.Source().DisplayName(), Status: status}
			}(i, conn)
		}
		wg.Wait()

		log.Info("System status checked", zap.Any("systems", statuses))
		c.JSON(http.StatusOK, gin.H{
			"systems":         statuses,
			"repository_mode": repositoryMode,
			"checked_at":      time.Now().UTC(),
		})
	})
}
