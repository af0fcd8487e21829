package dspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resource-hub/connectors"
	"resource-hub/models"
)

// StoreRequest enthält Metadaten und Datei einer Einreichung.
type StoreRequest struct {
	Metadata models.PublishMetadata
	File     models.PublishFile
}

// StoreResult beschreibt das angelegte Repository-Objekt.
type StoreResult struct {
	UUID        string `json:"uuid"`
	Handle      string `json:"handle,omitempty"`
	ViewURL     string `json:"view_url"`
	DownloadURL string `json:"download_url,omitempty"`
	Simulated   bool   `json:"simulated"`
}

// Store legt ein Item an: Workspace-Eintrag erzeugen, Metadaten setzen, Datei
// hochladen, Lizenz erteilen und in den Workflow einreichen. Im
// Simulationsmodus wird nichts geschrieben.
func (c *Connector) Store(ctx context.Context, in StoreRequest) (*StoreResult, error) {
	if c.Simulated() {
		return c.simulateStore(in), nil
	}
	log := c.logger.With(zap.String("title", in.Metadata.Title))

	token, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}
	collection, err := c.collectionUUID(ctx, token)
	if err != nil {
		return nil, err
	}

	ws, err := c.createWorkspaceItem(ctx, token, collection)
	if err != nil {
		return nil, err
	}
	wsPath := "/submission/workspaceitems/" + strconv.Itoa(ws.ID)
	log = log.With(zap.Int("workspace_item", ws.ID))

	ops := patchOps(BuildDublinCore(in.Metadata))
	if err := c.patch(ctx, token, wsPath, ops, "update_metadata"); err != nil {
		return nil, err
	}

	var bitstream string
	if len(in.File.Content) > 0 {
		if bitstream, err = c.upload(ctx, token, wsPath, in.File); err != nil {
			return nil, err
		}
	}

	grant := []patchOp{{Op: "add", Path: "/sections/license/granted", Value: "true"}}
	if err := c.patch(ctx, token, wsPath, grant, "grant_license"); err != nil {
		return nil, err
	}
	if err := c.submit(ctx, token, wsPath); err != nil {
		return nil, err
	}

	item := ws.Embedded.Item
	if item.Handle == "" {
		// Das Handle wird oft erst beim Einreichen vergeben.
		if fetched, err := c.item(ctx, token, item.UUID); err == nil {
			item.Handle = fetched.Handle
		}
	}

	res := &StoreResult{
		UUID:    item.UUID,
		Handle:  item.Handle,
		ViewURL: ViewURL(c.cfg.UIURL, item),
	}
	if bitstream != "" {
		res.DownloadURL = c.api("/core/bitstreams/" + bitstream + "/content")
	}
	log.Info("DSpace item submitted", zap.String("uuid", res.UUID), zap.String("handle", res.Handle))
	return res, nil
}

func (c *Connector) simulateStore(in StoreRequest) *StoreResult {
	id := uuid.NewString()
	c.logger.Warn("DSpace simulation mode active, no item was written",
		zap.String("uuid", id), zap.String("title", in.Metadata.Title))
	return &StoreResult{
		UUID:      id,
		ViewURL:   ViewURL(c.cfg.UIURL, Item{UUID: id}),
		Simulated: true,
	}
}

// newRequest erstellt eine authentifizierte Anfrage mit CSRF-Header.
func (c *Connector) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	csrf, err := c.csrfToken(ctx, false)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.api(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(authorizationHeader, "Bearer "+token)
	req.Header.Set(csrfRequestHeader, csrf)
	return req, nil
}

// do führt eine Schreibanfrage aus und verwirft bei Ablehnung das Token.
func (c *Connector) do(req *http.Request, operation string, out any, okCodes ...int) error {
	if err := c.remote.DoJSON(req, operation, out, okCodes...); err != nil {
		if connectors.IsUnauthorized(err) {
			c.tokens.Invalidate()
		}
		return fmt.Errorf("dspace %s: %w", operation, err)
	}
	return nil
}

func (c *Connector) collectionUUID(ctx context.Context, token string) (string, error) {
	if c.cfg.CollectionUUID != "" {
		return c.cfg.CollectionUUID, nil
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/core/collections?size=1", token, nil)
	if err != nil {
		return "", err
	}
	var cr collectionsResponse
	if err := c.do(req, "list_collections", &cr); err != nil {
		return "", err
	}
	if len(cr.Embedded.Collections) == 0 {
		return "", fmt.Errorf("dspace: no collection available for submissions")
	}
	return cr.Embedded.Collections[0].UUID, nil
}

func (c *Connector) createWorkspaceItem(ctx context.Context, token, collection string) (*workspaceItem, error) {
	req, err := c.newRequest(ctx, http.MethodPost,
		"/submission/workspaceitems?owningCollection="+collection, token, strings.NewReader("{}"))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var ws workspaceItem
	if err := c.do(req, "create_workspace_item", &ws, http.StatusCreated, http.StatusOK); err != nil {
		return nil, err
	}
	if ws.Embedded.Item.UUID == "" {
		return nil, fmt.Errorf("dspace create_workspace_item: response carried no item uuid")
	}
	return &ws, nil
}

func (c *Connector) patch(ctx context.Context, token, path string, ops []patchOp, operation string) error {
	body, err := json.Marshal(ops)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPatch, path, token, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json-patch+json")
	return c.do(req, operation, nil)
}

// upload hängt die Datei an den Workspace-Eintrag und gibt die Bitstream-UUID zurück.
func (c *Connector) upload(ctx context.Context, token, path string, file models.PublishFile) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(file.Content); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, token, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var ws workspaceItem
	if err := c.do(req, "upload", &ws, http.StatusCreated, http.StatusOK); err != nil {
		return "", err
	}
	files := ws.Sections.Upload.Files
	if len(files) == 0 {
		return "", nil
	}
	return files[len(files)-1].UUID, nil
}

func (c *Connector) submit(ctx context.Context, token, wsPath string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/workflow/workflowitems", token,
		strings.NewReader(c.api(wsPath)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/uri-list")
	return c.do(req, "submit", nil, http.StatusCreated, http.StatusOK)
}

func (c *Connector) item(ctx context.Context, token, id string) (*Item, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/core/items/"+id, token, nil)
	if err != nil {
		return nil, err
	}
	var it Item
	if err := c.do(req, "get_item", &it); err != nil {
		return nil, err
	}
	return &it, nil
}
