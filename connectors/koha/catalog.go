package koha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"resource-hub/models"
)

// CatalogRequest beschreibt einen neuen Titelsatz samt Link aufs Repository.
type CatalogRequest struct {
	Metadata models.PublishMetadata
	Locator  string
}

// CatalogResult enthält die Kennung des angelegten Titelsatzes.
type CatalogResult struct {
	BiblioID     string `json:"biblio_id"`
	OPACURL      string `json:"opac_url"`
	ItemAttached bool   `json:"item_attached"`
}

type createBiblioResponse struct {
	ID       json.Number `json:"id"`
	BiblioID json.Number `json:"biblio_id"`
}

// Catalogize legt einen Titelsatz an und hängt ein digitales Exemplar an.
// Scheitert nur das Exemplar, gilt die Katalogisierung trotzdem als erfolgreich.
func (c *Connector) Catalogize(ctx context.Context, in CatalogRequest) (*CatalogResult, error) {
	log := c.logger.With(zap.String("title", in.Metadata.Title))

	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(BuildMARC(in.Metadata, in.Locator))
	if err != nil {
		return nil, fmt.Errorf("encoding MARC record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.APIURL, "/")+"/biblios", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/marc-in-json")
	authorize(req, tok)

	var created createBiblioResponse
	if err := c.remote.DoJSON(req, "create_biblio", &created, http.StatusOK, http.StatusCreated); err != nil {
		c.forgetRejected(err)
		return nil, fmt.Errorf("creating biblio: %w", err)
	}
	biblioID := created.BiblioID.String()
	if biblioID == "" {
		biblioID = created.ID.String()
	}
	if biblioID == "" {
		return nil, fmt.Errorf("creating biblio: response carried no biblio id")
	}
	log.Info("Koha biblio created", zap.String("biblio_id", biblioID))

	result := &CatalogResult{
		BiblioID: biblioID,
		OPACURL:  DetailURL(c.cfg.OPACURL, biblioID),
	}
	if err := c.addDigitalItem(ctx, tok, biblioID, in); err != nil {
		log.Warn("Attaching digital item failed", zap.String("biblio_id", biblioID), zap.Error(err))
	} else {
		result.ItemAttached = true
	}
	return result, nil
}

func (c *Connector) addDigitalItem(ctx context.Context, accessToken, biblioID string, in CatalogRequest) error {
	item := map[string]string{
		"external_id":        "DIGITAL-" + biblioID,
		"home_library_id":    c.cfg.LibraryID,
		"holding_library_id": c.cfg.LibraryID,
		"item_type_id":       c.cfg.ItemTypeID,
		"location":           "Digital Repository",
		"callnumber":         in.Metadata.Type(),
	}
	if in.Locator != "" {
		item["public_notes"] = "Digital version: " + in.Locator
		item["uri"] = in.Locator
	}
	body, err := json.Marshal(item)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/biblios/%s/items", strings.TrimRight(c.cfg.APIURL, "/"), biblioID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	authorize(req, accessToken)
	return c.remote.DoJSON(req, "add_item", nil, http.StatusCreated, http.StatusOK)
}
