// Package connectors enthält die gemeinsame Schnittstelle und Infrastruktur
// der Backend-Connectoren (Katalog, Repository, Discovery).
package connectors

import (
	"context"
	"errors"

	"resource-hub/models"
)

var (
	// ErrUnexpectedStatus wird bei jeder Nicht-2xx-Antwort eines Backends geliefert.
	// Ein Timeout wird genauso behandelt.
	ErrUnexpectedStatus = errors.New("unexpected status from backend")
	// ErrNotAuthenticated wird geliefert, wenn ein Backend keinen Zugang gewährt.
	ErrNotAuthenticated = errors.New("backend authentication failed")
)

// Connector ist die Fähigkeit, die der Such-Orchestrator von jedem Backend erwartet.
// Welches konkrete System dahinter steht, ist für Aufrufer unsichtbar.
type Connector interface {
	// Source gibt die Quellkennung des Connectors zurück.
	Source() models.SourceTag

	// Authenticate stellt den Zugang her. Wiederholte Aufrufe sind billig,
	// solange der zwischengespeicherte Zugang gültig ist.
	Authenticate(ctx context.Context) bool

	// Search liefert höchstens limit normalisierte Treffer. Eine leere Anfrage
	// bedeutet "alles". Bei limit <= 0 findet kein Aufruf statt.
	Search(ctx context.Context, query string, limit int) ([]models.CanonicalResult, error)
}
