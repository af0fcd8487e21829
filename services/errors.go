package services

import "errors"

var (
	// ErrValidation: Pflichtangaben fehlen oder sind ungültig. Es wurde kein
	// Backend aufgerufen.
	ErrValidation = errors.New("validation failed")
	// ErrStoreFailed: Das Repository hat die Datei nicht angenommen. Die
	// Veröffentlichung wurde abgebrochen.
	ErrStoreFailed = errors.New("repository store failed")
	// ErrNotFound: Die lokale Ressource existiert nicht.
	ErrNotFound = errors.New("resource not found")
)
