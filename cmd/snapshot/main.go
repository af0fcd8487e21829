package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"resource-hub/config"
	"resource-hub/models"
	"resource-hub/services"
	"resource-hub/storage"
)

const snapshotPrefix = "snapshots/"

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	logging.Info("Starte Snapshot-Prozess...")

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Fehler beim Laden der Konfiguration", zap.Error(err))
	}

	db, err := storage.OpenDatabase(cfg)
	if err != nil {
		logging.Fatal("Fehler beim Verbinden mit der Datenbank", zap.Error(err))
	}

	blobs, err := storage.NewBlobStore(cfg)
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des Blob-Speichers", zap.Error(err))
	}

	store := services.NewResourceStore(db, logging)
	key, err := run(context.Background(), store, blobs, cfg.SnapshotKeep, time.Now(), logging)
	if err != nil {
		logging.Fatal("Snapshot fehlgeschlagen", zap.Error(err))
	}
	logging.Info("Snapshot-Prozess erfolgreich abgeschlossen.", zap.String("key", key))
}

// run schreibt alle Ressourcen als gzip-komprimiertes JSON in den
// Blob-Speicher und rotiert danach alte Snapshots.
func run(ctx context.Context, store *services.ResourceStore, blobs storage.BlobStore, keep int, now time.Time, logging *zap.Logger) (string, error) {
	// 1. Ressourcen lesen
	resources, err := store.All(ctx)
	if err != nil {
		return "", fmt.Errorf("reading resources: %w", err)
	}

	// 2. Komprimieren
	data, err := compress(resources)
	if err != nil {
		return "", fmt.Errorf("compressing snapshot: %w", err)
	}

	// 3. Hochladen
	key := fmt.Sprintf("%sresources-%s.json.gz", snapshotPrefix, now.UTC().Format("2006-01-02T15-04-05Z"))
	if err := blobs.Put(ctx, key, data, "application/gzip"); err != nil {
		return "", fmt.Errorf("uploading snapshot: %w", err)
	}
	logging.Info("Snapshot hochgeladen", zap.String("key", key), zap.Int("resources", len(resources)), zap.Int("bytes", len(data)))

	// 4. Alte Snapshots rotieren
	deleted, err := storage.Prune(ctx, blobs, snapshotPrefix, keep)
	if err != nil {
		return key, fmt.Errorf("rotating snapshots: %w", err)
	}
	if len(deleted) == 0 {
		logging.Info("Keine Rotation nötig", zap.Int("keep", keep))
	}
	for _, k := range deleted {
		logging.Info("Alter Snapshot gelöscht", zap.String("key", k))
	}
	return key, nil
}

func compress(resources []models.Resource) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gzipWriter).Encode(resources); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
