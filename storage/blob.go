package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"resource-hub/config"
)

// ErrBlobNotFound wird geliefert, wenn ein Schlüssel nicht existiert.
var ErrBlobNotFound = errors.New("blob not found")

// BlobInfo beschreibt ein gespeichertes Objekt.
type BlobInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// BlobStore speichert Dateien (Uploads, Snapshots) unter einem Schlüssel.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List liefert alle Objekte mit prefix, neueste zuerst.
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Delete(ctx context.Context, key string) error
}

// NewBlobStore wählt das Backend anhand von STORAGE_BACKEND.
func NewBlobStore(cfg *config.Config) (BlobStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return NewS3Store(cfg.S3)
	case "local", "":
		return NewDiskStore(cfg.Storage.LocalDir)
	}
	return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
}

// DiskStore legt Objekte als Dateien unterhalb eines Verzeichnisses ab.
type DiskStore struct {
	dir string
}

// NewDiskStore erstellt das Verzeichnis bei Bedarf.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// path verhindert, dass ein Schlüssel aus dem Verzeichnis herausführt.
func (d *DiskStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(d.dir, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func (d *DiskStore) Put(_ context.Context, key string, data []byte, _ string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func (d *DiskStore) Get(_ context.Context, key string) ([]byte, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}
	return data, err
}

func (d *DiskStore) List(_ context.Context, prefix string) ([]BlobInfo, error) {
	var out []BlobInfo
	err := filepath.WalkDir(d.dir, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		out = append(out, BlobInfo{Key: key, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (d *DiskStore) Delete(_ context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// sortNewestFirst sortiert nach Änderungszeit, bei Gleichstand nach Schlüssel absteigend.
func sortNewestFirst(blobs []BlobInfo) {
	sort.Slice(blobs, func(i, j int) bool {
		if blobs[i].ModTime.Equal(blobs[j].ModTime) {
			return blobs[i].Key > blobs[j].Key
		}
		return blobs[i].ModTime.After(blobs[j].ModTime)
	})
}

// Prune löscht alle Objekte mit prefix bis auf die keep neuesten und gibt
// die gelöschten Schlüssel zurück. Das neueste Objekt bleibt immer erhalten.
func Prune(ctx context.Context, store BlobStore, prefix string, keep int) ([]string, error) {
	blobs, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if keep < 1 {
		keep = 1
	}
	if len(blobs) <= keep {
		return nil, nil
	}
	var deleted []string
	for _, b := range blobs[keep:] {
		if err := store.Delete(ctx, b.Key); err != nil {
			return deleted, fmt.Errorf("deleting %s: %w", b.Key, err)
		}
		deleted = append(deleted, b.Key)
	}
	return deleted, nil
}
