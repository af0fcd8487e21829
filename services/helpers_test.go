package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"resource-hub/connectors"
	"resource-hub/models"
	"resource-hub/storage"
)

func newTestStore(t *testing.T) *ResourceStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, storage.Migrate(db))
	return NewResourceStore(db, zap.NewNop())
}

func seedResource(t *testing.T, s *ResourceStore, r models.Resource) models.Resource {
	t.Helper()
	if r.SourceTag == "" {
		r.SourceTag = models.SourceLocal
	}
	if r.ExternalID == "" {
		r.ExternalID = r.Title
	}
	require.NoError(t, s.Upsert(context.Background(), &r))
	return r
}

// fakeConnector liefert limit generierte Treffer oder einen konfigurierten Fehler.
type fakeConnector struct {
	tag      models.SourceTag
	authFail bool
	err      error
	panics   bool
	resType  string
	year     string

	mu      sync.Mutex
	limits  []int
	queries []string
}

func (f *fakeConnector) Source() models.SourceTag { return f.tag }

func (f *fakeConnector) Authenticate(context.Context) bool { return !f.authFail }

func (f *fakeConnector) Search(_ context.Context, query string, limit int) ([]models.CanonicalResult, error) {
	f.mu.Lock()
	f.limits = append(f.limits, limit)
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.CanonicalResult, 0, limit)
	for i := 0; i < limit; i++ {
		id := fmt.Sprintf("%d", i+1)
		out = append(out, models.CanonicalResult{
			CompositeID:  models.CompositeID(f.tag, id),
			Title:        fmt.Sprintf("%s hit %s", f.tag, id),
			SourceTag:    f.tag,
			ResourceType: f.resType,
			Year:         f.year,
			ExternalID:   id,
		})
	}
	return out, nil
}

func (f *fakeConnector) calledLimits() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.limits...)
}

var _ connectors.Connector = (*fakeConnector)(nil)
