package vufind

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"resource-hub/config"
	"resource-hub/models"
)

type fakeVuFind struct {
	apiDown    bool
	emptyCores map[string]bool
	downCores  map[string]bool

	mu        sync.Mutex
	coreCalls []string
	indexed   map[string]any
	solrQuery string
}

func (f *fakeVuFind) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>VuFind</html>")
	})
	mux.HandleFunc("/api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if f.apiDown {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "AllFields", r.URL.Query().Get("type"))
		assert.Contains(t, r.URL.Query()["field[]"], "primaryAuthors")
		_, _ = io.WriteString(w, `{"resultCount": 2, "status": "OK", "records": [
			{"id": "vf-1", "title": "Groundwater survey", "formats": ["Book"], "publicationDates": ["2012"],
			 "summary": ["Survey of wells"], "primaryAuthors": ["Tesfaye, G."], "secondaryAuthors": ["Alemu, B."]},
			{"id": "vf-2", "title": "Untyped", "formats": [], "publicationDates": []}
		]}`)
	})
	for _, core := range []string{"biblio", "authority", "reserves"} {
		core := core
		mux.HandleFunc("/solr/"+core+"/select", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.coreCalls = append(f.coreCalls, core)
			f.solrQuery = r.URL.Query().Get("q")
			f.mu.Unlock()
			switch {
			case f.downCores[core]:
				w.WriteHeader(http.StatusInternalServerError)
			case f.emptyCores[core]:
				_, _ = io.WriteString(w, `{"response": {"numFound": 0, "docs": []}}`)
			default:
				_, _ = io.WriteString(w, `{"response": {"numFound": 1, "docs": [
					{"id": "`+core+`-1", "title": ["Solr title"], "author": "Single Author",
					 "format": ["Thesis"], "publishDate": ["2008-01-01"], "summary": "S"}
				]}}`)
			}
		})
	}
	mux.HandleFunc("/solr/biblio/update", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("commit"))
		var body map[string]map[string]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.indexed = body["add"]["doc"]
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"responseHeader": {"status": 0}}`)
	})
	return mux
}

func newTestConnector(t *testing.T, f *fakeVuFind) *Connector {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	cfg := config.VuFindConfig{
		URL:         srv.URL,
		SolrURL:     srv.URL + "/solr",
		SolrCores:   []string{"biblio", "authority", "reserves"},
		IndexCore:   "biblio",
		Institution: "Test Institute",
		Timeout:     2 * time.Second,
	}
	return NewConnector(cfg, config.BreakerConfig{MaxFailures: 100, OpenTimeout: time.Second}, zap.NewNop())
}

func TestAuthenticateReachability(t *testing.T) {
	c := newTestConnector(t, &fakeVuFind{})
	assert.True(t, c.Authenticate(context.Background()))

	down := NewConnector(config.VuFindConfig{URL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond},
		config.BreakerConfig{}, zap.NewNop())
	assert.False(t, down.Authenticate(context.Background()))
}

func TestSearchUsesAPI(t *testing.T) {
	f := &fakeVuFind{}
	c := newTestConnector(t, f)

	results, err := c.Search(context.Background(), "groundwater", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	first := results[0]
	assert.Equal(t, "discovery_vf-1", first.CompositeID)
	assert.Equal(t, "Tesfaye, G., Alemu, B.", first.Authors)
	assert.Equal(t, "Book", first.ResourceType)
	assert.Equal(t, "2012", first.Year)
	assert.Equal(t, "Survey of wells", first.Description)
	assert.Equal(t, "Check Availability", first.Availability)
	assert.Equal(t, "Discovery Layer", first.SourceDisplayName)

	assert.Equal(t, "Unknown", results[1].ResourceType)
	assert.Equal(t, "", results[1].Year)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.coreCalls)
}

func TestSearchFallsBackToFirstCoreWithDocs(t *testing.T) {
	f := &fakeVuFind{apiDown: true, emptyCores: map[string]bool{"biblio": true}}
	c := newTestConnector(t, f)

	results, err := c.Search(context.Background(), `say "hi"`, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "discovery_authority-1", results[0].CompositeID)
	assert.Equal(t, "Solr title", results[0].Title)
	assert.Equal(t, "Single Author", results[0].Authors)
	assert.Equal(t, "Thesis", results[0].ResourceType)
	assert.Equal(t, "2008", results[0].Year)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{"biblio", "authority"}, f.coreCalls)
	assert.Equal(t, `title:"say \"hi\"" OR author:"say \"hi\"" OR subject:"say \"hi\""`, f.solrQuery)
}

func TestSearchAllCoresDown(t *testing.T) {
	f := &fakeVuFind{apiDown: true, downCores: map[string]bool{"biblio": true, "authority": true, "reserves": true}}
	c := newTestConnector(t, f)

	results, err := c.Search(context.Background(), "x", 5)
	assert.Error(t, err)
	assert.Empty(t, results)
}

func TestSearchNoMatchesIsNotAnError(t *testing.T) {
	f := &fakeVuFind{apiDown: true, emptyCores: map[string]bool{"biblio": true, "authority": true, "reserves": true}}
	c := newTestConnector(t, f)

	results, err := c.Search(context.Background(), "", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, "*:*", solrQuery(""))
}

func TestIndexWritesDocument(t *testing.T) {
	f := &fakeVuFind{}
	c := newTestConnector(t, f)

	res, err := c.Index(context.Background(), IndexRequest{
		RecordID: "repo-item-9",
		Metadata: models.PublishMetadata{Title: "Annual report", SubjectKeywords: "a, b"},
		Locator:  "http://ui/handle/1/2",
	})
	require.NoError(t, err)
	assert.Equal(t, "repo-item-9", res.RecordID)
	assert.Equal(t, c.cfg.URL+"/Record/repo-item-9", res.RecordURL)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "Annual report", f.indexed["title"])
	assert.Equal(t, "Text", f.indexed["format"])
	assert.Equal(t, "Test Institute", f.indexed["institution"])
	assert.Equal(t, "http://ui/handle/1/2", f.indexed["url"])
	assert.Equal(t, []any{"a", "b"}, f.indexed["topic"])
	assert.NotContains(t, f.indexed, "author")
}

func TestIndexRequiresRecordID(t *testing.T) {
	c := newTestConnector(t, &fakeVuFind{})
	_, err := c.Index(context.Background(), IndexRequest{Metadata: models.PublishMetadata{Title: "T"}})
	assert.Error(t, err)
}

func TestStringListAcceptsScalarAndList(t *testing.T) {
	var doc solrDoc
	require.NoError(t, json.Unmarshal([]byte(`{"title": "one", "author": ["a", "b"], "format": null}`), &doc))
	assert.Equal(t, stringList{"one"}, doc.Title)
	assert.Equal(t, stringList{"a", "b"}, doc.Author)
	assert.Empty(t, doc.Format)
}
