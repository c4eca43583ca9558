package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/livingplaybook/playbook/internal/catalog"
	"github.com/livingplaybook/playbook/internal/engine"
	"github.com/livingplaybook/playbook/internal/lists"
)

const playbook = `{
  "version": {"year": 2024, "major": 1, "minor": 0},
  "games": [
    {"uid": 1, "gameName": "Zip Zap Zop", "tags": ["Warmup"], "aliases": ["Zip Zap Zoom"], "gameDetails": "Pass the energy."},
    {"uid": 2, "gameName": "Freeze Tag", "tags": ["Scene"], "gameDetails": "Freeze and swap."},
    {"uid": 3, "gameName": "Bippity Bop", "tags": ["Warmup", "Elimination"], "gameDetails": "Point and shout."}
  ]
}`

const classic = `{"version": {"year": 2001, "major": 1, "minor": 0}, "games": [{"uid": 1, "gameName": "Classic Game"}]}`

const editorToken = "s3cret"

type fixture struct {
	handler http.Handler
	store   lists.Store
	dir     string
}

func newFixture(t *testing.T, withAuth bool) *fixture {
	t.Helper()
	log, _ := test.NewNullLogger()
	dir := t.TempDir()

	store, err := lists.OpenFileStore(filepath.Join(dir, "lists.json"), log)
	require.NoError(t, err)

	mainPath := filepath.Join(dir, "living_playbook.json")
	require.NoError(t, os.WriteFile(mainPath, []byte(playbook), 0644))
	old, err := catalog.Load([]byte(classic))
	require.NoError(t, err)

	eds := engine.NewEditions()
	qe, err := engine.OpenQueryEngine(mainPath, store, log)
	require.NoError(t, err)
	eds.Add(engine.DefaultEdition, qe)
	eds.Add("2001", engine.NewQueryEngine(old, store, log))

	opts := Options{}
	if withAuth {
		hash, err := bcrypt.GenerateFromPassword([]byte(editorToken), bcrypt.MinCost)
		require.NoError(t, err)
		opts.EditorTokenHash = string(hash)
	}

	s := NewPlaybookServer(eds, store, opts, log)
	return &fixture{handler: s.Handler(), store: store, dir: dir}
}

func (f *fixture) do(t *testing.T, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeSummaries(t *testing.T, w *httptest.ResponseRecorder) []gameSummary {
	t.Helper()
	var out []gameSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestServer_HandleSearch(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		target   string
		expected []string
	}{
		{"/api/search", []string{"Bippity Bop", "Freeze Tag", "Zip Zap Zop"}},
		{"/api/search?q=zip+or+freeze", []string{"Freeze Tag", "Zip Zap Zop"}},
		{"/api/search?q=tag:Warmup", []string{"Bippity Bop", "Zip Zap Zop"}},
		{"/api/search?yesTags=Warmup&noTags=Elimination", []string{"Zip Zap Zop"}},
		{"/api/search?q=nothing", []string{}},
		{"/api/search?db=2001", []string{"Classic Game"}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tt.target, "", nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			names := []string{}
			for _, g := range decodeSummaries(t, w) {
				names = append(names, g.Name)
			}
			assert.Equal(t, tt.expected, names)
		})
	}

	w := f.do(t, http.MethodGet, "/api/search?q=zip", "", nil)
	assert.Equal(t, []gameSummary{{UID: 1, Name: "Zip Zap Zop", Anchor: "zipzapzop"}}, decodeSummaries(t, w))
}

func TestServer_SearchErrors(t *testing.T) {
	f := newFixture(t, false)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/search?db=1999", "", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodPost, "/api/search", "", nil).Code)
}

func TestServer_SearchETag(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/api/search?q=list:Favorites", "", nil)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Empty(t, decodeSummaries(t, w))

	w = f.do(t, http.MethodGet, "/api/search?q=list:Favorites", "", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	other := f.do(t, http.MethodGet, "/api/search?q=zip", "", nil).Header().Get("ETag")
	assert.NotEqual(t, etag, other)

	w = f.do(t, http.MethodPost, "/api/lists/Favorites/items", `{"uid": 2}`, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/search?q=list:Favorites", "", map[string]string{"If-None-Match": etag})
	require.Equal(t, http.StatusOK, w.Code, "list change must invalidate the etag")
	assert.Equal(t, []gameSummary{{UID: 2, Name: "Freeze Tag", Anchor: "freezetag"}}, decodeSummaries(t, w))
}

func TestServer_HandleTagsAndStats(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/api/tags", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tags []engine.TagCount
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tags))
	assert.Equal(t, []engine.TagCount{{Tag: "Elimination", Count: 1}, {Tag: "Scene", Count: 1}, {Tag: "Warmup", Count: 2}}, tags)

	w = f.do(t, http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]engine.CatalogStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats[engine.DefaultEdition].Games)
	assert.Equal(t, "2001.1.0", stats["2001"].Version)
}

func TestServer_HandleGame(t *testing.T) {
	f := newFixture(t, false)

	for _, target := range []string{"/api/games/zipzapzop", "/api/games/id:zipzapzop", "/api/games/zipzapzoom"} {
		w := f.do(t, http.MethodGet, target, "", nil)
		require.Equal(t, http.StatusOK, w.Code, target)
		var game map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &game))
		assert.Equal(t, "Zip Zap Zop", game["gameName"])
		assert.NotContains(t, game, "anchor")
	}

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/games/unknown", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/games/zipzapzop?db=2001", "", nil).Code)
}

func TestServer_HandleExport(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/api/export", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "living_playbook.json")

	c, err := catalog.Load(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
}

func TestServer_Lists(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/api/lists", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPut, "/api/lists/Favorites", `{"uids": [3, 1, 3]}`, nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/lists/Favorites/items", `{"uid": 2}`, nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/lists/Favorites/items/3", "", nil).Code)

	w = f.do(t, http.MethodGet, "/api/lists/Favorites", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name": "Favorites", "uids": [1, 2]}`, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/search?q=list:Favorites", "", nil)
	assert.Len(t, decodeSummaries(t, w), 2)

	w = f.do(t, http.MethodGet, "/api/lists", "", nil)
	assert.JSONEq(t, `["Favorites"]`, w.Body.String())

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/lists/Favorites", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/lists/Favorites", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/lists/Favorites", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/lists/Favorites/items/1", "", nil).Code)
}

func TestServer_ListBadRequests(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		method, target, body string
		status               int
	}{
		{http.MethodPut, "/api/lists/Favorites", `{"uids": "nope"}`, http.StatusBadRequest},
		{http.MethodPut, "/api/lists/Favorites", `{"uids": [1, "x"]}`, http.StatusBadRequest},
		{http.MethodPut, "/api/lists/Favorites", `not json`, http.StatusBadRequest},
		{http.MethodPut, "/api/lists/Favorites", `{}`, http.StatusBadRequest},
		{http.MethodPost, "/api/lists/Favorites/items", `{"uid": 1.5}`, http.StatusBadRequest},
		{http.MethodPost, "/api/lists/Favorites/items", `{}`, http.StatusBadRequest},
		{http.MethodDelete, "/api/lists/Favorites/items/abc", "", http.StatusBadRequest},
		{http.MethodPut, "/api/lists/%20", `{"uids": []}`, http.StatusBadRequest},
		{http.MethodPatch, "/api/lists/Favorites", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/lists/Favorites/items", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/lists/Favorites/other/1/2", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			assert.Equal(t, tt.status, f.do(t, tt.method, tt.target, tt.body, nil).Code)
		})
	}
}

func TestServer_AuthMiddleware(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodPut, "/api/lists/Favorites", `{"uids": [1]}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")

	w = f.do(t, http.MethodPut, "/api/lists/Favorites", `{"uids": [1]}`, map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPut, "/api/lists/Favorites", `{"uids": [1]}`, map[string]string{"Authorization": "Bearer " + editorToken})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodPost, "/api/lists/Favorites/items?token="+editorToken, `{"uid": 2}`, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// reads stay open
	w = f.do(t, http.MethodGet, "/api/lists/Favorites", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name": "Favorites", "uids": [1, 2]}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/reload", "", nil).Code)
}

func TestServer_Reload(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "living_playbook.json"),
		[]byte(`{"games": [{"uid": 9, "gameName": "Brand New"}]}`), 0644))

	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodGet, "/api/reload", "", nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/reload", "", nil).Code)

	w := f.do(t, http.MethodGet, "/api/search", "", nil)
	assert.Equal(t, []gameSummary{{UID: 9, Name: "Brand New", Anchor: "brandnew"}}, decodeSummaries(t, w))
}

func TestServer_RequestID(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/api/tags", "", nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	w = f.do(t, http.MethodGet, "/api/tags", "", map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestServer_RequestLog(t *testing.T) {
	log, hook := test.NewNullLogger()
	eds := engine.NewEditions()
	c, err := catalog.Load([]byte(playbook))
	require.NoError(t, err)
	eds.Add(engine.DefaultEdition, engine.NewQueryEngine(c, nil, log))

	s := NewPlaybookServer(eds, nil, Options{}, log)
	req := httptest.NewRequest(http.MethodGet, "/api/games/missing", nil)
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "request", entry.Message)
	assert.Equal(t, http.StatusNotFound, entry.Data["status"])
	assert.Equal(t, "/api/games/missing", entry.Data["path"])
}

func TestServer_StaticFiles(t *testing.T) {
	log, _ := test.NewNullLogger()
	web := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(web, "index.html"), []byte("<h1>Playbook</h1>"), 0644))

	c, err := catalog.Load([]byte(playbook))
	require.NoError(t, err)
	eds := engine.NewEditions()
	eds.Add(engine.DefaultEdition, engine.NewQueryEngine(c, nil, log))

	h := NewPlaybookServer(eds, nil, Options{WebDir: web}, log).Handler()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Playbook")
}
