package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fastjson"
	"golang.org/x/crypto/blake2b"

	"github.com/livingplaybook/playbook/internal/catalog"
	"github.com/livingplaybook/playbook/internal/engine"
	"github.com/livingplaybook/playbook/internal/lists"
	"github.com/livingplaybook/playbook/internal/pkg/query"
)

const maxBodySize = 1 << 20

type Options struct {
	WebDir string
	// EditorTokenHash is the bcrypt hash guarding list edits and reloads.
	EditorTokenHash string
}

type PlaybookServer struct {
	editions   *engine.Editions
	lists      lists.Store
	webDir     string
	editorHash string
	log        logrus.FieldLogger
	srv        *http.Server
	parser     fastjson.ParserPool
}

func NewPlaybookServer(eds *engine.Editions, store lists.Store, opts Options, log logrus.FieldLogger) *PlaybookServer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PlaybookServer{
		editions:   eds,
		lists:      store,
		webDir:     opts.WebDir,
		editorHash: opts.EditorTokenHash,
		log:        log,
	}
}

// Handler builds the routed, logged handler tree.
func (s *PlaybookServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/tags", s.handleTags)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/games/", s.handleGame)
	mux.HandleFunc("/api/export", s.handleExport)
	mux.Handle("/api/reload", s.AuthMiddleware(http.HandlerFunc(s.handleReload)))

	mux.HandleFunc("/api/lists", s.handleLists)
	mux.Handle("/api/lists/", s.editorOnly(http.HandlerFunc(s.handleListItem)))

	// Static file serving for web directory
	if s.webDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.webDir)))
	}

	return s.LoggingMiddleware(mux)
}

// Start runs the HTTP server until Shutdown.
func (s *PlaybookServer) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *PlaybookServer) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

type gameSummary struct {
	UID    int64  `json:"uid"`
	Name   string `json:"name"`
	Anchor string `json:"anchor"`
}

// edition resolves the db parameter, writing a 404 when unknown.
func (s *PlaybookServer) edition(w http.ResponseWriter, r *http.Request) (*engine.QueryEngine, bool) {
	db := r.URL.Query().Get("db")
	qe, ok := s.editions.Get(db)
	if !ok {
		http.Error(w, "Unknown edition: "+db, http.StatusNotFound)
	}
	return qe, ok
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// handleSearch processes GET /api/search?q=&yesTags=&noTags=&db=.
func (s *PlaybookServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	qe, ok := s.edition(w, r)
	if !ok {
		return
	}

	params := r.URL.Query()
	q := params.Get("q")
	filter := engine.ParseTagFilter(params.Get("yesTags"), params.Get("noTags"))

	etag := s.searchETag(qe.Catalog(), q, filter)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	matches := qe.Search(q, filter)
	out := make([]gameSummary, len(matches))
	for i, rec := range matches {
		out[i] = gameSummary{UID: rec.UID, Name: rec.Name, Anchor: rec.Anchor}
	}
	s.writeJSON(w, r, out)
}

// searchETag hashes everything a search result depends on: the catalog,
// the normalized inputs and the contents of every list the query names.
func (s *PlaybookServer) searchETag(c *catalog.Catalog, q string, filter *engine.TagFilter) string {
	h, _ := blake2b.New256(nil)
	io.WriteString(h, c.Digest())
	h.Write([]byte{0})
	io.WriteString(h, q)
	h.Write([]byte{0})
	io.WriteString(h, strings.Join(filter.Yes(), ","))
	h.Write([]byte{0})
	io.WriteString(h, strings.Join(filter.No(), ","))

	if s.lists != nil {
		for _, tok := range query.Tokenize(q) {
			if tok.Kind != query.List {
				continue
			}
			h.Write([]byte{0})
			io.WriteString(h, tok.Text)
			for _, uid := range s.lists.Resolve(tok.Text) {
				io.WriteString(h, ","+strconv.FormatInt(uid, 10))
			}
		}
	}

	return `"` + hex.EncodeToString(h.Sum(nil)[:16]) + `"`
}

func (s *PlaybookServer) handleTags(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	qe, ok := s.edition(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, r, qe.Tags())
}

// handleStats reports every edition.
func (s *PlaybookServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	stats := make(map[string]engine.CatalogStats)
	for _, name := range s.editions.Names() {
		qe, _ := s.editions.Get(name)
		stats[name] = qe.Stats()
	}
	s.writeJSON(w, r, stats)
}

// handleGame serves GET /api/games/{anchor}; "id:" prefixes and alias anchors resolve too.
func (s *PlaybookServer) handleGame(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	qe, ok := s.edition(w, r)
	if !ok {
		return
	}

	anchor := strings.TrimPrefix(r.URL.Path, "/api/games/")
	rec, ok := qe.Lookup(anchor)
	if !ok {
		http.Error(w, "Game not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(rec.JSON())
}

func (s *PlaybookServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	qe, ok := s.edition(w, r)
	if !ok {
		return
	}

	data, err := qe.Catalog().Export()
	if err != nil {
		s.requestLog(r).WithError(err).Error("export failed")
		http.Error(w, "Export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="living_playbook.json"`)
	w.Write(data)
}

func (s *PlaybookServer) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.editions.ReloadAll(); err != nil {
		s.requestLog(r).WithError(err).Error("reload failed")
		http.Error(w, "Reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLists serves GET /api/lists: the sorted list names.
func (s *PlaybookServer) handleLists(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	names, err := s.lists.Names(r.Context())
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	s.writeJSON(w, r, names)
}

type listBody struct {
	Name string  `json:"name"`
	UIDs []int64 `json:"uids"`
}

// handleListItem routes /api/lists/{name} and /api/lists/{name}/items[/{uid}].
func (s *PlaybookServer) handleListItem(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/lists/"), "/")
	name := parts[0]
	ctx := r.Context()

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			uids, err := s.lists.Get(ctx, name)
			if err != nil {
				s.storeError(w, r, err)
				return
			}
			s.writeJSON(w, r, listBody{Name: name, UIDs: uids})
		case http.MethodPut:
			uids, err := s.parseUIDs(w, r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := s.lists.Put(ctx, name, uids); err != nil {
				s.storeError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			if err := s.lists.Delete(ctx, name); err != nil {
				s.storeError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case len(parts) == 2 && parts[1] == "items":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		uid, err := s.parseUID(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.lists.Add(ctx, name, uid); err != nil {
			s.storeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 3 && parts[1] == "items":
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		uid, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			http.Error(w, "Invalid uid", http.StatusBadRequest)
			return
		}
		if err := s.lists.Remove(ctx, name, uid); err != nil {
			s.storeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

func (s *PlaybookServer) readBody(w http.ResponseWriter, r *http.Request) (*fastjson.Value, func(), error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read body")
	}
	defer r.Body.Close()

	p := s.parser.Get()
	v, err := p.ParseBytes(body)
	if err != nil {
		s.parser.Put(p)
		return nil, nil, errors.Wrap(err, "Invalid JSON")
	}
	return v, func() { s.parser.Put(p) }, nil
}

// parseUID reads {"uid": n}.
func (s *PlaybookServer) parseUID(w http.ResponseWriter, r *http.Request) (int64, error) {
	v, release, err := s.readBody(w, r)
	if err != nil {
		return 0, err
	}
	defer release()

	u := v.Get("uid")
	if u == nil {
		return 0, errors.New("missing uid")
	}
	uid, err := u.Int64()
	if err != nil {
		return 0, errors.Wrap(err, "invalid uid")
	}
	return uid, nil
}

// parseUIDs reads {"uids": [n, ...]}.
func (s *PlaybookServer) parseUIDs(w http.ResponseWriter, r *http.Request) ([]int64, error) {
	v, release, err := s.readBody(w, r)
	if err != nil {
		return nil, err
	}
	defer release()

	arr := v.Get("uids")
	if arr == nil {
		return nil, errors.New("missing uids")
	}
	items, err := arr.Array()
	if err != nil {
		return nil, errors.Wrap(err, "uids must be an array")
	}

	uids := make([]int64, 0, len(items))
	for _, item := range items {
		uid, err := item.Int64()
		if err != nil {
			return nil, errors.Wrap(err, "invalid uid")
		}
		uids = append(uids, uid)
	}
	return uids, nil
}

func (s *PlaybookServer) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, os.ErrNotExist):
		http.Error(w, "List not found", http.StatusNotFound)
	case errors.Is(err, lists.ErrInvalidName):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.requestLog(r).WithError(err).Error("list store error")
		http.Error(w, "List store error", http.StatusInternalServerError)
	}
}

func (s *PlaybookServer) writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.requestLog(r).WithError(err).Warn("JSON encode error")
	}
}
