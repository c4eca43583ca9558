package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/livingplaybook/playbook/internal/catalog"
	"github.com/livingplaybook/playbook/internal/pkg/query"
)

// QueryEngine runs searches against one catalog edition.
type QueryEngine struct {
	path  string
	lists query.ListResolver
	log   logrus.FieldLogger

	// mu protects the catalog pointer swap on Reload
	mu      sync.RWMutex
	catalog *catalog.Catalog
}

// NewQueryEngine wraps an already loaded catalog. lists may be nil.
func NewQueryEngine(c *catalog.Catalog, lists query.ListResolver, log logrus.FieldLogger) *QueryEngine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &QueryEngine{catalog: c, lists: lists, log: log}
}

// OpenQueryEngine loads the catalog at path.
func OpenQueryEngine(path string, lists query.ListResolver, log logrus.FieldLogger) (*QueryEngine, error) {
	c, err := catalog.LoadFile(path)
	if err != nil {
		return nil, err
	}
	qe := NewQueryEngine(c, lists, log)
	qe.path = path
	qe.log.WithFields(logrus.Fields{"path": path, "games": c.Len(), "version": c.Version.String()}).Info("catalog loaded")
	return qe, nil
}

// Reload re-reads the catalog file. Searches already running keep the
// snapshot they started with. On error the current catalog stays.
func (qe *QueryEngine) Reload() error {
	if qe.path == "" {
		return nil
	}
	c, err := catalog.LoadFile(qe.path)
	if err != nil {
		return err
	}

	qe.mu.Lock()
	qe.catalog = c
	qe.mu.Unlock()

	qe.log.WithFields(logrus.Fields{"path": qe.path, "games": c.Len()}).Info("catalog reloaded")
	return nil
}

// Catalog returns the current snapshot.
func (qe *QueryEngine) Catalog() *catalog.Catalog {
	qe.mu.RLock()
	defer qe.mu.RUnlock()
	return qe.catalog
}

// Search returns the games matching both the query string and the tag
// filter, sorted by display name. filter may be nil.
func (qe *QueryEngine) Search(searchString string, filter *TagFilter) []*catalog.Record {
	start := time.Now()
	c := qe.Catalog()
	tree := query.Parse(searchString)

	var matches []*catalog.Record
	for _, rec := range c.Records() {
		if filter.Allows(rec) && query.Match(tree, rec, qe.lists) {
			matches = append(matches, rec)
		}
	}

	// Collators are not safe for concurrent use.
	col := collate.New(language.English)
	sort.SliceStable(matches, func(i, j int) bool {
		return col.CompareString(matches[i].Name, matches[j].Name) < 0
	})

	qe.log.WithFields(logrus.Fields{
		"query":   searchString,
		"tree":    tree.String(),
		"matches": len(matches),
		"elapsed": time.Since(start),
	}).Debug("search")

	return matches
}

// SearchIDs is Search reduced to uids.
func (qe *QueryEngine) SearchIDs(searchString string, filter *TagFilter) []int64 {
	matches := qe.Search(searchString, filter)
	ids := make([]int64, len(matches))
	for i, rec := range matches {
		ids[i] = rec.UID
	}
	return ids
}

// Lookup resolves a deep link ("foo" or "id:foo") to a game.
func (qe *QueryEngine) Lookup(term string) (*catalog.Record, bool) {
	return qe.Catalog().Lookup(term)
}
