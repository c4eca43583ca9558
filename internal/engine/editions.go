package engine

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/livingplaybook/playbook/internal/pkg/query"
)

// DefaultEdition is the name the main catalog is registered under.
const DefaultEdition = "current"

// Editions maps edition names (the db request parameter) to engines.
// It is built once at startup and read-only afterwards.
type Editions struct {
	engines map[string]*QueryEngine
}

func NewEditions() *Editions {
	return &Editions{engines: make(map[string]*QueryEngine)}
}

// OpenEditions loads the main catalog plus every extra edition file.
func OpenEditions(mainPath string, extra map[string]string, lists query.ListResolver, log logrus.FieldLogger) (*Editions, error) {
	eds := NewEditions()

	qe, err := OpenQueryEngine(mainPath, lists, log)
	if err != nil {
		return nil, err
	}
	eds.Add(DefaultEdition, qe)

	for name, path := range extra {
		qe, err := OpenQueryEngine(path, lists, log)
		if err != nil {
			return nil, errors.Wrapf(err, "edition %s", name)
		}
		eds.Add(name, qe)
	}
	return eds, nil
}

func (e *Editions) Add(name string, qe *QueryEngine) {
	e.engines[name] = qe
}

// Get returns the named edition; an empty name selects the default.
func (e *Editions) Get(name string) (*QueryEngine, bool) {
	if name == "" {
		name = DefaultEdition
	}
	qe, ok := e.engines[name]
	return qe, ok
}

func (e *Editions) Names() []string {
	names := make([]string, 0, len(e.engines))
	for name := range e.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReloadAll reloads every edition, stopping at the first failure.
func (e *Editions) ReloadAll() error {
	for _, name := range e.Names() {
		if err := e.engines[name].Reload(); err != nil {
			return errors.Wrapf(err, "edition %s", name)
		}
	}
	return nil
}
