package lists

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrInvalidName = errors.New("invalid list name")

// Store persists named, ordered lists of game uids.
//
// Resolve satisfies query.ListResolver and never fails: unknown lists
// resolve to nil. The other methods return os.ErrNotExist for unknown lists.
type Store interface {
	Resolve(name string) []int64

	Names(ctx context.Context) ([]string, error)
	Get(ctx context.Context, name string) ([]int64, error)
	Put(ctx context.Context, name string, uids []int64) error
	Add(ctx context.Context, name string, uid int64) error
	Remove(ctx context.Context, name string, uid int64) error
	Delete(ctx context.Context, name string) error

	Close() error
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open builds the store for backend at path.
func Open(backend, path string, log logrus.FieldLogger) (Store, error) {
	switch backend {
	case BackendFile, "":
		return OpenFileStore(path, log)
	case BackendSQLite:
		return OpenSQLiteStore(path, log)
	default:
		return nil, errors.Errorf("unknown list backend %q", backend)
	}
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "/\x00") {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return nil
}

// dedupe keeps the first occurrence of every uid.
func dedupe(uids []int64) []int64 {
	seen := make(map[int64]struct{}, len(uids))
	out := make([]int64, 0, len(uids))
	for _, uid := range uids {
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	return out
}

func contains(uids []int64, uid int64) bool {
	for _, u := range uids {
		if u == uid {
			return true
		}
	}
	return false
}

func without(uids []int64, uid int64) []int64 {
	out := make([]int64, 0, len(uids))
	for _, u := range uids {
		if u != uid {
			out = append(out, u)
		}
	}
	return out
}

func clone(uids []int64) []int64 {
	if uids == nil {
		return nil
	}
	out := make([]int64, len(uids))
	copy(out, uids)
	return out
}
