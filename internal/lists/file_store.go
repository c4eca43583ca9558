package lists

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/livingplaybook/playbook/internal/storage"
)

// document is the on-disk JSON form.
type document struct {
	Lists map[string][]int64 `json:"lists"`
}

// FileStore keeps every list in memory and rewrites one JSON file
// (zstd-compressed when the path ends in .zst) on each change.
type FileStore struct {
	filePath string
	log      logrus.FieldLogger

	mu   sync.RWMutex
	data document
}

// OpenFileStore loads path; a missing file is an empty store.
func OpenFileStore(path string, log logrus.FieldLogger) (*FileStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &FileStore{
		filePath: path,
		log:      log.WithField("store", "file"),
		data:     document{Lists: make(map[string][]int64)},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	if _, err := os.Stat(s.filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := storage.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, storage.ErrEmptyFile) {
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, &s.data); err != nil {
		return errors.Wrapf(err, "failed to decode %s", s.filePath)
	}
	if s.data.Lists == nil {
		s.data.Lists = make(map[string][]int64)
	}
	s.log.WithFields(logrus.Fields{"path": s.filePath, "lists": len(s.data.Lists)}).Debug("lists loaded")
	return nil
}

func (s *FileStore) saveLocked() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return storage.WriteFile(s.filePath, data, false)
}

func (s *FileStore) Resolve(name string) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.data.Lists[name])
}

func (s *FileStore) Names(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data.Lists))
	for name := range s.data.Lists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) Get(ctx context.Context, name string) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	uids, ok := s.data.Lists[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]int64{}, uids...), nil
}

// Put replaces the list, creating it if needed. Duplicate uids collapse
// to their first position.
func (s *FileStore) Put(ctx context.Context, name string, uids []int64) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Lists[name] = dedupe(uids)
	return s.saveLocked()
}

// Add appends uid, creating the list if needed. A uid already present is left where it is.
func (s *FileStore) Add(ctx context.Context, name string, uid int64) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	uids, ok := s.data.Lists[name]
	if ok && contains(uids, uid) {
		return nil
	}
	s.data.Lists[name] = append(clone(uids), uid)
	return s.saveLocked()
}

func (s *FileStore) Remove(ctx context.Context, name string, uid int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	uids, ok := s.data.Lists[name]
	if !ok {
		return os.ErrNotExist
	}
	if !contains(uids, uid) {
		return nil
	}
	s.data.Lists[name] = without(uids, uid)
	return s.saveLocked()
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Lists[name]; !ok {
		return os.ErrNotExist
	}
	delete(s.data.Lists, name)
	return s.saveLocked()
}

func (s *FileStore) Close() error { return nil }
