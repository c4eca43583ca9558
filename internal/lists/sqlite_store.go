package lists

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore persists lists in SQLite and serves Resolve from an
// in-memory mirror that is refreshed after every committed write.
type SQLiteStore struct {
	db  *sql.DB
	log logrus.FieldLogger

	// mu serializes writers; readers use the mirror
	mu     sync.Mutex
	mirror *xsync.MapOf[string, []int64]
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(path string, log logrus.FieldLogger) (*SQLiteStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create directory")
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// one connection keeps :memory: databases shared and writes ordered
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		log:    log.WithField("store", "sqlite"),
		mirror: xsync.NewMapOf[string, []int64](),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}
	if err := s.loadMirror(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS lists (
		name TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS list_items (
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		uid INTEGER NOT NULL,
		PRIMARY KEY (name, uid),
		FOREIGN KEY (name) REFERENCES lists(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_list_items_position ON list_items(name, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) loadMirror(ctx context.Context) error {
	names, err := s.db.QueryContext(ctx, `SELECT name FROM lists`)
	if err != nil {
		return errors.Wrap(err, "failed to load lists")
	}
	loaded := make(map[string][]int64)
	for names.Next() {
		var name string
		if err := names.Scan(&name); err != nil {
			names.Close()
			return errors.Wrap(err, "failed to scan list")
		}
		loaded[name] = []int64{}
	}
	names.Close()

	rows, err := s.db.QueryContext(ctx, `SELECT name, uid FROM list_items ORDER BY name, position`)
	if err != nil {
		return errors.Wrap(err, "failed to load list items")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name string
			uid  int64
		)
		if err := rows.Scan(&name, &uid); err != nil {
			return errors.Wrap(err, "failed to scan list item")
		}
		loaded[name] = append(loaded[name], uid)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for name, uids := range loaded {
		s.mirror.Store(name, uids)
	}
	s.log.WithField("lists", len(loaded)).Debug("lists loaded")
	return nil
}

func (s *SQLiteStore) Resolve(name string) []int64 {
	uids, _ := s.mirror.Load(name)
	return clone(uids)
}

func (s *SQLiteStore) Names(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	s.mirror.Range(func(name string, _ []int64) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (s *SQLiteStore) Get(ctx context.Context, name string) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	uids, ok := s.mirror.Load(name)
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]int64{}, uids...), nil
}

func (s *SQLiteStore) Put(ctx context.Context, name string, uids []int64) error {
	if err := validName(name); err != nil {
		return err
	}
	uids = dedupe(uids)

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertList(ctx, tx, name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM list_items WHERE name = ?`, name); err != nil {
			return errors.Wrap(err, "failed to clear list")
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO list_items (name, position, uid) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, uid := range uids {
			if _, err := stmt.ExecContext(ctx, name, i, uid); err != nil {
				return errors.Wrapf(err, "failed to insert uid %d", uid)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mirror.Store(name, uids)
	return nil
}

func (s *SQLiteStore) Add(ctx context.Context, name string, uid int64) error {
	if err := validName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.mirror.Load(name)
	if ok && contains(current, uid) {
		return nil
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertList(ctx, tx, name); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO list_items (name, position, uid)
			SELECT ?, COALESCE(MAX(position) + 1, 0), ? FROM list_items WHERE name = ?
		`, name, uid, name)
		return errors.Wrapf(err, "failed to add uid %d", uid)
	})
	if err != nil {
		return err
	}

	s.mirror.Store(name, append(clone(current), uid))
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, name string, uid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.mirror.Load(name)
	if !ok {
		return os.ErrNotExist
	}
	if !contains(current, uid) {
		return nil
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM list_items WHERE name = ? AND uid = ?`, name, uid); err != nil {
			return errors.Wrapf(err, "failed to remove uid %d", uid)
		}
		return touchList(ctx, tx, name)
	})
	if err != nil {
		return err
	}

	s.mirror.Store(name, without(current, uid))
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mirror.Load(name); !ok {
		return os.ErrNotExist
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM list_items WHERE name = ?`, name); err != nil {
			return errors.Wrap(err, "failed to delete list items")
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE name = ?`, name)
		return errors.Wrap(err, "failed to delete list")
	})
	if err != nil {
		return err
	}

	s.mirror.Delete(name)
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit")
}

func upsertList(ctx context.Context, tx *sql.Tx, name string) error {
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO lists (name, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET updated_at = excluded.updated_at
	`, name, now, now)
	return errors.Wrap(err, "failed to save list")
}

func touchList(ctx context.Context, tx *sql.Tx, name string) error {
	_, err := tx.ExecContext(ctx, `UPDATE lists SET updated_at = ? WHERE name = ?`, time.Now().UTC(), name)
	return errors.Wrap(err, "failed to update list")
}
