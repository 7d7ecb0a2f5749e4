package resource

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const bundleSchema = `
CREATE TABLE IF NOT EXISTS resources (
	path       TEXT PRIMARY KEY,
	content    BLOB NOT NULL,
	version    INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Entry describes one resource stored in a Bundle.
type Entry struct {
	Path      string
	Size      int64
	Version   int64
	UpdatedAt time.Time
}

// Bundle is a hot-patchable resource store backed by a single SQLite file.
// Each Put bumps the stored version of that path, so a patch can be shipped
// as a new bundle file or applied in place.
type Bundle struct {
	db *sql.DB
}

// OpenBundle opens or creates the bundle at file.
func OpenBundle(file string) (*Bundle, error) {
	db, err := sql.Open("sqlite", file)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(bundleSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bundle schema: %w", err)
	}
	return &Bundle{db: db}, nil
}

// Put stores content at p and returns the new version.
func (b *Bundle) Put(p string, content []byte) (int64, error) {
	key, ok := Clean(p)
	if !ok {
		return 0, fmt.Errorf("invalid resource path %q", p)
	}
	if content == nil {
		content = []byte{}
	}

	_, err := b.db.Exec(`
		INSERT INTO resources (path, content, version, updated_at) VALUES (?, ?, 1, ?)
		ON CONFLICT(path) DO UPDATE SET
			content = excluded.content,
			version = resources.version + 1,
			updated_at = excluded.updated_at`,
		key, content, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("put %s: %w", key, err)
	}

	var version int64
	if err := b.db.QueryRow(`SELECT version FROM resources WHERE path = ?`, key).Scan(&version); err != nil {
		return 0, fmt.Errorf("read version %s: %w", key, err)
	}
	return version, nil
}

func (b *Bundle) SyncLoad(p string) ([]byte, error) {
	key, ok := Clean(p)
	if !ok {
		return nil, ErrNotFound
	}

	var content []byte
	err := b.db.QueryRow(`SELECT content FROM resources WHERE path = ?`, key).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return content, nil
}

// Remove deletes p from the bundle. Removing a missing path is not an error.
func (b *Bundle) Remove(p string) error {
	key, ok := Clean(p)
	if !ok {
		return fmt.Errorf("invalid resource path %q", p)
	}
	if _, err := b.db.Exec(`DELETE FROM resources WHERE path = ?`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// List returns all entries ordered by path.
func (b *Bundle) List() ([]Entry, error) {
	rows, err := b.db.Query(`SELECT path, length(content), version, updated_at FROM resources ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list bundle: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var updated int64
		if err := rows.Scan(&e.Path, &e.Size, &e.Version, &updated); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.UpdatedAt = time.Unix(updated, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Pack imports every regular file under dir, storing each at prefix/<relative path>.
// It returns the number of files stored.
func (b *Bundle) Pack(dir, prefix string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(hostPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, hostPath)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(hostPath)
		if err != nil {
			return err
		}
		if _, err := b.Put(path.Join(prefix, filepath.ToSlash(rel)), data); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("pack %s: %w", dir, err)
	}
	return count, nil
}

func (b *Bundle) Close() error {
	return b.db.Close()
}
