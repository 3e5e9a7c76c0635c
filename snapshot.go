package folioblog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/folioblog/blog"
)

// SnapshotStore keeps the last successfully fetched post list in SQLite so a
// restart can serve content before the content API answers.
type SnapshotStore struct {
	db *sql.DB
}

// OpenSnapshotStore opens (or creates) the SQLite database at path, ensures
// the data directory exists, and runs schema migrations.
func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets page reads continue while a refresh rewrites the snapshot.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	}
	s := &SnapshotStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the connection so other components can share the file.
func (s *SnapshotStore) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func (s *SnapshotStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS post_snapshot (
    id TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    slug TEXT NOT NULL,
    data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_post_snapshot_slug ON post_snapshot(slug);
CREATE TABLE IF NOT EXISTS snapshot_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`)
	return err
}

// LoadPosts returns the stored posts in fetch order and the time they were
// fetched. An empty snapshot yields no posts and a zero time.
func (s *SnapshotStore) LoadPosts(ctx context.Context) ([]blog.Post, time.Time, error) {
	var fetched time.Time
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM snapshot_meta WHERE key = 'fetched_at'`).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		return nil, time.Time{}, nil
	case err != nil:
		return nil, time.Time{}, err
	}
	if fetched, err = time.Parse(time.RFC3339Nano, raw); err != nil {
		return nil, time.Time{}, fmt.Errorf("snapshot: parse fetched_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM post_snapshot ORDER BY position`)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()

	var posts []blog.Post
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, time.Time{}, err
		}
		var p blog.Post
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, time.Time{}, fmt.Errorf("snapshot: decode post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}
	return posts, fetched, nil
}

// SavePosts replaces the snapshot with posts.
func (s *SnapshotStore) SavePosts(ctx context.Context, posts []blog.Post, fetched time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM post_snapshot`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO post_snapshot (id, position, slug, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, p := range posts {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("snapshot: encode post %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, i, p.Slug, string(data)); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshot_meta (key, value) VALUES ('fetched_at', ?)`,
		fetched.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	return tx.Commit()
}

// PostCount returns the number of stored posts.
func (s *SnapshotStore) PostCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM post_snapshot`).Scan(&n)
	return n, err
}
