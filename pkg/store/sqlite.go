package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	topic TEXT NOT NULL,
	phase TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_topic ON posts(topic);
`

type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:" is
// accepted for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer, and :memory: databases are per-connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, p Post) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO posts (text, topic, phase, created_at) VALUES (?, ?, ?, ?)",
		p.Text, p.Topic, p.Phase, p.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return &WriteError{Backend: "sqlite", Err: err}
	}
	return nil
}

func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Post, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT text, topic, phase, created_at FROM posts ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		var ms int64
		if err := rows.Scan(&p.Text, &p.Topic, &p.Phase, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		p.CreatedAt = time.UnixMilli(ms).UTC()
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}
	return posts, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) HasTopic(ctx context.Context, topic string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM posts WHERE topic = ?)", topic).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check topic: %w", err)
	}
	return exists, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
