package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps objects as blobs in a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS objects (
		key TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		content_type TEXT,
		sha256 TEXT NOT NULL,
		size INTEGER NOT NULL,
		modified_at TIMESTAMP NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// List returns objects whose key starts with prefix. Keys compare bytewise,
// so the prefix becomes a half-open key range.
func (s *SQLiteStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	query := `SELECT key, size, sha256, modified_at FROM objects WHERE key >= ?`
	args := []any{prefix}
	if upper, ok := prefixEnd(prefix); ok {
		query += ` AND key < ?`
		args = append(args, upper)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY key`, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer rows.Close()
	var out []ObjectInfo
	for rows.Next() {
		var info ObjectInfo
		if err := rows.Scan(&info.Key, &info.Size, &info.Fingerprint, &info.ModTime); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Get returns the whole blob.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM objects WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return body, nil
}

// GetRange returns a slice of the blob using SQLite's substr (1-based).
func (s *SQLiteStore) GetRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT substr(body, ?, ?) FROM objects WHERE key = ?`, offset+1, length, key,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get range %s: %w", key, err)
	}
	return body, nil
}

// Put inserts or replaces the object; the digest is computed at write time.
func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	sum := sha256.Sum256(data)
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO objects (key, body, content_type, sha256, size, modified_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET body = excluded.body, content_type = excluded.content_type,
		   sha256 = excluded.sha256, size = excluded.size, modified_at = excluded.modified_at`,
		key, data, contentType, hex.EncodeToString(sum[:]), len(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Stat returns the stored digest and size without reading the blob.
func (s *SQLiteStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	info := ObjectInfo{Key: key}
	err := s.db.QueryRowContext(ctx,
		`SELECT size, sha256, modified_at FROM objects WHERE key = ?`, key,
	).Scan(&info.Size, &info.Fingerprint, &info.ModTime)
	if errors.Is(err, sql.ErrNoRows) {
		return ObjectInfo{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	return info, nil
}

// prefixEnd returns the smallest key greater than every key starting with
// prefix, or false when no such bound exists (empty or all 0xff).
func prefixEnd(prefix string) (string, bool) {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return string(end[:i+1]), true
		}
	}
	return "", false
}

// URI returns a sqlite:// URI naming the database file and key.
func (s *SQLiteStore) URI(key string) string {
	return "sqlite://" + filepath.ToSlash(s.path) + "/" + key
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
