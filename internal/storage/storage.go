// Package storage is the local sqlite cache of logins and notification pages.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/joss/chost/pkg/cohost"
)

// Login is one recorded successful login.
type Login struct {
	ID            string
	Email         string
	UserID        int64
	ProjectID     int64
	ProjectHandle string
	Flags         cohost.Flags
	LoggedInAt    time.Time
}

// CachedNotification is a notification with its feed position and the time
// it was fetched.
type CachedNotification struct {
	cohost.Notification
	Position  int
	FetchedAt time.Time
}

type Storage struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
	now    func() time.Time
}

// New opens (creating if needed) the cache database at path.
func New(path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Storage{db: db, path: path, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS logins (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		project_id INTEGER NOT NULL,
		project_handle TEXT NOT NULL,
		flags INTEGER NOT NULL,
		logged_in_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		project_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		created_at TEXT NOT NULL,
		from_project_id INTEGER NOT NULL,
		to_post_id INTEGER NOT NULL,
		relationship_id INTEGER NOT NULL,
		comment_id TEXT NOT NULL,
		in_reply_to TEXT NOT NULL,
		fetched_at DATETIME NOT NULL,
		PRIMARY KEY (project_id, position)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file.
func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// RecordLogin stores a successful login and returns its id. IDs sort by
// login time.
func (s *Storage) RecordLogin(ctx context.Context, sess cohost.Session) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrClosed
	}

	now := s.now().UTC()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logins (id, email, user_id, project_id, project_handle, flags, logged_in_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, sess.Email, sess.UserID, sess.ProjectID, sess.ProjectHandle, int64(sess.Flags), now)
	if err != nil {
		return "", fmt.Errorf("record login: %w", err)
	}
	return id, nil
}

// LatestLogin returns the most recent recorded login.
func (s *Storage) LatestLogin(ctx context.Context) (*Login, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var l Login
	var flags int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, user_id, project_id, project_handle, flags, logged_in_at
		FROM logins ORDER BY id DESC LIMIT 1
	`).Scan(&l.ID, &l.Email, &l.UserID, &l.ProjectID, &l.ProjectHandle, &flags, &l.LoggedInAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "login"}
	}
	if err != nil {
		return nil, fmt.Errorf("latest login: %w", err)
	}
	l.Flags = cohost.Flags(flags)
	return &l, nil
}

// ReplaceNotifications caches a fetched page, overwriting whatever was
// stored at positions offset..offset+len(list)-1 for the project.
func (s *Storage) ReplaceNotifications(ctx context.Context, projectID int64, offset int, list []cohost.Notification) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM notifications WHERE project_id = ? AND position >= ? AND position < ?
	`, projectID, offset, offset+len(list)); err != nil {
		return fmt.Errorf("clear page: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO notifications (project_id, position, kind, created_at, from_project_id, to_post_id,
			relationship_id, comment_id, in_reply_to, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	for i, n := range list {
		if _, err := stmt.ExecContext(ctx, projectID, offset+i, string(n.Kind), n.CreatedAt,
			n.FromProjectID, n.ToPostID, n.RelationshipID, n.CommentID, n.InReplyTo, now); err != nil {
			return fmt.Errorf("insert position %d: %w", offset+i, err)
		}
	}
	return tx.Commit()
}

// CachedNotifications returns up to limit cached notifications starting at
// offset, in feed order.
func (s *Storage) CachedNotifications(ctx context.Context, projectID int64, offset, limit int) ([]CachedNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT position, kind, created_at, from_project_id, to_post_id, relationship_id,
			comment_id, in_reply_to, fetched_at
		FROM notifications WHERE project_id = ? AND position >= ?
		ORDER BY position LIMIT ?
	`, projectID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []CachedNotification
	for rows.Next() {
		var c CachedNotification
		var kind string
		if err := rows.Scan(&c.Position, &kind, &c.CreatedAt, &c.FromProjectID, &c.ToPostID,
			&c.RelationshipID, &c.CommentID, &c.InReplyTo, &c.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		c.Kind = cohost.Kind(kind)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &NotFoundError{Entity: "notifications", Key: "project " + strconv.FormatInt(projectID, 10)}
	}
	return out, nil
}
