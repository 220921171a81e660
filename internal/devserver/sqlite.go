package devserver

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteStore provides SQLite-backed persistence for sessions.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLiteStore opens the database at dbPath and creates tables if they
// don't exist.
func NewSQLiteStore(dbPath string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create tables")
	}

	return &SQLiteStore{db: db, ttl: ttl}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		last_active_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_query TEXT NOT NULL,
		bot_response TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS turns_session ON turns(session_id, id);
	`
	_, err := db.Exec(schema)
	return err
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context) (*Session, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, last_active_at) VALUES (?, ?, ?)`,
		id, now, now,
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert session")
	}

	return &Session{ID: id, CreatedAt: now, LastActiveAt: now, History: []string{}}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, last_active_at FROM sessions WHERE id = ?`,
		id,
	)

	var sess Session
	err := row.Scan(&sess.ID, &sess.CreatedAt, &sess.LastActiveAt)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(ErrNotFound, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan session")
	}
	if s.expired(sess.LastActiveAt) {
		return nil, errors.Wrap(ErrNotFound, id)
	}

	history, err := s.history(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.History = history
	return &sess, nil
}

// List implements Store. Only sessions active within the retention window
// are returned, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Session, error) {
	threshold := time.Time{}
	if s.ttl > 0 {
		threshold = time.Now().UTC().Add(-s.ttl)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, last_active_at
		 FROM sessions
		 WHERE last_active_at >= ?
		 ORDER BY created_at DESC`,
		threshold,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query sessions")
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.CreatedAt, &sess.LastActiveAt); err != nil {
			return nil, errors.Wrap(err, "scan session")
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rows")
	}

	for i := range sessions {
		history, err := s.history(ctx, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].History = history
	}
	return sessions, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, id, userQuery, botResponse string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, user_query, bot_response, timestamp) VALUES (?, ?, ?, ?)`,
		id, userQuery, botResponse, now,
	); err != nil {
		return errors.Wrap(err, "insert turn")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET last_active_at = ? WHERE id = ?`,
		now, id,
	); err != nil {
		return errors.Wrap(err, "update session")
	}
	return errors.Wrap(tx.Commit(), "commit turn")
}

// history flattens turns into user/bot alternation.
func (s *SQLiteStore) history(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_query, bot_response FROM turns WHERE session_id = ? ORDER BY id ASC`,
		id,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query turns")
	}
	defer func() { _ = rows.Close() }()

	history := []string{}
	for rows.Next() {
		var q, a string
		if err := rows.Scan(&q, &a); err != nil {
			return nil, errors.Wrap(err, "scan turn")
		}
		history = append(history, q, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate turns")
	}
	return history, nil
}

func (s *SQLiteStore) expired(lastActive time.Time) bool {
	return s.ttl > 0 && time.Since(lastActive) > s.ttl
}
